// Package devserver is an in-memory implementation of the authorization
// service's wire contract, used for local development and integration tests.
// Activation codes are provisioned up front and stored bcrypt-hashed;
// session tokens are signed JWTs; token payloads leave encrypted exactly as
// the production service sends them.
package devserver

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/credbroker/internal/cryptox"
	"github.com/dmitrijs2005/credbroker/internal/logging"
)

// maxTimestampSkew bounds how far a signed request's timestamp may drift
// from server time.
const maxTimestampSkew = 300 * time.Second

// TokenRecord is one token offered by the dev server, held in plaintext and
// encrypted per response.
type TokenRecord struct {
	ID           string
	Email        string
	Name         string
	AccessToken  string
	RefreshToken string
	UpdatedAt    int64
	Valid        bool
}

// codeState holds one provisioned activation code. Only the bcrypt hash is
// stored; a presented code is resolved by comparing against each hash.
type codeState struct {
	hash       []byte
	autoSwitch bool
	quota      int64
	boundTo    string
}

// Version describes the client build the dev server advertises.
type Version struct {
	Current     string
	Filename    string
	Size        int64
	Changelog   string
	ForceUpdate bool
	DownloadURL string
}

// Server holds all state behind the wire endpoints. Everything lives in
// memory; restarting the server revokes every session.
type Server struct {
	cipher     *cryptox.Cipher
	jwtSecret  []byte
	sessionTTL time.Duration
	log        logging.Logger

	mu      sync.Mutex
	codes   []*codeState
	tokens  []TokenRecord
	version Version

	now func() time.Time
}

// New builds a Server. cipher must match the client's communication key;
// jwtSecret signs session tokens.
func New(cipher *cryptox.Cipher, jwtSecret []byte, sessionTTL time.Duration, log logging.Logger) *Server {
	return &Server{
		cipher:     cipher,
		jwtSecret:  jwtSecret,
		sessionTTL: sessionTTL,
		log:        log,
		now:        time.Now,
	}
}

// ProvisionCode registers an activation code. The code itself is not kept,
// only its bcrypt hash.
func (s *Server) ProvisionCode(code string, autoSwitch bool, quota int64) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes = append(s.codes, &codeState{hash: hash, autoSwitch: autoSwitch, quota: quota})
	return nil
}

// SetTokens replaces the token catalog.
func (s *Server) SetTokens(tokens []TokenRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = append([]TokenRecord(nil), tokens...)
}

// SetVersion sets the advertised client build.
func (s *Server) SetVersion(v Version) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
}

// lookupCode matches a presented code against the provisioned hashes.
func (s *Server) lookupCode(code string) *codeState {
	for _, state := range s.codes {
		if bcrypt.CompareHashAndPassword(state.hash, []byte(code)) == nil {
			return state
		}
	}
	return nil
}

func (s *Server) findToken(id string) *TokenRecord {
	for i := range s.tokens {
		if s.tokens[i].ID == id {
			return &s.tokens[i]
		}
	}
	return nil
}

// Handler assembles the gin router for all wire endpoints.
func (s *Server) Handler() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/auth/activate", s.handleActivate)
	r.POST("/auth/unbind", s.handleUnbind)
	r.GET("/client/version", s.handleVersion)

	signed := r.Group("/", s.requireSession())
	signed.GET("/tokens", s.handleTokenList)
	signed.POST("/tokens/activate", s.handleTokenActivate)
	signed.GET("/tokens/check/:id", s.handleTokenCheck)
	signed.POST("/auth/heartbeat", s.handleHeartbeat)

	return r
}
