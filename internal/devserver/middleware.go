package devserver

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/credbroker/internal/common"
)

type sessionClaims struct {
	Code     string `json:"code"`
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

// issueSession signs a session JWT bound to one code and device.
func (s *Server) issueSession(code, deviceID string, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		Code:     code,
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func (s *Server) parseSession(token string) (*sessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	return claims, nil
}

// checkSignature validates the timestamp window and the HMAC over the signed
// data. Requests outside the skew window are rejected even with a valid MAC.
func (s *Server) checkSignature(data, deviceID string, timestamp int64, signature string) bool {
	skew := s.now().Unix() - timestamp
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Second > maxTimestampSkew {
		return false
	}
	return s.cipher.Verify(data, timestamp, deviceID, signature)
}

// requireSession authenticates the bearer JWT and the signature header
// triple. The signed data is the bearer itself, except for the heartbeat
// endpoint which signs a fixed probe word.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if bearer == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		claims, err := s.parseSession(bearer)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		deviceID := c.GetHeader(common.HeaderDeviceID)
		timestamp, err := strconv.ParseInt(c.GetHeader(common.HeaderTimestamp), 10, 64)
		if err != nil || deviceID != claims.DeviceID {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		data := bearer
		if c.FullPath() == "/auth/heartbeat" {
			data = "heartbeat"
		}
		if !s.checkSignature(data, deviceID, timestamp, c.GetHeader(common.HeaderSignature)) {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}

func claimsFrom(c *gin.Context) *sessionClaims {
	v, _ := c.Get("claims")
	claims, _ := v.(*sessionClaims)
	return claims
}
