package devserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

type activateRequest struct {
	Code      string `json:"code"`
	DeviceID  string `json:"device_id"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

type tokenInfo struct {
	ID         string `json:"id"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	IsValid    bool   `json:"is_valid"`
	QuotaUsed  *int64 `json:"quota_used,omitempty"`
	QuotaTotal *int64 `json:"quota_total,omitempty"`
}

func fail(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"success": false, "error": msg})
}

func (s *Server) handleActivate(c *gin.Context) {
	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	if !s.checkSignature(req.Code, req.DeviceID, req.Timestamp, req.Signature) {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.lookupCode(req.Code)
	if state == nil {
		fail(c, "invalid activation code")
		return
	}
	if state.boundTo != "" && state.boundTo != req.DeviceID {
		fail(c, "code already bound to another device")
		return
	}
	state.boundTo = req.DeviceID

	expiresAt := s.now().Add(s.sessionTTL)
	session, err := s.issueSession(req.Code, req.DeviceID, expiresAt)
	if err != nil {
		s.log.Error(context.Background(), "session issue failed", "error", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"session_token": session,
		"expires_at":    expiresAt.Unix(),
		"quota":         state.quota,
		"auto_switch":   state.autoSwitch,
	})
}

func (s *Server) handleUnbind(c *gin.Context) {
	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	if !s.checkSignature(req.Code, req.DeviceID, req.Timestamp, req.Signature) {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.lookupCode(req.Code)
	if state == nil || state.boundTo != req.DeviceID {
		fail(c, "code not bound to this device")
		return
	}
	state.boundTo = ""

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleTokenList(c *gin.Context) {
	s.mu.Lock()
	infos := make([]tokenInfo, 0, len(s.tokens))
	for _, t := range s.tokens {
		infos = append(infos, tokenInfo{
			ID:      t.ID,
			Email:   t.Email,
			Name:    t.Name,
			IsValid: t.Valid,
		})
	}
	s.mu.Unlock()

	plaintext, err := json.Marshal(infos)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ct, iv, tag, err := s.cipher.EncryptPayload(string(plaintext))
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    ct,
		"iv":      iv,
		"tag":     tag,
	})
}

func (s *Server) handleTokenActivate(c *gin.Context) {
	var req struct {
		TokenID string `json:"token_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	token := s.findToken(req.TokenID)
	s.mu.Unlock()
	if token == nil {
		fail(c, "unknown token")
		return
	}

	act, aiv, atag, err := s.cipher.EncryptPayload(token.AccessToken)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	rct, riv, rtag, err := s.cipher.EncryptPayload(token.RefreshToken)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"email":         token.Email,
		"access_token":  act,
		"access_iv":     aiv,
		"access_tag":    atag,
		"refresh_token": rct,
		"refresh_iv":    riv,
		"refresh_tag":   rtag,
	})
}

func (s *Server) handleTokenCheck(c *gin.Context) {
	s.mu.Lock()
	token := s.findToken(c.Param("id"))
	s.mu.Unlock()
	if token == nil {
		fail(c, "unknown token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"updated_at": token.UpdatedAt,
	})
}

func (s *Server) handleHeartbeat(c *gin.Context) {
	claims := claimsFrom(c)

	s.mu.Lock()
	state := s.lookupCode(claims.Code)
	bound := state != nil && state.boundTo == claims.DeviceID
	s.mu.Unlock()

	if !bound {
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":      true,
		"expires_at": s.now().Add(s.sessionTTL).Unix(),
	})
}

func (s *Server) handleVersion(c *gin.Context) {
	s.mu.Lock()
	v := s.version
	s.mu.Unlock()

	if v.Current == "" {
		c.JSON(http.StatusOK, gin.H{"hasUpdate": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hasUpdate":   true,
		"version":     v.Current,
		"filename":    v.Filename,
		"size":        v.Size,
		"changelog":   v.Changelog,
		"forceUpdate": v.ForceUpdate,
		"downloadUrl": v.DownloadURL,
	})
}
