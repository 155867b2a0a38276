package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fraudsynth/internal/store"
)

type verifyRequest struct {
	IDToken string `json:"id_token" binding:"required"`
	Mode    string `json:"mode"` // "signup" | "login" | ""
}

func publicUser(u *store.User) gin.H {
	return gin.H{"id": u.ID, "email": u.Email, "name": u.Name, "picture": u.Picture}
}

// handleVerify verifies a Google ID token and either logs an existing user
// in or performs an idempotent signup.
func (s *Server) handleVerify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: id_token is required"})
		return
	}

	claims, err := s.verifier.Verify(c.Request.Context(), req.IDToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token: " + err.Error()})
		return
	}
	if claims.Subject == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject claim missing in token"})
		return
	}

	now := time.Now()

	// Login requires a pre-existing account and only advances last_login.
	if strings.EqualFold(req.Mode, "login") {
		existing, err := s.store.FindUser(c.Request.Context(), claims.Subject)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusConflict, gin.H{"error": "account not found, please sign up before logging in"})
			return
		}
		if err != nil {
			s.log.Error("login lookup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store failure"})
			return
		}
		if err := s.store.TouchLastLogin(c.Request.Context(), claims.Subject, now); err != nil {
			s.log.Error("last_login update failed", zap.Error(err))
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "user": publicUser(existing)})
		return
	}

	// Any other mode is treated as signup: create-if-absent, touch either way.
	u, err := s.store.SignupUser(c.Request.Context(), store.User{
		ID:          claims.Subject,
		Email:       claims.Email,
		Name:        claims.Name,
		Picture:     claims.Picture,
		Roles:       []string{"user"},
		CreatedAt:   now,
		LastLoginAt: now,
	})
	if err != nil {
		s.log.Error("signup upsert failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failure"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": publicUser(u)})
}
