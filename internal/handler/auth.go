package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/FacundoTogliefoso/transaction-log/internal/config"
	"github.com/FacundoTogliefoso/transaction-log/internal/metrics"
	"github.com/FacundoTogliefoso/transaction-log/internal/middleware"
	"github.com/FacundoTogliefoso/transaction-log/internal/models"
	"github.com/FacundoTogliefoso/transaction-log/internal/store"
	"github.com/FacundoTogliefoso/transaction-log/internal/util"

	"github.com/gin-gonic/gin"
)

// AuthHandler issues and revokes tokens.
type AuthHandler struct {
	Users    *store.Users
	Sessions *store.Sessions
	JWT      config.JWTConfig
}

func NewAuthHandler(users *store.Users, sessions *store.Sessions, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{Users: users, Sessions: sessions, JWT: jwtCfg}
}

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "username and password are required")
		return
	}

	user, err := h.Users.GetByUsername(c.Request.Context(), strings.TrimSpace(req.Username))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		storeError(c, err, "user")
		return
	}
	if user == nil || !util.CheckPassword(req.Password, user.PasswordHash) {
		metrics.LoginsFailed.Add(1)
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "Bad username or password")
		return
	}

	access, _, err := util.GenerateToken(h.JWT.Secret, h.JWT.Issuer, util.AccessToken, user, h.JWT.AccessTTL)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "could not sign token")
		return
	}
	refresh, claims, err := util.GenerateToken(h.JWT.Secret, h.JWT.Issuer, util.RefreshToken, user, h.JWT.RefreshTTL)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "could not sign token")
		return
	}

	sess := &models.Session{ID: claims.ID, UserID: user.ID, ExpiresAt: claims.ExpiresAt.Time}
	if err := h.Sessions.Create(c.Request.Context(), sess); err != nil {
		storeError(c, err, "session")
		return
	}

	util.Success(c, gin.H{
		"access_token":  access,
		"refresh_token": refresh,
		"expire":        int64(h.JWT.AccessTTL / time.Second),
	})
}

// Refresh trades a live refresh token for a new access token. The role is
// taken from the stored user, so a changed role shows up here.
func (h *AuthHandler) Refresh(c *gin.Context) {
	claims, ok := h.refreshClaims(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	sess, err := h.Sessions.Get(ctx, claims.ID)
	if err != nil || !sess.Active(time.Now()) || sess.UserID != claims.UserID {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "refresh token revoked or expired")
		return
	}
	user, err := h.Users.Get(ctx, claims.UserID)
	if err != nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "user no longer exists")
		return
	}

	access, _, err := util.GenerateToken(h.JWT.Secret, h.JWT.Issuer, util.AccessToken, user, h.JWT.AccessTTL)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "could not sign token")
		return
	}
	util.Success(c, gin.H{
		"access_token": access,
		"expire":       int64(h.JWT.AccessTTL / time.Second),
	})
}

// Logout revokes the session behind a refresh token.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := h.refreshClaims(c)
	if !ok {
		return
	}
	if err := h.Sessions.Revoke(c.Request.Context(), claims.ID); err != nil {
		storeError(c, err, "session")
		return
	}
	util.Success(c, gin.H{"message": "logged out"})
}

// refreshClaims reads the refresh token from the Authorization header or
// the {"refresh_token"} body.
func (h *AuthHandler) refreshClaims(c *gin.Context) (*util.Claims, bool) {
	tokenStr := middleware.BearerToken(c)
	if tokenStr == "" {
		var req refreshReq
		_ = c.ShouldBindJSON(&req)
		tokenStr = strings.TrimSpace(req.RefreshToken)
	}
	if tokenStr == "" {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "missing refresh token")
		return nil, false
	}

	claims, err := util.ParseToken(h.JWT.Secret, h.JWT.Issuer, util.RefreshToken, tokenStr)
	if err != nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "invalid or expired refresh token")
		return nil, false
	}
	return claims, true
}
