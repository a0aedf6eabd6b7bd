package handler

import (
	"net/http"

	"github.com/FacundoTogliefoso/transaction-log/internal/store"
	"github.com/FacundoTogliefoso/transaction-log/internal/util"

	"github.com/gin-gonic/gin"
)

// ChangePasswordReq changes the caller's own password.
type ChangePasswordReq struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// GetMe returns the caller's own account, balance included.
func GetMe(users *store.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := caller(c)
		if !ok {
			return
		}
		user, err := users.Get(c.Request.Context(), claims.UserID)
		if err != nil {
			storeError(c, err, "user")
			return
		}
		util.Success(c, user)
	}
}

// ChangePassword checks the old password, stores the new one and logs the
// user out everywhere.
func ChangePassword(users *store.Users, sessions *store.Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := caller(c)
		if !ok {
			return
		}

		var req ChangePasswordReq
		if err := c.ShouldBindJSON(&req); err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "old_password and new_password are required")
			return
		}
		if err := util.ValidatePassword(req.NewPassword); err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
			return
		}

		ctx := c.Request.Context()
		user, err := users.Get(ctx, claims.UserID)
		if err != nil {
			storeError(c, err, "user")
			return
		}
		if !util.CheckPassword(req.OldPassword, user.PasswordHash) {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "old password is wrong")
			return
		}

		if user.PasswordHash, err = util.HashPassword(req.NewPassword); err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "could not hash password")
			return
		}
		if err := users.Save(ctx, user); err != nil {
			storeError(c, err, "user")
			return
		}
		if err := sessions.RevokeUser(ctx, user.ID); err != nil {
			storeError(c, err, "session")
			return
		}

		util.Success(c, gin.H{"message": "password changed, please log in again"})
	}
}
