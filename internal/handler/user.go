package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/FacundoTogliefoso/transaction-log/internal/config"
	"github.com/FacundoTogliefoso/transaction-log/internal/metrics"
	"github.com/FacundoTogliefoso/transaction-log/internal/models"
	"github.com/FacundoTogliefoso/transaction-log/internal/store"
	"github.com/FacundoTogliefoso/transaction-log/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// UserHandler serves the /users endpoints.
type UserHandler struct {
	Users    *store.Users
	Sessions *store.Sessions
	Admin    config.AdminConfig
}

func NewUserHandler(users *store.Users, sessions *store.Sessions, admin config.AdminConfig) *UserHandler {
	return &UserHandler{Users: users, Sessions: sessions, Admin: admin}
}

type createUserReq struct {
	Username string           `json:"username" binding:"required"`
	Email    string           `json:"email"`
	Password string           `json:"password" binding:"required"`
	Role     string           `json:"role"`
	Balance  *decimal.Decimal `json:"balance"`
}

// EnsureSuperuser creates the configured admin account unless a user with
// that name exists. created is false when nothing was written.
func EnsureSuperuser(ctx context.Context, users *store.Users, admin config.AdminConfig) (u *models.User, created bool, err error) {
	u, err = users.GetByUsername(ctx, admin.Username)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	hash, err := util.HashPassword(admin.Password)
	if err != nil {
		return nil, false, err
	}
	u = &models.User{Username: admin.Username, PasswordHash: hash, Role: models.RoleAdmin}
	if err := users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// lost the race to a concurrent bootstrap
			u, err = users.GetByUsername(ctx, admin.Username)
			return u, false, err
		}
		return nil, false, err
	}
	metrics.UsersCreated.Add(1)
	return u, true, nil
}

// CreateSuperuser is the unauthenticated, idempotent bootstrap hook.
func (h *UserHandler) CreateSuperuser(c *gin.Context) {
	_, created, err := EnsureSuperuser(c.Request.Context(), h.Users, h.Admin)
	if err != nil {
		storeError(c, err, "user")
		return
	}
	util.Success(c, gin.H{"created": created})
}

// Create adds a user. Only callers allowed to manage users may create
// admins or set an opening balance.
func (h *UserHandler) Create(c *gin.Context) {
	claims, ok := caller(c)
	if !ok {
		return
	}

	var req createUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "username and password are required")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	role, err := models.ParseRole(req.Role)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}
	if (role == models.RoleAdmin || req.Balance != nil) && !claims.Role.Can(models.ManageUsers) {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, msgNoPermission)
		return
	}
	if err := validateUserFields(req.Username, req.Email, req.Password); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	hash, err := util.HashPassword(req.Password)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "could not hash password")
		return
	}
	user := &models.User{Username: req.Username, Email: req.Email, PasswordHash: hash, Role: role}
	if req.Balance != nil {
		user.Balance = *req.Balance
	}

	if err := h.Users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth,
				fmt.Sprintf("Username %s already exists. Please use another one.", req.Username))
			return
		}
		storeError(c, err, "user")
		return
	}
	metrics.UsersCreated.Add(1)
	util.Success(c, user)
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.Users.List(c.Request.Context())
	if err != nil {
		storeError(c, err, "user")
		return
	}
	if users == nil {
		users = []models.User{}
	}
	util.Success(c, users)
}

func (h *UserHandler) Show(c *gin.Context) {
	user, err := h.Users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		storeError(c, err, fmt.Sprintf("user %s", c.Param("id")))
		return
	}
	util.Success(c, user)
}

// Update applies a partial update; absent fields keep their value.
func (h *UserHandler) Update(c *gin.Context) {
	var patch models.UserUpdate
	if err := c.ShouldBindJSON(&patch); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid user payload")
		return
	}
	if patch.Role != nil {
		role, err := models.ParseRole(string(*patch.Role))
		if err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
			return
		}
		patch.Role = &role
	}

	ctx := c.Request.Context()
	user, err := h.Users.Get(ctx, c.Param("id"))
	if err != nil {
		storeError(c, err, fmt.Sprintf("user %s", c.Param("id")))
		return
	}

	newPassword, changed := patch.Merge(user)
	if !changed {
		util.Success(c, user)
		return
	}
	user.Username = strings.TrimSpace(user.Username)
	user.Email = strings.TrimSpace(user.Email)
	if err := validateUserFields(user.Username, user.Email, ""); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}
	if patch.Password != nil {
		if err := util.ValidatePassword(newPassword); err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
			return
		}
		if user.PasswordHash, err = util.HashPassword(newPassword); err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "could not hash password")
			return
		}
	}

	if err := h.Users.Save(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth,
				fmt.Sprintf("Username %s already exists. Please use another one.", user.Username))
			return
		}
		storeError(c, err, "user")
		return
	}
	util.Success(c, user)
}

// Delete removes the user and revokes its refresh sessions. Its ledger
// records are left in place.
func (h *UserHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := h.Users.Delete(ctx, id); err != nil {
		storeError(c, err, fmt.Sprintf("user %s", id))
		return
	}
	if err := h.Sessions.RevokeUser(ctx, id); err != nil {
		storeError(c, err, "session")
		return
	}
	util.Success(c, true)
}

// validateUserFields checks username and email, and the password when it
// is not empty.
func validateUserFields(username, email, password string) error {
	if err := util.ValidateUsername(username); err != nil {
		return err
	}
	if err := util.ValidateEmail(email); err != nil {
		return err
	}
	if password != "" {
		return util.ValidatePassword(password)
	}
	return nil
}
