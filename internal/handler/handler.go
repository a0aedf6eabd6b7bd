// Package handler holds the gin handlers of the HTTP API.
package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/FacundoTogliefoso/transaction-log/internal/middleware"
	"github.com/FacundoTogliefoso/transaction-log/internal/store"
	"github.com/FacundoTogliefoso/transaction-log/internal/util"

	"github.com/gin-gonic/gin"
)

const msgNoPermission = "You don't have permissions to do this action."

// caller returns the token claims of the current request, writing a 401
// when there are none.
func caller(c *gin.Context) (*util.Claims, bool) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return nil, false
	}
	return claims, true
}

// storeError maps a store failure to its response. what names the missing
// thing in 404 messages.
func storeError(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		util.Error(c, http.StatusNotFound, util.CodeNotFound, what+" not found")
	case errors.Is(err, store.ErrStaleWrite):
		util.Error(c, http.StatusConflict, util.CodeServerErr, "the record was modified concurrently, please retry")
	default:
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "internal error")
	}
}
