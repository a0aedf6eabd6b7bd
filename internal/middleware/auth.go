package middleware

import (
	"net/http"
	"strings"

	"github.com/FacundoTogliefoso/transaction-log/internal/models"
	"github.com/FacundoTogliefoso/transaction-log/internal/util"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// AuthMiddleware checks the access token and stores its claims in the
// context. The role and user id in the token are used as they are; the
// user is not re-read from the store.
func AuthMiddleware(jwtSecret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := BearerToken(c)

		// ?token=xxx for downloads that cannot set headers
		if tokenStr == "" {
			tokenStr = c.Query("token")
		}

		if tokenStr == "" {
			util.Abort(c, http.StatusUnauthorized, util.CodeAuth, "missing access token")
			return
		}

		claims, err := util.ParseToken(jwtSecret, issuer, util.AccessToken, tokenStr)
		if err != nil {
			util.Abort(c, http.StatusUnauthorized, util.CodeAuth, "invalid or expired access token")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireCapability lets the request through only when the caller's role
// holds want. A refusal is a 401, like every other auth failure here.
func RequireCapability(want models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok || !claims.Role.Can(want) {
			util.Abort(c, http.StatusUnauthorized, util.CodeAuth, "You don't have permissions to do this action.")
			return
		}
		c.Next()
	}
}

// CurrentClaims returns the claims stored by AuthMiddleware.
func CurrentClaims(c *gin.Context) (*util.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*util.Claims)
	return claims, ok && claims != nil
}

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
