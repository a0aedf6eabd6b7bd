package middleware

import (
	"context"
	"log"

	"github.com/FacundoTogliefoso/transaction-log/internal/models"

	"github.com/gin-gonic/gin"
)

// AuditWriter persists one audit entry.
type AuditWriter interface {
	Create(ctx context.Context, l *models.AuditLog) error
}

// AuditMiddleware records every authenticated request after it is served.
// It must run after AuthMiddleware. Write failures are logged and never
// change the response.
func AuditMiddleware(w AuditWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		claims, ok := CurrentClaims(c)
		if !ok {
			return
		}

		entry := models.AuditLog{
			UserID:    claims.UserID,
			Method:    c.Request.Method,
			Path:      truncate(c.Request.URL.Path, 255),
			Status:    c.Writer.Status(),
			IP:        c.ClientIP(),
			UserAgent: truncate(c.Request.UserAgent(), 255),
		}
		if err := w.Create(context.WithoutCancel(c.Request.Context()), &entry); err != nil {
			log.Printf("audit log for %s %s: %v", entry.Method, entry.Path, err)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
