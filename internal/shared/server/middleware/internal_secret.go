package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mealplan-backend/internal/shared/server/respond"
)

// CronSecretHeader carries the shared secret for scheduler-only routes.
const CronSecretHeader = "X-Cron-Secret"

// InternalSecret guards internal routes with a shared secret. An empty
// secret disables the routes entirely.
func InternalSecret(secret string) gin.HandlerFunc {
	want := []byte(strings.TrimSpace(secret))
	return func(c *gin.Context) {
		if len(want) == 0 {
			respond.Error(c, http.StatusNotFound, "not_found", "route not enabled", nil)
			return
		}
		got := []byte(strings.TrimSpace(c.GetHeader(CronSecretHeader)))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			respond.Error(c, http.StatusForbidden, "forbidden", "invalid cron secret", nil)
			return
		}
		c.Next()
	}
}
