// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the admin gate. Admin routes accept the shared secret
// either as "Authorization: Bearer <token>" or in the X-Admin-Token header.
// Requests are rejected before any handler runs:
//   - ADMIN_TOKEN not set    → 403 forbidden (admin surface disabled)
//   - no credential          → 401 unauthorized
//   - wrong credential       → 403 forbidden
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderAdminToken is the alternative header carrying the admin secret.
const HeaderAdminToken = "X-Admin-Token"

const ctxKeyAdmin = "auth.admin"

// RequireAdmin returns a middleware that only lets requests carrying token
// through. An empty token disables every route behind it.
func RequireAdmin(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		got, present := adminCredential(c)
		switch {
		case len(want) == 0:
			abortJSON(c, http.StatusForbidden, "forbidden", "admin access is disabled")
			return
		case !present:
			c.Header("WWW-Authenticate", `Bearer realm="admin"`)
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "admin credential required")
			return
		case subtle.ConstantTimeCompare([]byte(got), want) != 1:
			LoggerFrom(c).Warn().Str("client_ip", c.ClientIP()).Msg("admin: rejected credential")
			abortJSON(c, http.StatusForbidden, "forbidden", "invalid admin credential")
			return
		}
		c.Set(ctxKeyAdmin, true)
		c.Next()
	}
}

// IsAdmin reports whether RequireAdmin accepted the request.
func IsAdmin(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyAdmin)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func adminCredential(c *gin.Context) (string, bool) {
	if h := strings.TrimSpace(c.GetHeader("Authorization")); h != "" {
		scheme, tok, found := strings.Cut(h, " ")
		if found && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(tok) != "" {
			return strings.TrimSpace(tok), true
		}
	}
	if h := strings.TrimSpace(c.GetHeader(HeaderAdminToken)); h != "" {
		return h, true
	}
	return "", false
}

// abortJSON writes the standard error envelope from middleware, which cannot
// import the handlers package.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
