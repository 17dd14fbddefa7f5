package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-workflow-api/internal/service"
)

const (
	// ContextSessionKey stores the per-request *service.Session.
	ContextSessionKey = "session"
	// ContextAccessKey stores the service.Access the access guard allowed.
	ContextAccessKey = "access"
)

// Session attaches a fresh, uninitialized session to every request. The
// session hydrates lazily from the bearer token or the session cookie.
func Session(manager *service.SessionManager, auth *service.AuthService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var source service.IdentitySource
		if token := sessionToken(c, cookieName); token != "" {
			source = service.NewTokenIdentitySource(auth, token)
		}
		c.Set(ContextSessionKey, manager.New(source))
		c.Next()
	}
}

// SessionFromContext returns the request session, if any.
func SessionFromContext(c *gin.Context) *service.Session {
	value, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil
	}
	sess, _ := value.(*service.Session)
	return sess
}

// AccessFromContext returns the access view recorded by RequireAccess.
func AccessFromContext(c *gin.Context) (service.Access, bool) {
	value, exists := c.Get(ContextAccessKey)
	if !exists {
		return service.Access{}, false
	}
	access, ok := value.(service.Access)
	return access, ok
}

func sessionToken(c *gin.Context, cookieName string) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookieName == "" {
		return ""
	}
	token, err := c.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(token)
}
