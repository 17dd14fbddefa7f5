package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-workflow-api/pkg/config"
)

const (
	allowedHeaders = "Authorization, Content-Type, X-Requested-With, X-Request-ID, X-Access-Code"
	allowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
	exposedHeaders = "X-Request-ID, Content-Disposition"
)

// New returns the CORS middleware. With no configured origins any origin may
// read responses but cookies are not shared; listed origins also get
// credentials, which the portal needs to send the session cookie.
func New(cfg config.CORSConfig) gin.HandlerFunc {
	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin != "" {
			origins[origin] = struct{}{}
		}
	}
	open := len(origins) == 0

	return func(c *gin.Context) {
		origin := strings.TrimRight(c.GetHeader("Origin"), "/")
		header := c.Writer.Header()
		header.Add("Vary", "Origin")

		allowed := false
		switch {
		case origin == "":
		case open:
			header.Set("Access-Control-Allow-Origin", "*")
			allowed = true
		default:
			if _, ok := origins[origin]; ok {
				header.Set("Access-Control-Allow-Origin", origin)
				header.Set("Access-Control-Allow-Credentials", "true")
				allowed = true
			}
		}
		if allowed {
			header.Set("Access-Control-Expose-Headers", exposedHeaders)
		}

		if c.Request.Method != http.MethodOptions || c.GetHeader("Access-Control-Request-Method") == "" {
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		header.Set("Access-Control-Allow-Headers", allowedHeaders)
		header.Set("Access-Control-Allow-Methods", allowedMethods)
		header.Set("Access-Control-Max-Age", "600")
		c.AbortWithStatus(http.StatusNoContent)
	}
}
