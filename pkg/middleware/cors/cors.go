package cors

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Options configures the CORS middleware. An empty AllowedOrigins list admits
// every origin without credentials.
type Options struct {
	AllowedOrigins []string
	AllowedMethods []string
	ExposedHeaders []string
	MaxAge         time.Duration
}

var (
	defaultMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	defaultExposed = []string{"Content-Disposition", "X-Request-ID", "X-Cache"}
	allowedHeaders = "Authorization, Content-Type, X-Requested-With, X-Request-ID"
)

// New returns middleware answering preflight requests and decorating
// responses for the configured origins.
func New(opts Options) gin.HandlerFunc {
	originSet := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, origin := range opts.AllowedOrigins {
		originSet[normalize(origin)] = struct{}{}
	}
	allowAll := len(originSet) == 0

	methods := opts.AllowedMethods
	if len(methods) == 0 {
		methods = defaultMethods
	}
	exposed := opts.ExposedHeaders
	if len(exposed) == 0 {
		exposed = defaultExposed
	}
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	methodList := strings.Join(methods, ", ")
	exposedList := strings.Join(exposed, ", ")
	maxAgeSeconds := strconv.Itoa(int(maxAge.Seconds()))

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "":
			if _, ok := originSet[normalize(origin)]; ok {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
			}
		}
		h.Set("Access-Control-Allow-Headers", allowedHeaders)
		h.Set("Access-Control-Allow-Methods", methodList)
		h.Set("Access-Control-Expose-Headers", exposedList)
		h.Set("Access-Control-Max-Age", maxAgeSeconds)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func normalize(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}
