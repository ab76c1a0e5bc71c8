package middleware

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	pkgzerolog "github.com/duynhne/session-gateway/pkg/logger/zerolog"
)

// OriginPolicy is the allow-list of browser origins permitted to call the
// gateway: exact origin strings plus regular expressions.
type OriginPolicy struct {
	exact    map[string]struct{}
	patterns []*regexp.Regexp
}

// NewOriginPolicy compiles an OriginPolicy. Patterns are matched as written,
// so they should carry their own ^ and $ anchors.
func NewOriginPolicy(origins, patterns []string) (*OriginPolicy, error) {
	p := &OriginPolicy{exact: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			p.exact[o] = struct{}{}
		}
	}
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("compile origin pattern %q: %w", raw, err)
		}
		p.patterns = append(p.patterns, re)
	}
	return p, nil
}

// Allowed reports whether a request with the given Origin may proceed.
// Requests without an Origin (curl, server-to-server) are allowed.
func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	if _, ok := p.exact[origin]; ok {
		return true
	}
	for _, re := range p.patterns {
		if re.MatchString(origin) {
			return true
		}
	}
	return false
}

// OriginGate aborts requests whose Origin is not on the allow-list before any
// later middleware or handler runs.
func OriginGate(policy *OriginPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if policy.Allowed(origin) {
			c.Next()
			return
		}

		OriginRejectionsTotal.Inc()
		pkgzerolog.FromContext(c.Request.Context()).Warn().
			Str("origin", origin).
			Str("path", c.Request.URL.Path).
			Msg("Blocked origin")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Not allowed by CORS"})
	}
}

// CORS writes CORS response headers for allowed origins, with credentials
// enabled so the session cookie travels on cross-site XHR. Preflight requests
// are answered here and never reach a handler.
func CORS(policy *OriginPolicy) gin.HandlerFunc {
	c := cors.New(cors.Options{
		AllowOriginFunc:  policy.Allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{TraceIDHeader},
		AllowCredentials: true,
		MaxAge:           86400,
	})

	return func(ctx *gin.Context) {
		passed := false
		c.Handler(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			ctx.Request = r
		})).ServeHTTP(ctx.Writer, ctx.Request)

		if !passed {
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
