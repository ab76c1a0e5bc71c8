// Package web assembles the gin engine: the middleware chain, operational
// endpoints and the versioned auth API.
package web

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	v1 "github.com/duynhne/session-gateway/internal/web/v1"
	"github.com/duynhne/session-gateway/middleware"
)

// RouterOptions carries what NewRouter needs beyond the auth handler.
type RouterOptions struct {
	ServiceName    string
	UpstreamURL    string
	Env            string
	TrustedProxies []string
	Origins        *middleware.OriginPolicy
	// ShuttingDown flips /ready to 503 while the server drains.
	ShuttingDown *atomic.Bool
}

// NewRouter builds the HTTP handler. The origin gate runs before CORS and
// before every route, so a disallowed origin never reaches handler logic.
func NewRouter(handler *v1.Handler, opts RouterOptions) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, err
	}

	r.Use(gin.Recovery())
	r.Use(middleware.TracingMiddleware(opts.ServiceName))
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.PrometheusMiddleware())
	r.Use(middleware.OriginGate(opts.Origins))
	r.Use(middleware.CORS(opts.Origins))

	r.GET("/health", v1.Health(opts.UpstreamURL, opts.Env))

	// Returns 503 once shutdown has started, to drain traffic before HTTP shutdown.
	r.GET("/ready", func(c *gin.Context) {
		if opts.ShuttingDown != nil && opts.ShuttingDown.Load() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting_down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.RegisterRoutes(r.Group("/api"))

	return r, nil
}
