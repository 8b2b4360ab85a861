// Package httpserver exposes liveness and readiness probes.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is the dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter wires the probe endpoints.
// /health: the process is up.
// /ready: the store answers within a second.
func NewRouter(store Pinger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	return r
}

// New returns an unstarted server for the router.
func New(listen string, store Pinger) *http.Server {
	return &http.Server{
		Addr:              listen,
		Handler:           NewRouter(store),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
