// Package admin serves the host process HTTP surface.
//
// Ownership boundary:
// - probes, metrics scrape and read-only views of the host registry and state
// - operator-triggered application messages
// - mounting the websocket sync endpoint next to the admin routes
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/netsync/internal/netsync"
	"github.com/danmuck/netsync/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "0.1.0"

// Options configure the admin router.
type Options struct {
	Node         string
	SyncPath     string
	CorsOrigins  []string
	StateTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.Node) == "" {
		o.Node = "synchost"
	}
	if strings.TrimSpace(o.SyncPath) == "" {
		o.SyncPath = "/sync"
	}
	if o.StateTimeout <= 0 {
		o.StateTimeout = 2 * time.Second
	}
	return o
}

// Admin binds a gin engine to one Host.
type Admin struct {
	opts     Options
	host     *netsync.Host
	router   *gin.Engine
	appeared time.Time
}

// New builds the router. sync receives websocket upgrades on opts.SyncPath.
func New(host *netsync.Host, sync http.Handler, opts Options) *Admin {
	observability.RegisterMetrics()
	opts = opts.withDefaults()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(observability.ComponentLogger(opts.Node)))
	r.Use(observability.RequestMetricsMiddleware(opts.Node))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	a := &Admin{
		opts:     opts,
		host:     host,
		router:   r,
		appeared: time.Now(),
	}
	a.routes(sync)
	return a
}

func (a *Admin) Handler() http.Handler {
	return a.router
}

func (a *Admin) routes(sync http.Handler) {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(a.appeared).String(),
			"component": a.opts.Node,
			"version":   version,
		})
	})

	a.router.GET("/ready", func(c *gin.Context) {
		status := http.StatusOK
		ready := a.host.Running()
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":       ready,
			"connections": len(a.host.Connections()),
			"component":   a.opts.Node,
			"version":     version,
		})
	})

	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router.GET("/connections", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"connections": a.host.Connections()})
	})

	a.router.POST("/connections/:id/send", func(c *gin.Context) {
		body, ok := readMessage(c)
		if !ok {
			return
		}
		if !a.host.Send(c.Param("id"), body) {
			c.JSON(http.StatusNotFound, gin.H{"error": "connection unavailable or message refused"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"sent": 1})
	})

	a.router.POST("/broadcast", func(c *gin.Context) {
		body, ok := readMessage(c)
		if !ok {
			return
		}
		sent, err := a.host.Broadcast(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"sent": sent})
	})

	a.router.GET("/state", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), a.opts.StateTimeout)
		defer cancel()
		state, err := a.host.Snapshot(ctx)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"state": state})
	})

	if sync != nil {
		a.router.GET(a.opts.SyncPath, gin.WrapH(sync))
	}
}

func readMessage(c *gin.Context) (json.RawMessage, bool) {
	var body json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return body, true
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
