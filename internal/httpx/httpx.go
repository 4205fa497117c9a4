// Package httpx holds the gin glue shared by the api and web servers.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/zodic/zodic/internal/metrics"
	"github.com/zodic/zodic/pkg/logger"
)

type paramsKeyType string

const paramsKey paramsKeyType = "zodic_path_params"

// Wrap adapts net/http handlers to gin, injecting path params into request context.
func Wrap(h http.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		m := make(map[string]string, len(c.Params))
		for _, p := range c.Params {
			m[p.Key] = p.Value
		}
		ctx := context.WithValue(c.Request.Context(), paramsKey, m)
		c.Request = c.Request.WithContext(ctx)
		h(c.Writer, c.Request)
	}
}

// PathParam reads a path parameter injected by Wrap.
func PathParam(r *http.Request, key string) string {
	m, _ := r.Context().Value(paramsKey).(map[string]string)
	return m[key]
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError answers {"detail": msg}.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"detail": msg})
}

// AccessLog logs one line per request and feeds the request metrics.
func AccessLog(server string) gin.HandlerFunc {
	log := logger.WithField("component", server+".http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()

		metrics.ObserveRequest(server, c.Request.Method, route, status, elapsed)

		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  status,
			"latency": elapsed.Round(time.Microsecond).String(),
			"client":  c.ClientIP(),
		})
		switch {
		case status >= 500:
			entry.Warn("request failed")
		default:
			entry.Debug("request")
		}
	}
}

// NewEngine returns a release-mode gin engine with recovery and access logging.
func NewEngine(server string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(AccessLog(server))
	return r
}
