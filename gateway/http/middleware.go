package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-ID"

// getOrGenerateRequestID extracts the request ID from headers or generates a
// new one.
func getOrGenerateRequestID(r *http.Request) string {
	if reqID := r.Header.Get(requestIDHeader); reqID != "" {
		return reqID
	}
	return uuid.NewString()
}

// requestID tags the request and response with an ID for log correlation.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := getOrGenerateRequestID(c.Request)
		c.Set(requestIDHeader, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// cors answers preflight requests and sets allow headers for permitted
// origins.
func (g *Gateway) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if g.config.AllowsOrigin(origin) {
			allow := origin
			if allow == "" {
				allow = "*"
			}
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, X-Request-ID")
			h.Set("Access-Control-Max-Age", "3600")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// throttle answers 429 once the shared token bucket is empty. A nil limiter
// lets everything through.
func throttle(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Message: "Too many requests"})
			return
		}
		c.Next()
	}
}

// limitBody caps request bodies at the configured size.
func (g *Gateway) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, g.config.MaxRequestSize)
		}
		c.Next()
	}
}

// observe writes one slog record per request and feeds the HTTP metrics.
func (g *Gateway) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		g.requestsTotal.Add(1)
		g.stats.RecordMessage(c.Writer.Size())
		if status >= http.StatusInternalServerError {
			g.requestsFailed.Add(1)
		} else {
			g.requestsSuccess.Add(1)
		}
		if g.metrics != nil {
			g.metrics.RecordHTTPRequest(c.Request.Method, route, status, latency)
		}

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		g.logger.LogAttrs(c.Request.Context(), level, "request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", latency),
			slog.String("request_id", c.GetString(requestIDHeader)))
	}
}
