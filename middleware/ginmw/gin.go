// Package ginmw provides Gin middleware for rate limiting, adapting a Gin
// context to halt.Request the same way the middleware package adapts
// *http.Request.
//
// Usage:
//
//	limiter := halt.NewLimiter(policy, store)
//	r := gin.Default()
//	r.Use(ginmw.RateLimit(limiter))
package ginmw

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/krishna-kudari/halt"
)

// ginRequest adapts *gin.Context to halt.Request.
type ginRequest struct {
	c *gin.Context
}

func (g ginRequest) Path() string             { return g.c.FullPath() }
func (g ginRequest) RemoteAddr() string        { return g.c.ClientIP() }
func (g ginRequest) Header(name string) string { return g.c.GetHeader(name) }
func (g ginRequest) UserID() (string, bool) {
	if v := g.c.GetHeader("X-User-Id"); v != "" {
		return v, true
	}
	return "", false
}

// ErrorHandler is called when the limiter returns an error.
type ErrorHandler func(c *gin.Context, err error)

// DeniedHandler is called when a request is rate limited.
type DeniedHandler func(c *gin.Context, decision halt.Decision)

// Config holds the rate limit middleware configuration.
type Config struct {
	// Limiter is the rate limiter instance (required).
	Limiter *halt.Limiter

	// ErrorHandler is called when the limiter returns an error.
	ErrorHandler ErrorHandler

	// DeniedHandler is called when a request is denied.
	DeniedHandler DeniedHandler

	// ExcludePaths are request paths that bypass rate limiting entirely.
	ExcludePaths map[string]bool
}

// RateLimit creates Gin middleware with default settings.
func RateLimit(limiter *halt.Limiter) gin.HandlerFunc {
	return RateLimitWithConfig(Config{Limiter: limiter})
}

// RateLimitWithConfig creates Gin middleware with full configuration control.
func RateLimitWithConfig(cfg Config) gin.HandlerFunc {
	if cfg.Limiter == nil {
		panic("ginmw: Limiter is required")
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	if cfg.DeniedHandler == nil {
		cfg.DeniedHandler = defaultDeniedHandler
	}

	return func(c *gin.Context) {
		if cfg.ExcludePaths != nil && cfg.ExcludePaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		decision, err := cfg.Limiter.Check(c.Request.Context(), ginRequest{c})
		if err != nil {
			cfg.ErrorHandler(c, err)
			return
		}

		setHeaders(c, decision)

		if !decision.Allowed {
			cfg.DeniedHandler(c, decision)
			return
		}

		c.Next()
	}
}

func setHeaders(c *gin.Context, d halt.Decision) {
	for _, h := range d.Headers() {
		c.Header(h.Name, h.Value)
	}
}

func defaultErrorHandler(c *gin.Context, _ error) {
	c.Next()
}

func defaultDeniedHandler(c *gin.Context, decision halt.Decision) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":       "rate_limit_exceeded",
		"message":     "Too many requests. Please try again later.",
		"retry_after": decision.RetryAfter,
	})
}
