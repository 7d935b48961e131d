// Package echomw provides Echo middleware for rate limiting, adapting an
// Echo context to halt.Request the same way the middleware package adapts
// *http.Request.
//
// Usage:
//
//	limiter := halt.NewLimiter(policy, store)
//	e := echo.New()
//	e.Use(echomw.RateLimit(limiter))
package echomw

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/krishna-kudari/halt"
)

// echoRequest adapts echo.Context to halt.Request.
type echoRequest struct {
	c echo.Context
}

func (e echoRequest) Path() string              { return e.c.Path() }
func (e echoRequest) RemoteAddr() string        { return e.c.RealIP() }
func (e echoRequest) Header(name string) string { return e.c.Request().Header.Get(name) }
func (e echoRequest) UserID() (string, bool) {
	if v := e.c.Request().Header.Get("X-User-Id"); v != "" {
		return v, true
	}
	return "", false
}

// ErrorHandler is called when the limiter returns an error.
type ErrorHandler func(c echo.Context, err error) error

// DeniedHandler is called when a request is rate limited.
type DeniedHandler func(c echo.Context, decision halt.Decision) error

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

// RateLimit creates Echo middleware with default settings.
func RateLimit(limiter *halt.Limiter) echo.MiddlewareFunc {
	return RateLimitWithConfig(Config{Limiter: limiter})
}

// RateLimitWithConfig creates Echo middleware with full configuration control.
func RateLimitWithConfig(cfg Config) echo.MiddlewareFunc {
	if cfg.Limiter == nil {
		panic("echomw: Limiter is required")
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	if cfg.DeniedHandler == nil {
		cfg.DeniedHandler = defaultDeniedHandler
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.ExcludePaths != nil && cfg.ExcludePaths[c.Request().URL.Path] {
				return next(c)
			}

			decision, err := cfg.Limiter.Check(c.Request().Context(), echoRequest{c})
			if err != nil {
				return cfg.ErrorHandler(c, err)
			}

			setHeaders(c, decision)

			if !decision.Allowed {
				return cfg.DeniedHandler(c, decision)
			}

			return next(c)
		}
	}
}

func setHeaders(c echo.Context, d halt.Decision) {
	h := c.Response().Header()
	for _, hdr := range d.Headers() {
		h.Set(hdr.Name, hdr.Value)
	}
}

func defaultErrorHandler(c echo.Context, err error) error {
	return nil
}

func defaultDeniedHandler(c echo.Context, decision halt.Decision) error {
	return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
		"error":       "rate_limit_exceeded",
		"message":     "Too many requests. Please try again later.",
		"retry_after": decision.RetryAfter,
	})
}
