// Package fibermw provides Fiber middleware for rate limiting. Fiber uses
// fasthttp rather than net/http, so it gets its own halt.Request adapter
// rather than reusing the middleware package's.
//
// Usage:
//
//	limiter := halt.NewLimiter(policy, store)
//	app := fiber.New()
//	app.Use(fibermw.RateLimit(limiter))
package fibermw

import (
	"github.com/gofiber/fiber/v2"

	"github.com/krishna-kudari/halt"
)

// fiberRequest adapts *fiber.Ctx to halt.Request.
type fiberRequest struct {
	c *fiber.Ctx
}

func (f fiberRequest) Path() string             { return f.c.Path() }
func (f fiberRequest) RemoteAddr() string        { return f.c.IP() }
func (f fiberRequest) Header(name string) string { return f.c.Get(name) }
func (f fiberRequest) UserID() (string, bool) {
	if v := f.c.Get("X-User-Id"); v != "" {
		return v, true
	}
	return "", false
}

// ErrorHandler is called when the limiter returns an error.
type ErrorHandler func(c *fiber.Ctx, err error) error

// DeniedHandler is called when a request is rate limited.
type DeniedHandler func(c *fiber.Ctx, decision halt.Decision) error

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

// RateLimit creates Fiber middleware with default settings.
func RateLimit(limiter *halt.Limiter) fiber.Handler {
	return RateLimitWithConfig(Config{Limiter: limiter})
}

// RateLimitWithConfig creates Fiber middleware with full configuration control.
func RateLimitWithConfig(cfg Config) fiber.Handler {
	if cfg.Limiter == nil {
		panic("fibermw: Limiter is required")
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	if cfg.DeniedHandler == nil {
		cfg.DeniedHandler = defaultDeniedHandler
	}

	return func(c *fiber.Ctx) error {
		if cfg.ExcludePaths != nil && cfg.ExcludePaths[c.Path()] {
			return c.Next()
		}

		decision, err := cfg.Limiter.Check(c.UserContext(), fiberRequest{c})
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		setHeaders(c, decision)

		if !decision.Allowed {
			return cfg.DeniedHandler(c, decision)
		}

		return c.Next()
	}
}

func setHeaders(c *fiber.Ctx, d halt.Decision) {
	for _, h := range d.Headers() {
		c.Set(h.Name, h.Value)
	}
}

func defaultErrorHandler(c *fiber.Ctx, _ error) error {
	return c.Next()
}

func defaultDeniedHandler(c *fiber.Ctx, decision halt.Decision) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error":       "rate_limit_exceeded",
		"message":     "Too many requests. Please try again later.",
		"retry_after": decision.RetryAfter,
	})
}
