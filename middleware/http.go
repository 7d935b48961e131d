// Package middleware provides net/http rate limiting middleware. It is the
// reference adapter the core's Request contract is normative against: every
// other framework adapter (echomw, ginmw, fibermw, grpcmw) follows the same
// extraction → Check → translate-denial shape this package establishes.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/krishna-kudari/halt"
)

// httpRequest adapts *http.Request to halt.Request.
type httpRequest struct {
	r *http.Request
}

func (h httpRequest) Path() string           { return h.r.URL.Path }
func (h httpRequest) RemoteAddr() string      { return h.r.RemoteAddr }
func (h httpRequest) Header(name string) string { return h.r.Header.Get(name) }
func (h httpRequest) UserID() (string, bool) {
	if v := h.r.Header.Get("X-User-Id"); v != "" {
		return v, true
	}
	return "", false
}

// KeyFunc extracts a rate limiting key from an HTTP request. Nothing in
// this package consumes it; a KeyCustom policy takes a halt.Extractor,
// which receives a halt.Request rather than an *http.Request.
type KeyFunc func(r *http.Request) string

// ErrorHandler is called when the limiter returns an error. Default:
// 500 Internal Server Error.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// DeniedHandler is called when a request is rate limited. Default: 429
// with the normative JSON body and Retry-After header.
type DeniedHandler func(w http.ResponseWriter, r *http.Request, decision halt.Decision)

// Config holds the rate limit middleware configuration.
type Config struct {
	// Limiter is the rate limiter instance (required).
	Limiter *halt.Limiter

	// ErrorHandler is called when the limiter returns an error.
	ErrorHandler ErrorHandler

	// DeniedHandler is called when a request is denied.
	DeniedHandler DeniedHandler

	// ExcludePaths are request paths that bypass rate limiting entirely,
	// without even going through the limiter's own exemption check.
	ExcludePaths map[string]bool
}

// RateLimit creates HTTP middleware with default settings. Key derivation
// and exemptions are governed entirely by the Limiter's Policy.
//
//	mux := http.NewServeMux()
//	mux.Handle("/api/", middleware.RateLimit(limiter)(handler))
func RateLimit(limiter *halt.Limiter) func(http.Handler) http.Handler {
	return RateLimitWithConfig(Config{Limiter: limiter})
}

// RateLimitWithConfig creates HTTP middleware with full configuration
// control.
func RateLimitWithConfig(cfg Config) func(http.Handler) http.Handler {
	if cfg.Limiter == nil {
		panic("halt/middleware: Limiter is required")
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	if cfg.DeniedHandler == nil {
		cfg.DeniedHandler = defaultDeniedHandler
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.ExcludePaths != nil && cfg.ExcludePaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			decision, err := cfg.Limiter.Check(r.Context(), httpRequest{r})
			if err != nil {
				cfg.ErrorHandler(w, r, err)
				return
			}

			setHeaders(w, decision)

			if !decision.Allowed {
				cfg.DeniedHandler(w, r, decision)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setHeaders(w http.ResponseWriter, d halt.Decision) {
	for _, h := range d.Headers() {
		w.Header().Set(h.Name, h.Value)
	}
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, _ error) {
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func defaultDeniedHandler(w http.ResponseWriter, _ *http.Request, decision halt.Decision) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":       "rate_limit_exceeded",
		"message":     "Too many requests. Please try again later.",
		"retry_after": decision.RetryAfter,
	})
}
