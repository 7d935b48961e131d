package halt

import (
	"net"
	"strings"
)

// Request is the duck-typed surface key derivation and exemption checks
// consume. Framework adapters translate their native request object into
// this shape; the core never imports net/http itself so it stays usable
// from non-HTTP transports (e.g. gRPC).
type Request interface {
	// Path is used for health-check and literal path exemptions.
	Path() string
	// RemoteAddr is the direct peer address, host:port or bare host.
	RemoteAddr() string
	// Header performs a case-insensitive header lookup. Returns "" if absent.
	Header(name string) string
	// UserID returns the application-supplied user identifier and whether
	// one was attached to the request.
	UserID() (string, bool)
}

// Extractor derives a rate-limit key from a Request. Used by KeyCustom and
// as the building block KeyComposite composes.
type Extractor func(Request) (string, bool)

// compositeSeparator joins sub-keys for KeyComposite. 0x1f (unit separator)
// can never appear in an IP literal, header value, or user id, so the join
// is unambiguous without escaping.
const compositeSeparator = "\x1f"

// DeriveKey derives the rate-limit key for req per policy.KeyStrategy. The
// second return is false when no key could be derived (e.g. KeyUser with no
// attached identity), in which case the caller applies
// Policy.AllowUnidentified.
func DeriveKey(p *Policy, req Request) (string, bool) {
	switch p.KeyStrategy {
	case KeyIP:
		return extractIP(p, req)
	case KeyUser:
		return req.UserID()
	case KeyAPIKey:
		return extractAPIKey(req)
	case KeyComposite:
		return extractComposite(p, req)
	case KeyCustom:
		return p.KeyExtractor(req)
	default:
		return "", false
	}
}

func extractIP(p *Policy, req Request) (string, bool) {
	peer := hostOnly(req.RemoteAddr())
	if peer == "" {
		return "", false
	}
	if isTrustedProxy(peer, p.TrustedProxies) {
		if xff := req.Header("X-Forwarded-For"); xff != "" {
			first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
			if first != "" {
				return first, true
			}
		}
	}
	return peer, true
}

func hostOnly(addr string) string {
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func isTrustedProxy(ip string, trusted []string) bool {
	parsed := net.ParseIP(ip)
	for _, t := range trusted {
		if strings.Contains(t, "/") {
			_, cidr, err := net.ParseCIDR(t)
			if err == nil && parsed != nil && cidr.Contains(parsed) {
				return true
			}
			continue
		}
		if t == ip {
			return true
		}
	}
	return false
}

func extractAPIKey(req Request) (string, bool) {
	if k := req.Header("X-API-Key"); k != "" {
		return k, true
	}
	if auth := req.Header("Authorization"); auth != "" {
		const prefix = "Bearer "
		if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
			return auth[len(prefix):], true
		}
	}
	return "", false
}

func extractComposite(p *Policy, req Request) (string, bool) {
	strategies := p.CompositeOf
	if len(strategies) == 0 {
		strategies = []KeyStrategy{KeyIP, KeyUser}
	}
	parts := make([]string, 0, len(strategies))
	for _, s := range strategies {
		sub := *p
		sub.KeyStrategy = s
		part, ok := DeriveKey(&sub, req)
		if !ok {
			return "", false
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, compositeSeparator), true
}

// privateCIDRs are the ranges treated as private/loopback for the exemption
// check in isPrivateIP.
var privateCIDRs = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"::1/128",
	"fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic("halt: invalid built-in CIDR " + c)
		}
		nets = append(nets, n)
	}
	return nets
}

func isPrivateIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range privateCIDRs {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

func isHealthCheckPath(path string, configured []string) bool {
	for _, p := range configured {
		if path == p {
			return true
		}
	}
	return false
}

// isKeyIndependentExempt evaluates the two §4.4 exemption conditions that
// don't need a derived key: health-check path, and private/loopback IP (if
// enabled). The caller runs this before DeriveKey, since a key-derivation
// failure must never suppress these.
func isKeyIndependentExempt(p *Policy, req Request) bool {
	if isHealthCheckPath(req.Path(), p.HealthCheckPaths) {
		return true
	}
	if p.ExemptPrivateIPs {
		if isPrivateIP(hostOnly(req.RemoteAddr())) {
			return true
		}
	}
	return false
}

// isExempt evaluates the three exemption conditions in §4.4, in order:
// health-check path, private/loopback IP (if enabled), literal policy
// exemption match against either the path or the derived key.
func isExempt(p *Policy, req Request, derivedKey string) bool {
	if isKeyIndependentExempt(p, req) {
		return true
	}
	for _, e := range p.Exemptions {
		if e == req.Path() || e == derivedKey {
			return true
		}
	}
	return false
}
