package halt

import (
	"testing"
	"time"
)

// testRequest is a minimal Request implementation shared across this
// package's tests.
type testRequest struct {
	path    string
	remote  string
	headers map[string]string
	userID  string
	hasUser bool
}

func (r *testRequest) Path() string       { return r.path }
func (r *testRequest) RemoteAddr() string { return r.remote }
func (r *testRequest) Header(name string) string {
	if r.headers == nil {
		return ""
	}
	return r.headers[name]
}
func (r *testRequest) UserID() (string, bool) { return r.userID, r.hasUser }

func TestDeriveKey_IP(t *testing.T) {
	p, _ := NewPolicy("p", 1, time.Second, WithKeyStrategy(KeyIP))
	req := &testRequest{remote: "203.0.113.5:54321"}
	key, ok := DeriveKey(p, req)
	if !ok || key != "203.0.113.5" {
		t.Fatalf("got key=%q ok=%v", key, ok)
	}
}

func TestDeriveKey_IP_TrustedProxyForwardedFor(t *testing.T) {
	p, _ := NewPolicy("p", 1, time.Second,
		WithKeyStrategy(KeyIP),
		WithTrustedProxies("10.0.0.1"),
	)
	req := &testRequest{
		remote:  "10.0.0.1:9999",
		headers: map[string]string{"X-Forwarded-For": " 203.0.113.9 , 10.0.0.1"},
	}
	key, ok := DeriveKey(p, req)
	if !ok || key != "203.0.113.9" {
		t.Fatalf("got key=%q ok=%v", key, ok)
	}
}

func TestDeriveKey_IP_UntrustedProxyIgnoresForwardedFor(t *testing.T) {
	p, _ := NewPolicy("p", 1, time.Second, WithKeyStrategy(KeyIP))
	req := &testRequest{
		remote:  "198.51.100.2:1111",
		headers: map[string]string{"X-Forwarded-For": "203.0.113.9"},
	}
	key, ok := DeriveKey(p, req)
	if !ok || key != "198.51.100.2" {
		t.Fatalf("got key=%q ok=%v, want untrusted peer's own address", key, ok)
	}
}

func TestDeriveKey_User(t *testing.T) {
	p, _ := NewPolicy("p", 1, time.Second, WithKeyStrategy(KeyUser))
	req := &testRequest{userID: "u-42", hasUser: true}
	key, ok := DeriveKey(p, req)
	if !ok || key != "u-42" {
		t.Fatalf("got key=%q ok=%v", key, ok)
	}

	req2 := &testRequest{}
	if _, ok := DeriveKey(p, req2); ok {
		t.Fatal("expected ok=false with no attached user")
	}
}

func TestDeriveKey_APIKey_Header(t *testing.T) {
	p, _ := NewPolicy("p", 1, time.Second, WithKeyStrategy(KeyAPIKey))
	req := &testRequest{headers: map[string]string{"X-API-Key": "secret"}}
	key, ok := DeriveKey(p, req)
	if !ok || key != "secret" {
		t.Fatalf("got key=%q ok=%v", key, ok)
	}
}

func TestDeriveKey_APIKey_BearerToken(t *testing.T) {
	p, _ := NewPolicy("p", 1, time.Second, WithKeyStrategy(KeyAPIKey))
	req := &testRequest{headers: map[string]string{"Authorization": "Bearer abc123"}}
	key, ok := DeriveKey(p, req)
	if !ok || key != "abc123" {
		t.Fatalf("got key=%q ok=%v", key, ok)
	}
}

func TestDeriveKey_Composite(t *testing.T) {
	p, _ := NewPolicy("p", 1, time.Second, WithComposite(KeyIP, KeyUser))
	req := &testRequest{remote: "203.0.113.5:1", userID: "u-1", hasUser: true}
	key, ok := DeriveKey(p, req)
	if !ok {
		t.Fatal("expected ok")
	}
	want := "203.0.113.5" + compositeSeparator + "u-1"
	if key != want {
		t.Fatalf("got key=%q, want %q", key, want)
	}
}

func TestDeriveKey_Composite_MissingPartFails(t *testing.T) {
	p, _ := NewPolicy("p", 1, time.Second, WithComposite(KeyIP, KeyUser))
	req := &testRequest{remote: "203.0.113.5:1"}
	if _, ok := DeriveKey(p, req); ok {
		t.Fatal("expected ok=false when a composite sub-strategy can't derive a key")
	}
}

func TestIsExempt_HealthCheckPath(t *testing.T) {
	p, _ := NewPolicy("p", 1, time.Second)
	req := &testRequest{path: "/healthz", remote: "1.2.3.4:1"}
	if !isExempt(p, req, "1.2.3.4") {
		t.Fatal("expected /healthz to be exempt by default")
	}
}

func TestIsExempt_PrivateIP_DisabledByDefault(t *testing.T) {
	p, _ := NewPolicy("p", 1, time.Second)
	req := &testRequest{remote: "127.0.0.1:1"}
	if isExempt(p, req, "127.0.0.1") {
		t.Fatal("expected private-IP exemption disabled by default")
	}
}

func TestIsExempt_PrivateIP_WhenEnabled(t *testing.T) {
	p, _ := NewPolicy("p", 1, time.Second, WithExemptPrivateIPs(true))
	req := &testRequest{remote: "192.168.1.1:1"}
	if !isExempt(p, req, "192.168.1.1") {
		t.Fatal("expected private-IP exemption when enabled")
	}
}

func TestIsExempt_PolicyExemptionMatchesPath(t *testing.T) {
	p, _ := NewPolicy("p", 1, time.Second, WithExemptions("/internal"))
	req := &testRequest{path: "/internal", remote: "1.2.3.4:1"}
	if !isExempt(p, req, "1.2.3.4") {
		t.Fatal("expected literal path exemption to match")
	}
}
