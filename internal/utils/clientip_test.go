package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{name: "remote addr", remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "ipv6 remote", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "mapped ipv4", remote: "[::ffff:10.0.0.1]:80", want: "10.0.0.1"},
		{name: "headers ignored", remote: "192.0.2.1:1", headers: map[string]string{"X-Forwarded-For": "10.0.0.1"}, want: "192.0.2.1"},
		{name: "forwarded for", remote: "127.0.0.1:1", trustProxy: true,
			headers: map[string]string{"X-Forwarded-For": " 10.0.0.1 , 10.0.0.2"}, want: "10.0.0.1"},
		{name: "cloudflare first", remote: "127.0.0.1:1", trustProxy: true,
			headers: map[string]string{"CF-Connecting-IP": "198.51.100.4", "X-Forwarded-For": "10.0.0.1"}, want: "198.51.100.4"},
		{name: "garbage header skipped", remote: "127.0.0.1:1", trustProxy: true,
			headers: map[string]string{"X-Forwarded-For": "unknown", "X-Real-IP": "10.9.8.7"}, want: "10.9.8.7"},
		{name: "nothing parses", remote: "pipe", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIPMatcher(t *testing.T) {
	m, invalid := NewIPMatcher([]string{"10.0.0.0/8", " 192.0.2.7 ", "2001:db8::/32", "", "not-an-ip", "10.1.2.3/33"})
	if m.Len() != 3 {
		t.Errorf("Len() = %d, want 3", m.Len())
	}
	if len(invalid) != 2 {
		t.Errorf("invalid = %v, want two entries", invalid)
	}

	tests := []struct {
		ip   string
		want bool
	}{
		{ip: "10.200.0.1", want: true},
		{ip: "192.0.2.7", want: true},
		{ip: "192.0.2.8", want: false},
		{ip: "2001:db8:1::5", want: true},
		{ip: "::ffff:10.0.0.1", want: true},
		{ip: "", want: false},
	}
	for _, tt := range tests {
		if got := m.Allow(tt.ip); got != tt.want {
			t.Errorf("Allow(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}
