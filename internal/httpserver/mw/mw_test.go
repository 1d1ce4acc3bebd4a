package mw

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MrSnakeDoc/gallery/internal/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestMatchHost(t *testing.T) {
	tests := []struct {
		host    string
		pattern string
		want    bool
	}{
		{host: "gallery.example.com", pattern: "gallery.example.com", want: true},
		{host: "gallery.example.com", pattern: "*.example.com", want: true},
		{host: "example.com", pattern: "*.example.com", want: false},
		{host: "gallery.example.org", pattern: "*.example.com", want: false},
		{host: "localhost:8080", pattern: "localhost:8080", want: true},
		{host: "localhost:8080", pattern: "localhost", want: true},
		{host: "localhost:8080", pattern: "localhost:9090", want: false},
		{host: "Gallery.Example.com:8443", pattern: "*.example.com", want: true},
		{host: ".example.com", pattern: "*.example.com", want: false},
	}
	for _, tt := range tests {
		if got := matchHost(tt.host, tt.pattern); got != tt.want {
			t.Errorf("matchHost(%q, %q) = %v, want %v", tt.host, tt.pattern, got, tt.want)
		}
	}
}

func TestAllowOnlyCIDRS(t *testing.T) {
	h := AllowOnlyCIDRS([]string{"10.0.0.0/8", "127.0.0.1"}, true, logger.Nop())(okHandler)

	tests := []struct {
		name   string
		remote string
		xff    string
		want   int
	}{
		{name: "inside cidr", remote: "10.1.2.3:5000", want: http.StatusOK},
		{name: "exact ip", remote: "127.0.0.1:5000", want: http.StatusOK},
		{name: "outside", remote: "192.0.2.1:5000", want: http.StatusForbidden},
		{name: "forwarded from inside", remote: "192.0.2.1:5000", xff: "10.9.9.9, 192.0.2.1", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAllowOnlyCIDRSRejectsWithJSON(t *testing.T) {
	h := AllowOnlyCIDRS([]string{"10.0.0.0/8"}, false, logger.Nop())(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "address not allowed") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestAllowOnlyCIDRSFailsClosed(t *testing.T) {
	h := AllowOnlyCIDRS([]string{"intranet"}, false, logger.Nop())(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 when no rule parses", rec.Code)
	}
}

func TestEnforceHost(t *testing.T) {
	h := EnforceHost([]string{"gallery.example.com"}, logger.Nop())(okHandler)
	for host, want := range map[string]int{
		"gallery.example.com":      http.StatusOK,
		"gallery.example.com:8080": http.StatusOK,
		"evil.example.com":         http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = host
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("Host %s: status = %d, want %d", host, rec.Code, want)
		}
	}
}

func TestRequireTokenPassthrough(t *testing.T) {
	h := RequireToken("", logger.Nop())(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 without a configured hash", rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "bearer  abc ", want: "abc", ok: true},
		{header: "Bearer ", ok: false},
		{header: "Basic abc", ok: false},
		{header: "", ok: false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", tt.header)
		got, ok := bearerToken(req)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v, want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Burst: 2, PerMinute: 1})(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPut, "/", nil)
		req.RemoteAddr = "192.0.2.7:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests && rec.Header().Get("Retry-After") == "" {
			t.Error("429 without Retry-After")
		}
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want [200 200 429]", codes)
	}
}

func TestLimiterRefills(t *testing.T) {
	l := newLimiter(RateLimitConfig{Burst: 1, PerMinute: 60})
	now := time.Now()
	if ok, _, _ := l.allow("a", now); !ok {
		t.Fatal("first request refused")
	}
	if ok, _, retry := l.allow("a", now); ok || retry != 1 {
		t.Fatalf("second request ok=%v retry=%d, want refused with retry 1", ok, retry)
	}
	if ok, _, _ := l.allow("a", now.Add(time.Second)); !ok {
		t.Error("request after refill refused")
	}
	if ok, _, _ := l.allow("b", now); !ok {
		t.Error("other client refused")
	}
}

func TestLimiterForgetsIdleClients(t *testing.T) {
	l := newLimiter(RateLimitConfig{Burst: 1, PerMinute: 1, IdleTTL: time.Minute})
	now := time.Now()
	l.allow("a", now)
	l.allow("b", now.Add(2*time.Minute))
	if _, found := l.buckets["a"]; found {
		t.Error("idle bucket kept after the sweep")
	}
	if len(l.buckets) != 1 {
		t.Errorf("buckets = %d, want 1", len(l.buckets))
	}
}

func TestLogLevelFollowsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.NewWithCore(core)

	for _, status := range []int{http.StatusOK, http.StatusNotFound, http.StatusBadGateway} {
		h := Log(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/feed", nil))
	}

	want := []zapcore.Level{zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	entries := logs.All()
	if len(entries) != len(want) {
		t.Fatalf("got %d log entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Errorf("entry %d level = %v, want %v", i, e.Level, want[i])
		}
		if e.ContextMap()["path"] != "/feed" {
			t.Errorf("entry %d path = %v", i, e.ContextMap()["path"])
		}
	}
}
