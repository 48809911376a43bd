package httpx

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/serjnsk/dl-network/internal/service/auth"
	"github.com/serjnsk/dl-network/internal/service/deploy"
	"github.com/serjnsk/dl-network/pkg/config"
	"github.com/serjnsk/dl-network/pkg/crypto"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryRateLimiterCountsWithinWindow(t *testing.T) {
	rl := NewMemoryRateLimiter()
	defer rl.Close()

	for i := 1; i <= 3; i++ {
		decision := rl.Allow("ip:10.0.0.1", 3, time.Minute)
		if !decision.allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if decision.count != i {
			t.Fatalf("expected count %d, got %d", i, decision.count)
		}
	}
	if decision := rl.Allow("ip:10.0.0.1", 3, time.Minute); decision.allowed {
		t.Fatal("fourth request should exceed the limit")
	}
	if decision := rl.Allow("ip:10.0.0.2", 3, time.Minute); !decision.allowed {
		t.Fatal("other keys must not share the quota")
	}
}

func TestMemoryRateLimiterResetsAfterWindow(t *testing.T) {
	rl := NewMemoryRateLimiter()
	defer rl.Close()

	if decision := rl.Allow("k", 1, 10*time.Millisecond); !decision.allowed {
		t.Fatal("first request should be allowed")
	}
	if decision := rl.Allow("k", 1, 10*time.Millisecond); decision.allowed {
		t.Fatal("second request inside the window should be blocked")
	}
	time.Sleep(15 * time.Millisecond)
	if decision := rl.Allow("k", 1, 10*time.Millisecond); !decision.allowed {
		t.Fatal("request after window expiry should start a fresh window")
	}
}

func TestMemoryRateLimiterZeroLimitAlwaysAllows(t *testing.T) {
	rl := NewMemoryRateLimiter()
	defer rl.Close()

	for i := 0; i < 10; i++ {
		if decision := rl.Allow("k", 0, time.Minute); !decision.allowed {
			t.Fatal("zero limit disables rate limiting")
		}
	}
}

func TestWithRateLimitRejectsOverQuota(t *testing.T) {
	r := &Router{logger: testLogger(), limiter: NewMemoryRateLimiter()}
	defer r.limiter.Close()

	calls := 0
	handler := r.withRateLimit("/auth/login", 2, time.Minute,
		func(*http.Request) string { return "ip:1.2.3.4" },
		func(w http.ResponseWriter, req *http.Request) {
			calls++
			w.WriteHeader(http.StatusOK)
		})

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		handler(last, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	}

	if calls != 2 {
		t.Fatalf("expected 2 handled requests, got %d", calls)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", last.Code)
	}
	if got := last.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("expected zero remaining, got %q", got)
	}
}

func TestRequireAuthRejectsAnonymousRequest(t *testing.T) {
	r := &Router{logger: testLogger(), auth: auth.New(testLogger(), config.DashboardConfig{SessionSecret: "s"})}

	handler := r.requireAuth(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without a session")
	})
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/projects", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuthAcceptsCookieAndBearer(t *testing.T) {
	hash, err := crypto.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	authSvc := auth.New(testLogger(), config.DashboardConfig{
		AdminPasswordHash: string(hash),
		SessionSecret:     "test-secret",
		SessionTTL:        time.Hour,
	})
	token, err := authSvc.Login("hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	r := &Router{logger: testLogger(), auth: authSvc}

	var seenRole string
	handler := r.requireAuth(func(w http.ResponseWriter, req *http.Request) {
		if info, ok := authInfoFromContext(req.Context()); ok {
			seenRole = info.Role
		}
		w.WriteHeader(http.StatusOK)
	})

	cookieReq := httptest.NewRequest(http.MethodGet, "/projects", nil)
	cookieReq.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	handler(rec, cookieReq)
	if rec.Code != http.StatusOK || seenRole != "admin" {
		t.Fatalf("cookie session rejected: status=%d role=%q", rec.Code, seenRole)
	}

	seenRole = ""
	bearerReq := httptest.NewRequest(http.MethodGet, "/projects", nil)
	bearerReq.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler(rec, bearerReq)
	if rec.Code != http.StatusOK || seenRole != "admin" {
		t.Fatalf("bearer session rejected: status=%d role=%q", rec.Code, seenRole)
	}
}

func TestBearerTokenParsing(t *testing.T) {
	cases := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc", "abc", false},
		{"bearer abc", "abc", false},
		{"", "", true},
		{"Bearer", "", true},
		{"Basic abc", "", true},
		{"Bearer a b", "", true},
	}
	for _, tc := range cases {
		got, err := bearerToken(tc.header)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("header %q: expected error", tc.header)
			}
			continue
		}
		if err != nil {
			t.Fatalf("header %q: unexpected error %v", tc.header, err)
		}
		if got != tc.want {
			t.Fatalf("header %q: expected %q, got %q", tc.header, tc.want, got)
		}
	}
}

func TestPublishStatusMapsResultCause(t *testing.T) {
	cases := []struct {
		cause error
		want  int
	}{
		{deploy.ErrProjectNotFound, http.StatusNotFound},
		{deploy.ErrNoPages, http.StatusBadRequest},
		{errors.New("upload interrupted"), http.StatusBadGateway},
		{fmt.Errorf("deploy: %w", deploy.ErrNoPages), http.StatusBadRequest},
		{nil, http.StatusBadGateway},
	}
	for _, tc := range cases {
		result := deploy.Result{Error: "deploy failed", Cause: tc.cause}
		if got := publishStatus(result); got != tc.want {
			t.Fatalf("cause %v: expected status %d, got %d", tc.cause, tc.want, got)
		}
	}
}

func TestRateMetricKeyStripsVariablePart(t *testing.T) {
	cases := map[string]string{
		"ip:10.0.0.1":   "ip",
		"session:admin": "session",
		"":              "unknown",
		"plain":         "plain",
	}
	for key, want := range cases {
		if got := rateMetricKey(key); got != want {
			t.Fatalf("key %q: expected %q, got %q", key, want, got)
		}
	}
}

func TestClientIPPrefersForwardedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.1.1:5000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.1.1.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected forwarded ip, got %q", got)
	}

	req.Header.Del("X-Forwarded-For")
	if got := clientIP(req); got != "10.1.1.1" {
		t.Fatalf("expected remote host, got %q", got)
	}
}
