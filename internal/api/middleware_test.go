package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInternalAuthMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	protected := InternalAuthMiddleware("secret-key")(next)

	cases := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing key", "", http.StatusUnauthorized},
		{"wrong key", "other-key", http.StatusUnauthorized},
		{"correct key", "secret-key", http.StatusOK},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/payments", nil)
		if tc.header != "" {
			req.Header.Set("X-Internal-Api-Key", tc.header)
		}
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		if rec.Code != tc.wantStatus {
			t.Errorf("%s: expected status %d, got %d", tc.name, tc.wantStatus, rec.Code)
		}
	}
}

func TestInternalAuthMiddleware_UnconfiguredKeyRefusesAll(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	protected := InternalAuthMiddleware("")(next)

	req := httptest.NewRequest(http.MethodPost, "/payments", nil)
	req.Header.Set("X-Internal-Api-Key", "")
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when key unconfigured, got %d", rec.Code)
	}
}
