package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := Middleware(Config{Enabled: true, Token: "s3cret"})(ok)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"exempt health", "/healthz", "", http.StatusNoContent},
		{"exempt dashboard", "/", "", http.StatusNoContent},
		{"exempt registry", "/api/v1/registry", "", http.StatusNoContent},
		{"missing token", "/api/v1/telemetry", "", http.StatusUnauthorized},
		{"wrong token", "/api/v1/telemetry", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "/api/v1/telemetry", "Basic s3cret", http.StatusUnauthorized},
		{"good token", "/api/v1/telemetry", "Bearer s3cret", http.StatusNoContent},
		{"stream query token", "/api/v1/stream/telemetry?access_token=s3cret", "", http.StatusNoContent},
		{"stream bad query token", "/api/v1/stream/ws?access_token=x", "", http.StatusUnauthorized},
		{"query token only on streams", "/api/v1/telemetry?access_token=s3cret", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate")
			}
		})
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	h := Middleware(Config{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("PUT", "/api/v1/highlight", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", w.Code)
	}
}
