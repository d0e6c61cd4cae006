package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBasicAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := BasicAuth("admin", "secret")(ok)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{name: "no header", setup: func(r *http.Request) {}, status: http.StatusUnauthorized},
		{name: "wrong password", setup: func(r *http.Request) { r.SetBasicAuth("admin", "nope") }, status: http.StatusUnauthorized},
		{name: "wrong scheme", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer token") }, status: http.StatusUnauthorized},
		{name: "valid", setup: func(r *http.Request) { r.SetBasicAuth("admin", "secret") }, status: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/sync", nil)
			tt.setup(req)
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Basic realm=")
			}
		})
	}
}
