package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGate(t *testing.T) {
	gate := Gate(newResolver(), []string{"/dashboard", "/account/", "/orders"})
	h := gate(http.HandlerFunc(okHandler))

	cases := []struct {
		path     string
		auth     string
		wantCode int
	}{
		{"/dashboard", "", http.StatusFound},
		{"/dashboard/stats", "", http.StatusFound},
		{"/account", "", http.StatusFound},
		{"/orders/42", "Bearer bad", http.StatusFound},
		{"/orders/42", "Bearer good", http.StatusOK},
		{"/ordersummary", "", http.StatusOK},
		{"/v1/auth/sign-in", "", http.StatusOK},
		{"/", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.path+" "+tc.auth, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tc.wantCode, rr.Code)
			if tc.wantCode == http.StatusFound {
				assert.Equal(t, HomePath, rr.Header().Get("Location"))
			}
		})
	}
}
