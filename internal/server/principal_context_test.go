package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"
)

func TestCurrentPrincipal_Empty(t *testing.T) {
	if _, ok := currentPrincipal(t.Context()); ok {
		t.Fatal("expected no principal")
	}
	if _, ok := currentPrincipalID(t.Context()); ok {
		t.Fatal("expected no principal id")
	}
}

func TestWithPrincipalHeader(t *testing.T) {
	cases := []struct {
		name   string
		header string
		status int
		want   types.Identity
		set    bool
	}{
		{name: "absent", header: "", status: http.StatusOK},
		{name: "normalized", header: " 0xABCDEF ", status: http.StatusOK, want: "0xabcdef", set: true},
		{name: "plain", header: "treasury", status: http.StatusOK, want: "treasury", set: true},
		{name: "zero address", header: "0x0000000000", status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got types.Identity
			var set bool
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, set = currentPrincipalID(r.Context())
				w.WriteHeader(http.StatusOK)
			})
			h := withPrincipalHeader(mustTestClassifier(t), next)

			req := httptest.NewRequest(http.MethodGet, "/multisig/api/roster", nil)
			if tc.header != "" {
				req.Header.Set(principalHeader, tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status=%d want %d", rec.Code, tc.status)
			}
			if tc.status != http.StatusOK {
				if !strings.Contains(rec.Body.String(), "invalid_principal") {
					t.Fatalf("body=%s", rec.Body.String())
				}
				return
			}
			if set != tc.set || got != tc.want {
				t.Fatalf("got=%q set=%v want %q set=%v", got, set, tc.want, tc.set)
			}
		})
	}
}
