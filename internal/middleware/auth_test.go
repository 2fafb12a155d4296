package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/aria/internal/auth"
	"github.com/onnwee/aria/internal/user"
)

type testUser struct {
	id, name string
	admin    bool
}

type fakeAuthenticator struct {
	users map[string]*testUser
	errs  map[string]error
}

func (f *fakeAuthenticator) AuthenticateToken(ctx context.Context, token string) (*user.User, error) {
	if err, ok := f.errs[token]; ok {
		return nil, err
	}
	u, ok := f.users[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return &user.User{ID: u.id, Username: u.name, IsAdmin: u.admin, IsActive: true}, nil
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if got := BearerToken(req); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestRequireAuth(t *testing.T) {
	authn := &fakeAuthenticator{
		users: map[string]*testUser{
			"alice": {id: "u1", name: "alice"},
			"root":  {id: "u2", name: "root", admin: true},
		},
		errs: map[string]error{
			"expired":  auth.ErrExpiredToken,
			"inactive": auth.ErrInactiveUser,
		},
	}
	m := NewMetrics()

	var seenID, seenName string
	var seenAdmin bool
	handler := RequireAuth(authn, m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID, seenName, seenAdmin = GetUserID(r.Context()), GetUsername(r.Context()), IsAdmin(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		token      string
		wantStatus int
		reason     string
	}{
		{"missing", "", http.StatusUnauthorized, "missing"},
		{"invalid", "nope", http.StatusUnauthorized, "invalid"},
		{"expired", "expired", http.StatusUnauthorized, "expired"},
		{"inactive", "inactive", http.StatusUnauthorized, "inactive"},
		{"valid", "alice", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.reason == "" {
				return
			}
			if rr.Header().Get("WWW-Authenticate") != "Bearer" {
				t.Error("missing WWW-Authenticate header")
			}
			var body map[string]map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body["error"]["code"] != "auth_failed" {
				t.Errorf("error code = %q", body["error"]["code"])
			}
			if got := getCounterValue(m.authFailures.WithLabelValues(tt.reason)); got != 1 {
				t.Errorf("auth failures for %s = %v, want 1", tt.reason, got)
			}
		})
	}

	if seenID != "u1" || seenName != "alice" || seenAdmin {
		t.Errorf("context = %q %q %v", seenID, seenName, seenAdmin)
	}
}

func TestRequireAdmin(t *testing.T) {
	authn := &fakeAuthenticator{users: map[string]*testUser{
		"alice": {id: "u1", name: "alice"},
		"root":  {id: "u2", name: "root", admin: true},
	}}
	handler := RequireAuth(authn, nil)(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	for token, want := range map[string]int{"alice": http.StatusForbidden, "root": http.StatusOK} {
		req := httptest.NewRequest(http.MethodGet, "/admin/llm-config", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != want {
			t.Errorf("%s: status = %d, want %d", token, rr.Code, want)
		}
	}
}
