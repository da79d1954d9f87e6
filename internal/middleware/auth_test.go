package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuthMiddleware_WithValidBearer(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	token, err := m.IssueToken("user-42", "ada@example.com", false, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := GetUserIDFromContext(r.Context())
		if !ok {
			t.Fatalf("user id not in context")
		}
		if id != "user-42" {
			t.Fatalf("user id from context = %s, want user-42", id)
		}
		user, _ := GetUserFromContext(r.Context())
		if user.Email != "ada@example.com" || user.Admin {
			t.Fatalf("unexpected user: %+v", user)
		}
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_WithCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	token, _ := m.IssueToken("user-1", "", false, time.Hour)

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	w := httptest.NewRecorder()

	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	other := NewAuthMiddleware("other-secret")

	expired, _ := m.IssueToken("user-1", "", false, -time.Minute)
	foreign, _ := other.IssueToken("user-1", "", false, time.Hour)

	tests := []struct {
		name   string
		header string
	}{
		{name: "no token", header: ""},
		{name: "malformed header", header: "Token abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
		{name: "expired", header: "Bearer " + expired},
		{name: "wrong signature", header: "Bearer " + foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			r := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			m.Middleware(next).ServeHTTP(w, r)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestAuthMiddleware_Optional(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	var gotUser bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, gotUser = GetUserIDFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodPost, "/api/orders/create", nil)
	m.Optional(next).ServeHTTP(httptest.NewRecorder(), r)
	if gotUser {
		t.Fatalf("anonymous request must not carry a user")
	}

	token, _ := m.IssueToken("user-7", "", false, time.Hour)
	r = httptest.NewRequest(http.MethodPost, "/api/orders/create", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	m.Optional(next).ServeHTTP(httptest.NewRecorder(), r)
	if !gotUser {
		t.Fatalf("authenticated request must carry a user")
	}
}

func TestAuthMiddleware_RequireAdmin(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	customer, _ := m.IssueToken("user-1", "", false, time.Hour)
	admin, _ := m.IssueToken("admin-1", "", true, time.Hour)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	cases := map[string]int{
		"":                  http.StatusUnauthorized,
		"Bearer " + customer: http.StatusForbidden,
		"Bearer " + admin:    http.StatusOK,
	}
	for header, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		m.RequireAdmin(ok).ServeHTTP(w, r)
		if w.Code != want {
			t.Fatalf("status = %d, want %d", w.Code, want)
		}
	}
}
