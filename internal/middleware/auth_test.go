package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/auth"
)

const authTestSecret = "middleware-test-secret-0123456789abcdef"

func TestRequireAuth(t *testing.T) {
	svc := auth.NewJWTService(authTestSecret)
	token, err := svc.GenerateAccessToken("user-1", "")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{"valid token", "Bearer " + token, http.StatusOK, "user-1"},
		{"lowercase scheme", "bearer " + token, http.StatusOK, "user-1"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, ""},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			handler := RequireAuth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = GetUserID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodPost, "/communities", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if gotUser != tt.wantUser {
				t.Errorf("user = %q, want %q", gotUser, tt.wantUser)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				var body map[string]any
				if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if body["success"] != false || body["code"] != "auth_failed" {
					t.Errorf("unexpected envelope: %v", body)
				}
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	svc := auth.NewJWTService(authTestSecret)
	token, _ := svc.GenerateAccessToken("user-2", "")

	var gotUser string
	handler := OptionalAuth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUserID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/communities", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || gotUser != "" {
		t.Errorf("anonymous request: status=%d user=%q", rr.Code, gotUser)
	}

	req = httptest.NewRequest(http.MethodGet, "/communities", nil)
	req.Header.Set("Authorization", "Bearer broken")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || gotUser != "" {
		t.Errorf("invalid token should pass through anonymously: status=%d user=%q", rr.Code, gotUser)
	}

	req = httptest.NewRequest(http.MethodGet, "/communities", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if gotUser != "user-2" {
		t.Errorf("user = %q, want user-2", gotUser)
	}
}
