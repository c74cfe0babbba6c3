package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoginSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/login" || r.Method != "POST" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Username != "kris" || req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "bad credentials"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true, "session_token": "tok-123",
			"user": map[string]string{"username": "kris"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	token, user, err := c.Login(context.Background(), "kris", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token != "tok-123" {
		t.Errorf("token = %q", token)
	}
	if user == nil || user.Username != "kris" {
		t.Errorf("user = %+v", user)
	}
}

func TestLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "bad credentials"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, _, err := c.Login(context.Background(), "kris", "wrong"); err == nil {
		t.Fatal("expected rejection error")
	}
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/profile" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"username": "kris"})
	}))
	defer srv.Close()

	c := New(srv.URL)

	ok, user, err := c.Verify(context.Background(), "tok-123")
	if err != nil || !ok {
		t.Fatalf("Verify(valid) = %v, %v", ok, err)
	}
	if user.Username != "kris" {
		t.Errorf("user = %+v", user)
	}

	ok, _, err = c.Verify(context.Background(), "stale")
	if err != nil {
		t.Fatalf("Verify(stale): %v", err)
	}
	if ok {
		t.Error("stale token verified")
	}
}
