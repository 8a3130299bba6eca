package idp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthenticateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" || r.URL.Query().Get("grant_type") != "password" {
			t.Fatalf("unexpected request: %s %s", r.URL.Path, r.URL.RawQuery)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["email"] != "user@porta.test" || body["password"] != "correct" {
			t.Fatalf("credentials not forwarded: %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]string{"id": "user-42", "email": "user@porta.test"},
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "anon-key")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ident, err := c.Authenticate(context.Background(), "user@porta.test", "correct")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if ident.SubjectID != "user-42" {
		t.Fatalf("unexpected identity: %+v", ident)
	}
}

func TestAuthenticateBadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "")
	_, err := c.Authenticate(context.Background(), "user@porta.test", "wrong")
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected authentication failure, got %v", err)
	}
}

func TestAuthenticateProviderDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "")
	_, err := c.Authenticate(context.Background(), "user@porta.test", "correct")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestAuthenticateEmptySubjectFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"user": map[string]string{"id": ""}})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "")
	if _, err := c.Authenticate(context.Background(), "user@porta.test", "correct"); err == nil {
		t.Fatal("expected rejection of empty subject")
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "")
	if _, err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
