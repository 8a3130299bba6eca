package profile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/profiles/user-42" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer svc-key" {
			t.Fatalf("missing service key header: %q", got)
		}
		_ = json.NewEncoder(w).Encode(Profile{
			ID:    "user-42",
			Email: "user@porta.test",
			Role:  RoleEditor,
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "svc-key")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	p, err := c.Get(context.Background(), "user-42")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Email != "user@porta.test" || p.Role != RoleEditor {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestClientGetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "")
	if _, err := c.Get(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestClientServerErrorMapsToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "")
	if _, err := c.Get(context.Background(), "user-1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestClientUpdateRoleRejectsUnknownRole(t *testing.T) {
	c, _ := NewClient("http://unused.local", "")
	if err := c.UpdateRole(context.Background(), "user-1", Role("superuser")); err == nil {
		t.Fatal("expected rejection of unknown role")
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleEditor, RoleReviewer, RoleViewer} {
		if !r.Valid() {
			t.Fatalf("role %s should be valid", r)
		}
	}
	if Role("root").Valid() {
		t.Fatal("unknown role reported valid")
	}
}
