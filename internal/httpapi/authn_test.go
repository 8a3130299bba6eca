package httpapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"porta.dev/internal/token"
)

func TestAdminSurfaceRequiresBearer(t *testing.T) {
	c := newTestAPI(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/admin/rotate-secret"},
		{http.MethodGet, "/admin/apps"},
		{http.MethodGet, "/admin/roles"},
		{http.MethodGet, "/admin/users"},
	}
	for _, p := range paths {
		resp := c.do(p.method, p.path, nil, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s %s status = %d, want 401", p.method, p.path, resp.StatusCode)
		}
	}
}

func TestUserTokenRejectedOnAdminSurface(t *testing.T) {
	c := newTestAPI(t)

	// The user token carries role=viewer, but even an admin-role user token
	// must fail here: it was minted in the wrong trust domain.
	userTok := c.userToken()
	resp := c.get("/admin/apps", nil, bearerHeader(userTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	adminRoleUserTok, _, err := c.codec.Mint(token.Claims{
		Email:           "admin@example.com",
		Role:            "admin",
		TokenType:       token.TypeAccess,
		RegisteredClaims: registeredSubject("subj-admin"),
	}, token.IssuerUser, 30*time.Minute)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	resp = c.get("/admin/apps", nil, bearerHeader(adminRoleUserTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("admin-role user token status = %d, want 401", resp.StatusCode)
	}
}

func TestRefreshTokenRejectedOnAdminSurface(t *testing.T) {
	c := newTestAPI(t)

	refresh, _, err := c.codec.Mint(token.Claims{
		Email:           "admin@example.com",
		Role:            "admin",
		TokenType:       token.TypeRefresh,
		RegisteredClaims: registeredSubject("subj-admin"),
	}, token.IssuerAdmin, time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	resp := c.get("/admin/apps", nil, bearerHeader(refresh))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestEmergencyTokenScope(t *testing.T) {
	c := newTestAPI(t)
	emTok := c.emergencyToken()

	// Emergency sessions can operate the admin surface.
	resp := c.get("/admin/apps", nil, bearerHeader(emTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list apps status = %d, want 200", resp.StatusCode)
	}

	// But never the secret-revealing operations.
	resp = c.post("/admin/rotate-secret", map[string]any{"app_name": "billing"}, bearerHeader(emTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("rotate status = %d, want 401", resp.StatusCode)
	}
	resp = c.post("/admin/apps?action=get_secret", map[string]any{"app_name": "billing"}, bearerHeader(emTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("get_secret status = %d, want 401", resp.StatusCode)
	}
}

func TestMalformedAuthorizationHeader(t *testing.T) {
	c := newTestAPI(t)

	for _, header := range []string{"", "Basic abc", "Bearer ", "token-without-scheme"} {
		h := map[string]string{}
		if header != "" {
			h["Authorization"] = header
		}
		resp := c.get("/admin/apps", nil, h)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("header %q status = %d, want 401", header, resp.StatusCode)
		}
	}
}

func registeredSubject(subject string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: subject}
}
