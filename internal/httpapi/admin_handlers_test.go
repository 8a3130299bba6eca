package httpapi

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"porta.dev/internal/app"
)

func (c *apiClient) createApp(name string, adminTok string) createAppResponse {
	c.t.Helper()
	resp := c.post("/admin/apps", map[string]any{
		"app_name":         name,
		"app_display_name": "Test App",
		"redirect_urls":    []string{"https://" + name + ".example.com/done"},
	}, bearerHeader(adminTok))
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("create app status = %d", resp.StatusCode)
	}
	var payload createAppResponse
	c.decode(resp, &payload)
	return payload
}

func TestCreateAppIssuesSecret(t *testing.T) {
	c := newTestAPI(t)
	created := c.createApp("billing", c.adminToken())

	if len(created.Secret) != 64 {
		t.Fatalf("secret length = %d, want 64", len(created.Secret))
	}
	wantExpiry := time.Now().Add(90 * 24 * time.Hour)
	if diff := created.SecretExpiresAt.Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("secret_expires_at = %v", created.SecretExpiresAt)
	}
	if created.App == nil || created.App.Status != app.StatusActive {
		t.Fatalf("app = %+v", created.App)
	}

	// The freshly issued secret must work for brokered login.
	resp := c.post("/auth/login", map[string]any{
		"email":      "user@example.com",
		"password":   "user-pass",
		"app":        "billing",
		"app_secret": created.Secret,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
}

func TestRotateSecretEndToEnd(t *testing.T) {
	c := newTestAPI(t)
	adminTok := c.adminToken()
	created := c.createApp("billing", adminTok)

	resp := c.post("/admin/rotate-secret", map[string]any{"app_name": "billing"}, bearerHeader(adminTok))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rotate status = %d", resp.StatusCode)
	}
	var rotated rotateSecretResponse
	c.decode(resp, &rotated)
	if rotated.NewSecret == created.Secret {
		t.Fatal("rotation returned the old secret")
	}

	// Old secret dies immediately, new one is live.
	resp = c.post("/auth/login", map[string]any{
		"email": "user@example.com", "password": "user-pass",
		"app": "billing", "app_secret": created.Secret,
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("old secret status = %d, want 401", resp.StatusCode)
	}
	resp = c.post("/auth/login", map[string]any{
		"email": "user@example.com", "password": "user-pass",
		"app": "billing", "app_secret": rotated.NewSecret,
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("new secret status = %d, want 200", resp.StatusCode)
	}
}

func TestRotateSecretUnknownApp(t *testing.T) {
	c := newTestAPI(t)
	resp := c.post("/admin/rotate-secret", map[string]any{"app_name": "ghost"}, bearerHeader(c.adminToken()))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestAppsActionRotateAndGetSecret(t *testing.T) {
	c := newTestAPI(t)
	adminTok := c.adminToken()
	created := c.createApp("billing", adminTok)

	resp := c.post("/admin/apps?action=rotate", map[string]any{"app_name": "billing"}, bearerHeader(adminTok))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rotate status = %d", resp.StatusCode)
	}
	var rotated rotateSecretResponse
	c.decode(resp, &rotated)

	resp = c.post("/admin/apps?action=get_secret", map[string]any{"app_name": "billing"}, bearerHeader(adminTok))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get_secret status = %d", resp.StatusCode)
	}
	var payload struct {
		AppName string `json:"app_name"`
		Secret  string `json:"secret"`
	}
	c.decode(resp, &payload)
	if payload.Secret != rotated.NewSecret {
		t.Fatal("get_secret did not return the current secret")
	}
	if payload.Secret == created.Secret {
		t.Fatal("get_secret returned the pre-rotation secret")
	}
}

func TestAppsUnknownAction(t *testing.T) {
	c := newTestAPI(t)
	resp := c.post("/admin/apps?action=explode", map[string]any{"app_name": "x"}, bearerHeader(c.adminToken()))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestListUpdateDisableApp(t *testing.T) {
	c := newTestAPI(t)
	adminTok := c.adminToken()
	c.createApp("billing", adminTok)

	resp := c.get("/admin/apps", nil, bearerHeader(adminTok))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var listed struct {
		Apps []app.App `json:"apps"`
	}
	c.decode(resp, &listed)
	if len(listed.Apps) != 1 || listed.Apps[0].Name != "billing" {
		t.Fatalf("apps = %+v", listed.Apps)
	}

	resp = c.do(http.MethodPut, "/admin/apps", map[string]any{
		"app_name":         "billing",
		"app_display_name": "Billing Portal",
	}, bearerHeader(adminTok))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	var updated app.App
	c.decode(resp, &updated)
	if updated.DisplayName != "Billing Portal" {
		t.Fatalf("display name = %q", updated.DisplayName)
	}

	resp = c.do(http.MethodPut, "/admin/apps", map[string]any{
		"app_name": "billing",
		"status":   "resurrected",
	}, bearerHeader(adminTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bogus status update status = %d", resp.StatusCode)
	}

	resp = c.get("/admin/apps", nil, bearerHeader(adminTok))
	c.decode(resp, &listed)
	if listed.Apps[0].Status != app.StatusActive {
		t.Fatalf("status after rejected update = %q", listed.Apps[0].Status)
	}

	resp = c.do(http.MethodDelete, "/admin/apps?name=billing", nil, bearerHeader(adminTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("disable status = %d", resp.StatusCode)
	}

	// Disabled apps no longer broker logins.
	resp = c.post("/auth/login", map[string]any{
		"email": "user@example.com", "password": "user-pass",
		"app": "billing", "app_secret": "whatever",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("disabled app login status = %d", resp.StatusCode)
	}
}

func TestRoleAssignmentOverHTTP(t *testing.T) {
	c := newTestAPI(t)
	adminTok := c.adminToken()

	body := map[string]any{"user_id": "u1", "app_name": "billing", "role_name": "editor"}
	for i := 0; i < 2; i++ {
		resp := c.post("/admin/roles", body, bearerHeader(adminTok))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("assign status = %d", resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := c.get("/admin/roles", url.Values{"user_id": []string{"u1"}}, bearerHeader(adminTok))
	var listed struct {
		Assignments []struct {
			RoleName string `json:"role_name"`
			Active   bool   `json:"is_active"`
		} `json:"assignments"`
	}
	c.decode(resp, &listed)
	active := 0
	for _, a := range listed.Assignments {
		if a.Active {
			active++
			if a.RoleName != "editor" {
				t.Fatalf("role = %q", a.RoleName)
			}
		}
	}
	if active != 1 {
		t.Fatalf("active assignments = %d, want 1", active)
	}

	resp = c.do(http.MethodDelete, "/admin/roles", map[string]any{"user_id": "u1", "app_name": "billing"}, bearerHeader(adminTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revoke status = %d", resp.StatusCode)
	}

	resp = c.do(http.MethodDelete, "/admin/roles", map[string]any{"user_id": "u1", "app_name": "billing"}, bearerHeader(adminTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("double revoke status = %d, want 404", resp.StatusCode)
	}
}

func TestUsersEndpoint(t *testing.T) {
	c := newTestAPI(t)
	adminTok := c.adminToken()

	resp := c.get("/admin/users", nil, bearerHeader(adminTok))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var listed struct {
		Users []struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"users"`
	}
	c.decode(resp, &listed)
	if len(listed.Users) != 2 {
		t.Fatalf("users = %d, want 2", len(listed.Users))
	}

	resp = c.do(http.MethodPut, "/admin/users", map[string]any{"user_id": "subj-user", "role": "editor"}, bearerHeader(adminTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("role update status = %d", resp.StatusCode)
	}

	resp = c.do(http.MethodPut, "/admin/users", map[string]any{"user_id": "subj-user", "role": "emperor"}, bearerHeader(adminTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad role status = %d", resp.StatusCode)
	}

	resp = c.do(http.MethodPut, "/admin/users", map[string]any{"user_id": "ghost", "role": "editor"}, bearerHeader(adminTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown user status = %d", resp.StatusCode)
	}
}
