package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"porta.dev/internal/app"
	"porta.dev/internal/audit"
	"porta.dev/internal/profile"
	"porta.dev/internal/roles"
)

type rotateSecretRequest struct {
	AppName string `json:"app_name"`
}

type rotateSecretResponse struct {
	NewSecret       string    `json:"new_secret"`
	SecretExpiresAt time.Time `json:"secret_expires_at"`
}

func (a *API) handleRotateSecret(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, ok := a.requireAdmin(w, r, false)
	if !ok {
		return
	}
	r = adminContext(r, claims)

	var req rotateSecretRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	a.rotateSecret(w, r, req.AppName)
}

func (a *API) rotateSecret(w http.ResponseWriter, r *http.Request, name string) {
	res, err := a.deps.Rotator.Rotate(r.Context(), name)
	if err != nil {
		handleAppError(w, r, err)
		return
	}
	// The rotator audit-logs the rotation; the secret itself never appears
	// in any log line, only in this one response.
	writeJSON(w, http.StatusOK, rotateSecretResponse{
		NewSecret:       res.Secret,
		SecretExpiresAt: res.ExpiresAt,
	})
}

type createAppRequest struct {
	AppName        string   `json:"app_name"`
	DisplayName    string   `json:"app_display_name"`
	AllowedOrigins []string `json:"allowed_origins"`
	RedirectURLs   []string `json:"redirect_urls"`
}

type createAppResponse struct {
	App             *app.App  `json:"app"`
	Secret          string    `json:"secret"`
	SecretExpiresAt time.Time `json:"secret_expires_at"`
}

type updateAppRequest struct {
	AppName        string   `json:"app_name"`
	DisplayName    *string  `json:"app_display_name,omitempty"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
	RedirectURLs   []string `json:"redirect_urls,omitempty"`
	Status         *string  `json:"status,omitempty"`
}

type appActionRequest struct {
	AppName string `json:"app_name"`
}

func (a *API) handleApps(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		claims, ok := a.requireAdmin(w, r, true)
		if !ok {
			return
		}
		a.listApps(w, adminContext(r, claims))
	case http.MethodPost:
		a.handleAppsPost(w, r)
	case http.MethodPut:
		claims, ok := a.requireAdmin(w, r, true)
		if !ok {
			return
		}
		a.updateApp(w, adminContext(r, claims))
	case http.MethodDelete:
		claims, ok := a.requireAdmin(w, r, true)
		if !ok {
			return
		}
		a.disableApp(w, adminContext(r, claims))
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleAppsPost(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	// rotate and get_secret reveal secret material: emergency tokens are
	// not honored for them.
	allowEmergency := action == ""
	claims, ok := a.requireAdmin(w, r, allowEmergency)
	if !ok {
		return
	}
	r = adminContext(r, claims)

	switch action {
	case "":
		a.createApp(w, r)
	case "rotate":
		var req appActionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		a.rotateSecret(w, r, req.AppName)
	case "get_secret":
		a.getAppSecret(w, r)
	default:
		writeError(w, r, http.StatusBadRequest, "unknown action")
	}
}

func (a *API) listApps(w http.ResponseWriter, r *http.Request) {
	apps, err := a.deps.Apps.List(r.Context())
	if err != nil {
		handleAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"apps": apps})
}

// createApp registers the application and immediately rotates in its first
// secret, returned exactly once in the response.
func (a *API) createApp(w http.ResponseWriter, r *http.Request) {
	var req createAppRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(strings.ToLower(req.AppName))
	rec := &app.App{
		Name:           name,
		DisplayName:    req.DisplayName,
		AllowedOrigins: req.AllowedOrigins,
		RedirectURLs:   req.RedirectURLs,
		Status:         app.StatusActive,
	}
	if err := a.deps.Apps.Create(r.Context(), rec); err != nil {
		handleAppError(w, r, err)
		return
	}
	rotated, err := a.deps.Rotator.Rotate(r.Context(), name)
	if err != nil {
		handleAppError(w, r, err)
		return
	}
	created, err := a.deps.Apps.Find(r.Context(), name)
	if err != nil {
		handleAppError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "admin.app.create", map[string]any{
		"app_name": name,
	})
	writeJSON(w, http.StatusCreated, createAppResponse{
		App:             created,
		Secret:          rotated.Secret,
		SecretExpiresAt: rotated.ExpiresAt,
	})
}

func (a *API) getAppSecret(w http.ResponseWriter, r *http.Request) {
	var req appActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := a.deps.Apps.Find(r.Context(), strings.TrimSpace(strings.ToLower(req.AppName)))
	if err != nil {
		handleAppError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "admin.app.secret_read", map[string]any{
		"app_name": rec.Name,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"app_name":          rec.Name,
		"secret":            rec.Secret,
		"secret_expires_at": rec.SecretExpiresAt,
	})
}

func (a *API) updateApp(w http.ResponseWriter, r *http.Request) {
	var req updateAppRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Status != nil && !app.ValidStatus(*req.Status) {
		writeError(w, r, http.StatusBadRequest, "status must be one of active, disabled, pending")
		return
	}
	updated, err := a.deps.Apps.Update(r.Context(), strings.TrimSpace(strings.ToLower(req.AppName)), app.Update{
		DisplayName:    req.DisplayName,
		AllowedOrigins: req.AllowedOrigins,
		RedirectURLs:   req.RedirectURLs,
		Status:         req.Status,
	})
	if err != nil {
		handleAppError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "admin.app.update", map[string]any{
		"app_name": updated.Name,
	})
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) disableApp(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(strings.ToLower(r.URL.Query().Get("name")))
	if name == "" {
		writeError(w, r, http.StatusBadRequest, "name query parameter is required")
		return
	}
	if err := a.deps.Apps.Disable(r.Context(), name); err != nil {
		handleAppError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "admin.app.disable", map[string]any{
		"app_name": name,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type assignRoleRequest struct {
	UserID   string `json:"user_id"`
	AppName  string `json:"app_name"`
	RoleName string `json:"role_name"`
}

type revokeRoleRequest struct {
	UserID  string `json:"user_id"`
	AppName string `json:"app_name"`
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	claims, ok := a.requireAdmin(w, r, true)
	if !ok {
		return
	}
	r = adminContext(r, claims)

	switch r.Method {
	case http.MethodGet:
		a.listRoles(w, r)
	case http.MethodPost:
		a.assignRole(w, r, claims.Email)
	case http.MethodDelete:
		a.revokeRole(w, r, claims.Email)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) listRoles(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "user_id query parameter is required")
		return
	}
	assignments, err := a.deps.Roles.ListByUser(r.Context(), userID)
	if err != nil {
		handleRolesError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

func (a *API) assignRole(w http.ResponseWriter, r *http.Request, actor string) {
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	assignment, err := a.deps.Roles.Assign(r.Context(), req.UserID, req.AppName, req.RoleName, actor)
	if err != nil {
		handleRolesError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "admin.role.assign", map[string]any{
		"user_id":   assignment.UserID,
		"app_name":  assignment.AppName,
		"role_name": assignment.RoleName,
	})
	writeJSON(w, http.StatusOK, assignment)
}

func (a *API) revokeRole(w http.ResponseWriter, r *http.Request, actor string) {
	var req revokeRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.deps.Roles.Revoke(r.Context(), req.UserID, req.AppName, actor); err != nil {
		handleRolesError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "admin.role.revoke", map[string]any{
		"user_id":  req.UserID,
		"app_name": req.AppName,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type updateUserRoleRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	claims, ok := a.requireAdmin(w, r, true)
	if !ok {
		return
	}
	r = adminContext(r, claims)

	switch r.Method {
	case http.MethodGet:
		a.listUsers(w, r)
	case http.MethodPut:
		a.updateUserRole(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.deps.Profiles.List(r.Context())
	if err != nil {
		handleProfileError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) updateUserRole(w http.ResponseWriter, r *http.Request) {
	var req updateUserRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}
	role := profile.Role(strings.TrimSpace(strings.ToLower(req.Role)))
	if !role.Valid() {
		writeError(w, r, http.StatusBadRequest, "unknown role")
		return
	}
	if err := a.deps.Profiles.UpdateRole(r.Context(), req.UserID, role); err != nil {
		handleProfileError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "admin.user.role_update", map[string]any{
		"user_id": req.UserID,
		"role":    string(role),
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func handleAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "application not found")
	case errors.Is(err, app.ErrConflict):
		writeError(w, r, http.StatusConflict, "application already exists")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func handleRolesError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, roles.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, roles.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "role assignment not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func handleProfileError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, profile.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
	case errors.Is(err, profile.ErrUnavailable):
		writeError(w, r, http.StatusBadGateway, "profile store unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
