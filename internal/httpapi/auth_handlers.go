package httpapi

import (
	"errors"
	"net/http"
	"time"

	"porta.dev/internal/login"
	"porta.dev/internal/profile"
)

// X-App-Secret lets embedded widgets keep the secret out of the JSON body.
const appSecretHeader = "X-App-Secret"

type loginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	App         string `json:"app,omitempty"`
	AppSecret   string `json:"app_secret,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

type loginResponse struct {
	Token        string           `json:"token"`
	RefreshToken string           `json:"refresh_token"`
	User         *profile.Profile `json:"user"`
	ExpiresIn    int64            `json:"expires_in"`
	RedirectURL  string           `json:"redirect_url"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.AppSecret == "" {
		req.AppSecret = r.Header.Get(appSecretHeader)
	}

	res, err := a.deps.Login.Login(r.Context(), login.Request{
		Email:       req.Email,
		Password:    req.Password,
		App:         req.App,
		AppSecret:   req.AppSecret,
		RedirectURL: req.RedirectURL,
	})
	if err != nil {
		handleLoginError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:        res.Token,
		RefreshToken: res.RefreshToken,
		User:         res.Profile,
		ExpiresIn:    expiresIn(res.ExpiresAt),
		RedirectURL:  res.RedirectURL,
	})
}

type adminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type adminLoginResponse struct {
	AdminToken string           `json:"adminToken"`
	Admin      *profile.Profile `json:"admin"`
	ExpiresIn  int64            `json:"expires_in"`
}

func (a *API) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req adminLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.deps.Login.AdminLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		handleLoginError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, adminLoginResponse{
		AdminToken: res.Token,
		Admin:      res.Profile,
		ExpiresIn:  expiresIn(res.ExpiresAt),
	})
}

type emergencyLoginRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

type emergencyLoginResponse struct {
	Token     string           `json:"token"`
	User      *profile.Profile `json:"user"`
	ExpiresIn int64            `json:"expires_in"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

func (a *API) handleEmergencyLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req emergencyLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.deps.Login.EmergencyLogin(r.Context(), req.Email, req.Token, login.EmergencyMeta{
		RemoteAddr: clientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		handleLoginError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, emergencyLoginResponse{
		Token:     res.Token,
		User:      res.Profile,
		ExpiresIn: expiresIn(res.ExpiresAt),
		ExpiresAt: res.ExpiresAt,
	})
}

// handleLoginError keeps the client-facing message generic on credential
// paths; detail has already been audit-logged server-side.
func handleLoginError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, login.ErrValidation):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, login.ErrCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, login.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "admin role required")
	case errors.Is(err, login.ErrNotConfigured):
		writeError(w, r, http.StatusServiceUnavailable, "emergency access is not configured")
	case errors.Is(err, login.ErrUpstream):
		writeError(w, r, http.StatusBadGateway, "upstream dependency failed")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func expiresIn(at time.Time) int64 {
	d := time.Until(at)
	if d < 0 {
		return 0
	}
	return int64(d.Seconds())
}
