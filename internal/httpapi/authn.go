package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"porta.dev/internal/audit"
	"porta.dev/internal/profile"
	"porta.dev/internal/token"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	tok := strings.TrimSpace(header[len(bearer):])
	if tok == "" {
		return "", errors.New("missing bearer token")
	}
	return tok, nil
}

// requireAdmin re-validates the bearer token on every call: signature,
// issuer, expiry, role. There is no session cache to consult. Emergency
// tokens are honored only where allowEmergency is set; secret-revealing
// operations never set it.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request, allowEmergency bool) (*token.Claims, bool) {
	raw, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return nil, false
	}

	claims, err := a.deps.Codec.ParseAndValidate(raw, token.IssuerAdmin)
	if err != nil && allowEmergency {
		claims, err = a.deps.Codec.ParseAndValidate(raw, token.IssuerEmergency)
	}
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
		return nil, false
	}
	if claims.TokenType != token.TypeAccess {
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
		return nil, false
	}
	if claims.Role != string(profile.RoleAdmin) {
		writeError(w, r, http.StatusForbidden, "admin role required")
		return nil, false
	}
	return claims, true
}

// adminContext tags the request context with the acting admin for audit.
func adminContext(r *http.Request, claims *token.Claims) *http.Request {
	return r.WithContext(audit.WithActor(r.Context(), claims.Email))
}
