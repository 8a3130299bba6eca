// Package login orchestrates the three authentication flows: end-user
// login brokered through registered applications, the admin session flow,
// and break-glass emergency access. Each flow is a linear state machine
// that fails closed at every stage.
package login

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"porta.dev/internal/app"
	"porta.dev/internal/audit"
	"porta.dev/internal/health"
	"porta.dev/internal/idp"
	"porta.dev/internal/obs"
	"porta.dev/internal/profile"
	"porta.dev/internal/token"
)

var (
	// ErrValidation covers missing or malformed input; no external call was made.
	ErrValidation = errors.New("login: invalid request")
	// ErrCredentials covers every credential mismatch and provider auth
	// failure. Deliberately indistinct: the client response must not reveal
	// whether the password was wrong or the provider was down.
	ErrCredentials = errors.New("login: invalid credentials")
	// ErrForbidden means the identity is valid but lacks the admin role.
	ErrForbidden = errors.New("login: admin role required")
	// ErrNotConfigured means required operator configuration is absent.
	ErrNotConfigured = errors.New("login: emergency admin not configured")
	// ErrUpstream covers registry or profile-store infrastructure failures.
	ErrUpstream = errors.New("login: upstream failure")
)

// Default session lifetimes.
const (
	DefaultAccessTTL    = 30 * time.Minute
	DefaultAdminTTL     = 8 * time.Hour
	DefaultEmergencyTTL = 2 * time.Hour
	DefaultRefreshTTL   = 7 * 24 * time.Hour
)

// unknownApplication is the application claim minted when a login is not
// brokered through a registered app.
const unknownApplication = "unknown"

// IdentityProvider authenticates end-user credentials.
type IdentityProvider interface {
	Authenticate(ctx context.Context, email, password string) (idp.Identity, error)
}

// ProfileStore loads user profiles by subject id and records login
// activity on them.
type ProfileStore interface {
	Get(ctx context.Context, id string) (*profile.Profile, error)
	TouchLastLogin(ctx context.Context, id string) error
}

// Service wires the flows together. It holds no per-session state: every
// assertion is self-contained and re-validated on presentation.
type Service struct {
	codec    *token.Codec
	apps     *app.Validator
	provider IdentityProvider
	profiles ProfileStore
	monitor  *health.Monitor

	emergency       EmergencyConfig
	defaultRedirect string

	accessTTL    time.Duration
	adminTTL     time.Duration
	emergencyTTL time.Duration
	refreshTTL   time.Duration

	now func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithEmergencyConfig installs the break-glass credentials.
func WithEmergencyConfig(cfg EmergencyConfig) Option {
	return func(s *Service) {
		s.emergency = cfg
	}
}

// WithDefaultRedirect sets the post-login redirect used when neither the
// request nor the registered app supplies one.
func WithDefaultRedirect(url string) Option {
	return func(s *Service) {
		if strings.TrimSpace(url) != "" {
			s.defaultRedirect = url
		}
	}
}

// WithTTLs overrides session lifetimes. Zero values keep the defaults.
func WithTTLs(access, admin, emergency, refresh time.Duration) Option {
	return func(s *Service) {
		if access > 0 {
			s.accessTTL = access
		}
		if admin > 0 {
			s.adminTTL = admin
		}
		if emergency > 0 {
			s.emergencyTTL = emergency
		}
		if refresh > 0 {
			s.refreshTTL = refresh
		}
	}
}

func NewService(codec *token.Codec, apps *app.Validator, provider IdentityProvider, profiles ProfileStore, monitor *health.Monitor, opts ...Option) (*Service, error) {
	if codec == nil || apps == nil || provider == nil || profiles == nil || monitor == nil {
		return nil, errors.New("login: all collaborators are required")
	}
	s := &Service{
		codec:           codec,
		apps:            apps,
		provider:        provider,
		profiles:        profiles,
		monitor:         monitor,
		defaultRedirect: "/dashboard",
		accessTTL:       DefaultAccessTTL,
		adminTTL:        DefaultAdminTTL,
		emergencyTTL:    DefaultEmergencyTTL,
		refreshTTL:      DefaultRefreshTTL,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Request is the primary login input.
type Request struct {
	Email       string
	Password    string
	App         string
	AppSecret   string
	RedirectURL string
}

// Result is a successful primary login.
type Result struct {
	Token            string
	RefreshToken     string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
	RedirectURL      string
	Profile          *profile.Profile
	Source           string
}

// Login runs the primary flow: input validation, app-credential validation,
// provider authentication, profile load, session mint, redirect resolution.
func (s *Service) Login(ctx context.Context, req Request) (Result, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		return Result{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	appName := strings.TrimSpace(strings.ToLower(req.App))
	if appName != "" && req.AppSecret == "" {
		return Result{}, fmt.Errorf("%w: app_secret is required when app is set", ErrValidation)
	}

	var (
		validation app.Validation
		source     string
	)
	if appName != "" {
		var err error
		validation, err = s.apps.Validate(ctx, appName, req.AppSecret)
		if err != nil {
			if errors.Is(err, app.ErrInvalidCredentials) || errors.Is(err, app.ErrSecretExpired) {
				s.recordAttempt(ctx, "user", email, appName, false, 0, "app credentials rejected")
				return Result{}, ErrCredentials
			}
			return Result{}, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		source = validation.Source
	}

	ident, latency, err := s.authenticate(ctx, email, req.Password)
	if err != nil {
		s.recordAttempt(ctx, "user", email, appName, false, latency, reasonFor(err))
		return Result{}, ErrCredentials
	}

	prof, err := s.profiles.Get(ctx, ident.SubjectID)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			// Unmapped identities are unauthenticated, not 404: do not
			// reveal that provider auth succeeded.
			s.recordAttempt(ctx, "user", email, appName, false, latency, "no profile for subject")
			return Result{}, ErrCredentials
		}
		s.recordAttempt(ctx, "user", email, appName, false, latency, "profile store error")
		return Result{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	claimApp := appName
	if claimApp == "" {
		claimApp = unknownApplication
	}
	pair, err := s.codec.MintPair(claims(ident.SubjectID, prof.Email, string(prof.Role), claimApp, false),
		token.IssuerUser, s.accessTTL, s.refreshTTL)
	if err != nil {
		return Result{}, err
	}

	redirect := s.resolveRedirect(req.RedirectURL, validation.App)
	s.touchLastLogin(ctx, prof.ID)
	s.recordAttempt(ctx, "user", email, appName, true, latency, "")

	return Result{
		Token:            pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		ExpiresAt:        pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		RedirectURL:      redirect,
		Profile:          prof,
		Source:           source,
	}, nil
}

// AdminResult is a successful admin login.
type AdminResult struct {
	Token     string
	ExpiresAt time.Time
	Profile   *profile.Profile
}

// AdminLogin runs the admin session flow. It is never brokered through an
// application, requires the admin role, and mints in the admin trust domain.
func (s *Service) AdminLogin(ctx context.Context, email, password string) (AdminResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return AdminResult{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	ident, latency, err := s.authenticate(ctx, email, password)
	if err != nil {
		s.recordAttempt(ctx, "admin", email, "", false, latency, reasonFor(err))
		return AdminResult{}, ErrCredentials
	}

	prof, err := s.profiles.Get(ctx, ident.SubjectID)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			s.recordAttempt(ctx, "admin", email, "", false, latency, "no profile for subject")
			return AdminResult{}, ErrCredentials
		}
		s.recordAttempt(ctx, "admin", email, "", false, latency, "profile store error")
		return AdminResult{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if prof.Role != profile.RoleAdmin {
		s.recordAttempt(ctx, "admin", email, "", false, latency, "insufficient role")
		return AdminResult{}, ErrForbidden
	}

	signed, exp, err := s.codec.Mint(claims(ident.SubjectID, prof.Email, string(profile.RoleAdmin), "", false),
		token.IssuerAdmin, s.adminTTL)
	if err != nil {
		return AdminResult{}, err
	}

	s.touchLastLogin(ctx, prof.ID)
	s.recordAttempt(ctx, "admin", email, "", true, latency, "")
	return AdminResult{Token: signed, ExpiresAt: exp, Profile: prof}, nil
}

// touchLastLogin is best effort; a profile-store hiccup must not fail a
// login that already succeeded.
func (s *Service) touchLastLogin(ctx context.Context, id string) {
	if err := s.profiles.TouchLastLogin(ctx, id); err != nil {
		obs.Emit(map[string]any{
			"level": "warn",
			"msg":   "last-login touch failed",
			"error": err.Error(),
		})
	}
}

// authenticate calls the identity provider and feeds the health monitor.
// Provider reachability and authentication outcome are tracked separately:
// a wrong password still proves the provider is up.
func (s *Service) authenticate(ctx context.Context, email, password string) (idp.Identity, time.Duration, error) {
	start := s.now()
	ident, err := s.provider.Authenticate(ctx, email, password)
	latency := s.now().Sub(start)

	reachable := err == nil || errors.Is(err, idp.ErrAuthenticationFailed)
	s.monitor.Record(health.ComponentConnectivity, reachable, latency)
	s.monitor.Record(health.ComponentAuthSuccess, err == nil, latency)
	obs.ObserveIdentityProvider(latency)
	obs.SetHealthStatus(s.monitor.Snapshot().Status.Level())

	return ident, latency, err
}

// resolveRedirect: explicit request wins, then the app's first registered
// redirect. The fallback app has no registry record, so it lands on the
// default like app-less logins.
func (s *Service) resolveRedirect(requested string, rec *app.App) string {
	if strings.TrimSpace(requested) != "" {
		return requested
	}
	if rec != nil && len(rec.RedirectURLs) > 0 {
		return rec.RedirectURLs[0]
	}
	return s.defaultRedirect
}

func (s *Service) recordAttempt(ctx context.Context, flow, email, appName string, success bool, latency time.Duration, reason string) {
	obs.ObserveLogin(flow, success)
	fields := map[string]any{
		"flow":       flow,
		"email":      email,
		"success":    success,
		"latency_ms": latency.Milliseconds(),
	}
	if appName != "" {
		fields["app_name"] = appName
	}
	if reason != "" {
		fields["reason"] = reason
	}
	_ = audit.LogEvent(ctx, "auth.login.attempt", fields)
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, idp.ErrAuthenticationFailed):
		return "provider rejected credentials"
	case errors.Is(err, idp.ErrUnavailable):
		return "provider unreachable"
	default:
		return "provider error"
	}
}

func claims(subject, email, role, application string, emergency bool) token.Claims {
	c := token.Claims{
		Email:           email,
		Role:            role,
		Application:     application,
		EmergencyAccess: emergency,
	}
	c.Subject = subject
	return c
}
