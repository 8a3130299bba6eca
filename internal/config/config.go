package config

import (
	"errors"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds gateway configuration loaded from PORTA_* environment variables.
type Config struct {
	Port        int    `envconfig:"PORT" default:"8080"`
	DatabaseDSN string `envconfig:"PG_DSN"`
	Version     string `envconfig:"VERSION" default:"dev"`

	// TokenSecret signs every session assertion. Mandatory: the gateway
	// refuses to start without it.
	TokenSecret string `envconfig:"TOKEN_SECRET" required:"true"`
	TokenKeyID  string `envconfig:"TOKEN_KEY_ID"`

	IdentityProviderURL string `envconfig:"IDP_URL" required:"true"`
	IdentityProviderKey string `envconfig:"IDP_KEY"`
	ProfileStoreURL     string `envconfig:"PROFILE_URL" required:"true"`
	ProfileStoreKey     string `envconfig:"PROFILE_KEY"`

	// Single-entry static credential allow-list covering the legacy
	// application that predates the durable registry.
	FallbackAppName    string `envconfig:"FALLBACK_APP"`
	FallbackAppSecret  string `envconfig:"FALLBACK_SECRET"`
	DefaultRedirectURL string `envconfig:"DEFAULT_REDIRECT_URL" default:"/dashboard"`

	EmergencyEmail         string    `envconfig:"EMERGENCY_EMAIL"`
	EmergencyToken         string    `envconfig:"EMERGENCY_TOKEN"`
	EmergencyTokenIssuedAt time.Time `envconfig:"EMERGENCY_TOKEN_ISSUED_AT"`

	AccessTTL    time.Duration `envconfig:"ACCESS_TTL" default:"30m"`
	AdminTTL     time.Duration `envconfig:"ADMIN_TTL" default:"8h"`
	EmergencyTTL time.Duration `envconfig:"EMERGENCY_TTL" default:"2h"`
	RefreshTTL   time.Duration `envconfig:"REFRESH_TTL" default:"168h"`

	RateBurst  int `envconfig:"RATE_BURST" default:"20"`
	RatePerSec int `envconfig:"RATE_PER_SEC" default:"10"`

	ProbeInterval time.Duration `envconfig:"PROBE_INTERVAL" default:"30s"`
}

// Load reads configuration from the environment into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("porta", &cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.TokenSecret) == "" {
		return nil, errors.New("config: PORTA_TOKEN_SECRET must not be blank")
	}
	if (cfg.FallbackAppName == "") != (cfg.FallbackAppSecret == "") {
		return nil, errors.New("config: PORTA_FALLBACK_APP and PORTA_FALLBACK_SECRET must be set together")
	}
	return &cfg, nil
}
