package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"porta.dev/internal/app"
	"porta.dev/internal/config"
	"porta.dev/internal/health"
	"porta.dev/internal/httpapi"
	"porta.dev/internal/idp"
	"porta.dev/internal/login"
	"porta.dev/internal/obs"
	"porta.dev/internal/profile"
	"porta.dev/internal/roles"
	"porta.dev/internal/token"
)

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Durable stores. Without a DSN the gateway runs on in-memory stores,
	// which is enough for local development and smoke testing.
	var (
		db        *sql.DB
		appStore  app.Store
		roleStore roles.Store
	)
	if cfg.DatabaseDSN != "" {
		db, err = sql.Open("pgx", cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		appStore = app.NewPGStore(db)
		roleStore = roles.NewPGStore(db)
	} else {
		log.Println("no PORTA_PG_DSN set, using in-memory stores")
		appStore = app.NewMemoryStore()
		roleStore = roles.NewMemoryStore()
	}

	codecOpts := []token.Option{}
	if cfg.TokenKeyID != "" {
		codecOpts = append(codecOpts, token.WithKeyID(cfg.TokenKeyID))
	}
	codec, err := token.NewCodec(cfg.TokenSecret, codecOpts...)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	validator := app.NewValidator(appStore, app.Fallback{
		Name:   cfg.FallbackAppName,
		Secret: cfg.FallbackAppSecret,
	})
	rotator := app.NewRotator(appStore)

	provider, err := idp.NewClient(cfg.IdentityProviderURL, cfg.IdentityProviderKey)
	if err != nil {
		log.Fatalf("identity provider client: %v", err)
	}
	profiles, err := profile.NewClient(cfg.ProfileStoreURL, cfg.ProfileStoreKey)
	if err != nil {
		log.Fatalf("profile store client: %v", err)
	}

	monitor := health.NewMonitor()

	svc, err := login.NewService(codec, validator, provider, profiles, monitor,
		login.WithEmergencyConfig(login.EmergencyConfig{
			Email:    cfg.EmergencyEmail,
			Token:    cfg.EmergencyToken,
			IssuedAt: cfg.EmergencyTokenIssuedAt,
		}),
		login.WithDefaultRedirect(cfg.DefaultRedirectURL),
		login.WithTTLs(cfg.AccessTTL, cfg.AdminTTL, cfg.EmergencyTTL, cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("login service: %v", err)
	}

	api := httpapi.New(httpapi.Deps{
		Login:      svc,
		Codec:      codec,
		Apps:       appStore,
		Rotator:    rotator,
		Roles:      roleStore,
		Profiles:   profiles,
		Monitor:    monitor,
		ReadyProbe: httpapi.ReadyProbe{DB: db},
		Version:    cfg.Version,
		RateBurst:  cfg.RateBurst,
		RatePerSec: cfg.RatePerSec,
	})

	// Background connectivity probe keeps the health window populated even
	// when no logins are flowing.
	probeCtx, stopProbe := context.WithCancel(context.Background())
	prober := health.NewProber(provider, monitor, cfg.ProbeInterval)
	go prober.Run(probeCtx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting porta-gateway %s on %s", cfg.Version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	stopProbe()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
