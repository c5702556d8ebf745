package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/drfintrack/fintrack-auth/pkg/backupcode"
	"github.com/drfintrack/fintrack-auth/pkg/challenge"
	"github.com/drfintrack/fintrack-auth/pkg/config"
	"github.com/drfintrack/fintrack-auth/pkg/factor"
	"github.com/drfintrack/fintrack-auth/pkg/identity"
	"github.com/drfintrack/fintrack-auth/pkg/notification"
	"github.com/drfintrack/fintrack-auth/pkg/profile"
	"github.com/drfintrack/fintrack-auth/pkg/ratelimit"
	"github.com/drfintrack/fintrack-auth/pkg/tokengenerator"
	"github.com/drfintrack/fintrack-auth/pkg/twofa"
	twofaapi "github.com/drfintrack/fintrack-auth/pkg/twofa/api"
)

type DbConfig struct {
	Host     string `env:"FINTRACK_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"FINTRACK_PG_PORT" env-default:"5432"`
	Database string `env:"FINTRACK_PG_DATABASE" env-default:"fintrack_db"`
	User     string `env:"FINTRACK_PG_USER" env-default:"fintrack"`
	Password string `env:"FINTRACK_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"FINTRACK_PG_SCHEMA" env-default:"public"`
}

func (d DbConfig) toDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema)
}

type JwtConfig struct {
	Secret             string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer             string `env:"JWT_ISSUER" env-default:"fintrack-auth"`
	Audience           string `env:"JWT_AUDIENCE" env-default:"fintrack"`
	AccessTokenExpiry  string `env:"ACCESS_TOKEN_EXPIRY" env-default:"15m"`
	RefreshTokenExpiry string `env:"REFRESH_TOKEN_EXPIRY" env-default:"24h"`
}

type EmailConfig struct {
	Enabled  bool   `env:"EMAIL_ENABLED" env-default:"false"`
	Host     string `env:"EMAIL_HOST" env-default:"localhost"`
	Port     int    `env:"EMAIL_PORT" env-default:"1025"`
	Username string `env:"EMAIL_USERNAME" env-default:""`
	Password string `env:"EMAIL_PASSWORD" env-default:""`
	From     string `env:"EMAIL_FROM" env-default:"noreply@drfintrack.example"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
}

type ServerConfig struct {
	Host string `env:"FINTRACK_HOST" env-default:"0.0.0.0"`
	Port uint16 `env:"FINTRACK_PORT" env-default:"4000"`
	// "postgres" or "inmem"
	PersistenceType string `env:"FINTRACK_PERSISTENCE" env-default:"postgres"`
}

type Config struct {
	Server ServerConfig
	Db     DbConfig
	Jwt    JwtConfig
	Email  EmailConfig
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment")
	}

	cfg := Config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	twofaCfg := config.NewTwofaConfigFromEnv()
	rateLimitCfg := config.NewRateLimitConfigFromEnv()

	accessExpiry, err := time.ParseDuration(cfg.Jwt.AccessTokenExpiry)
	if err != nil {
		slog.Error("Invalid ACCESS_TOKEN_EXPIRY", "error", err)
		os.Exit(1)
	}
	refreshExpiry, err := time.ParseDuration(cfg.Jwt.RefreshTokenExpiry)
	if err != nil {
		slog.Error("Invalid REFRESH_TOKEN_EXPIRY", "error", err)
		os.Exit(1)
	}

	// Repositories
	var (
		userRepo      identity.UserRepository
		factorRepo    factor.FactorRepository
		challengeRepo challenge.ChallengeRepository
		profileRepo   profile.ProfileRepository
	)
	switch cfg.Server.PersistenceType {
	case "inmem":
		slog.Warn("Using in-memory persistence, all data is lost on restart")
		userRepo = identity.NewInMemUserRepository()
		factorRepo = factor.NewInMemFactorRepository()
		challengeRepo = challenge.NewInMemChallengeRepository()
		profileRepo = profile.NewInMemProfileRepository()
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.Db.toDatabaseURL())
		if err != nil {
			slog.Error("Failed to create database pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		userRepo = identity.NewPostgresUserRepository(pool)
		factorRepo = factor.NewPostgresFactorRepository(pool)
		challengeRepo = challenge.NewPostgresChallengeRepository(pool)
		profileRepo = profile.NewPostgresProfileRepository(pool)
	default:
		slog.Error("Unknown persistence type", "type", cfg.Server.PersistenceType)
		os.Exit(1)
	}

	// Services
	tokenService := tokengenerator.NewTokenService(
		tokengenerator.NewJwtTokenGenerator(cfg.Jwt.Secret, cfg.Jwt.Issuer, cfg.Jwt.Audience),
		tokengenerator.WithAccessTokenExpiry(accessExpiry),
		tokengenerator.WithRefreshTokenExpiry(refreshExpiry),
	)
	identities := identity.NewService(userRepo, &identity.BcryptHasher{}, tokenService)
	factors := factor.NewService(factorRepo, twofaCfg.Issuer)
	challenges := challenge.NewService(challengeRepo, factors,
		challenge.WithTTL(twofaCfg.ChallengeTTL))
	profiles := profile.NewService(profileRepo)
	backupCodes := backupcode.NewService(profileRepo)

	var notifier notification.Notifier = notification.NoOpNotifier{}
	if cfg.Email.Enabled {
		emailNotifier, err := notification.NewEmailNotifier(notification.EmailConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			TLS:      cfg.Email.TLS,
		})
		if err != nil {
			slog.Error("Failed to create email notifier", "error", err)
			os.Exit(1)
		}
		notifier = emailNotifier
	}

	attemptLimiter := ratelimit.NewKeyedLimiter(
		twofaCfg.AttemptCapacity, twofaCfg.AttemptRefillRate, time.Hour)
	twoFaService := twofa.NewService(identities, factors, challenges, profiles, backupCodes,
		twofa.WithNotifier(notifier),
		twofa.WithAttemptLimiter(attemptLimiter),
	)

	// HTTP
	jwtAuth := jwtauth.New("HS256", []byte(cfg.Jwt.Secret), nil)
	handleOpts := []twofaapi.Option{}
	if rateLimitCfg.LoginEnabled {
		handleOpts = append(handleOpts, twofaapi.WithLoginLimiter(
			ratelimit.NewKeyedLimiter(rateLimitCfg.LoginCapacity, rateLimitCfg.LoginRefillRate, time.Hour)))
	}
	handle := twofaapi.NewHandle(twoFaService, jwtAuth, handleOpts...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Mount("/2fa", twofaapi.TwoFaHandler(handle))

	// Background sweep of consumed and stale challenge rows.
	pruneCtx, cancelPrune := context.WithCancel(context.Background())
	defer cancelPrune()
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-pruneCtx.Done():
				return
			case <-ticker.C:
				if err := challenges.PruneExpired(pruneCtx); err != nil {
					slog.Warn("Challenge prune failed", "error", err)
				}
			}
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Starting fintrack-auth", "addr", addr, "persistence", cfg.Server.PersistenceType)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Forced shutdown", "error", err)
	}
}
