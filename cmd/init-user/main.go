package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/drfintrack/fintrack-auth/pkg/identity"
	"github.com/drfintrack/fintrack-auth/pkg/tokengenerator"
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

type Config struct {
	Db DbConfig
}

func main() {
	email := flag.String("email", "", "Email for the new user (required)")
	password := flag.String("password", "", "Password for the new user (required)")
	flag.Parse()

	if *email == "" || *password == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment")
	}

	cfg := Config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(context.Background(), cfg.Db.toDatabaseURL())
	if err != nil {
		slog.Error("Failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Token service is required by the identity service constructor but
	// never exercised here.
	tokens := tokengenerator.NewTokenService(
		tokengenerator.NewJwtTokenGenerator("unused", "fintrack-auth", "fintrack"))
	identities := identity.NewService(
		identity.NewPostgresUserRepository(pool), &identity.BcryptHasher{}, tokens)

	user, err := identities.Register(context.Background(), *email, *password)
	if err != nil {
		slog.Error("Failed to create user", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Created user %s (%s)\n", user.Email, user.ID)
}
