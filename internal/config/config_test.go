package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("AUTOSAVE_DELAY", "")
	t.Setenv("JWT_EXPIRES_IN", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("ENV", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Port)
	}
	if cfg.AutosaveDelay != time.Second {
		t.Errorf("expected autosave delay 1s, got %s", cfg.AutosaveDelay)
	}
	if cfg.JWTExpirationDur != 24*time.Hour {
		t.Errorf("expected JWT expiry 24h, got %s", cfg.JWTExpirationDur)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("unexpected CORS origins %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AUTOSAVE_DELAY", "250ms")
	t.Setenv("JWT_EXPIRES_IN", "not-a-duration")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("ENV", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AutosaveDelay != 250*time.Millisecond {
		t.Errorf("expected autosave delay 250ms, got %s", cfg.AutosaveDelay)
	}
	if cfg.JWTExpirationDur != 24*time.Hour {
		t.Errorf("expected fallback JWT expiry 24h, got %s", cfg.JWTExpirationDur)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Errorf("expected 2 CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for default JWT secret in production")
	}
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "n", DBSSLMode: "disable"}

	if got := cfg.DSN(); got != "host=db port=5432 user=u password=p dbname=n sslmode=disable" {
		t.Errorf("unexpected DSN %q", got)
	}
	if got := cfg.DatabaseURL(); got != "postgres://u:p@db:5432/n?sslmode=disable" {
		t.Errorf("unexpected URL %q", got)
	}
}
