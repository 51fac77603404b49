package config

import (
	"testing"

	"backend-runtrainer/internal/gps"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort == "" {
		t.Fatalf("expected default server port")
	}
	if cfg.PostgresURL == "" {
		t.Fatalf("expected default postgres url")
	}
	if cfg.ArchiveQueueSize != 64 {
		t.Fatalf("expected default archive queue size, got %d", cfg.ArchiveQueueSize)
	}
	if cfg.GPS() != gps.DefaultConfig() {
		t.Fatalf("expected default gps thresholds, got %+v", cfg.GPS())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("POSTGRES_URL", "postgres://example")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("AUTO_MIGRATE", "false")
	t.Setenv("SINGLE_SESSION_PER_USER", "true")
	t.Setenv("GPS_MAX_ACCURACY_M", "30")
	t.Setenv("GPS_MIN_MOVEMENT_M", "5")

	cfg := Load()
	if cfg.ServerPort != ":9000" {
		t.Fatalf("expected override port")
	}
	if cfg.PostgresURL != "postgres://example" {
		t.Fatalf("expected override postgres")
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("expected override redis")
	}
	if cfg.JWTSecret != "secret" {
		t.Fatalf("expected override secret")
	}
	if cfg.AutoMigrate {
		t.Fatalf("expected auto migrate disabled")
	}
	if !cfg.SingleSessionPerUser {
		t.Fatalf("expected single session policy")
	}
	if cfg.GPS().MaxAccuracyM != 30 || cfg.GPS().MinMovementMeters != 5 {
		t.Fatalf("expected gps overrides, got %+v", cfg.GPS())
	}
}
