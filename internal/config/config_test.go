package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Store != StorePostgres {
		t.Errorf("expected postgres store, got %q", cfg.Store)
	}
	if cfg.Auth.Provider != AuthJWT {
		t.Errorf("expected jwt provider, got %q", cfg.Auth.Provider)
	}
	if cfg.Dispatch.ExpiryWindow != 10*time.Minute {
		t.Errorf("unexpected expiry window %v", cfg.Dispatch.ExpiryWindow)
	}
	if cfg.Database.MaxOpenConns != 50 || cfg.Database.MaxIdleConns != 25 {
		t.Errorf("unexpected pool sizes %d/%d", cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("expected kafka disabled by default, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Mongo")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("DISPATCH_EXPIRY_WINDOW", "90s")
	t.Setenv("REALTIME_BACKPLANE", "true")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()

	if cfg.Store != StoreMongo {
		t.Errorf("expected mongo store, got %q", cfg.Store)
	}
	if got := strings.Join(cfg.Kafka.Brokers, "|"); got != "k1:9092|k2:9092" {
		t.Errorf("unexpected brokers %q", got)
	}
	if cfg.Dispatch.ExpiryWindow != 90*time.Second {
		t.Errorf("unexpected expiry window %v", cfg.Dispatch.ExpiryWindow)
	}
	if !cfg.Realtime.Backplane {
		t.Error("expected backplane enabled")
	}
	if cfg.Redis.DB != 0 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.Redis.DB)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Load()
		cfg.Auth.JWTSecret = "secret"
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg := valid()
	cfg.Store = "sqlite"
	cfg.Auth.Provider = AuthFirebase
	cfg.Dispatch.ExpiryWindow = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"STORE_BACKEND", "FIREBASE_PROJECT_ID", "DISPATCH_EXPIRY_WINDOW"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %s in joined error, got %v", want, err)
		}
	}

	cfg = valid()
	cfg.Auth.JWTSecret = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "AUTH_JWT_SECRET") {
		t.Errorf("expected missing secret error, got %v", err)
	}
}
