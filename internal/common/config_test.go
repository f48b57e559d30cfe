package common

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"DB_DRIVER", "DB_URL", "HTTP_ADDR", "WORKER_POLL_INTERVAL", "WORKER_BATCH_SIZE", "OPENAI_MODEL", "STORAGE_BACKEND"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig()
	if cfg.Database.Driver != "sqlite" || cfg.Server.HTTPAddr != ":5000" {
		t.Fatalf("unexpected defaults: %+v %+v", cfg.Database, cfg.Server)
	}
	if cfg.Worker.PollInterval != 10*time.Second || cfg.Worker.BatchSize != 50 {
		t.Fatalf("unexpected worker defaults: %+v", cfg.Worker)
	}
	if cfg.LLM.Model != "gpt-3.5-turbo" || cfg.Storage.Backend != "fs" {
		t.Fatalf("unexpected defaults: %+v %+v", cfg.LLM, cfg.Storage)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("WORKER_POLL_INTERVAL", "250ms")
	t.Setenv("WORKER_BATCH_SIZE", "not-a-number")
	t.Setenv("S3_USE_SSL", "true")
	t.Setenv("LLM_RATE_PER_SEC", "0.5")

	cfg := LoadConfig()
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("driver = %q", cfg.Database.Driver)
	}
	if cfg.Worker.PollInterval != 250*time.Millisecond {
		t.Fatalf("poll interval = %v", cfg.Worker.PollInterval)
	}
	if cfg.Worker.BatchSize != 50 {
		t.Fatalf("invalid int must fall back to default, got %d", cfg.Worker.BatchSize)
	}
	if !cfg.Storage.S3UseSSL || cfg.LLM.RatePerSec != 0.5 {
		t.Fatalf("unexpected overrides: %+v %+v", cfg.Storage, cfg.LLM)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "k")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("DB_DRIVER", "")
	if err := LoadConfig().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("S3_ENDPOINT", "")
	if err := LoadConfig().Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid s3 config, got %v", err)
	}

	t.Setenv("STORAGE_BACKEND", "fs")
	t.Setenv("OPENAI_API_KEY", "")
	if err := LoadConfig().Validate(); err == nil {
		t.Fatal("expected missing API key to be rejected")
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{NotFoundError("x"), http.StatusNotFound},
		{InvalidInputError("x"), http.StatusBadRequest},
		{StorageError("x", errors.New("db")), http.StatusServiceUnavailable},
		{TransformError("x", nil), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.code {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.code)
		}
	}
	if err := StorageError("x", NotFoundError("y")); !errors.Is(err, ErrStorage) || !errors.Is(err, ErrNotFound) {
		t.Fatalf("joined causes must both be reachable: %v", err)
	}
}
