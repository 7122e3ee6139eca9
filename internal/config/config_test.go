package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.CacheBackend != "memory" {
		t.Errorf("CacheBackend = %q, want memory", cfg.CacheBackend)
	}
	if cfg.Validation.WeightTolerance != 1e-4 {
		t.Errorf("WeightTolerance = %g, want 1e-4", cfg.Validation.WeightTolerance)
	}
	if cfg.CacheTTL != 6*time.Hour {
		t.Errorf("CacheTTL = %v, want 6h", cfg.CacheTTL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("CACHE_BACKEND", "SQLite")
	t.Setenv("CACHE_TTL", "30m")
	t.Setenv("MIN_CAPITAL", "5000000")
	t.Setenv("MAX_CONCURRENT_FETCHES", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.CacheBackend != "sqlite" {
		t.Errorf("CacheBackend = %q, want sqlite", cfg.CacheBackend)
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Errorf("CacheTTL = %v", cfg.CacheTTL)
	}
	if cfg.Validation.MinCapital != 5_000_000 {
		t.Errorf("MinCapital = %v", cfg.Validation.MinCapital)
	}
	if cfg.MaxConcurrentFetches != 4 {
		t.Errorf("MaxConcurrentFetches = %d, want default 4", cfg.MaxConcurrentFetches)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"CACHE_BACKEND": "memcached"}},
		{"firestore without project", map[string]string{"CACHE_BACKEND": "firestore"}},
		{"zero retries", map[string]string{"FETCH_RETRIES": "0"}},
		{"huge tolerance", map[string]string{"WEIGHT_TOLERANCE": "0.5"}},
		{"min above max capital", map[string]string{"MIN_CAPITAL": "10", "MAX_CAPITAL": "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Load() error = nil, want error")
			}
		})
	}
}
