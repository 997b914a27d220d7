package config

import "testing"

func TestLoadLogDefaults(t *testing.T) {
	cfg, err := LoadLog()
	if err != nil {
		t.Fatalf("LoadLog() error = %v", err)
	}
	if cfg.Level != "info" || cfg.Service != "trivia-rewards" {
		t.Fatalf("unexpected log config: %+v", cfg)
	}
}

func TestLoadLogParse(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("LOG_MAX_MB", "2")

	cfg, err := LoadLog()
	if err != nil {
		t.Fatalf("LoadLog() error = %v", err)
	}
	if cfg.Level != "debug" || !cfg.Pretty || cfg.MaxMB != 2 {
		t.Fatalf("unexpected log config: %+v", cfg)
	}
}
