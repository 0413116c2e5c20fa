package config

import (
	"os"
	"testing"
)

func TestLoadWithDefaults_Succeeds(t *testing.T) {
	os.Unsetenv("DB_PATH")
	os.Unsetenv("HTTP_ADDRESS")
	os.Unsetenv("ADMIN_JWT_SECRET")
	cfg, err := LoadWithDefaults()
	if err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if cfg.HTTP.Address == "" || cfg.Database.Path == "" || cfg.Auth.AdminJWTSecret == "" {
		t.Fatalf("unexpected empty defaults: %+v", cfg)
	}
}

func TestLoad_RequiresAdminSecret(t *testing.T) {
	os.Unsetenv("ADMIN_JWT_SECRET")
	t.Setenv("DB_PATH", "test.db")
	t.Setenv("HTTP_ADDRESS", ":1234")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when ADMIN_JWT_SECRET is not set")
	}
	t.Setenv("ADMIN_JWT_SECRET", "x")
	if _, err := Load(); err != nil {
		t.Fatalf("Load with secret set: %v", err)
	}
}

func TestLoad_RejectsOutOfRangeLookahead(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "x")
	t.Setenv("LOOKAHEAD", "5000")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for lookahead below 10s")
	}
}
