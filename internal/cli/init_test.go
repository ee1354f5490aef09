package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAndValidateConfig(t *testing.T) {
	dir := t.TempDir()
	policy := filepath.Join(dir, "policy.toml")
	if err := os.WriteFile(policy, []byte("balance_tolerance = 2\ntag_precedence = \"whitelist-wins\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("DATA_DIRECTORY", dir)
	t.Setenv("POLICY_FILE", policy)

	cfg, err := LoadAndValidateConfig()
	if err != nil {
		t.Fatalf("LoadAndValidateConfig() error = %v", err)
	}
	if cfg.BalanceTolerance != 2 {
		t.Errorf("BalanceTolerance = %d, want 2", cfg.BalanceTolerance)
	}

	t.Setenv("PORT", "99999")
	if _, err := LoadAndValidateConfig(); err == nil {
		t.Error("LoadAndValidateConfig() with bad port error = nil, want error")
	}
}

func TestLoadAndValidateConfigPolicyError(t *testing.T) {
	t.Setenv("POLICY_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	if _, err := LoadAndValidateConfig(); err == nil {
		t.Error("LoadAndValidateConfig() with missing policy file error = nil, want error")
	}
}

func TestNewApp(t *testing.T) {
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("DATA_DIRECTORY", t.TempDir())
	t.Setenv("POLICY_FILE", "")

	cfg, err := LoadAndValidateConfig()
	if err != nil {
		t.Fatalf("LoadAndValidateConfig() error = %v", err)
	}
	app, err := NewApp(context.Background(), cfg, SetupLogger("error", ""))
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	res, err := app.Aggregation.TrialBalance(context.Background(), 0)
	if err != nil {
		t.Fatalf("TrialBalance() error = %v", err)
	}
	if !res.Balanced() {
		t.Error("empty trial balance should be balanced")
	}
}
