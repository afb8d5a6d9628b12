package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/MJE43/czn-savedata-calc/internal/secrets"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:17889" {
		t.Errorf("unexpected addr %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "info" || cfg.RuleSet != "per-unit" || cfg.DefaultTier != 1 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CZN_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("CZN_DEFAULT_TIER", "0")
	t.Setenv("CZN_RULESET", "flat")
	t.Setenv("CZN_LOG_DEV", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9999" || cfg.RuleSet != "flat" || !cfg.LogDevelopment {
		t.Errorf("unexpected config %+v", cfg)
	}
	if rc := cfg.RunConfig(); rc.Tier != 1 {
		t.Errorf("Expected tier clamped to 1, got %d", rc.Tier)
	}
}

func TestLoadRejectsUnknownRuleSet(t *testing.T) {
	t.Setenv("CZN_RULESET", "made-up")
	if _, err := Load(); err == nil {
		t.Fatal("Expected unknown rule set to fail validation")
	}
}

func TestLoadRejectsBadTier(t *testing.T) {
	t.Setenv("CZN_DEFAULT_TIER", "three")
	if _, err := Load(); err == nil {
		t.Fatal("Expected non-numeric tier to fail parsing")
	}
}

func TestReadRulesScript(t *testing.T) {
	var empty Config
	if src, err := empty.ReadRulesScript(); err != nil || src != "" {
		t.Fatalf("Expected empty script, got %q, %v", src, err)
	}

	path := filepath.Join(t.TempDir(), "rules.js")
	if err := os.WriteFile(path, []byte("function pointsForRow() { return 1 }"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Config{RulesScript: path}
	src, err := cfg.ReadRulesScript()
	if err != nil {
		t.Fatalf("ReadRulesScript: %v", err)
	}
	if src == "" {
		t.Error("Expected script contents")
	}

	cfg.RulesScript = filepath.Join(t.TempDir(), "missing.js")
	if _, err := cfg.ReadRulesScript(); err == nil {
		t.Error("Expected missing script to fail")
	}
}

func TestResolveAPIToken(t *testing.T) {
	keyring.MockInit()
	store := secrets.NewStore("czn-config-test", "")

	cfg := Config{APIToken: "from-env"}
	if tok, _ := cfg.ResolveAPIToken(store); tok != "from-env" {
		t.Errorf("Expected env token to win, got %q", tok)
	}

	cfg.APIToken = ""
	tok, err := cfg.ResolveAPIToken(store)
	if err != nil || tok != "" {
		t.Errorf("Expected no token, got %q, %v", tok, err)
	}

	if err := store.SetAPIToken("from-keyring"); err != nil {
		t.Fatalf("SetAPIToken: %v", err)
	}
	tok, err = cfg.ResolveAPIToken(store)
	if err != nil || tok != "from-keyring" {
		t.Errorf("Expected keyring token, got %q, %v", tok, err)
	}
}

func TestRules(t *testing.T) {
	rs, err := Config{RuleSet: "flat"}.Rules()
	if err != nil || rs.Name() != "flat" {
		t.Fatalf("Rules() = %v, %v; want flat", rs, err)
	}

	if _, err := (Config{RuleSet: "nope"}).Rules(); err == nil {
		t.Error("Expected unknown rule set to fail")
	}

	dir := t.TempDir()
	good := filepath.Join(dir, "good.js")
	if err := os.WriteFile(good, []byte("function pointsForRow(row, i) { return 2 }"), 0o644); err != nil {
		t.Fatal(err)
	}
	rs, err = Config{RuleSet: "flat", RulesScript: good}.Rules()
	if err != nil {
		t.Fatalf("Rules() with script: %v", err)
	}
	if rs.Name() != "script" {
		t.Errorf("Expected script to take precedence, got %q", rs.Name())
	}

	bad := filepath.Join(dir, "bad.js")
	if err := os.WriteFile(bad, []byte("var nothing = 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (Config{RulesScript: bad}).Rules(); err == nil {
		t.Error("Expected script without pointsForRow to fail")
	}
}
