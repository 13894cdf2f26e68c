package config

import (
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "MODEL",
		"ARK_TEMPERATURE", "ARK_TOP_P", "ARK_MAX_TOKENS", "ARK_STREAM",
		"REASON_MAX_STEPS", "REASON_MIN_STEPS", "REASON_TOKEN_BUDGET", "REASON_HISTORY_LIMIT",
		"TAVILY_API_KEY", "TAVILY_DEPTH", "REPL_ENABLED", "REPL_INTERPRETER", "REPL_TIMEOUT",
		"CHAT_DB_PATH",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr :8080, got %q", cfg.Server.Addr)
	}
	if cfg.AI.Enabled() {
		t.Error("expected AI disabled without credentials")
	}
	if cfg.Reason.MaxSteps != 20 || cfg.Reason.MinSteps != 2 {
		t.Errorf("unexpected reason defaults: %+v", cfg.Reason)
	}
	if cfg.Reason.TokenBudget != 6000 || cfg.Reason.HistoryLimit != 10 {
		t.Errorf("unexpected reason defaults: %+v", cfg.Reason)
	}
	if cfg.Tools.SearchEnabled() || cfg.Tools.REPLEnabled {
		t.Error("expected tools disabled by default")
	}
	if cfg.Store.DBPath != "" {
		t.Errorf("expected empty db path, got %q", cfg.Store.DBPath)
	}
}

func TestLoadPortForms(t *testing.T) {
	clearEnv(t)

	t.Setenv("PORT", "9090")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected :9090, got %q", cfg.Server.Addr)
	}

	t.Setenv("PORT", "127.0.0.1:9090")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9090" {
		t.Errorf("expected host:port kept verbatim, got %q", cfg.Server.Addr)
	}

	t.Setenv("PORT", "not a port")
	if _, err := Load(); err == nil {
		t.Error("expected error for invalid PORT")
	}
}

func TestAIConfigEnabled(t *testing.T) {
	cases := []struct {
		name string
		cfg  AIConfig
		want bool
	}{
		{"api key and model", AIConfig{APIKey: "k", Model: "m"}, true},
		{"ak/sk pair and model", AIConfig{AccessKey: "a", SecretKey: "s", Model: "m"}, true},
		{"missing model", AIConfig{APIKey: "k"}, false},
		{"missing credentials", AIConfig{Model: "m"}, false},
		{"incomplete pair", AIConfig{AccessKey: "a", Model: "m"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.Enabled(); got != tc.want {
				t.Errorf("Enabled() = %t, want %t", got, tc.want)
			}
		})
	}
}

func TestLoadReasonBounds(t *testing.T) {
	clearEnv(t)

	t.Setenv("REASON_MAX_STEPS", "5")
	t.Setenv("REASON_MIN_STEPS", "8")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	// MinSteps is clamped to MaxSteps.
	if cfg.Reason.MaxSteps != 5 || cfg.Reason.MinSteps != 5 {
		t.Errorf("unexpected bounds: %+v", cfg.Reason)
	}

	t.Setenv("REASON_MAX_STEPS", "0")
	if _, err := Load(); err == nil {
		t.Error("expected error for REASON_MAX_STEPS below 1")
	}

	t.Setenv("REASON_MAX_STEPS", "abc")
	if _, err := Load(); err == nil {
		t.Error("expected error for non-numeric REASON_MAX_STEPS")
	}
}

func TestLoadToolsConfig(t *testing.T) {
	clearEnv(t)

	t.Setenv("TAVILY_API_KEY", "tv-key")
	t.Setenv("REPL_ENABLED", "true")
	t.Setenv("REPL_TIMEOUT", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Tools.SearchEnabled() {
		t.Error("expected search enabled")
	}
	if !cfg.Tools.REPLEnabled || cfg.Tools.REPLTimeout != 10 {
		t.Errorf("unexpected repl config: %+v", cfg.Tools)
	}
	if cfg.Tools.TavilyDepth != "basic" {
		t.Errorf("expected default depth basic, got %q", cfg.Tools.TavilyDepth)
	}
	if cfg.Tools.REPLInterpreter != "python3" {
		t.Errorf("expected default interpreter python3, got %q", cfg.Tools.REPLInterpreter)
	}

	t.Setenv("REPL_ENABLED", "not-a-bool")
	if _, err := Load(); err == nil {
		t.Error("expected error for invalid REPL_ENABLED")
	}
}
