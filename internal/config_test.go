package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/memos/internal/memoservice"
	"github.com/starford/memos/internal/models"
	pkgconfig "github.com/starford/memos/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestVaultConfig_PathRequiredWhenMirroring(t *testing.T) {
	if err := (&VaultConfig{}).Validate(); err != nil {
		t.Errorf("mirror off without path: %v", err)
	}
	if err := (&VaultConfig{Mirror: true}).Validate(); err == nil {
		t.Error("mirror on without path should fail")
	}
}

func TestEditorConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*EditorConfig)
		wantErr bool
	}{
		{"defaults", func(*EditorConfig) {}, false},
		{"tag trigger", func(c *EditorConfig) { c.TagTrigger = "#" }, false},
		{"multi-char trigger", func(c *EditorConfig) { c.Trigger = "@@" }, true},
		{"empty trigger", func(c *EditorConfig) { c.Trigger = "" }, true},
		{"zero limit", func(c *EditorConfig) { c.CandidateLimit = 0 }, true},
		{"bad visibility", func(c *EditorConfig) { c.DefaultVisibility = "secret" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig().Editor
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_FromYAML(t *testing.T) {
	t.Setenv("MEMOS_TEST_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `app:
  log_level: debug
  http:
    port: 9090
sqlite:
  path: /tmp/memos.db
vault:
  path: /tmp/vault
  mirror: true
auth:
  mode: token
  token: ${MEMOS_TEST_TOKEN}
editor:
  trigger: "@"
  tag_trigger: "#"
  candidate_limit: 5
  default_visibility: PUBLIC
render:
  cache_ttl: 1m
  preview_length: 80
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.Token != "s3cret" || !cfg.Vault.Mirror || cfg.App.HTTP.Port != 9090 {
		t.Errorf("config = %+v", cfg)
	}

	want := memoservice.DefaultConfig()
	want.TagTrigger = '#'
	want.CandidateLimit = 5
	want.CacheTTL = time.Minute
	want.PreviewLength = 80
	want.DefaultVisibility = models.Public
	if diff := cmp.Diff(want, cfg.Service()); diff != "" {
		t.Errorf("service config (-want +got):\n%s", diff)
	}
}
