package internal

import (
	"strings"
	"testing"
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
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Remote.Owner != "starford" || cfg.Remote.Repo != "blog" || cfg.Remote.Branch != "main" {
		t.Errorf("remote defaults = %+v", cfg.Remote)
	}
	if cfg.Storage.Enabled() {
		t.Error("storage should be disabled by default")
	}
}

func TestRemoteConfig_Required(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Remote.Repo = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty repo should fail")
	}
}

func TestRemoteConfig_Extension(t *testing.T) {
	for ext, ok := range map[string]bool{"mdx": true, ".md": true, "a/b": false, "": false} {
		cfg := NewDefaultConfig().Remote
		cfg.Extension = ext
		if err := cfg.Validate(); (err == nil) != ok {
			t.Errorf("extension %q: err = %v", ext, err)
		}
	}
}

func TestPublishConfig_OnExisting(t *testing.T) {
	cfg := NewDefaultConfig().Publish
	cfg.OnExisting = "overwrite"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown policy should fail")
	}
	cfg.OnExisting = OnExistingReject
	if err := cfg.Validate(); err != nil {
		t.Fatalf("reject should pass: %v", err)
	}
}

func TestStorageConfig_RequiresBucketWhenEnabled(t *testing.T) {
	cfg := StorageConfig{Endpoint: "s3.example.com"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled storage without bucket should fail")
	}
	cfg.Bucket, cfg.AccessKeyID, cfg.SecretAccessKey = "media", "id", "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("complete storage config should pass: %v", err)
	}
}
