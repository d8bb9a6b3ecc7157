package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	idA     = "0123456789abcdef0123456789abcdef"
	idB     = "fedcba9876543210fedcba9876543210"
	secretA = "dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"
	secretB = "YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"
)

func TestHMACSecrets(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    int
		wantErr bool
	}{
		{"none", nil, 0, false},
		{"single secret", map[string]string{"SB_HMAC_SECRET": idA + ":" + secretA}, 1, false},
		{"numbered secrets", map[string]string{
			"SB_HMAC_SECRET_1": idA + ":" + secretA,
			"SB_HMAC_SECRET_2": idB + ":" + secretB,
		}, 2, false},
		{"invalid format", map[string]string{"SB_HMAC_SECRET": "invalid_format"}, 0, true},
		{"short secret_id", map[string]string{"SB_HMAC_SECRET": "short:" + secretA}, 0, true},
		{"non-hex secret_id", map[string]string{"SB_HMAC_SECRET": "0123456789abcdefGHIJKLMNOPQRSTUV:" + secretA}, 0, true},
		{"duplicate numbered", map[string]string{
			"SB_HMAC_SECRET_1": idA + ":" + secretA,
			"SB_HMAC_SECRET_2": idA + ":" + secretB,
		}, 0, true},
		{"duplicate single and numbered", map[string]string{
			"SB_HMAC_SECRET":   idA + ":" + secretA,
			"SB_HMAC_SECRET_1": idA + ":" + secretB,
		}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"SB_HMAC_SECRET", "SB_HMAC_SECRET_1", "SB_HMAC_SECRET_2"} {
				t.Setenv(k, tt.env[k])
			}
			secrets, err := HMACSecrets()
			if (err != nil) != tt.wantErr {
				t.Fatalf("HMACSecrets() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(secrets) != tt.want {
				t.Errorf("len(HMACSecrets()) = %d, want %d", len(secrets), tt.want)
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}
	if cfg.Server.Addr() != "0.0.0.0:50051" {
		t.Errorf("Server.Addr() = %q, want %q", cfg.Server.Addr(), "0.0.0.0:50051")
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.Server.RequestTimeout)
	}
	if cfg.Engine.DefaultRuleset != "main" {
		t.Errorf("DefaultRuleset = %q, want %q", cfg.Engine.DefaultRuleset, "main")
	}
	if !cfg.Engine.StopOnError {
		t.Error("StopOnError = false, want true")
	}
	if cfg.Storage.DBURL != "" {
		t.Errorf("DBURL = %q, want empty", cfg.Storage.DBURL)
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
engine:
  project: rules.yaml
  stop_on_error: false
storage:
  db_url: sqlite:///tmp/runs.db
`)
	t.Setenv("SB_SERVER_PORT", "8080")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080 (environment over file)", cfg.Server.Port)
	}
	if cfg.Engine.Project != "rules.yaml" {
		t.Errorf("Project = %q, want %q", cfg.Engine.Project, "rules.yaml")
	}
	if cfg.Engine.StopOnError {
		t.Error("StopOnError = true, want false")
	}
	if cfg.Storage.DBURL != "sqlite:///tmp/runs.db" {
		t.Errorf("DBURL = %q, want %q", cfg.Storage.DBURL, "sqlite:///tmp/runs.db")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"port too large", "SB_SERVER_PORT", "70000"},
		{"port zero", "SB_SERVER_PORT", "0"},
		{"negative timeout", "SB_SERVER_REQUEST_TIMEOUT", "-1s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			if _, err := LoadConfig(""); err == nil {
				t.Errorf("LoadConfig() with %s=%s error = nil, want error", tt.env, tt.val)
			}
		})
	}
}

func TestLoadConfig_RejectsSecretsInFile(t *testing.T) {
	path := writeConfig(t, `
server:
  host: localhost
  hmac_secret: should_be_rejected
`)
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "SB_HMAC_SECRET") {
		t.Errorf("LoadConfig() error = %v, want secret rejection", err)
	}
}

func TestLoadConfig_SecretInEnvironmentAllowed(t *testing.T) {
	t.Setenv("SB_HMAC_SECRET", idA+":"+secretA)
	if _, err := LoadConfig(""); err != nil {
		t.Errorf("LoadConfig() error = %v, want nil", err)
	}
}

func TestParseHMACSecret(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"valid base64", secretA, false},
		{"invalid base64", "not-valid-base64!!!", true},
		{"too short", "c2hvcnQ=", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHMACSecret(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseHMACSecret(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestParseHMACSecretWithID(t *testing.T) {
	id, secret, err := ParseHMACSecretWithID(idA + ":" + secretA)
	if err != nil {
		t.Fatalf("ParseHMACSecretWithID() error = %v, want nil", err)
	}
	if id != idA {
		t.Errorf("secretID = %q, want %q", id, idA)
	}
	if len(secret) < 32 {
		t.Errorf("len(secret) = %d, want >= 32", len(secret))
	}

	if _, _, err := ParseHMACSecretWithID(idA); err == nil {
		t.Error("ParseHMACSecretWithID() without colon error = nil, want error")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
