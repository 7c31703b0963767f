package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesFileAndDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  host: 127.0.0.1
  port: 9090
auth:
  jwt_secret: file-secret
  operator_password_hash: $2a$10$abcdefghijklmnopqrstuv
logging:
  level: debug
`)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("OPERATOR_PASSWORD_HASH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9090 {
		t.Errorf("server config not applied: %+v", cfg.Server)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level %q", cfg.Logging.Level)
	}
	// Defaults survive for untouched sections.
	if cfg.Logging.Format != "json" {
		t.Errorf("default format %q", cfg.Logging.Format)
	}
	if !cfg.Scheduler.Enabled {
		t.Error("scheduler should default to enabled")
	}
	if cfg.Auth.OperatorUsername != "operator" {
		t.Errorf("operator username %q", cfg.Auth.OperatorUsername)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
auth:
  jwt_secret: file-secret
  operator_password_hash: file-hash
`)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("OPERATOR_PASSWORD_HASH", "env-hash")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("jwt secret %q", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.OperatorPasswordHash != "env-hash" {
		t.Errorf("operator hash %q", cfg.Auth.OperatorPasswordHash)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level %q", cfg.Logging.Level)
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 8080\n")
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("OPERATOR_PASSWORD_HASH", "")

	if _, err := Load(); err == nil {
		t.Error("expected validation failure without secrets")
	}
}

func TestNormalizeStoragePathsAreAbsolute(t *testing.T) {
	path := writeConfigFile(t, `
auth:
  jwt_secret: s
  operator_password_hash: h
storage:
  data_dir: ./data
`)
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for name, dir := range map[string]string{
		"data":      cfg.Storage.DataDir,
		"instances": cfg.Storage.InstancesDir,
		"runtimes":  cfg.Storage.RuntimesDir,
	} {
		if !filepath.IsAbs(dir) {
			t.Errorf("%s dir not absolute: %q", name, dir)
		}
	}
}
