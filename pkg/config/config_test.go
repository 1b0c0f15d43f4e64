package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/realmsync/realmsync/pkg/store"
)

func TestLoadDefaults(t *testing.T) {
	// Point the default search path at an empty directory so no real
	// config file leaks into the test.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Logging.Level = %q, want INFO", cfg.Logging.Level)
	}
	if cfg.Database.Type != store.DatabaseTypeSQLite {
		t.Errorf("Database.Type = %q, want sqlite", cfg.Database.Type)
	}
	if cfg.Kerberos.TaskTimeoutHours != 2 {
		t.Errorf("Kerberos.TaskTimeoutHours = %d, want 2", cfg.Kerberos.TaskTimeoutHours)
	}
	if cfg.Kerberos.Tenant != "default" {
		t.Errorf("Kerberos.Tenant = %q, want default", cfg.Kerberos.Tenant)
	}
	if cfg.Sync.Interval != time.Hour {
		t.Errorf("Sync.Interval = %v, want 1h", cfg.Sync.Interval)
	}
	if cfg.Lock.Backend != "memory" {
		t.Errorf("Lock.Backend = %q, want memory", cfg.Lock.Backend)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s", cfg.ShutdownTimeout)
	}
	if cfg.Admin.Username != "admin" {
		t.Errorf("Admin.Username = %q, want admin", cfg.Admin.Username)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `logging:
  level: debug
  format: json
database:
  type: postgres
  postgres:
    host: db.internal
    database: realmsync
    user: realmsync
kerberos:
  task_timeout_hours: 4
  tenant: eu-west
sync:
  interval: 15m
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Logging.Level = %q, want DEBUG (normalized)", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
	if cfg.Database.Type != store.DatabaseTypePostgres {
		t.Errorf("Database.Type = %q, want postgres", cfg.Database.Type)
	}
	if cfg.Kerberos.TaskTimeoutHours != 4 {
		t.Errorf("Kerberos.TaskTimeoutHours = %d, want 4", cfg.Kerberos.TaskTimeoutHours)
	}
	if cfg.Kerberos.Tenant != "eu-west" {
		t.Errorf("Kerberos.Tenant = %q, want eu-west", cfg.Kerberos.Tenant)
	}
	if cfg.Sync.Interval != 15*time.Minute {
		t.Errorf("Sync.Interval = %v, want 15m", cfg.Sync.Interval)
	}
	if cfg.Lock.Backend != "postgres" {
		t.Errorf("Lock.Backend = %q, want postgres (follows database type)", cfg.Lock.Backend)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad log level",
			content: "logging:\n  level: verbose\n",
			wantErr: "logging.level",
		},
		{
			name:    "bad lock backend",
			content: "lock:\n  backend: etcd\n",
			wantErr: "lock.backend",
		},
		{
			name:    "bad secrets key",
			content: "secrets:\n  key: nothex\n",
			wantErr: "secrets.key",
		},
		{
			name:    "negative task timeout",
			content: "kerberos:\n  task_timeout_hours: -1\n",
			wantErr: "task_timeout_hours",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("write config: %v", err)
			}

			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Kerberos.TaskTimeoutHours = 6
	cfg.Secrets.Key = strings.Repeat("ab", 32)

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config mode = %o, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Kerberos.TaskTimeoutHours != 6 {
		t.Errorf("TaskTimeoutHours = %d, want 6", loaded.Kerberos.TaskTimeoutHours)
	}
	if loaded.Secrets.Key != cfg.Secrets.Key {
		t.Error("secrets key did not survive the round trip")
	}
}

func TestMustLoadMissingFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil || !strings.Contains(err.Error(), "realmsync init") {
		t.Errorf("MustLoad() error = %v, want init instructions", err)
	}
}
