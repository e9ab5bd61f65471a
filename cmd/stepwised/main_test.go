package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xraph/stepwise/extension"
)

const customCheckYAML = `
skill_type: vendor_review
name: Vendor review
version: 1
phases:
  - number: 1
    name: Intake
    steps:
      - number: 1
        name: Vendor
        rules:
          - {type: custom, rule: no_such_check(vendor)}
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(viper.New())
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func configCmd(path string) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("config", path, "")
	return cmd
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := loadConfig(configCmd(""), viper.New())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	want := extension.DefaultConfig()
	if cfg.ListenAddr != want.ListenAddr || cfg.Store.Driver != want.Store.Driver {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
	if cfg.Engine.ConflictRetries != nil || cfg.Engine.AuditDryRuns != nil {
		t.Fatalf("unset engine keys decoded as %+v", cfg.Engine)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	file := `
listen_addr: ":9090"
store:
  driver: redis
  redis_addr: "localhost:6379"
log:
  format: text
engine:
  audit_dry_runs: false
  backoff: constant
  backoff_initial: 20ms
`
	if err := os.WriteFile(filepath.Join(dir, "stepwise.yaml"), []byte(file), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STEPWISE_STORE_REDIS_DB", "3")
	t.Setenv("STEPWISE_ENGINE_CONFLICT_RETRIES", "0")
	t.Setenv("STEPWISE_LISTEN_ADDR", ":7070")
	t.Setenv("STEPWISE_ENGINE_OPERATION_TIMEOUT", "2s")

	cfg, err := loadConfig(configCmd(""), viper.New())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Engine.ConflictRetries == nil || *cfg.Engine.ConflictRetries != 0 {
		t.Fatalf("env conflict retries = %v, want explicit 0", cfg.Engine.ConflictRetries)
	}
	if cfg.Engine.AuditDryRuns == nil || *cfg.Engine.AuditDryRuns {
		t.Fatalf("file audit dry runs = %v, want explicit false", cfg.Engine.AuditDryRuns)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"env overrides file", cfg.ListenAddr, ":7070"},
		{"file driver", cfg.Store.Driver, extension.DriverRedis},
		{"file redis addr", cfg.Store.RedisAddr, "localhost:6379"},
		{"env redis db", cfg.Store.RedisDB, 3},
		{"file log format", cfg.Log.Format, "text"},
		{"default log level", cfg.Log.Level, "info"},
		{"file backoff", cfg.Engine.Backoff, "constant"},
		{"file backoff initial", cfg.Engine.BackoffInitial, 20 * time.Millisecond},
		{"env operation timeout", cfg.Engine.OperationTimeout, 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Fatalf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("store:\n  driver: bun\n  postgres_dsn: postgres://db\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(configCmd(path), viper.New())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Store.Driver != extension.DriverBun || cfg.Store.PostgresDSN != "postgres://db" {
		t.Fatalf("store = %+v", cfg.Store)
	}

	if _, err := loadConfig(configCmd(filepath.Join(t.TempDir(), "missing.yaml")), viper.New()); err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     extension.LogConfig
		want    string
		wantErr bool
	}{
		{"json", extension.LogConfig{Level: "info", Format: "json"}, `"msg":"hello"`, false},
		{"text", extension.LogConfig{Level: "debug", Format: "text"}, "msg=hello", false},
		{"bad level", extension.LogConfig{Level: "loud", Format: "json"}, "", true},
		{"bad format", extension.LogConfig{Level: "info", Format: "xml"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(tt.cfg, &buf)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			logger.Debug("hello")
			logger.Info("hello")
			if !strings.Contains(buf.String(), tt.want) {
				t.Fatalf("output %q does not contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := run(t, "check")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	for _, want := range []string{
		"ok due_diligence v1: 9 steps in 4 phases",
		"ok quality_gate v1: 7 steps in 3 phases",
		"ok venture_development v1: 24 steps in 6 phases",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCheck_MissingCustomCheck(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "vendor.yaml"), []byte(customCheckYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := run(t, "check", dir)
	if err == nil || !strings.Contains(err.Error(), "no_such_check") {
		t.Fatalf("check error = %v, want missing no_such_check", err)
	}
}

func TestMigrate_Memory(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := run(t, "migrate", "--log-level", "error")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "migrated memory store") {
		t.Fatalf("output = %q", out)
	}
}

func TestRunServer_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	if err := runServer(ctx, srv, slog.New(slog.DiscardHandler)); err != nil {
		t.Fatalf("runServer: %v", err)
	}
}
