package extension_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/backoff"
	"github.com/xraph/stepwise/engine"
	"github.com/xraph/stepwise/extension"
	"github.com/xraph/stepwise/skills"
	"github.com/xraph/stepwise/store/memory"
)

const onboardingYAML = `
skill_type: onboarding
name: Customer onboarding
version: 1
phases:
  - number: 1
    name: Kickoff
    steps:
      - number: 1
        name: Contacts
        guidance: Collect the contacts of {company}.
        rules:
          - {type: required_field, rule: primary_contact}
`

func quiet() extension.ExtOption {
	return extension.WithLogger(slog.New(slog.DiscardHandler))
}

func TestConfig_Defaults(t *testing.T) {
	got := extension.New(extension.Config{}).Config()
	want := extension.DefaultConfig()
	if got.ListenAddr != want.ListenAddr {
		t.Errorf("ListenAddr = %q, want %q", got.ListenAddr, want.ListenAddr)
	}
	if got.Store.Driver != extension.DriverMemory {
		t.Errorf("Store.Driver = %q, want memory", got.Store.Driver)
	}
	if got.Log.Level != "info" || got.Log.Format != "json" {
		t.Errorf("Log = %+v, want info/json", got.Log)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		store   extension.StoreConfig
		wantErr bool
	}{
		{"memory", extension.StoreConfig{Driver: extension.DriverMemory}, false},
		{"postgres", extension.StoreConfig{Driver: extension.DriverPostgres, PostgresDSN: "postgres://localhost/db"}, false},
		{"postgres without dsn", extension.StoreConfig{Driver: extension.DriverPostgres}, true},
		{"bun without dsn", extension.StoreConfig{Driver: extension.DriverBun}, true},
		{"redis", extension.StoreConfig{Driver: extension.DriverRedis, RedisAddr: "localhost:6379"}, false},
		{"redis without addr", extension.StoreConfig{Driver: extension.DriverRedis}, true},
		{"unknown", extension.StoreConfig{Driver: "mongo"}, true},
		{"empty driver", extension.StoreConfig{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := extension.Config{Store: tt.store}.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestConfig_EngineSettings(t *testing.T) {
	base := stepwise.DefaultConfig()

	got := extension.Config{}.EngineSettings(base)
	if got != base {
		t.Fatalf("zero overrides changed config: %+v", got)
	}

	got = extension.Config{Engine: extension.EngineConfig{
		ConflictRetries:  ptr(7),
		AuditDryRuns:     ptr(true),
		DefaultListLimit: 10,
		BackoffMax:       time.Second,
	}}.EngineSettings(base)
	if got.ConflictRetries != 7 || !got.AuditDryRuns || got.DefaultListLimit != 10 || got.ConflictBackoffMax != time.Second {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.ConflictBackoffInitial != base.ConflictBackoffInitial {
		t.Fatalf("untouched field changed: %v", got.ConflictBackoffInitial)
	}
}

func TestConfig_EngineSettings_ExplicitZero(t *testing.T) {
	base := stepwise.DefaultConfig()
	base.AuditDryRuns = true

	got := extension.Config{Engine: extension.EngineConfig{
		ConflictRetries: ptr(0),
		AuditDryRuns:    ptr(false),
	}}.EngineSettings(base)
	if got.ConflictRetries != 0 {
		t.Errorf("ConflictRetries = %d, want 0", got.ConflictRetries)
	}
	if got.AuditDryRuns {
		t.Error("AuditDryRuns stayed on")
	}
}

func TestConfig_ValidateEngine(t *testing.T) {
	tests := []struct {
		name    string
		engine  extension.EngineConfig
		wantErr bool
	}{
		{"defaults", extension.EngineConfig{}, false},
		{"zero retries", extension.EngineConfig{ConflictRetries: ptr(0)}, false},
		{"negative retries", extension.EngineConfig{ConflictRetries: ptr(-1)}, true},
		{"constant backoff", extension.EngineConfig{Backoff: backoff.KindConstant}, false},
		{"unknown backoff", extension.EngineConfig{Backoff: "fibonacci"}, true},
		{"negative backoff", extension.EngineConfig{BackoffInitial: -time.Second}, true},
		{"negative timeout", extension.EngineConfig{OperationTimeout: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := extension.DefaultConfig()
			cfg.Engine = tt.engine
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_BackoffStrategy(t *testing.T) {
	cfg := extension.Config{Engine: extension.EngineConfig{Backoff: backoff.KindConstant, BackoffInitial: 3 * time.Millisecond}}
	s, err := cfg.BackoffStrategy(cfg.EngineSettings(stepwise.DefaultConfig()))
	if err != nil {
		t.Fatalf("BackoffStrategy: %v", err)
	}
	if d := s.Delay(5); d != 3*time.Millisecond {
		t.Fatalf("Delay(5) = %v, want 3ms", d)
	}
}

func TestExtension_Register(t *testing.T) {
	x := extension.New(extension.Config{}, quiet())
	ctx := context.Background()

	if err := x.Start(ctx); err == nil {
		t.Fatal("Start before Register should fail")
	}
	if err := x.Register(ctx); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if x.Engine() == nil || x.API() == nil || x.Store() == nil {
		t.Fatal("expected engine, API and store after Register")
	}
	if got := len(x.Bundle().Definitions); got != 3 {
		t.Fatalf("loaded %d skills, want 3", got)
	}
	if err := x.Register(ctx); err == nil {
		t.Fatal("second Register should fail")
	}
	if err := x.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	rec := httptest.NewRecorder()
	x.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d, want 200", rec.Code)
	}

	if err := x.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := x.Health(ctx); !errors.Is(err, stepwise.ErrStoreClosed) {
		t.Fatalf("Health after Stop = %v, want ErrStoreClosed", err)
	}
}

func TestExtension_InjectedStoreStaysOpen(t *testing.T) {
	s := memory.New()
	x := extension.New(extension.Config{}, quiet(), extension.WithStore(s))
	ctx := context.Background()

	if err := x.Register(ctx); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := x.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("injected store was closed: %v", err)
	}
}

func TestExtension_InvalidConfig(t *testing.T) {
	x := extension.New(extension.Config{Store: extension.StoreConfig{Driver: "mongo"}}, quiet())
	if err := x.Register(context.Background()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if x.Engine() != nil {
		t.Fatal("engine built despite invalid config")
	}
}

func TestExtension_DefinitionsDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "onboarding.yaml"), []byte(onboardingYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	x := extension.New(extension.Config{DefinitionsDir: dir}, quiet())
	ctx := context.Background()
	if err := x.Register(ctx); err != nil {
		t.Fatalf("Register: %v", err)
	}

	eng := x.Engine()
	wf, err := eng.CreateWorkflow(ctx, engine.CreateInput{OwnerID: "o", SkillType: "onboarding"})
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	if _, err := eng.UpdateWorkflowData(ctx, wf.ID, map[string]any{"company": "Acme"}); err != nil {
		t.Fatalf("UpdateWorkflowData: %v", err)
	}
	steps, err := eng.GetWorkflowSteps(ctx, wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflowSteps: %v", err)
	}
	g, err := eng.GetStepGuidance(ctx, wf.ID, steps[0].ID)
	if err != nil {
		t.Fatalf("GetStepGuidance: %v", err)
	}
	if g.Guidance != "Collect the contacts of Acme." {
		t.Fatalf("Guidance = %q", g.Guidance)
	}
}

func TestLoadSkills(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		want    int
		wantErr bool
	}{
		{"no dir", nil, 3, false},
		{"extra skill", map[string]string{"onboarding.yml": onboardingYAML}, 4, false},
		{"ignores other files", map[string]string{"README.md": "# notes"}, 3, false},
		{"built-in collision", map[string]string{"qg.yaml": "skill_type: " + skills.QualityGate + "\nname: x\nversion: 2\nphases:\n  - number: 1\n    name: p\n    steps:\n      - {number: 1, name: s}\n"}, 0, true},
		{"malformed", map[string]string{"bad.yaml": "phases: [: nope"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := ""
			if tt.files != nil {
				dir = t.TempDir()
				for name, body := range tt.files {
					if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
						t.Fatal(err)
					}
				}
			}

			b, err := extension.LoadSkills(dir)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadSkills() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(b.Definitions) != tt.want {
				t.Fatalf("loaded %d definitions, want %d", len(b.Definitions), tt.want)
			}
		})
	}
}
