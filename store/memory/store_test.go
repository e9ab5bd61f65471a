package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/store"
	"github.com/xraph/stepwise/store/memory"
	"github.com/xraph/stepwise/store/storetest"
	"github.com/xraph/stepwise/workflow"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}

func TestLifecycle(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Migrate", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
		{"Close", func() error { return s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				t.Fatalf("%s returned error: %v", tt.name, err)
			}
		})
	}

	if err := s.Ping(ctx); !errors.Is(err, stepwise.ErrStoreClosed) {
		t.Errorf("Ping after Close: expected ErrStoreClosed, got %v", err)
	}
	if _, err := s.ListWorkflows(ctx, workflow.ListOpts{}); !errors.Is(err, stepwise.ErrStoreClosed) {
		t.Errorf("ListWorkflows after Close: expected ErrStoreClosed, got %v", err)
	}
}

func TestReturnsCopies(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	wf, steps := storetest.NewWorkflow("owner")
	if err := s.CreateWorkflow(ctx, wf, steps); err != nil {
		t.Fatal(err)
	}

	// Mutating the caller's value after create must not reach the store.
	wf.Data["company"] = "changed"
	got, _ := s.GetWorkflow(ctx, wf.ID)
	if got.Data["company"] != "Acme" {
		t.Error("store kept a reference to the caller's instance")
	}

	got.Data["company"] = "changed again"
	again, _ := s.GetWorkflow(ctx, wf.ID)
	if again.Data["company"] != "Acme" {
		t.Error("GetWorkflow returned the stored instance")
	}
}
