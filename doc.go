// Package stepwise provides a persisted state machine for guided,
// multi-phase business processes: venture-development programs, quality
// gates, due-diligence checklists and the like.
//
// A skill type is described once by a declarative definition (phases,
// steps, validation rules, deliverables). The engine materializes a
// workflow instance from it, validates each submitted step against the
// step's rules, and advances the step pointer atomically with the audit
// trail of every rule evaluation.
//
// # Quick Start
//
//	b, err := skills.Load()
//	eng, err := engine.New(memory.New(), b.Registry, b.Guidance,
//	    engine.WithValidator(b.Validator),
//	)
//	wf, err := eng.CreateWorkflow(ctx, engine.CreateInput{
//	    OwnerID:   "usr_42",
//	    SkillType: skills.VentureDevelopment,
//	})
//	wf, err = eng.StartWorkflow(ctx, wf.ID)
//
// To run the HTTP API instead, see package extension and cmd/stepwised.
//
// # Architecture
//
// Persistence is a port: [workflow.Store] is implemented by the memory,
// postgres, bun and redis backends under store/. Every mutation is a
// compare-and-swap on the workflow version, so one workflow has a single
// writer while distinct workflows proceed in parallel.
//
// All entity IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based.
package stepwise
