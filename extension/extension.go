// Package extension assembles a complete stepwise deployment from a Config:
// it opens the configured store, loads the built-in skills plus any
// definitions directory, builds the engine, and mounts the HTTP API.
//
// The daemon in cmd/stepwised is a thin cobra wrapper around it, and
// applications embedding stepwise can use it directly:
//
//	x := extension.New(cfg, extension.WithExtension(audithook.New(rec)))
//	if err := x.Register(ctx); err != nil { ... }
//	if err := x.Start(ctx); err != nil { ... }
//	defer x.Stop(context.Background())
//	http.ListenAndServe(cfg.ListenAddr, x.Handler())
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/api"
	"github.com/xraph/stepwise/backoff"
	"github.com/xraph/stepwise/definition"
	"github.com/xraph/stepwise/engine"
	"github.com/xraph/stepwise/ext"
	mw "github.com/xraph/stepwise/middleware"
	"github.com/xraph/stepwise/skills"
	"github.com/xraph/stepwise/store"
)

// Extension owns the store, engine and API of one deployment.
type Extension struct {
	config Config
	logger *slog.Logger

	store      store.Store
	closeStore func() error

	bundle     *skills.Bundle
	eng        *engine.Engine
	apiHandler *api.API

	exts    []ext.Extension
	mws     []mw.Middleware
	bo      backoff.Strategy
	engOpts []engine.Option
}

// New creates an Extension. Nothing is opened until Register.
func New(cfg Config, opts ...ExtOption) *Extension {
	e := &Extension{config: mergeWithDefaults(cfg)}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Config returns the effective configuration.
func (e *Extension) Config() Config { return e.config }

// Engine returns the engine. Nil until Register succeeds.
func (e *Extension) Engine() *engine.Engine { return e.eng }

// API returns the HTTP adapter. Nil until Register succeeds.
func (e *Extension) API() *api.API { return e.apiHandler }

// Bundle returns the loaded skills. Nil until Register succeeds.
func (e *Extension) Bundle() *skills.Bundle { return e.bundle }

// Store returns the persistence backend. Nil until Register succeeds.
func (e *Extension) Store() store.Store { return e.store }

// Register validates the configuration, opens the store, loads skill
// definitions and builds the engine and API.
func (e *Extension) Register(ctx context.Context) error {
	if e.eng != nil {
		return errors.New("stepwise: extension already registered")
	}
	if e.store == nil {
		if err := e.config.Validate(); err != nil {
			return err
		}
	}

	bundle, err := LoadSkills(e.config.DefinitionsDir)
	if err != nil {
		return err
	}

	settings := e.config.EngineSettings(stepwise.DefaultConfig())
	bo := e.bo
	if bo == nil {
		if bo, err = e.config.BackoffStrategy(settings); err != nil {
			return err
		}
	}

	if e.store == nil {
		s, closeFn, err := openStore(ctx, e.config.Store, e.logger)
		if err != nil {
			return fmt.Errorf("stepwise: open %s store: %w", e.config.Store.Driver, err)
		}
		e.store, e.closeStore = s, closeFn
	}

	opts := make([]engine.Option, 0, len(e.exts)+len(e.mws)+len(e.engOpts)+5)
	opts = append(opts,
		engine.WithLogger(e.logger),
		engine.WithValidator(bundle.Validator),
		engine.WithConfig(settings),
		engine.WithBackoff(bo),
	)
	if d := e.config.Engine.OperationTimeout; d > 0 {
		opts = append(opts, engine.WithMiddleware(mw.Timeout(d, e.logger)))
	}
	for _, x := range e.exts {
		opts = append(opts, engine.WithExtension(x))
	}
	for _, m := range e.mws {
		opts = append(opts, engine.WithMiddleware(m))
	}
	opts = append(opts, e.engOpts...)

	eng, err := engine.New(e.store, bundle.Registry, bundle.Guidance, opts...)
	if err != nil {
		e.release()
		return fmt.Errorf("stepwise: build engine: %w", err)
	}

	e.bundle = bundle
	e.eng = eng
	e.apiHandler = api.New(eng, api.WithLogger(e.logger), api.WithPinger(e.store))

	e.logger.Info("stepwise: registered",
		slog.String("store", e.config.Store.Driver),
		slog.Int("skills", len(bundle.Definitions)),
	)
	return nil
}

// Start runs store migrations unless disabled.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("stepwise: extension not initialized")
	}
	if e.config.DisableMigrate {
		return nil
	}
	if err := e.store.Migrate(ctx); err != nil {
		return fmt.Errorf("stepwise: migration failed: %w", err)
	}
	return nil
}

// Stop shuts the engine down and closes a store opened by Register.
func (e *Extension) Stop(ctx context.Context) error {
	if e.eng == nil {
		return nil
	}
	err := e.eng.Shutdown(ctx)
	if closeErr := e.release(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Health pings the store.
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("stepwise: no store configured")
	}
	return e.store.Ping(ctx)
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

func (e *Extension) release() error {
	if e.closeStore == nil {
		return nil
	}
	closeFn := e.closeStore
	e.closeStore = nil
	return closeFn()
}

// LoadSkills loads the built-in skills and, when dir is set, every
// definition file under it.
func LoadSkills(dir string) (*skills.Bundle, error) {
	bundle, err := skills.Load()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return bundle, nil
	}
	defs, err := definition.LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("stepwise: load definitions from %s: %w", dir, err)
	}
	if err := bundle.Add(defs...); err != nil {
		return nil, err
	}
	return bundle, nil
}
