// Package bootstrap wires the core components together and implements
// Bootstrap & Shutdown: open stores, reconstitute the
// admission queues from persisted state, start the allocator timer, and
// — on the way down — terminalize active executions and close
// everything in a finally-style block regardless of per-step errors.
package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"jobcore/internal/allocator"
	"jobcore/internal/cluster"
	"jobcore/internal/eventbus"
	"jobcore/internal/events"
	"jobcore/internal/lifecycle"
	"jobcore/internal/moderator"
	"jobcore/internal/queue"
	"jobcore/internal/store"
)

// Config collects the already-constructed capabilities bootstrap wires
// together. The caller (cmd/controller) builds these from flags and
// environment, then hands them to New.
type Config struct {
	Jobs      store.JobStore
	Cluster   cluster.Service
	Bus       eventbus.Bus
	Moderator *moderator.Gate
	Assets    lifecycle.AssetResolver
	Logger    *slog.Logger

	// AllocatorTick overrides the allocator's polling interval; defaults
	// to one second if zero.
	AllocatorTick time.Duration
}

// App is the fully wired core: lifecycle engine, allocator loop, and
// event router, plus the store/bus handles Shutdown must close.
type App struct {
	Engine    *lifecycle.Engine
	Allocator *allocator.Loop
	Router    *events.Router

	log    *slog.Logger
	bus    eventbus.Bus
	closer io.Closer
}

// New constructs the engine, allocator, and router from cfg but does
// not yet reconstitute queues or start the allocator — call Start for
// that.
func New(cfg Config, closer io.Closer) (*App, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	pending := queue.New()
	moderatorHeld := queue.New()

	allocLoop := &deferredAllocator{}

	engine := lifecycle.New(lifecycle.Deps{
		Jobs:          cfg.Jobs,
		Cluster:       cfg.Cluster,
		Moderator:     cfg.Moderator,
		Assets:        cfg.Assets,
		Pending:       pending,
		ModeratorHeld: moderatorHeld,
		Logger:        log,
		Wake:          allocLoop.wake,
	})

	router, err := events.NewRouter(cfg.Bus, engine, log)
	if err != nil {
		engine.Close()
		return nil, err
	}

	loop := allocator.New(engine, cfg.Cluster, log, cfg.AllocatorTick)
	allocLoop.set(loop)

	return &App{
		Engine:    engine,
		Allocator: loop,
		Router:    router,
		log:       log,
		bus:       cfg.Bus,
		closer:    closer,
	}, nil
}

// deferredAllocator lets the Wake closure passed into lifecycle.Deps
// reference the allocator.Loop before it exists, since the loop itself
// depends on the already-constructed engine.
type deferredAllocator struct {
	loop *allocator.Loop
}

func (d *deferredAllocator) set(loop *allocator.Loop) { d.loop = loop }

func (d *deferredAllocator) wake() {
	if d.loop != nil {
		d.loop.Wake()
	}
}

// Start reconstitutes the admission queues from persisted state and
// starts the allocator loop on its own goroutine.
func (a *App) Start(ctx context.Context) error {
	if err := a.Engine.Bootstrap(ctx); err != nil {
		return err
	}
	go a.Allocator.Start(context.Background())
	return nil
}

// Shutdown terminalizes every active execution, then closes the event
// router, allocator, engine, and underlying store/bus regardless of
// per-step errors.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if err := a.Engine.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	a.Allocator.Stop()
	a.Router.Close()
	a.Engine.Close()

	if a.bus != nil {
		a.bus.Close()
	}
	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
