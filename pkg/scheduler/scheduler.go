// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package scheduler runs a unitgraph.Graph to completion under a
// concurrency budget. It is a single-threaded cooperative scheduler
// over OS threads: each unit's work is dispatched to a worker
// goroutine, which suspends on jobserver token acquisition or on the
// caller-supplied Compile/IsFresh hooks, and the scheduler resumes
// dependents as soon as every one of their dependencies has finished.
//
// The scheduler does not know how to invoke a compiler or check a
// fingerprint; those live behind Hooks, the same caller-supplied-Loader
// pattern pkg/source uses to keep this package free of manifest or
// toolchain specifics.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/cargo-core/internal/errors"
	"github.com/kraklabs/cargo-core/pkg/compiler"
	"github.com/kraklabs/cargo-core/pkg/filelock"
	"github.com/kraklabs/cargo-core/pkg/jobserver"
	"github.com/kraklabs/cargo-core/pkg/unitgraph"
)

// Hooks supplies the operations the scheduler orchestrates but does
// not itself implement.
type Hooks struct {
	// IsFresh reports whether u's cached fingerprint is still valid.
	IsFresh func(u *unitgraph.Unit) (bool, error)
	// RefreshOutputs hard-links or copies a Fresh unit's cached
	// outputs into place without invoking the compiler.
	RefreshOutputs func(u *unitgraph.Unit) error
	// Compile runs the compiler for a Dirty unit and returns its
	// parsed diagnostics. Any diagnostics are delivered first; any
	// non-nil error then marks the unit failed, whether or not
	// diagnostics came with it.
	Compile func(ctx context.Context, u *unitgraph.Unit) (compiler.Result, error)
	// OnMessage is invoked once per diagnostic, in the unit's emission
	// order, with every diagnostic for one unit delivered back to back
	// so two units never interleave mid-message.
	OnMessage func(u *unitgraph.Unit, d compiler.Diagnostic)
}

// Options configures one scheduler run.
type Options struct {
	// Jobs is the requested concurrency budget J, including the
	// implicit token. Zero or negative means 1 (serial).
	Jobs int
	// JobsExplicit is true when Jobs came from an explicit -j flag
	// rather than a default, used to apply rule 3 (ignore -j with a
	// warning when a jobserver was inherited).
	JobsExplicit bool
	// KeepGoing continues scheduling units whose dependencies have not
	// failed after a failure, instead of draining and stopping.
	KeepGoing bool
	// TargetDir, if set, is locked DownloadExclusive for the duration
	// of the run the way §5 requires ("its own file-lock held for the
	// duration of the build").
	TargetDir string
	// Metrics records scheduler counters/durations. Nil disables
	// metrics.
	Metrics *Metrics
	// Warnf receives scheduler warnings (e.g. the -j-ignored notice).
	// Nil is a no-op.
	Warnf func(format string, args ...any)
}

// UnitOutcome is the terminal state of one unit.
type UnitOutcome struct {
	Unit  *unitgraph.Unit
	Fresh bool
	// Skipped is true when the unit was never attempted because a
	// dependency failed or, without KeepGoing, because the run stopped
	// after an earlier failure.
	Skipped bool
	Err     error
}

// Report summarizes a completed (or cancelled) run.
type Report struct {
	Outcomes  []UnitOutcome
	Cancelled bool
}

// Failed reports whether any unit in the report ended in error.
func (r Report) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return true
		}
	}
	return false
}

// Scheduler runs one unitgraph.Graph to completion.
type Scheduler struct {
	graph *unitgraph.Graph
	hooks Hooks
	opts  Options
	js    jobserver.Client
	owned bool // true if this Scheduler constructed js and must Close it
}

// New builds a Scheduler for graph. It establishes the jobserver
// connection per §4.5 rule 1-3: inherit from the environment if
// present, otherwise construct an Internal one sized to Jobs-1 (the
// scheduler's own implicit token covers the first slot).
func New(graph *unitgraph.Graph, hooks Hooks, opts Options) *Scheduler {
	jobs := opts.Jobs
	if jobs < 1 {
		jobs = 1
	}
	client, inherited := jobserver.FromEnvironment(jobs - 1)
	if inherited && opts.JobsExplicit && opts.Warnf != nil {
		opts.Warnf("-j %d ignored: a jobserver was inherited from the environment", opts.Jobs)
	}
	opts.Jobs = jobs
	return &Scheduler{graph: graph, hooks: hooks, opts: opts, js: client, owned: true}
}

// WithJobserver overrides the jobserver client New would otherwise
// construct, for tests and for callers that already hold one.
func (s *Scheduler) WithJobserver(client jobserver.Client) *Scheduler {
	if s.owned {
		_ = s.js.Close()
	}
	s.js = client
	s.owned = false
	return s
}

// Run executes every unit in the graph, respecting dependency order
// and the concurrency budget, until completion, failure (unless
// KeepGoing), or cancellation via ctx or SIGINT.
func (s *Scheduler) Run(ctx context.Context) (Report, error) {
	if s.opts.TargetDir != "" {
		lockPath := s.opts.TargetDir + "/.cargo-lock"
		lock, err := filelock.Acquire(lockPath, filelock.DownloadExclusive, 0)
		if err != nil {
			return Report{}, errors.NewBuildError("could not lock target directory", err.Error(), "check that no other cargo-core process is running against this target directory", err)
		}
		defer lock.Release()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, interruptSignals()...)
	defer signal.Stop(sigCh)

	var cancelled atomic.Bool
	go func() {
		select {
		case <-sigCh:
			cancelled.Store(true)
			cancel()
		case <-runCtx.Done():
		}
	}()

	g := newGraphState(s.graph)
	pool := &tokenPool{js: s.js}

	var (
		mu      sync.Mutex
		failed  = make(map[*unitgraph.Unit]bool)
		results = make(map[*unitgraph.Unit]UnitOutcome)
		msgMu   sync.Mutex
		stop    bool
	)

	// eg fans units out one goroutine per ready unit. Its own
	// error-triggered cancellation goes unused (every goroutine below
	// returns nil): one unit's failure must not abort siblings already
	// in flight, so failure propagation and --keep-going are tracked
	// explicitly via failed/stop instead of errgroup's first-error Wait.
	eg, _ := errgroup.WithContext(runCtx)

	var dispatch func(u *unitgraph.Unit)
	dispatch = func(u *unitgraph.Unit) {
		eg.Go(func() error {
			mu.Lock()
			blocked := stop || g.depFailed(u, failed)
			mu.Unlock()
			if blocked {
				mu.Lock()
				results[u] = UnitOutcome{Unit: u, Skipped: true}
				failed[u] = true
				ready := g.complete(u)
				mu.Unlock()
				for _, r := range ready {
					dispatch(r)
				}
				return nil
			}

			release, err := pool.acquire(runCtx)
			if err != nil {
				mu.Lock()
				results[u] = UnitOutcome{Unit: u, Err: err}
				failed[u] = true
				ready := g.complete(u)
				mu.Unlock()
				for _, r := range ready {
					dispatch(r)
				}
				return nil
			}
			defer release()

			outcome := s.runOne(runCtx, u, &msgMu)

			mu.Lock()
			results[u] = outcome
			if outcome.Err != nil {
				failed[u] = true
				if !s.opts.KeepGoing {
					stop = true
				}
			}
			ready := g.complete(u)
			mu.Unlock()
			for _, r := range ready {
				dispatch(r)
			}
			return nil
		})
	}

	for _, u := range g.initialReady() {
		dispatch(u)
	}
	_ = eg.Wait()

	report := Report{Cancelled: cancelled.Load()}
	for _, u := range s.graph.Order {
		if o, ok := results[u]; ok {
			report.Outcomes = append(report.Outcomes, o)
		}
	}

	if cancelled.Load() {
		return report, errors.NewCancelledError("build cancelled")
	}
	return report, nil
}

// runOne executes a single unit: check freshness, then either refresh
// outputs or compile, recording metrics and delivering diagnostics
// under msgMu so one unit's messages never interleave with another's.
func (s *Scheduler) runOne(ctx context.Context, u *unitgraph.Unit, msgMu *sync.Mutex) UnitOutcome {
	s.opts.Metrics.RecordUnitStart()
	start := time.Now()
	defer func() { s.opts.Metrics.RecordUnitDuration(time.Since(start)) }()

	if s.hooks.IsFresh != nil {
		fresh, err := s.hooks.IsFresh(u)
		if err != nil {
			return UnitOutcome{Unit: u, Err: fmt.Errorf("check fingerprint: %w", err)}
		}
		if fresh {
			s.opts.Metrics.RecordUnitFresh()
			if s.hooks.RefreshOutputs != nil {
				if err := s.hooks.RefreshOutputs(u); err != nil {
					return UnitOutcome{Unit: u, Err: fmt.Errorf("refresh outputs: %w", err)}
				}
			}
			return UnitOutcome{Unit: u, Fresh: true}
		}
	}

	if s.hooks.Compile == nil {
		return UnitOutcome{Unit: u}
	}

	result, err := s.hooks.Compile(ctx, u)

	msgMu.Lock()
	if s.hooks.OnMessage != nil {
		for _, d := range result.Diagnostics {
			s.hooks.OnMessage(u, d)
		}
	}
	msgMu.Unlock()

	if err != nil {
		s.opts.Metrics.RecordUnitFailed()
		return UnitOutcome{Unit: u, Err: err}
	}
	s.opts.Metrics.RecordUnitCompiled()
	return UnitOutcome{Unit: u}
}
