package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
)

const (
	DefaultInterval           = 5000 * time.Second
	DefaultListPageSize       = 100
	DefaultMaxDeletePasses    = 100
	DefaultDeletePollInterval = 2 * time.Second
)

var (
	ErrNoLocalDir  = errors.New("local dir missing")
	ErrNoRemoteDir = errors.New("remote dir missing")
	ErrNoClient    = errors.New("remote client missing")
)

type Options struct {
	LocalDir           string
	RemoteDir          string
	Interval           time.Duration
	ListPageSize       int
	MaxDeletePasses    int
	DeletePollInterval time.Duration
	DeletePermanently  bool

	Fs     afero.Fs        // defaults to the OS filesystem
	Clock  clockwork.Clock // defaults to the real clock
	Ignore *IgnoreList
	Logger *slog.Logger
}

func (o *Options) setDefaults() {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.ListPageSize <= 0 {
		o.ListPageSize = DefaultListPageSize
	}
	if o.MaxDeletePasses <= 0 {
		o.MaxDeletePasses = DefaultMaxDeletePasses
	}
	if o.DeletePollInterval <= 0 {
		o.DeletePollInterval = DefaultDeletePollInterval
	}
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

// Engine runs reconciliation cycles one after another on a single goroutine.
type Engine struct {
	opts    Options
	root    RemoteRoot
	local   *LocalScanner
	remote  *RemoteScanner
	mutator *Mutator
	clock   clockwork.Clock
	logger  *slog.Logger
}

func NewEngine(client RemoteClient, opts Options) (*Engine, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	if opts.LocalDir == "" {
		return nil, ErrNoLocalDir
	}
	if NormPath(opts.RemoteDir).IsRoot() {
		return nil, ErrNoRemoteDir
	}
	opts.setDefaults()

	root := NewRemoteRoot(opts.RemoteDir)
	logger := opts.Logger

	return &Engine{
		opts:   opts,
		root:   root,
		local:  NewLocalScanner(opts.Fs, opts.LocalDir, opts.Ignore, logger),
		remote: NewRemoteScanner(client, root, opts.ListPageSize, opts.Ignore, logger),
		mutator: NewMutator(client, opts.Fs, opts.Clock, MutatorConfig{
			LocalRoot:          opts.LocalDir,
			Root:               root,
			DeletePollInterval: opts.DeletePollInterval,
			DeletePermanently:  opts.DeletePermanently,
		}, logger),
		clock:  opts.Clock,
		logger: logger,
	}, nil
}

// CycleReport summarizes one reconciliation cycle.
type CycleReport struct {
	ID            string
	Started       time.Time
	Duration      time.Duration
	LocalEntries  int
	RemoteEntries int
	DeletePasses  int
	Deletes       int
	Reloads       int
	Uploads       int
	Failures      int
	// Remaining holds the deletes still pending when the pass limit was hit.
	Remaining []Action
}

// Run repeats RunCycle, sleeping Interval after each one, until ctx is done
// or the local tree cannot be read.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("mirror start", "local", e.opts.LocalDir, "remote", e.root.Path(), "interval", e.opts.Interval)

	for {
		if _, err := e.RunCycle(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.clock.After(e.opts.Interval):
		}
	}
}

// RunCycle scans both sides, converges deletes and then dispatches reloads
// followed by uploads. It fails only when the local scan fails or ctx ends;
// remote errors are logged and left for the next cycle.
func (e *Engine) RunCycle(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{ID: uuid.NewString(), Started: e.clock.Now()}
	logger := e.logger.With("cycle", report.ID)

	local, err := e.local.Scan()
	if err != nil {
		logger.Error("mirror", "op", "scan", "path", e.opts.LocalDir, "error", err)
		return report, err
	}
	report.LocalEntries = len(local)

	remote, plan := e.converge(ctx, local, report, logger)
	report.RemoteEntries = len(remote)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	for _, action := range plan.Reloads {
		if err := e.mutator.Reload(ctx, action.Path); err != nil {
			logger.Error("mirror", "op", action.Op, "path", action.Path, "error", err)
			report.Failures++
			continue
		}
		report.Reloads++
	}

	for _, action := range plan.Uploads {
		if err := e.mutator.Upload(ctx, action.Path); err != nil {
			logger.Error("mirror", "op", action.Op, "path", action.Path, "error", err)
			report.Failures++
			continue
		}
		report.Uploads++
	}

	report.Duration = e.clock.Since(report.Started)
	logger.Info("mirror cycle",
		"local", report.LocalEntries,
		"remote", report.RemoteEntries,
		"uploads", report.Uploads,
		"reloads", report.Reloads,
		"deletes", report.Deletes,
		"failures", report.Failures,
		"took", report.Duration,
	)

	return report, ctx.Err()
}

// converge deletes remote-only paths one at a time, rescanning the remote
// after each delete, until none remain, every remaining one already failed
// during this cycle, or MaxDeletePasses deletes were attempted. It returns the
// last remote snapshot and the plan computed from it.
func (e *Engine) converge(ctx context.Context, local Snapshot, report *CycleReport, logger *slog.Logger) (Snapshot, *Plan) {
	failed := mapset.NewThreadUnsafeSet[PathKey]()

	for pass := 0; ; pass++ {
		remote := e.remote.Scan(ctx)
		plan := Reconcile(local, remote)

		var victim *Action
		for i := range plan.Deletes {
			if !failed.Contains(plan.Deletes[i].Path) {
				victim = &plan.Deletes[i]
				break
			}
		}

		if victim == nil || ctx.Err() != nil {
			return remote, plan
		}
		if pass >= e.opts.MaxDeletePasses {
			report.Remaining = plan.Deletes
			logger.Warn("mirror", "op", OpDelete, "error", fmt.Sprintf("stopped after %d passes", pass), "remaining", len(plan.Deletes))
			return remote, plan
		}

		report.DeletePasses++
		if e.mutator.Delete(ctx, victim.Path) {
			report.Deletes++
		} else {
			failed.Add(victim.Path)
			report.Failures++
		}
	}
}
