// Package app implements the application layer for depot.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
	"go.trai.ch/depot/internal/engine/executor"
	"go.trai.ch/depot/internal/engine/installer"
	"go.trai.ch/depot/internal/engine/planner"
	"go.trai.ch/depot/internal/engine/resolver"
	"go.trai.ch/depot/internal/engine/task"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	logger       ports.Logger
	tracer       ports.Tracer
	client       *http.Client
	progress     func(executor.Progress)
	onRate       func(domain.SpeedSample)

	mu      sync.Mutex
	options Options
	engine  *Engine
}

// Options adjusts the loaded configuration. Zero values keep the configured settings.
type Options struct {
	ConfigPath  string
	Parallelism int
	JSONLogs    bool
}

// InstallOptions configures Install.
type InstallOptions struct {
	// Loader optionally installs a loader on top of the game version, as kind:version.
	Loader string
}

// Result is the outcome of a successful run.
type Result struct {
	Version domain.VersionDescriptor
	Report  planner.Report
	// Warnings are the non-fatal failures recorded while running.
	Warnings []error
}

// New creates a new App instance.
func New(loader ports.ConfigLoader, log ports.Logger, tracer ports.Tracer) *App {
	return &App{
		configLoader: loader,
		logger:       log,
		tracer:       tracer,
	}
}

// WithHTTPClient replaces the client built from the configured timeouts.
func (a *App) WithHTTPClient(c *http.Client) *App {
	a.client = c
	return a
}

// WithProgress registers fn for progress snapshots of every run.
func (a *App) WithProgress(fn func(executor.Progress)) *App {
	a.progress = fn
	return a
}

// WithRate registers fn for every transfer rate sample.
func (a *App) WithRate(fn func(domain.SpeedSample)) *App {
	a.onRate = fn
	return a
}

// Configure sets the options applied when the engine is first built.
func (a *App) Configure(opts Options) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.options = opts
}

// Engine loads the configuration and builds the engine on first use.
func (a *App) Engine() (*Engine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.engine != nil {
		return a.engine, nil
	}

	cfg, err := a.configLoader.Load(a.options.ConfigPath)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	if a.options.Parallelism > 0 {
		cfg.Parallelism = a.options.Parallelism
	}
	if a.options.JSONLogs {
		cfg.JSONLogs = true
	}
	if j, ok := a.logger.(interface{ SetJSON(bool) }); ok && cfg.JSONLogs {
		j.SetJSON(true)
	}

	eng, err := NewEngine(cfg, a.client, a.logger, a.tracer, a.onRate)
	if err != nil {
		return nil, err
	}
	a.engine = eng
	return eng, nil
}

// Close persists the cache index and releases the engine.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.engine == nil {
		return nil
	}
	err := a.engine.Close()
	a.engine = nil
	return err
}

// PlanInstall returns the graph making v runnable, verifying every local file.
func (a *App) PlanInstall(v domain.VersionDescriptor) (*task.Task[planner.Report], error) {
	eng, err := a.Engine()
	if err != nil {
		return nil, err
	}
	return eng.Planner.PlanInstall(v), nil
}

// VerifyComplete returns the graph repairing v, honouring the integrity check setting.
func (a *App) VerifyComplete(v domain.VersionDescriptor) (*task.Task[planner.Report], error) {
	eng, err := a.Engine()
	if err != nil {
		return nil, err
	}
	return eng.Planner.VerifyComplete(v), nil
}

// Resolve flattens v against the local repository.
func (a *App) Resolve(v domain.VersionDescriptor) (domain.VersionDescriptor, error) {
	eng, err := a.Engine()
	if err != nil {
		return domain.VersionDescriptor{}, err
	}
	return resolver.ResolveDescriptor(v, eng.Repository)
}

// Merge deduplicates libraries, keeping the newest entry of each coordinate.
func (a *App) Merge(libs []domain.Library) []domain.Library {
	return resolver.Merge(libs)
}

// MergeFile merges the libraries of a version document or of a bare JSON library list.
func (a *App) MergeFile(path string) ([]domain.Library, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read file"), "path", path)
	}

	if strings.HasPrefix(strings.TrimSpace(string(data)), "[") {
		libs, err := domain.ParseLibraries(path, data)
		if err != nil {
			return nil, err
		}
		return a.Merge(libs), nil
	}

	v, err := domain.ParseVersion(path, data)
	if err != nil {
		return nil, err
	}
	return a.Merge(v.Libraries), nil
}

// ResolveVersion resolves and normalizes an installed version.
func (a *App) ResolveVersion(id string, preservePatches bool) (domain.VersionDescriptor, error) {
	eng, err := a.Engine()
	if err != nil {
		return domain.VersionDescriptor{}, err
	}
	if err := eng.Repository.Refresh(); err != nil {
		return domain.VersionDescriptor{}, err
	}
	return a.resolveInstalled(eng, id, preservePatches)
}

func (a *App) resolveInstalled(eng *Engine, id string, preservePatches bool) (domain.VersionDescriptor, error) {
	leaf, err := eng.Repository.Lookup(id)
	if err != nil {
		return domain.VersionDescriptor{}, err
	}

	if preservePatches {
		v, err := resolver.ResolvePreservingPatches(leaf, eng.Repository)
		if err != nil {
			return domain.VersionDescriptor{}, err
		}
		return resolver.MaintainPreservingPatches(v, eng.Repository)
	}

	v, err := resolver.ResolveDescriptor(leaf, eng.Repository)
	if err != nil {
		return domain.VersionDescriptor{}, err
	}
	return resolver.Maintain(v, eng.Repository)
}

// RemoteVersions refreshes the catalogue and returns its entries newest-first. A non-empty
// release type filters the list.
func (a *App) RemoteVersions(ctx context.Context, releaseType domain.ReleaseType) ([]domain.RemoteVersion, error) {
	eng, err := a.Engine()
	if err != nil {
		return nil, err
	}
	if err := eng.Catalog.Refresh(ctx); err != nil {
		return nil, err
	}

	versions := eng.Catalog.Versions()
	if releaseType == "" {
		return versions, nil
	}
	out := versions[:0]
	for _, v := range versions {
		if v.Type == releaseType {
			out = append(out, v)
		}
	}
	return out, nil
}

// Install downloads id, optionally with a loader, and makes it runnable. Versions created by a
// failed install are removed again.
func (a *App) Install(ctx context.Context, id string, opts InstallOptions) (Result, error) {
	eng, err := a.Engine()
	if err != nil {
		return Result{}, err
	}

	catalogErr, err := a.prefetch(ctx, eng)
	if err != nil {
		return Result{}, err
	}

	target, created, err := a.versionTasks(eng, id, opts, catalogErr)
	if err != nil {
		return Result{}, err
	}

	var resolved domain.VersionDescriptor
	plan := task.Compose(target, "plan "+id,
		func(_ *task.Context, v domain.VersionDescriptor) (*task.Task[planner.Report], error) {
			flat, err := resolver.ResolveDescriptor(v, eng.Repository)
			if err != nil {
				return nil, err
			}
			if resolved, err = resolver.Maintain(flat, eng.Repository); err != nil {
				return nil, err
			}
			return eng.Planner.PlanInstall(resolved), nil
		})

	a.logger.Info(fmt.Sprintf("installing %s", id))
	report, warnings, err := a.run(ctx, eng, plan)
	if err != nil {
		a.rollback(eng, created)
		return Result{}, err
	}
	return Result{Version: resolved, Report: report, Warnings: warnings}, nil
}

// Verify checks an installed version and repairs what is missing or corrupt.
func (a *App) Verify(ctx context.Context, id string) (Result, error) {
	eng, err := a.Engine()
	if err != nil {
		return Result{}, err
	}
	if err := eng.Repository.Refresh(); err != nil {
		return Result{}, err
	}

	v, err := a.resolveInstalled(eng, id, false)
	if err != nil {
		return Result{}, err
	}

	report, warnings, err := a.run(ctx, eng, eng.Planner.VerifyComplete(v))
	if err != nil {
		return Result{}, err
	}
	return Result{Version: v, Report: report, Warnings: warnings}, nil
}

// prefetch refreshes the repository and the catalogue concurrently. A catalogue failure is only
// fatal once a version has to be looked up in it, so it is returned separately.
func (a *App) prefetch(ctx context.Context, eng *Engine) (catalogErr, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(eng.Repository.Refresh)
	g.Go(func() error {
		catalogErr = eng.Catalog.Refresh(gctx)
		return nil
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}
	return catalogErr, nil
}

// versionTasks returns the task yielding the descriptor to plan and the ids it will create.
func (a *App) versionTasks(
	eng *Engine,
	id string,
	opts InstallOptions,
	catalogErr error,
) (*task.Task[domain.VersionDescriptor], []string, error) {
	var (
		target  *task.Task[domain.VersionDescriptor]
		created []string
	)

	if eng.Repository.Has(id) {
		v, err := eng.Repository.Lookup(id)
		if err != nil {
			return nil, nil, err
		}
		target = task.FromValue("version "+id, v)
	} else {
		if catalogErr != nil {
			return nil, nil, catalogErr
		}
		rv, ok := eng.Catalog.Lookup(id)
		if !ok {
			return nil, nil, zerr.With(zerr.Wrap(domain.ErrVersionNotFound, "not in catalogue"), "id", id)
		}
		t, err := eng.Installers.Task(rv)
		if err != nil {
			return nil, nil, err
		}
		target = t
		created = append(created, rv.ID)
	}

	if opts.Loader == "" {
		return target, created, nil
	}

	kind, self, err := installer.ParseLoaderSpec(opts.Loader)
	if err != nil {
		return nil, nil, err
	}
	rv, err := installer.LoaderVersion(kind, id, self)
	if err != nil {
		return nil, nil, err
	}
	loader, err := eng.Installers.Task(rv)
	if err != nil {
		return nil, nil, err
	}
	if !eng.Repository.Has(rv.ID) {
		created = append(created, rv.ID)
	}
	return loader.DependsOn(target), created, nil
}

func (a *App) run(ctx context.Context, eng *Engine, plan *task.Task[planner.Report]) (planner.Report, []error, error) {
	ex := eng.Executors.New(plan)
	if a.progress != nil {
		ex.OnProgress(a.progress)
	}

	err := ex.Run(ctx)
	if flushErr := eng.Cache.Flush(); flushErr != nil {
		a.logger.Warn(flushErr.Error())
	}

	warnings := ex.Errors()
	if err != nil {
		return planner.Report{}, nil, &RunError{Err: err, Errors: warnings}
	}
	for _, w := range warnings {
		a.logger.Warn(w.Error())
	}

	report, err := plan.Result()
	return report, warnings, err
}

func (a *App) rollback(eng *Engine, ids []string) {
	for _, id := range ids {
		if !eng.Repository.Has(id) {
			continue
		}
		if err := eng.Repository.Remove(id); err != nil {
			a.logger.Warn(fmt.Sprintf("failed to roll back %s: %v", id, err))
			continue
		}
		a.logger.Info(fmt.Sprintf("rolled back %s", id))
	}
}

// RunError is the single representative failure of a run together with the non-fatal errors
// recorded before it.
type RunError struct {
	Err    error
	Errors []error
}

func (e *RunError) Error() string {
	msg := domain.ErrGraphExecutionFailed.Error() + ": " + e.Err.Error()
	if n := len(e.Errors); n > 0 {
		msg += fmt.Sprintf(" (%d non-fatal errors)", n)
	}
	return msg
}

// Is reports whether target is ErrGraphExecutionFailed.
func (e *RunError) Is(target error) bool { return target == domain.ErrGraphExecutionFailed }

func (e *RunError) Unwrap() error { return e.Err }

// Joined returns the representative error joined with every non-fatal one.
func (e *RunError) Joined() error {
	return errors.Join(append([]error{e.Err}, e.Errors...)...)
}
