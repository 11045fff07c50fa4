// Package planner inspects a resolved version against the local repository and builds the task
// graph that makes it runnable.
package planner

import (
	"sync/atomic"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
	"go.trai.ch/depot/internal/engine/download"
	"go.trai.ch/depot/internal/engine/task"
)

// Stage labels reported to progress observers.
const (
	StageJar       = "jar"
	StageLibraries = "libraries"
	StageIndex     = "index"
	StageAssets    = "assets"
)

// Downloader turns a request into a lazily evaluated download. *download.Manager satisfies it.
type Downloader interface {
	Task(req download.Request) *task.Task[string]
}

// Report counts what a plan did.
type Report struct {
	// Downloaded files were fetched or materialized from the cache.
	Downloaded int64
	// Cached files were already present and passed verification.
	Cached int64
	// Registered files were added to the content-addressed cache.
	Registered int64
	// Failed downloads were tolerated because they were not essential.
	Failed int64
}

type tally struct {
	downloaded atomic.Int64
	cached     atomic.Int64
	registered atomic.Int64
	failed     atomic.Int64
}

func (t *tally) report() Report {
	return Report{
		Downloaded: t.downloaded.Load(),
		Cached:     t.cached.Load(),
		Registered: t.registered.Load(),
		Failed:     t.failed.Load(),
	}
}

// Option configures a Builder.
type Option func(*Builder)

// WithCache registers verified local files into c.
func WithCache(c ports.Cache) Option {
	return func(b *Builder) { b.cache = c }
}

// WithIntegrityCheck enables full digest verification of files already on disk. Without it
// VerifyComplete trusts file presence.
func WithIntegrityCheck(enabled bool) Option {
	return func(b *Builder) { b.integrityCheck = enabled }
}

// WithParallelism bounds the local verification fan-out.
func WithParallelism(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.parallelism = n
		}
	}
}

// WithAssetBaseURL overrides where asset objects are fetched from.
func WithAssetBaseURL(url string) Option {
	return func(b *Builder) {
		if url != "" {
			b.assetBaseURL = url
		}
	}
}

// WithLogger reports recoverable problems.
func WithLogger(l ports.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// Builder produces install and verification plans. Building a plan performs no I/O.
type Builder struct {
	layout         domain.Layout
	downloads      Downloader
	platform       domain.Platform
	cache          ports.Cache
	integrityCheck bool
	parallelism    int
	assetBaseURL   string
	logger         ports.Logger
}

// NewBuilder creates a builder for the repository at layout.
func NewBuilder(layout domain.Layout, downloads Downloader, platform domain.Platform, opts ...Option) *Builder {
	b := &Builder{
		layout:         layout,
		downloads:      downloads,
		platform:       platform,
		integrityCheck: true,
		parallelism:    domain.DefaultConcurrency,
		assetBaseURL:   domain.DefaultAssetBaseURL,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// mode selects how strictly existing files are checked.
type mode struct {
	// verify checks digests, alternate checksums and archives instead of presence only.
	verify bool
	// refreshIndex downloads the asset index even when a parseable copy exists.
	refreshIndex bool
}

// PlanInstall returns the graph installing v: the main jar, every applicable library, the asset
// index and each asset object. Local files are always verified and the asset index is refreshed.
func (b *Builder) PlanInstall(v domain.VersionDescriptor) *task.Task[Report] {
	return b.plan("install "+v.ID, v, mode{verify: true, refreshIndex: true})
}

// VerifyComplete returns the graph repairing v: only missing or corrupt files are downloaded.
// With integrity checking disabled, files that exist are trusted.
func (b *Builder) VerifyComplete(v domain.VersionDescriptor) *task.Task[Report] {
	return b.plan("verify "+v.ID, v, mode{verify: b.integrityCheck})
}

func (b *Builder) plan(name string, v domain.VersionDescriptor, m mode) *task.Task[Report] {
	t := &tally{}
	return task.NewStep[Report](name, func(*task.Context) (task.Step, error) {
		parts := []task.Node{
			b.gameJar(v, m, t),
			b.libraries(v, m, t),
			b.assets(v, m, t),
		}
		return task.Continue(parts, func(*task.Context) (task.Step, error) {
			return task.Done(t.report()), nil
		}), nil
	})
}

// GameJar returns the plan for the main jar of v.
func (b *Builder) GameJar(v domain.VersionDescriptor) *task.Task[string] {
	return b.gameJar(v, mode{verify: b.integrityCheck}, &tally{})
}

// Libraries returns the plan for the applicable libraries of v. It yields the number of
// libraries that had to be downloaded.
func (b *Builder) Libraries(v domain.VersionDescriptor) *task.Task[int] {
	return b.libraries(v, mode{verify: b.integrityCheck}, &tally{})
}

// AssetIndex returns the plan producing the parsed asset index of v.
func (b *Builder) AssetIndex(v domain.VersionDescriptor, refresh bool) *task.Task[domain.AssetIndex] {
	return b.assetIndex(v, mode{verify: b.integrityCheck, refreshIndex: refresh}, &tally{})
}

// Assets returns the plan for the asset objects listed by index. It yields the number of objects
// that had to be downloaded.
func (b *Builder) Assets(index *task.Task[domain.AssetIndex]) *task.Task[int] {
	return b.assetObjects(index, mode{verify: b.integrityCheck}, &tally{})
}

// download wraps a request so the tally reflects its outcome.
func (b *Builder) download(req download.Request, significance task.Significance, t *tally) *task.Task[string] {
	return b.downloads.Task(req).
		WithSignificance(significance).
		WhenComplete(func(_ string, err error) {
			if err != nil {
				t.failed.Add(1)
				return
			}
			t.downloaded.Add(1)
		})
}

// register offers a verified local file to the cache.
func (b *Builder) register(check *domain.IntegrityCheck, path string, t *tally) {
	if b.cache == nil || check == nil {
		return
	}
	added, err := b.cache.Register(check.Key(), path)
	if err != nil {
		b.warn(err)
		return
	}
	if added {
		t.registered.Add(1)
	}
}

func (b *Builder) warn(err error) {
	if b.logger != nil {
		b.logger.Warn(err.Error())
	}
}

func sha1Check(digest string) *domain.IntegrityCheck {
	if digest == "" {
		return nil
	}
	return domain.SHA1Check(digest)
}
