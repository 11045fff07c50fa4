package app

import (
	"errors"
	"net/http"

	"go.trai.ch/depot/internal/adapters/cas"        //nolint:depguard // Wired in app layer
	"go.trai.ch/depot/internal/adapters/catalog"    //nolint:depguard // Wired in app layer
	"go.trai.ch/depot/internal/adapters/mirror"     //nolint:depguard // Wired in app layer
	"go.trai.ch/depot/internal/adapters/repository" //nolint:depguard // Wired in app layer
	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
	"go.trai.ch/depot/internal/engine/download"
	"go.trai.ch/depot/internal/engine/executor"
	"go.trai.ch/depot/internal/engine/installer"
	"go.trai.ch/depot/internal/engine/planner"
)

// Engine holds the objects built from one configuration. They are created once and shared by
// every run.
type Engine struct {
	Config     domain.Config
	Repository *repository.Repository
	Cache      *cas.Store
	Downloads  *download.Manager
	Catalog    *catalog.Catalog
	Planner    *planner.Builder
	Installers installer.Table
	Executors  *executor.Factory

	endRates func()
}

// NewEngine wires the repository, cache, mirrors, download manager, catalogue, plan builder and
// installers for cfg. A nil client is built from the configured connect timeout.
// Transfer rate samples are written to a span of tracer and passed to onRate when it is set.
func NewEngine(
	cfg domain.Config,
	client *http.Client,
	log ports.Logger,
	tracer ports.Tracer,
	onRate func(domain.SpeedSample),
) (*Engine, error) {
	store, err := cas.NewStore(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	repo, err := repository.Open(cfg.Root)
	if err != nil {
		return nil, err
	}

	if client == nil {
		client = download.NewHTTPClient(cfg.ConnectTimeout, cfg.AttemptTimeout)
	}
	downloads := download.NewManager(client,
		download.WithCache(store),
		download.WithMirrors(mirror.FromConfig(cfg.Mirrors)),
		download.WithAttemptTimeout(cfg.AttemptTimeout),
		download.WithSpeedMeter(download.NewSpeedMeter(cfg.SpeedInterval)),
		download.WithTracer(tracer),
		download.WithLogger(log),
	)

	endRates := reportRates(downloads.Meter(), tracer, onRate)

	builder := planner.NewBuilder(repo.Layout(), downloads, cfg.Platform,
		planner.WithCache(store),
		planner.WithIntegrityCheck(cfg.IntegrityCheck),
		planner.WithParallelism(cfg.Parallelism),
		planner.WithAssetBaseURL(cfg.AssetBaseURL),
		planner.WithLogger(log),
	)

	return &Engine{
		Config:     cfg,
		Repository: repo,
		Cache:      store,
		Downloads:  downloads,
		Catalog:    catalog.New(downloads, cfg.VersionListURL, log),
		Planner:    builder,
		Installers: installer.NewTable(downloads, repo),
		Executors:  executor.NewFactory(cfg.Parallelism, tracer, log),
		endRates:   endRates,
	}, nil
}

// Close persists the cache index, stops the speed meter and ends the rate span.
func (e *Engine) Close() error {
	err := errors.Join(e.Cache.Flush(), e.Downloads.Meter().Close())
	if e.endRates != nil {
		e.endRates()
	}
	return err
}
