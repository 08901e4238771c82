// Package app wires the record store, cache, exporters and services from
// configuration.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/cache"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/config"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/metrics"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/pipeline"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository/memory"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository/sqlstore"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/service"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/storage"
	"github.com/rs/zerolog/log"
)

// Services is everything the API and CLI need.
type Services struct {
	Buffers      *service.BufferService
	NetFlow      *service.NetFlowService
	Bullwhip     *service.BullwhipService
	Thresholds   *service.ThresholdService
	Simulation   *service.SimulationService
	Distribution *service.DistributionService
	DDOM         *service.DDOMService
	Runs         *pipeline.Repository
}

type App struct {
	Config   *config.Config
	Store    repository.VersionedStore
	Metrics  *metrics.Recorder
	Services *Services

	closers []func() error
}

// New builds an App. Cache and export failures fall back to running without
// them; a store failure is fatal.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.NewRecorder()}

	store, err := a.openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.Store = store

	bufferCache, err := cache.NewBufferCache(ctx, cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("buffer cache unavailable, continuing without it")
		bufferCache = cache.NewNoopBufferCache()
	}

	exporter, err := storage.Open(ctx, cfg.Export)
	if err != nil {
		log.Warn().Err(err).Str("driver", cfg.Export.Driver).Msg("export storage unavailable, exports disabled")
		exporter = nil
	}

	a.Services = NewServices(store, cfg, bufferCache, exporter, a.Metrics)
	return a, nil
}

// NewServices wires the services over an already open store.
func NewServices(store repository.VersionedStore, cfg *config.Config, bufferCache cache.BufferCache, exporter storage.ObjectStorage, recorder *metrics.Recorder) *Services {
	persist := service.NewPersister(store, cfg.Store, recorder)
	runs := pipeline.NewRepository(store)

	pcfg := pipeline.DefaultConfig("ddmrp")
	if cfg.Engine.WorkerCount > 0 {
		pcfg.WorkerCount = cfg.Engine.WorkerCount
	}
	if cfg.Engine.SampleBatchSize > 0 {
		pcfg.BatchSize = cfg.Engine.SampleBatchSize
	}
	orchestrator := pipeline.NewOrchestrator(runs, pcfg, recorder)

	buffers := service.NewBufferService(store, persist, bufferCache)
	return &Services{
		Buffers:    buffers,
		NetFlow:    service.NewNetFlowService(store, persist, buffers, recorder),
		Bullwhip:   service.NewBullwhipService(store, persist, orchestrator, cfg.Engine.AnalysisDays, cfg.Engine.TopCandidatesLimit),
		Thresholds: service.NewThresholdService(store, cfg.Engine.ThresholdCASRetries),
		Simulation: service.NewSimulationService(store, persist, orchestrator, exporter, service.SimulationSettings{
			Trials:       cfg.Engine.SimulationTrials,
			MaxTrials:    cfg.Engine.MaxSimulationTrials,
			Seed:         cfg.Engine.SimulationSeed,
			BatchSize:    pcfg.BatchSize,
			Export:       cfg.Engine.ExportSimulations,
			ExportPrefix: cfg.Export.Prefix,
		}),
		Distribution: service.NewDistributionService(store, persist, orchestrator),
		DDOM:         service.NewDDOMService(store, persist, orchestrator),
		Runs:         runs,
	}
}

func (a *App) openStore(ctx context.Context, cfg config.DatabaseConfig) (repository.VersionedStore, error) {
	if strings.EqualFold(cfg.Driver, "memory") {
		log.Info().Msg("using in-memory record store")
		return memory.NewStore(), nil
	}

	db, err := sqlstore.NewDB(&cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	store, err := sqlstore.NewStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open record store: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	log.Info().Str("driver", cfg.Driver).Msg("record store ready")
	return store, nil
}

// Close releases the store connection.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
