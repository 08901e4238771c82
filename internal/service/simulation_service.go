package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math/rand/v2"
	"path"
	"strconv"
	"time"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/analytics"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/ddmrp"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/domain"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/pipeline"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SimulationOptions controls one simulation call. A zero Seed picks a
// random seed, which is reported back.
type SimulationOptions struct {
	Trials         int    `json:"trials"`
	Seed           uint64 `json:"seed"`
	Persist        bool   `json:"persist"`
	IncludeSamples bool   `json:"include_samples"`
}

type SimulationResult struct {
	ProductID  string                      `json:"product_id"`
	LocationID string                      `json:"location_id"`
	Seed       uint64                      `json:"seed"`
	Trials     int                         `json:"trials"`
	Discarded  int                         `json:"discarded"`
	Summary    analytics.SimulationSummary `json:"summary"`
	Samples    []analytics.Trial           `json:"samples,omitempty"`
	Write      *domain.WriteResult         `json:"write,omitempty"`
	ExportKey  string                      `json:"export_key,omitempty"`
}

type SimulationBatchReport struct {
	Run       pipeline.Run       `json:"run"`
	Seed      uint64             `json:"seed"`
	Trials    int                `json:"trials"`
	Simulated int                `json:"simulated"`
	Excluded  []string           `json:"excluded"`
	Results   []SimulationResult `json:"results"`
	Failures  map[string]string  `json:"failures,omitempty"`
}

// SimulationSettings are the engine defaults a SimulationService runs with.
type SimulationSettings struct {
	Trials       int
	MaxTrials    int
	Seed         uint64
	BatchSize    int
	Export       bool
	ExportPrefix string
}

type SimulationService struct {
	store        repository.RecordStore
	persist      *Persister
	orchestrator *pipeline.Orchestrator
	exporter     storage.ObjectStorage
	settings     SimulationSettings
	now          func() time.Time
}

const defaultMaxSimulationTrials = 100000

// NewSimulationService creates the simulator. exporter may be nil.
func NewSimulationService(store repository.RecordStore, persist *Persister, orchestrator *pipeline.Orchestrator, exporter storage.ObjectStorage, settings SimulationSettings) *SimulationService {
	if settings.Trials <= 0 {
		settings.Trials = analytics.DefaultSimulationTrials
	}
	if settings.MaxTrials <= 0 {
		settings.MaxTrials = defaultMaxSimulationTrials
	}
	if settings.MaxTrials < settings.Trials {
		settings.MaxTrials = settings.Trials
	}
	if settings.BatchSize <= 0 {
		settings.BatchSize = 500
	}
	return &SimulationService{
		store:        store,
		persist:      persist,
		orchestrator: orchestrator,
		exporter:     exporter,
		settings:     settings,
		now:          time.Now,
	}
}

// resolve fills in defaults and rejects trial counts above the cap.
func (s *SimulationService) resolve(opts SimulationOptions) (SimulationOptions, error) {
	if opts.Trials <= 0 {
		opts.Trials = s.settings.Trials
	}
	if opts.Trials > s.settings.MaxTrials {
		return opts, fmt.Errorf("%w: trials must be <= %d, got %d", ddmrp.ErrInvalidInput, s.settings.MaxTrials, opts.Trials)
	}
	if opts.Seed == 0 {
		opts.Seed = s.settings.Seed
	}
	if opts.Seed == 0 {
		opts.Seed = rand.Uint64()
	}
	return opts, nil
}

// Simulate runs the Monte Carlo trials of one node. Retained samples are
// streamed to the store in batches when opts.Persist is set.
func (s *SimulationService) Simulate(ctx context.Context, in analytics.SimulationInput, opts SimulationOptions) (SimulationResult, error) {
	if !(in.DemandVariability > 0) {
		return SimulationResult{}, fmt.Errorf("%w: demand_variability must be > 0", ddmrp.ErrInvalidInput)
	}
	opts, err := s.resolve(opts)
	if err != nil {
		return SimulationResult{}, err
	}

	res := SimulationResult{
		ProductID:  in.ProductID,
		LocationID: in.LocationID,
		Seed:       opts.Seed,
		Trials:     opts.Trials,
	}

	var (
		writer  *pipeline.SampleWriter
		flushes int
		csvBuf  *bytes.Buffer
		csvOut  *csv.Writer
	)
	if opts.Persist {
		writer = pipeline.NewSampleWriter("safety_stock:"+in.ProductID, s.settings.BatchSize, func(ctx context.Context, recs []repository.Record) error {
			flushes++
			if w := s.persist.Insert(ctx, repository.CollectionSafetyStockSamples, recs); !w.Saved {
				return fmt.Errorf("insert samples: %s", w.Reason)
			}
			return nil
		})
	}
	if s.exporter != nil && s.settings.Export {
		csvBuf = new(bytes.Buffer)
		csvOut = csv.NewWriter(csvBuf)
		_ = csvOut.Write([]string{"simulation_run", "simulated_demand", "simulated_lead_time", "calculated_safety_stock"})
	}

	now := s.now().UTC()
	var stocks []float64
	for trial := range analytics.SimulateSafetyStock(in, opts.Trials, opts.Seed) {
		stocks = append(stocks, trial.SafetyStock)
		if opts.IncludeSamples {
			res.Samples = append(res.Samples, trial)
		}
		if csvOut != nil {
			_ = csvOut.Write([]string{
				strconv.Itoa(trial.Run),
				strconv.FormatFloat(trial.Demand, 'f', -1, 64),
				strconv.FormatFloat(trial.LeadTime, 'f', -1, 64),
				strconv.FormatFloat(trial.SafetyStock, 'f', -1, 64),
			})
		}
		if writer == nil {
			continue
		}
		rec, err := repository.Encode(domain.SafetyStockSample{
			ID:                    uuid.NewString(),
			ProductID:             in.ProductID,
			LocationID:            in.LocationID,
			SimulationRun:         trial.Run,
			SimulatedDemand:       trial.Demand,
			SimulatedLeadTime:     trial.LeadTime,
			CalculatedSafetyStock: trial.SafetyStock,
			CreatedAt:             now,
		})
		if err != nil {
			return res, err
		}
		// flush failures are counted by the writer and reported below
		_ = writer.Add(ctx, rec)
	}

	res.Summary = analytics.Summarize(stocks)
	res.Discarded = opts.Trials - res.Summary.Retained

	if writer != nil {
		_ = writer.Finalize(ctx)
		_, failed, _, lastErr := writer.Stats()
		write := domain.WriteResult{Saved: failed == 0, Attempts: flushes}
		if lastErr != nil {
			write.Reason = lastErr.Error()
		}
		res.Write = &write
	}
	if csvOut != nil {
		csvOut.Flush()
		res.ExportKey = s.export(ctx, in, opts.Seed, csvBuf)
	}
	return res, nil
}

// export uploads the samples CSV and returns its key, or "" on failure.
func (s *SimulationService) export(ctx context.Context, in analytics.SimulationInput, seed uint64, buf *bytes.Buffer) string {
	key := path.Join(s.settings.ExportPrefix, "simulations", strconv.FormatUint(seed, 10), in.ProductID+"_"+in.LocationID+".csv")
	if err := s.exporter.UploadObject(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len())); err != nil {
		log.Warn().Err(err).Str("product_id", in.ProductID).Str("location_id", in.LocationID).Msg("simulation export failed")
		return ""
	}
	return key
}

// RunBatch simulates every active demand node that has a positive demand
// variability and a lead time. Each node draws from its own seed derived
// from the batch seed.
func (s *SimulationService) RunBatch(ctx context.Context, opts SimulationOptions) (SimulationBatchReport, error) {
	opts, err := s.resolve(opts)
	if err != nil {
		return SimulationBatchReport{}, err
	}
	job := &simulationJob{svc: s, opts: opts}
	report, err := s.orchestrator.Run(ctx, job)

	out := SimulationBatchReport{
		Run:      report.Run,
		Seed:     opts.Seed,
		Trials:   opts.Trials,
		Excluded: job.excluded,
		Results:  []SimulationResult{},
	}
	if err != nil {
		return out, err
	}
	for _, res := range report.Results {
		if res.Error != "" {
			if out.Failures == nil {
				out.Failures = map[string]string{}
			}
			out.Failures[res.Key] = res.Error
			continue
		}
		if sim, ok := res.Value.(SimulationResult); ok {
			out.Results = append(out.Results, sim)
			out.Simulated++
		}
	}
	return out, nil
}

type simulationJob struct {
	svc      *SimulationService
	opts     SimulationOptions
	excluded []string
}

func (j *simulationJob) Name() string { return "safety_stock_simulation" }

func (j *simulationJob) Units(ctx context.Context) ([]pipeline.Unit, error) {
	nodes, err := loadNodes(ctx, j.svc.store, repository.CollectionActiveDemandNodes)
	if err != nil {
		return nil, err
	}
	recs, err := j.svc.store.Get(ctx, repository.CollectionDemandVariability, repository.Filter{})
	if err != nil {
		return nil, fmt.Errorf("load demand variability: %w", err)
	}
	variability, err := repository.DecodeAll[domain.DemandVariability](recs)
	if err != nil {
		return nil, err
	}
	byNode := make(map[domain.DemandNode]domain.DemandVariability, len(variability))
	for _, v := range variability {
		byNode[domain.DemandNode{ProductID: v.ProductID, LocationID: v.LocationID}] = v
	}

	j.excluded = []string{}
	units := make([]pipeline.Unit, 0, len(nodes))
	for _, n := range nodes {
		u := pipeline.Unit{ProductID: n.ProductID, LocationID: n.LocationID}
		v, ok := byNode[n]
		if !ok || !(v.DemandVariability > 0) || v.LeadTimeDays == nil {
			j.excluded = append(j.excluded, u.Key())
			continue
		}
		u.Payload = analytics.SimulationInput{
			ProductID:         n.ProductID,
			LocationID:        n.LocationID,
			DemandVariability: v.DemandVariability,
			LeadTimeDays:      *v.LeadTimeDays,
		}
		units = append(units, u)
	}
	return units, nil
}

func (j *simulationJob) Process(ctx context.Context, unit pipeline.Unit) (pipeline.UnitResult, error) {
	in, ok := unit.Payload.(analytics.SimulationInput)
	if !ok {
		return pipeline.UnitResult{}, fmt.Errorf("unit %s has no simulation input", unit.Key())
	}
	opts := j.opts
	opts.Seed = analytics.UnitSeed(j.opts.Seed, unit.ProductID, unit.LocationID)

	res, err := j.svc.Simulate(ctx, in, opts)
	if err != nil {
		return pipeline.UnitResult{}, err
	}
	return pipeline.UnitResult{Status: domain.StatusSuccess, Value: res}, nil
}
