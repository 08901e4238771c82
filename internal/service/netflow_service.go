package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/ddmrp"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/domain"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/metrics"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// NetFlowRequest evaluates one item. Buffers is optional; when nil the
// item's stored profile is used.
type NetFlowRequest struct {
	ddmrp.NetFlowInput
	Buffers *domain.BufferZones `json:"buffers,omitempty"`
}

type NetFlowResult struct {
	Position    domain.NetFlowPosition `json:"position"`
	TotalBuffer *float64               `json:"total_buffer"`
	Write       domain.WriteResult     `json:"write"`
}

// AlertReport summarizes one alert scan.
type AlertReport struct {
	Scanned   int                `json:"scanned"`
	Generated int                `json:"generated"`
	Alerts    []domain.Alert     `json:"alerts"`
	Write     domain.WriteResult `json:"write"`
}

type NetFlowService struct {
	store   repository.RecordStore
	persist *Persister
	buffers *BufferService
	metrics *metrics.Recorder
	now     func() time.Time
}

func NewNetFlowService(store repository.RecordStore, persist *Persister, buffers *BufferService, recorder *metrics.Recorder) *NetFlowService {
	return &NetFlowService{
		store:   store,
		persist: persist,
		buffers: buffers,
		metrics: recorder,
		now:     time.Now,
	}
}

// Evaluate classifies an item's net flow and saves the position. A buffer
// profile that cannot be read leaves the color unknown.
func (s *NetFlowService) Evaluate(ctx context.Context, req NetFlowRequest) (NetFlowResult, error) {
	if req.ItemID == "" {
		return NetFlowResult{}, fmt.Errorf("%w: item_id is required", ddmrp.ErrInvalidInput)
	}

	zones := req.Buffers
	if zones == nil {
		profile, err := s.buffers.GetBuffer(ctx, req.ItemID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			// an unreadable profile is treated as no buffer
			log.Warn().Err(err).Str("item_id", req.ItemID).Msg("buffer profile unavailable, classifying as unknown")
		default:
			zones = &profile.BufferZones
		}
	}

	netFlow := req.NetFlow()
	ratio, color := ddmrp.Classify(netFlow, zones)
	res := NetFlowResult{
		Position: domain.NetFlowPosition{
			ItemID:      req.ItemID,
			NetFlow:     netFlow,
			Ratio:       ratio,
			Color:       color,
			EvaluatedAt: s.now().UTC(),
		},
	}
	if zones != nil {
		total := zones.Total()
		res.TotalBuffer = &total
	}
	s.metrics.ObserveEvaluation(string(color))

	rec, err := repository.Encode(res.Position)
	if err != nil {
		return NetFlowResult{}, err
	}
	res.Write = s.persist.Upsert(ctx, repository.CollectionNetFlow, []repository.Record{rec})
	return res, nil
}

// GenerateAlerts scans the stored positions and inserts one alert per red or
// yellow item. Alerts are never deduplicated.
func (s *NetFlowService) GenerateAlerts(ctx context.Context) (AlertReport, error) {
	recs, err := s.store.Get(ctx, repository.CollectionNetFlow, repository.Filter{})
	if err != nil {
		return AlertReport{}, fmt.Errorf("scan net flow: %w", err)
	}

	report := AlertReport{Scanned: len(recs), Alerts: []domain.Alert{}}
	now := s.now().UTC()
	for _, rec := range recs {
		itemID, _ := rec["item_id"].(string)
		label, _ := rec["color"].(string)
		color, ok := domain.ParseColor(label)
		if itemID == "" || !ok {
			continue
		}
		alert, ok := ddmrp.AlertFor(domain.NetFlowPosition{ItemID: itemID, Color: color})
		if !ok {
			continue
		}
		alert.ID = uuid.NewString()
		alert.CreatedAt = now
		report.Alerts = append(report.Alerts, alert)
	}
	report.Generated = len(report.Alerts)
	if report.Generated == 0 {
		report.Write = domain.WriteResult{Saved: true}
		return report, nil
	}

	out, err := repository.EncodeAll(report.Alerts)
	if err != nil {
		return AlertReport{}, err
	}
	report.Write = s.persist.Insert(ctx, repository.CollectionAlerts, out)
	for _, a := range report.Alerts {
		s.metrics.ObserveAlert(string(a.AlertType))
	}
	log.Info().Int("scanned", report.Scanned).Int("generated", report.Generated).Msg("alerts generated")
	return report, nil
}
