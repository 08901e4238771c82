package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/cache"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/ddmrp"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/domain"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
	"github.com/rs/zerolog/log"
)

// LeadTimeResult is a decoupled lead time lookup. A nil DecoupledLeadTime
// means the item's master data is missing, not a zero lead time.
type LeadTimeResult struct {
	ItemID             string   `json:"item_id"`
	DecoupledLeadTime  *float64 `json:"decoupled_lead_time"`
	AverageDailyDemand *float64 `json:"avg_daily_demand,omitempty"`
}

// BufferResult is a computed profile and whether it reached the store.
type BufferResult struct {
	Profile domain.BufferProfile `json:"profile"`
	Write   domain.WriteResult   `json:"write"`
}

type BufferService struct {
	store   repository.RecordStore
	persist *Persister
	cache   cache.BufferCache
	now     func() time.Time
}

func NewBufferService(store repository.RecordStore, persist *Persister, cacheImpl cache.BufferCache) *BufferService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopBufferCache()
	}
	return &BufferService{store: store, persist: persist, cache: cacheImpl, now: time.Now}
}

// ResolveLeadTime computes an item's decoupled lead time and, when a demand
// series is given, its average daily demand. Lookup failures resolve to a
// nil lead time.
func (s *BufferService) ResolveLeadTime(ctx context.Context, itemID string, demand []float64) LeadTimeResult {
	res := LeadTimeResult{ItemID: itemID}
	if avg, ok := ddmrp.AverageDailyDemand(demand); ok {
		res.AverageDailyDemand = &avg
	}

	item, err := s.item(ctx, itemID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Warn().Err(err).Str("item_id", itemID).Msg("lead time: item lookup failed")
		}
		return res
	}
	dlt := ddmrp.DecoupledLeadTime(*item)
	res.DecoupledLeadTime = &dlt
	return res
}

func (s *BufferService) item(ctx context.Context, itemID string) (*domain.Item, error) {
	recs, err := s.store.Get(ctx, repository.CollectionItems, repository.Eq("item_id", itemID).WithLimit(1))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, repository.ErrNotFound
	}
	var item domain.Item
	if err := repository.Decode(recs[0], &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// CalculateBuffer sizes and saves an item's zones. Only invalid input is an
// error; a failed save is reported in the result.
func (s *BufferService) CalculateBuffer(ctx context.Context, itemID string, in ddmrp.BufferInput) (BufferResult, error) {
	if itemID == "" {
		return BufferResult{}, fmt.Errorf("%w: item_id is required", ddmrp.ErrInvalidInput)
	}
	if err := in.Validate(); err != nil {
		return BufferResult{}, err
	}

	profile := domain.BufferProfile{
		ItemID:      itemID,
		BufferZones: ddmrp.CalculateZones(in),
		UpdatedAt:   s.now().UTC(),
	}
	return BufferResult{Profile: profile, Write: s.save(ctx, profile)}, nil
}

// AdjustBuffer rescales the stored zones of an item. found is false when the
// item has no buffer profile.
func (s *BufferService) AdjustBuffer(ctx context.Context, itemID string, factor float64) (res BufferResult, found bool, err error) {
	if !(factor > 0) {
		return BufferResult{}, false, fmt.Errorf("%w: adjustment_factor must be > 0", ddmrp.ErrInvalidInput)
	}

	current, err := s.storedBuffer(ctx, itemID)
	if errors.Is(err, repository.ErrNotFound) {
		return BufferResult{}, false, nil
	}
	if err != nil {
		return BufferResult{}, false, err
	}

	profile := domain.BufferProfile{
		ItemID:      itemID,
		BufferZones: ddmrp.ScaleZones(current.BufferZones, factor),
		UpdatedAt:   s.now().UTC(),
	}
	return BufferResult{Profile: profile, Write: s.save(ctx, profile)}, true, nil
}

// GetBuffer returns an item's profile, reading through the cache.
func (s *BufferService) GetBuffer(ctx context.Context, itemID string) (*domain.BufferProfile, error) {
	if profile, ok, err := s.cache.GetBuffer(ctx, itemID); err == nil && ok {
		return profile, nil
	} else if err != nil {
		log.Warn().Err(err).Str("item_id", itemID).Msg("buffer: cache get failed")
	}

	profile, err := s.storedBuffer(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetBuffer(ctx, *profile); err != nil {
		log.Warn().Err(err).Str("item_id", itemID).Msg("buffer: cache set failed")
	}
	return profile, nil
}

func (s *BufferService) storedBuffer(ctx context.Context, itemID string) (*domain.BufferProfile, error) {
	recs, err := s.store.Get(ctx, repository.CollectionBuffers, repository.Eq("item_id", itemID).WithLimit(1))
	if err != nil {
		return nil, fmt.Errorf("get buffer %s: %w", itemID, err)
	}
	if len(recs) == 0 {
		return nil, repository.ErrNotFound
	}
	var profile domain.BufferProfile
	if err := repository.Decode(recs[0], &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// save upserts the profile and drops the cached copy so the next read sees
// whatever the store holds.
func (s *BufferService) save(ctx context.Context, profile domain.BufferProfile) domain.WriteResult {
	rec, err := repository.Encode(profile)
	if err != nil {
		return domain.WriteResult{Reason: err.Error()}
	}
	res := s.persist.Upsert(ctx, repository.CollectionBuffers, []repository.Record{rec})
	if err := s.cache.InvalidateBuffer(ctx, profile.ItemID); err != nil {
		log.Warn().Err(err).Str("item_id", profile.ItemID).Msg("buffer: cache invalidate failed")
	}
	return res
}
