// Package repository defines the abstract record store the buffer engine
// persists through, plus the collections and conflict keys it uses.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Collections used by the engine.
const (
	CollectionItems              = "items"
	CollectionBuffers            = "buffers"
	CollectionNetFlow            = "net_flow"
	CollectionAlerts             = "alerts"
	CollectionDistribution       = "demand_distribution_profile"
	CollectionBullwhip           = "bullwhip_analysis"
	CollectionThresholdConfig    = "threshold_config"
	CollectionSales              = "historical_sales_data"
	CollectionOpenPOs            = "open_pos"
	CollectionPerformance        = "performance_tracking"
	CollectionActiveDemandNodes  = "active_demand_nodes"
	CollectionDecouplingPoints   = "decoupling_points"
	CollectionDemandVariability  = "inventory_demand_variability"
	CollectionSafetyStockSamples = "safety_stock_simulation"
	CollectionPipelineRuns       = "pipeline_runs"
	CollectionOrders             = "orders"
	CollectionCapacitySchedule   = "capacity_schedule"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("record version conflict")
	ErrMissingKey      = errors.New("record is missing a conflict key field")
)

var defaultConflictKeys = map[string][]string{
	CollectionItems:             {"item_id"},
	CollectionBuffers:           {"item_id"},
	CollectionNetFlow:           {"item_id"},
	CollectionDistribution:      {"product_id", "location_id"},
	CollectionBullwhip:          {"product_id", "location_id", "analysis_period_end"},
	CollectionThresholdConfig:   {"id"},
	CollectionPipelineRuns:      {"id"},
	CollectionDecouplingPoints:  {"product_id", "location_id"},
	CollectionActiveDemandNodes: {"product_id", "location_id"},
	CollectionDemandVariability: {"product_id", "location_id"},
	CollectionOrders:            {"order_id"},
	CollectionCapacitySchedule:  {"schedule_id", "line"},
}

// Record is a single schemaless document.
type Record map[string]interface{}

// RecordStore is the persistence boundary of the engine.
type RecordStore interface {
	Get(ctx context.Context, collection string, filter Filter) ([]Record, error)
	// Upsert writes records keyed by conflictKey, falling back to the
	// collection's default key when none is given.
	Upsert(ctx context.Context, collection string, records []Record, conflictKey ...string) error
	// Insert appends records; it never replaces an existing one.
	Insert(ctx context.Context, collection string, records []Record) error
	Delete(ctx context.Context, collection string, filter Filter) (int, error)
}

// VersionedStore supports optimistic read-modify-write on a single record.
type VersionedStore interface {
	RecordStore
	// CompareAndSwap replaces the record identified by conflictKey only if the
	// stored record's versionField equals expected. A missing record matches
	// expected == 0. It returns ErrVersionConflict otherwise.
	CompareAndSwap(ctx context.Context, collection string, record Record, versionField string, expected int64, conflictKey ...string) error
}

// ConflictKey returns the key fields for a collection.
func ConflictKey(collection string, override []string) ([]string, error) {
	if len(override) > 0 {
		return override, nil
	}
	if key, ok := defaultConflictKeys[collection]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("collection %s has no conflict key", collection)
}

// KeyOf builds the storage key of a record from its conflict key fields.
func KeyOf(rec Record, fields []string) (string, error) {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		v, ok := rec[f]
		if !ok || v == nil {
			return "", fmt.Errorf("%w: %s", ErrMissingKey, f)
		}
		parts = append(parts, stringValue(v))
	}
	return strings.Join(parts, "|"), nil
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// VersionOf reads an integer version field, treating a missing field as 0.
func VersionOf(rec Record, field string) int64 {
	if f, ok := toFloat(rec[field]); ok {
		return int64(f)
	}
	return 0
}
