// Package ddmrp holds the pure buffer engine rules: decoupled lead time,
// zone sizing, dynamic adjustment and net flow classification.
package ddmrp

import (
	"errors"
	"fmt"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/domain"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultVariabilityFactor = 1.0

	yellowToRed = 0.5
	greenToRed  = 2.0
)

var ErrInvalidInput = errors.New("invalid buffer input")

// DecoupledLeadTime is supply plus manufacturing lead time.
func DecoupledLeadTime(item domain.Item) float64 {
	return item.SupplyLeadTime + item.ManufacturingLeadTime
}

// AverageDailyDemand is the arithmetic mean of series. ok is false for an
// empty series.
func AverageDailyDemand(series []float64) (avg float64, ok bool) {
	if len(series) == 0 {
		return 0, false
	}
	return stat.Mean(series, nil), true
}

// BufferInput sizes one item's zones. A zero VariabilityFactor means the default.
type BufferInput struct {
	AverageDailyDemand float64 `json:"average_daily_demand"`
	DecoupledLeadTime  float64 `json:"decoupled_lead_time"`
	MinOrderQuantity   float64 `json:"min_order_quantity"`
	VariabilityFactor  float64 `json:"variability_factor"`
}

func (in BufferInput) Validate() error {
	switch {
	case in.AverageDailyDemand < 0:
		return fmt.Errorf("%w: average_daily_demand must be >= 0", ErrInvalidInput)
	case in.DecoupledLeadTime < 0:
		return fmt.Errorf("%w: decoupled_lead_time must be >= 0", ErrInvalidInput)
	case in.MinOrderQuantity < 0:
		return fmt.Errorf("%w: min_order_quantity must be >= 0", ErrInvalidInput)
	case in.VariabilityFactor < 0:
		return fmt.Errorf("%w: variability_factor must be > 0", ErrInvalidInput)
	}
	return nil
}

// CalculateZones sizes red as demand over the decoupled lead time, floored
// at the minimum order quantity. Yellow and green follow from red.
func CalculateZones(in BufferInput) domain.BufferZones {
	factor := in.VariabilityFactor
	if factor == 0 {
		factor = DefaultVariabilityFactor
	}
	redBase := in.AverageDailyDemand * in.DecoupledLeadTime * factor
	red := redBase
	if in.MinOrderQuantity > red {
		red = in.MinOrderQuantity
	}
	return domain.BufferZones{
		RedZone:    red,
		YellowZone: yellowToRed * red,
		GreenZone:  greenToRed * red,
	}
}

// ScaleZones multiplies every zone by factor. It does not re-derive yellow
// and green from red.
func ScaleZones(z domain.BufferZones, factor float64) domain.BufferZones {
	return domain.BufferZones{
		RedZone:    z.RedZone * factor,
		YellowZone: z.YellowZone * factor,
		GreenZone:  z.GreenZone * factor,
	}
}
