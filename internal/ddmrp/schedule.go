package ddmrp

import (
	"fmt"
	"time"
)

const (
	scheduleDateLayout = "2006-01-02"

	DefaultHorizonDays = 365
)

// Demand is an order quantity waiting for capacity.
type Demand struct {
	OrderID  string  `json:"order_id,omitempty"`
	ItemID   string  `json:"item_id"`
	Quantity float64 `json:"quantity"`
}

// CapacityPlan gives the capacity of each day. ByDate overrides Daily for
// the listed YYYY-MM-DD dates; Daily applies to every other day and may be
// zero when only the listed dates have capacity.
type CapacityPlan struct {
	Daily       float64            `json:"capacity_per_day"`
	ByDate      map[string]float64 `json:"capacity_by_date,omitempty"`
	HorizonDays int                `json:"horizon_days,omitempty"`
}

// Allocation is the part of one order placed on one day.
type Allocation struct {
	OrderID   string  `json:"order_id,omitempty"`
	ItemID    string  `json:"item_id"`
	StartDate string  `json:"start_date"`
	Quantity  float64 `json:"quantity"`
}

// Schedule is the outcome of ScheduleCapacity. Unscheduled holds what did
// not fit inside the horizon.
type Schedule struct {
	Allocations []Allocation `json:"allocations"`
	Unscheduled []Demand     `json:"unscheduled"`
}

func (p CapacityPlan) validate() error {
	if p.Daily < 0 {
		return fmt.Errorf("%w: capacity_per_day must be >= 0", ErrInvalidInput)
	}
	if p.HorizonDays < 0 {
		return fmt.Errorf("%w: horizon_days must be >= 0", ErrInvalidInput)
	}
	positive := p.Daily > 0
	for day, c := range p.ByDate {
		if _, err := time.Parse(scheduleDateLayout, day); err != nil {
			return fmt.Errorf("%w: capacity date %q is not YYYY-MM-DD", ErrInvalidInput, day)
		}
		if c < 0 {
			return fmt.Errorf("%w: capacity on %s must be >= 0", ErrInvalidInput, day)
		}
		positive = positive || c > 0
	}
	if !positive {
		return fmt.Errorf("%w: no day has capacity", ErrInvalidInput)
	}
	return nil
}

func (p CapacityPlan) capacityOn(day string) float64 {
	if c, ok := p.ByDate[day]; ok {
		return c
	}
	return p.Daily
}

// ScheduleCapacity places demand in order onto days starting at start.
// Orders are served first come first served: an order only uses capacity
// left over by the orders before it, and splits across days when it does
// not fit in one. Zero quantities are skipped.
func ScheduleCapacity(demand []Demand, start time.Time, plan CapacityPlan) (Schedule, error) {
	if err := plan.validate(); err != nil {
		return Schedule{}, err
	}
	for _, d := range demand {
		if d.ItemID == "" {
			return Schedule{}, fmt.Errorf("%w: demand is missing item_id", ErrInvalidInput)
		}
		if d.Quantity < 0 {
			return Schedule{}, fmt.Errorf("%w: quantity for %s must be >= 0", ErrInvalidInput, d.ItemID)
		}
	}

	horizon := plan.HorizonDays
	if horizon == 0 {
		horizon = DefaultHorizonDays
	}
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end := day.AddDate(0, 0, horizon)
	remaining := map[string]float64{}

	out := Schedule{Allocations: []Allocation{}, Unscheduled: []Demand{}}
	for _, d := range demand {
		qty := d.Quantity
		for qty > 0 && day.Before(end) {
			key := day.Format(scheduleDateLayout)
			left, seen := remaining[key]
			if !seen {
				left = plan.capacityOn(key)
			}
			if left <= 0 {
				day = day.AddDate(0, 0, 1)
				continue
			}
			alloc := min(qty, left)
			out.Allocations = append(out.Allocations, Allocation{
				OrderID:   d.OrderID,
				ItemID:    d.ItemID,
				StartDate: key,
				Quantity:  alloc,
			})
			qty -= alloc
			remaining[key] = left - alloc
		}
		if qty > 0 {
			rest := d
			rest.Quantity = qty
			out.Unscheduled = append(out.Unscheduled, rest)
		}
	}
	return out, nil
}
