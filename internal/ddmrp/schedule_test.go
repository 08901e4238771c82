package ddmrp

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestScheduleCapacity(t *testing.T) {
	start := time.Date(2024, 7, 1, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name        string
		demand      []Demand
		plan        CapacityPlan
		want        []Allocation
		unscheduled []Demand
	}{
		{
			name:   "fixed capacity shared across orders",
			demand: []Demand{{OrderID: "PO-1", ItemID: "A", Quantity: 15}, {OrderID: "PO-2", ItemID: "B", Quantity: 8}},
			plan:   CapacityPlan{Daily: 10},
			want: []Allocation{
				{OrderID: "PO-1", ItemID: "A", StartDate: "2024-07-01", Quantity: 10},
				{OrderID: "PO-1", ItemID: "A", StartDate: "2024-07-02", Quantity: 5},
				{OrderID: "PO-2", ItemID: "B", StartDate: "2024-07-02", Quantity: 5},
				{OrderID: "PO-2", ItemID: "B", StartDate: "2024-07-03", Quantity: 3},
			},
		},
		{
			name:   "dated capacity overrides the default",
			demand: []Demand{{ItemID: "A", Quantity: 12}},
			plan:   CapacityPlan{Daily: 6, ByDate: map[string]float64{"2024-07-01": 0, "2024-07-02": 4}},
			want: []Allocation{
				{ItemID: "A", StartDate: "2024-07-02", Quantity: 4},
				{ItemID: "A", StartDate: "2024-07-03", Quantity: 6},
				{ItemID: "A", StartDate: "2024-07-04", Quantity: 2},
			},
		},
		{
			name:   "dated capacity only leaves the rest unscheduled",
			demand: []Demand{{ItemID: "A", Quantity: 8}, {ItemID: "B", Quantity: 2}},
			plan:   CapacityPlan{ByDate: map[string]float64{"2024-07-02": 5}, HorizonDays: 3},
			want: []Allocation{
				{ItemID: "A", StartDate: "2024-07-02", Quantity: 5},
			},
			unscheduled: []Demand{{ItemID: "A", Quantity: 3}, {ItemID: "B", Quantity: 2}},
		},
		{
			name:   "zero quantity is skipped",
			demand: []Demand{{ItemID: "A", Quantity: 0}, {ItemID: "B", Quantity: 4}},
			plan:   CapacityPlan{Daily: 10},
			want:   []Allocation{{ItemID: "B", StartDate: "2024-07-01", Quantity: 4}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ScheduleCapacity(tt.demand, start, tt.plan)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(got.Allocations, tt.want) {
				t.Errorf("allocations:\n got %+v\nwant %+v", got.Allocations, tt.want)
			}
			if tt.unscheduled == nil {
				tt.unscheduled = []Demand{}
			}
			if !slices.Equal(got.Unscheduled, tt.unscheduled) {
				t.Errorf("unscheduled: got %+v, want %+v", got.Unscheduled, tt.unscheduled)
			}
		})
	}
}

func TestScheduleCapacityNeverExceedsDay(t *testing.T) {
	demand := []Demand{{ItemID: "A", Quantity: 7}, {ItemID: "B", Quantity: 7}, {ItemID: "C", Quantity: 7}}
	plan := CapacityPlan{Daily: 5, ByDate: map[string]float64{"2024-07-02": 2}}

	got, err := ScheduleCapacity(demand, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	used := map[string]float64{}
	var total float64
	for _, a := range got.Allocations {
		used[a.StartDate] += a.Quantity
		total += a.Quantity
	}
	for day, q := range used {
		if q > plan.capacityOn(day) {
			t.Errorf("%s: allocated %v over capacity %v", day, q, plan.capacityOn(day))
		}
	}
	if total != 21 || len(got.Unscheduled) != 0 {
		t.Errorf("expected all 21 units scheduled, got %v (unscheduled %+v)", total, got.Unscheduled)
	}
}

func TestScheduleCapacityRejectsInvalidInput(t *testing.T) {
	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		demand []Demand
		plan   CapacityPlan
	}{
		{"no capacity", []Demand{{ItemID: "A", Quantity: 1}}, CapacityPlan{}},
		{"only zero dated capacity", []Demand{{ItemID: "A", Quantity: 1}}, CapacityPlan{ByDate: map[string]float64{"2024-07-01": 0}}},
		{"negative daily", []Demand{{ItemID: "A", Quantity: 1}}, CapacityPlan{Daily: -1}},
		{"bad date", []Demand{{ItemID: "A", Quantity: 1}}, CapacityPlan{ByDate: map[string]float64{"07/01/2024": 3}}},
		{"negative dated capacity", []Demand{{ItemID: "A", Quantity: 1}}, CapacityPlan{Daily: 1, ByDate: map[string]float64{"2024-07-01": -3}}},
		{"negative horizon", []Demand{{ItemID: "A", Quantity: 1}}, CapacityPlan{Daily: 1, HorizonDays: -1}},
		{"missing item", []Demand{{Quantity: 1}}, CapacityPlan{Daily: 1}},
		{"negative quantity", []Demand{{ItemID: "A", Quantity: -2}}, CapacityPlan{Daily: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ScheduleCapacity(tt.demand, start, tt.plan); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
