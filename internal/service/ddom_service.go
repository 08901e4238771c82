package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/ddmrp"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/domain"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/pipeline"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Order execution outcomes.
const (
	ExecutionCompleted = domain.OrderCompleted
	ExecutionNotFound  = "not_found"
	ExecutionFailed    = "failed"
)

// CapacityScheduleRequest schedules Demand, or every open order when Demand
// is empty, against Plan from StartDate (today when empty).
type CapacityScheduleRequest struct {
	Demand    []ddmrp.Demand     `json:"demand"`
	Plan      ddmrp.CapacityPlan `json:"plan"`
	StartDate string             `json:"start_date"`
}

type CapacitySchedule struct {
	ScheduleID     string              `json:"schedule_id"`
	StartDate      string              `json:"start_date"`
	TotalScheduled float64             `json:"total_scheduled"`
	Allocations    []ddmrp.Allocation  `json:"allocations"`
	Unscheduled    []ddmrp.Demand      `json:"unscheduled"`
	Write          *domain.WriteResult `json:"write,omitempty"`
}

// OrderRef names an order by order_id, falling back to item_id.
type OrderRef struct {
	OrderID string `json:"order_id"`
	ItemID  string `json:"item_id"`
}

func (r OrderRef) identifier() string {
	if r.OrderID != "" {
		return r.OrderID
	}
	return r.ItemID
}

type ExecutionResult struct {
	OrderID string              `json:"order_id"`
	Status  string              `json:"status"`
	Write   *domain.WriteResult `json:"write,omitempty"`
}

type ExecutionReport struct {
	Run       pipeline.Run      `json:"run"`
	Completed int               `json:"completed"`
	NotFound  int               `json:"not_found"`
	Failed    int               `json:"failed"`
	Results   []ExecutionResult `json:"results"`
	Failures  map[string]string `json:"failures,omitempty"`
}

// DDOMService allocates orders to production capacity and records their
// execution.
type DDOMService struct {
	store        repository.RecordStore
	persist      *Persister
	orchestrator *pipeline.Orchestrator
	now          func() time.Time
}

func NewDDOMService(store repository.RecordStore, persist *Persister, orchestrator *pipeline.Orchestrator) *DDOMService {
	return &DDOMService{
		store:        store,
		persist:      persist,
		orchestrator: orchestrator,
		now:          time.Now,
	}
}

// ScheduleCapacity allocates demand to days and saves the allocations as a
// new schedule in capacity_schedule.
func (s *DDOMService) ScheduleCapacity(ctx context.Context, req CapacityScheduleRequest) (CapacitySchedule, error) {
	start := s.now().UTC()
	if req.StartDate != "" {
		var err error
		if start, err = time.Parse(dateLayout, req.StartDate); err != nil {
			return CapacitySchedule{}, fmt.Errorf("%w: start_date %q is not YYYY-MM-DD", ddmrp.ErrInvalidInput, req.StartDate)
		}
	}

	demand := req.Demand
	if len(demand) == 0 {
		var err error
		if demand, err = s.openDemand(ctx); err != nil {
			return CapacitySchedule{}, err
		}
	}

	sched, err := ddmrp.ScheduleCapacity(demand, start, req.Plan)
	if err != nil {
		return CapacitySchedule{}, err
	}

	out := CapacitySchedule{
		ScheduleID:  uuid.NewString(),
		StartDate:   start.Format(dateLayout),
		Allocations: sched.Allocations,
		Unscheduled: sched.Unscheduled,
	}
	for _, a := range sched.Allocations {
		out.TotalScheduled += a.Quantity
	}
	if len(sched.Unscheduled) > 0 {
		log.Warn().Str("schedule_id", out.ScheduleID).Int("orders", len(sched.Unscheduled)).Msg("demand left unscheduled within the horizon")
	}
	if len(sched.Allocations) == 0 {
		return out, nil
	}

	created := s.now().UTC()
	recs := make([]repository.Record, 0, len(sched.Allocations))
	for i, a := range sched.Allocations {
		rec, err := repository.Encode(domain.CapacityScheduleEntry{
			ScheduleID: out.ScheduleID,
			Line:       i + 1,
			OrderID:    a.OrderID,
			ItemID:     a.ItemID,
			StartDate:  a.StartDate,
			Quantity:   a.Quantity,
			CreatedAt:  created,
		})
		if err != nil {
			return out, err
		}
		recs = append(recs, rec)
	}
	write := s.persist.Upsert(ctx, repository.CollectionCapacitySchedule, recs)
	out.Write = &write
	return out, nil
}

// openDemand lists open orders, oldest order date first.
func (s *DDOMService) openDemand(ctx context.Context) ([]ddmrp.Demand, error) {
	recs, err := s.store.Get(ctx, repository.CollectionOrders, repository.Filter{})
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	orders, err := repository.DecodeAll[domain.Order](recs)
	if err != nil {
		return nil, err
	}
	orders = slices.DeleteFunc(orders, func(o domain.Order) bool {
		return o.Status != "" && o.Status != domain.OrderOpen
	})
	slices.SortStableFunc(orders, func(a, b domain.Order) int {
		return cmp.Or(cmp.Compare(a.OrderDate, b.OrderDate), cmp.Compare(a.OrderID, b.OrderID))
	})

	demand := make([]ddmrp.Demand, len(orders))
	for i, o := range orders {
		demand[i] = ddmrp.Demand{OrderID: o.OrderID, ItemID: o.ItemID, Quantity: o.Quantity}
	}
	return demand, nil
}

// Complete marks one order completed.
func (s *DDOMService) Complete(ctx context.Context, orderID string) (ExecutionResult, error) {
	res := ExecutionResult{OrderID: orderID}
	recs, err := s.store.Get(ctx, repository.CollectionOrders, repository.Eq("order_id", orderID).WithLimit(1))
	if err != nil {
		return res, fmt.Errorf("load order %s: %w", orderID, err)
	}
	if len(recs) == 0 {
		res.Status = ExecutionNotFound
		return res, nil
	}

	rec := recs[0].Clone()
	rec["status"] = domain.OrderCompleted
	rec["completed_at"] = s.now().UTC().Format(time.RFC3339)
	write := s.persist.Upsert(ctx, repository.CollectionOrders, []repository.Record{rec})
	res.Write = &write
	res.Status = ExecutionCompleted
	if !write.Saved {
		res.Status = ExecutionFailed
	}
	return res, nil
}

// Execute completes every referenced order as one batch run. References
// without an identifier are ignored; repeated identifiers run once.
func (s *DDOMService) Execute(ctx context.Context, refs []OrderRef) (ExecutionReport, error) {
	var ids []string
	for _, r := range refs {
		if id := r.identifier(); id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return ExecutionReport{}, fmt.Errorf("%w: no order identifiers given", ddmrp.ErrInvalidInput)
	}

	report, err := s.orchestrator.Run(ctx, &executionJob{svc: s, ids: ids})
	if err != nil {
		return ExecutionReport{Run: report.Run}, err
	}

	out := ExecutionReport{Run: report.Run, Results: []ExecutionResult{}}
	for _, res := range report.Results {
		if res.Error != "" {
			if out.Failures == nil {
				out.Failures = map[string]string{}
			}
			out.Failures[res.Key] = res.Error
			out.Failed++
			continue
		}
		exec, ok := res.Value.(ExecutionResult)
		if !ok {
			continue
		}
		out.Results = append(out.Results, exec)
		switch exec.Status {
		case ExecutionCompleted:
			out.Completed++
		case ExecutionNotFound:
			out.NotFound++
		default:
			out.Failed++
		}
	}
	return out, nil
}

type executionJob struct {
	svc *DDOMService
	ids []string
}

func (j *executionJob) Name() string { return "ddom_execution" }

func (j *executionJob) Units(ctx context.Context) ([]pipeline.Unit, error) {
	units := make([]pipeline.Unit, len(j.ids))
	for i, id := range j.ids {
		units[i] = pipeline.Unit{ProductID: id}
	}
	return units, nil
}

func (j *executionJob) Process(ctx context.Context, unit pipeline.Unit) (pipeline.UnitResult, error) {
	res, err := j.svc.Complete(ctx, unit.ProductID)
	if err != nil {
		return pipeline.UnitResult{}, err
	}
	status := domain.StatusSuccess
	switch res.Status {
	case ExecutionNotFound:
		status = domain.StatusSkipped
	case ExecutionFailed:
		status = domain.StatusFailed
	}
	return pipeline.UnitResult{Status: status, Value: res}, nil
}
