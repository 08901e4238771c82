package pipeline

import (
	"context"
	"fmt"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// processUnits runs job.Process over units on a bounded pool. Results keep
// the order of units. A failing unit never stops the others.
func processUnits(ctx context.Context, job Job, units []Unit, workerCount int) []UnitResult {
	if workerCount < 1 {
		workerCount = 1
	}

	results := make([]UnitResult, len(units))
	g := new(errgroup.Group)
	g.SetLimit(workerCount)

	for i, unit := range units {
		g.Go(func() error {
			results[i] = processUnit(ctx, job, unit)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func processUnit(ctx context.Context, job Job, unit Unit) (res UnitResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("job", job.Name()).Str("unit", unit.Key()).Interface("panic", r).Msg("unit panicked")
			res = UnitResult{Unit: unit, Key: unit.Key(), Status: domain.StatusFailed, Error: fmt.Sprint(r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		return UnitResult{Unit: unit, Key: unit.Key(), Status: domain.StatusFailed, Error: err.Error()}
	}

	res, err := job.Process(ctx, unit)
	res.Unit = unit
	res.Key = unit.Key()
	if err != nil {
		log.Warn().Err(err).Str("job", job.Name()).Str("unit", res.Key).Msg("unit failed")
		res.Status = domain.StatusFailed
		res.Error = err.Error()
	}
	return res
}

// outcomeOf maps a unit status onto a counting bucket.
func outcomeOf(status string) string {
	switch status {
	case domain.StatusSuccess:
		return OutcomeSucceeded
	case domain.StatusFailed, "":
		return OutcomeFailed
	default:
		return OutcomeSkipped
	}
}
