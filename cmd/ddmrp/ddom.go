package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/ddmrp"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/service"
	"github.com/urfave/cli/v2"
)

func runSchedule(c *cli.Context) error {
	byDate, err := parseDatedCapacity(c.StringSlice("capacity-on"))
	if err != nil {
		return err
	}
	res, err := appFrom(c).Services.DDOM.ScheduleCapacity(c.Context, service.CapacityScheduleRequest{
		Plan: ddmrp.CapacityPlan{
			Daily:       c.Float64("capacity"),
			ByDate:      byDate,
			HorizonDays: c.Int("horizon"),
		},
		StartDate: c.String("start"),
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runExecute(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one order id is required")
	}
	refs := make([]service.OrderRef, 0, c.NArg())
	for _, id := range c.Args().Slice() {
		refs = append(refs, service.OrderRef{OrderID: id})
	}
	report, err := appFrom(c).Services.DDOM.Execute(c.Context, refs)
	if err != nil {
		return err
	}
	return printJSON(report)
}

// parseDatedCapacity reads DATE=QUANTITY pairs.
func parseDatedCapacity(values []string) (map[string]float64, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(values))
	for _, v := range values {
		day, qty, ok := strings.Cut(v, "=")
		if !ok {
			return nil, fmt.Errorf("capacity %q must look like YYYY-MM-DD=quantity", v)
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(qty), 64)
		if err != nil {
			return nil, fmt.Errorf("capacity %q: %w", v, err)
		}
		out[strings.TrimSpace(day)] = n
	}
	return out, nil
}
