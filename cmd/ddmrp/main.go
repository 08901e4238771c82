package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/api"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/app"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/config"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/service"
	"github.com/dtwincode/dtwin-supply-optimizer-32/pkg/logger"
	"github.com/urfave/cli/v2"
)

type appKey struct{}

func newDriverFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "driver",
		Usage:   "Record store driver (postgres, pgx, sqlite or memory)",
		EnvVars: []string{"DB_DRIVER"},
	}
}

func initApp(c *cli.Context) error {
	cfg := config.Load()
	if d := c.String("driver"); d != "" {
		cfg.Database.Driver = d
	}
	logger.SetLevel(cfg.LogLevel)

	a, err := app.New(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("failed to open app: %w", err)
	}
	c.Context = context.WithValue(c.Context, appKey{}, a)
	return nil
}

func closeApp(c *cli.Context) error {
	if a, ok := c.Context.Value(appKey{}).(*app.App); ok && a != nil {
		return a.Close()
	}
	return nil
}

func appFrom(c *cli.Context) *app.App {
	return c.Context.Value(appKey{}).(*app.App)
}

// printJSON writes a job report to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	cliApp := &cli.App{
		Name:  "ddmrp",
		Usage: "Run the buffer engine batch jobs",
		Flags: []cli.Flag{
			newDriverFlag(),
		},
		Before: initApp,
		After:  closeApp,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serve the HTTP API until interrupted",
				Action: func(c *cli.Context) error {
					ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
					defer stop()
					return api.Serve(ctx, appFrom(c))
				},
			},
			{
				Name:  "seed",
				Usage: "Load CSV files named after their collection into the record store",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "data-dir",
						Usage:   "Directory containing <collection>.csv files",
						Value:   "./data/seeds",
						EnvVars: []string{"SEED_DATA_DIR"},
					},
					&cli.StringFlag{
						Name:  "delimiter",
						Usage: "CSV field delimiter",
						Value: ",",
					},
				},
				Action: runSeed,
			},
			{
				Name:  "distribution",
				Usage: "Fit demand distributions for every active demand node",
				Action: func(c *cli.Context) error {
					report, err := appFrom(c).Services.Distribution.RunBatch(c.Context)
					if err != nil {
						return err
					}
					return printJSON(report)
				},
			},
			{
				Name:  "simulate",
				Usage: "Run the safety stock Monte Carlo for every active demand node",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "trials", Usage: "Trials per node (0 uses the configured default)"},
					&cli.Uint64Flag{Name: "seed", Usage: "Random seed (0 uses the configured or a random seed)"},
					&cli.BoolFlag{Name: "persist", Usage: "Store retained samples", Value: true},
				},
				Action: func(c *cli.Context) error {
					report, err := appFrom(c).Services.Simulation.RunBatch(c.Context, service.SimulationOptions{
						Trials:  c.Int("trials"),
						Seed:    c.Uint64("seed"),
						Persist: c.Bool("persist"),
					})
					if err != nil {
						return err
					}
					return printJSON(report)
				},
			},
			{
				Name:  "bullwhip",
				Usage: "Analyze bullwhip amplification for every decoupling point",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "days", Usage: "Analysis window in days (0 uses the configured default)"},
				},
				Action: func(c *cli.Context) error {
					report, err := appFrom(c).Services.Bullwhip.AnalyzeBatch(c.Context, nil, c.Int("days"))
					if err != nil {
						return err
					}
					return printJSON(report)
				},
			},
			{
				Name:  "thresholds",
				Usage: "Retune the global thresholds from performance history",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "strategy", Usage: "linear or bayesian", Value: service.StrategyLinear},
					&cli.StringFlag{Name: "target", Usage: "Bayesian target (decoupling or demand_variability)"},
				},
				Action: runThresholds,
			},
			{
				Name:  "schedule",
				Usage: "Allocate open orders to daily production capacity",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "capacity", Usage: "Capacity per day for days without a dated entry"},
					&cli.StringSliceFlag{Name: "capacity-on", Usage: "Dated capacity as YYYY-MM-DD=quantity (repeatable)"},
					&cli.StringFlag{Name: "start", Usage: "First schedulable day (YYYY-MM-DD, defaults to today)"},
					&cli.IntFlag{Name: "horizon", Usage: "Days to schedule before leaving demand unscheduled (0 uses the default)"},
				},
				Action: runSchedule,
			},
			{
				Name:      "execute",
				Usage:     "Mark orders completed",
				ArgsUsage: "ORDER_ID...",
				Action:    runExecute,
			},
			{
				Name:  "alerts",
				Usage: "Raise alerts for every stored net flow position",
				Action: func(c *cli.Context) error {
					report, err := appFrom(c).Services.NetFlow.GenerateAlerts(c.Context)
					if err != nil {
						return err
					}
					return printJSON(report)
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("command failed")
	}
}

func runThresholds(c *cli.Context) error {
	thresholds := appFrom(c).Services.Thresholds

	var (
		upd service.ThresholdUpdate
		err error
	)
	switch c.String("strategy") {
	case service.StrategyLinear:
		upd, err = thresholds.RunLinear(c.Context)
	case service.StrategyBayesian:
		upd, err = thresholds.RunBayesian(c.Context, c.String("target"))
	default:
		return fmt.Errorf("unknown strategy %q", c.String("strategy"))
	}
	if err != nil {
		return err
	}
	return printJSON(upd)
}
