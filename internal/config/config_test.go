package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	if cfg.Database.Driver != "postgres" {
		t.Fatalf("expected postgres driver, got %q", cfg.Database.Driver)
	}
	if cfg.Engine.AnalysisDays != 90 {
		t.Errorf("expected 90 analysis days, got %d", cfg.Engine.AnalysisDays)
	}
	if cfg.Engine.SimulationTrials != 1000 {
		t.Errorf("expected 1000 trials, got %d", cfg.Engine.SimulationTrials)
	}
	if cfg.Engine.MaxSimulationTrials != 100000 {
		t.Errorf("expected a 100000 trial cap, got %d", cfg.Engine.MaxSimulationTrials)
	}
	if cfg.Store.RetryBackoff != 200*time.Millisecond {
		t.Errorf("expected 200ms backoff, got %v", cfg.Store.RetryBackoff)
	}
	if cfg.Export.Driver != "none" {
		t.Errorf("expected export disabled by default, got %q", cfg.Export.Driver)
	}
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("DB_DRIVER", "sqlite")
	v.Set("ENGINE_WORKER_COUNT", 8)
	v.Set("STORE_RETRY_BACKOFF", "1s")
	cfg := fromViper(v)

	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("expected sqlite driver, got %q", cfg.Database.Driver)
	}
	if cfg.Engine.WorkerCount != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Engine.WorkerCount)
	}
	if cfg.Store.RetryBackoff != time.Second {
		t.Errorf("expected 1s backoff, got %v", cfg.Store.RetryBackoff)
	}
}
