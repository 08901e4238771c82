package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetupStructuredComponent(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, true)
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	l := Component("buffer_engine")
	l.Info().Str("item_id", "SKU-1").Msg("calculated")

	var event map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("expected one JSON event, got %q: %v", buf.String(), err)
	}
	if event["component"] != "buffer_engine" {
		t.Errorf("expected component field, got %v", event["component"])
	}
	if event["item_id"] != "SKU-1" {
		t.Errorf("expected item_id field, got %v", event["item_id"])
	}
}

func TestSetLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, true)
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	SetLevel("not-a-level")
	if Log.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level, got %v", Log.GetLevel())
	}

	buf.Reset()
	Log.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected debug to be filtered, got %q", buf.String())
	}
}
