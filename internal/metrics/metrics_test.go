package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.ObserveEvaluation("red")
	r.ObserveAlert("critical")
	r.ObservePersistenceFailure("buffers")
	r.ObserveUnit("distribution", "succeeded")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 from nil recorder, got %d", rec.Code)
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	r := NewRecorder()
	r.ObserveEvaluation("red")
	r.ObserveEvaluation("red")
	r.ObserveUnit("bullwhip", "failed")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`ddmrp_netflow_evaluations_total{color="red"} 2`,
		`ddmrp_batch_units_total{job="bullwhip",outcome="failed"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}
