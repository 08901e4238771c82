package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository/memory"
)

func TestReadRecords(t *testing.T) {
	input := "product_id, location_id ,sales_date,quantity_sold\n" +
		"P1,L1,2024-01-01,\"1,250.5\"\n" +
		"P1,L1,2024-01-02,\n"

	recs, err := readRecords(strings.NewReader(input), ',', []string{"quantity_sold"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0]["location_id"] != "L1" || recs[0]["quantity_sold"] != 1250.5 {
		t.Errorf("unexpected first record %v", recs[0])
	}
	if _, ok := recs[1]["quantity_sold"]; ok {
		t.Errorf("expected empty cell to be left out, got %v", recs[1])
	}
}

func TestReadRecordsRejectsBadNumber(t *testing.T) {
	input := "product_id;quantity_sold\nP1;abc\n"
	if _, err := readRecords(strings.NewReader(input), ';', []string{"quantity_sold"}); err == nil {
		t.Fatalf("expected error for non-numeric value")
	}
}

func TestSeedCollectionUpsertsKeyedCollections(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	path := filepath.Join(t.TempDir(), "nodes.csv")
	content := "product_id,location_id\nP1,L1\nP2,L1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	for i := 0; i < 2; i++ {
		n, err := seedCollection(ctx, store, repository.CollectionActiveDemandNodes, path, ',', nil)
		if err != nil || n != 2 {
			t.Fatalf("seed run %d: n=%d err=%v", i, n, err)
		}
	}

	recs, err := store.Get(ctx, repository.CollectionActiveDemandNodes, repository.Filter{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("expected re-seeding to replace records, got %d", len(recs))
	}
}
