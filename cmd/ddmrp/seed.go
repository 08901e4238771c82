package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
	"github.com/dtwincode/dtwin-supply-optimizer-32/pkg/logger"
	"github.com/urfave/cli/v2"
)

// seedCollections lists the collections loaded by the seed command, in load
// order, with the columns parsed as numbers. Every other column is kept as
// a string.
var seedCollections = []struct {
	name    string
	numeric []string
}{
	{repository.CollectionItems, []string{"supply_lead_time", "manufacturing_lead_time", "min_order_quantity"}},
	{repository.CollectionActiveDemandNodes, nil},
	{repository.CollectionDecouplingPoints, nil},
	{repository.CollectionDemandVariability, []string{"demand_variability", "lead_time_days"}},
	{repository.CollectionSales, []string{"quantity_sold"}},
	{repository.CollectionOpenPOs, []string{"ordered_qty"}},
	{repository.CollectionPerformance, []string{"stockout_count", "overstock_count", "service_level_achieved"}},
	{repository.CollectionOrders, []string{"quantity"}},
}

func runSeed(c *cli.Context) error {
	store := appFrom(c).Store
	dataDir := c.String("data-dir")

	delim := []rune(c.String("delimiter"))
	if len(delim) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", c.String("delimiter"))
	}

	log := logger.Component("seed")
	loaded := 0
	for _, sc := range seedCollections {
		path := filepath.Join(dataDir, sc.name+".csv")
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			log.Debug().Str("file", path).Msg("no seed file, skipping")
			continue
		}

		n, err := seedCollection(c.Context, store, sc.name, path, delim[0], sc.numeric)
		if err != nil {
			return fmt.Errorf("failed to seed %s: %w", sc.name, err)
		}
		log.Info().Str("collection", sc.name).Int("records", n).Msg("seeded collection")
		loaded++
	}

	if loaded == 0 {
		return fmt.Errorf("no seed files found in %s", dataDir)
	}
	return nil
}

func seedCollection(ctx context.Context, store repository.RecordStore, collection, path string, comma rune, numeric []string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	recs, err := readRecords(file, comma, numeric)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	// Keyed collections are upserted so a seed can be re-run.
	if _, err := repository.ConflictKey(collection, nil); err == nil {
		return len(recs), store.Upsert(ctx, collection, recs)
	}
	return len(recs), store.Insert(ctx, collection, recs)
}

// readRecords turns a CSV with a header row into records. Empty cells are
// left out of the record.
func readRecords(r io.Reader, comma rune, numeric []string) ([]repository.Record, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	isNumeric := make(map[string]bool, len(numeric))
	for _, col := range numeric {
		isNumeric[col] = true
	}

	var recs []repository.Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		rec := repository.Record{}
		for i, col := range header {
			value := strings.TrimSpace(row[i])
			if value == "" {
				continue
			}
			if !isNumeric[col] {
				rec[col] = value
				continue
			}
			num, err := parseNumber(value)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, col, err)
			}
			rec[col] = num
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// parseNumber accepts thousands separators, e.g. "1,250.5".
func parseNumber(value string) (float64, error) {
	cleaned := strings.ReplaceAll(value, ",", "")
	num, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %s: %w", value, err)
	}
	return num, nil
}
