package service

import (
	"context"
	"fmt"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/domain"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/pipeline"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
)

// loadNodes reads the product-location pairs listed in a collection.
func loadNodes(ctx context.Context, store repository.RecordStore, collection string) ([]domain.DemandNode, error) {
	recs, err := store.Get(ctx, collection, repository.Filter{})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", collection, err)
	}
	return repository.DecodeAll[domain.DemandNode](recs)
}

func nodeUnits(nodes []domain.DemandNode) []pipeline.Unit {
	units := make([]pipeline.Unit, len(nodes))
	for i, n := range nodes {
		units[i] = pipeline.Unit{ProductID: n.ProductID, LocationID: n.LocationID}
	}
	return units
}
