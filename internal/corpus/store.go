package corpus

import (
	"context"

	"github.com/routelab-ai/routelab/internal/model"
	"github.com/routelab-ai/routelab/internal/storage"
)

// StoreProvider serves the corpus from the test_cases table.
type StoreProvider struct {
	db *storage.DB
}

// NewStoreProvider wraps a database handle as a corpus Provider.
func NewStoreProvider(db *storage.DB) *StoreProvider {
	return &StoreProvider{db: db}
}

func (p *StoreProvider) Cases(ctx context.Context) ([]model.TestCase, error) {
	return p.db.ListTestCases(ctx)
}

func (p *StoreProvider) Info(ctx context.Context) (model.CorpusInfo, error) {
	cases, err := p.db.ListTestCases(ctx)
	if err != nil {
		return model.CorpusInfo{}, err
	}
	return Info(cases), nil
}
