package application

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"treesync/pkg/domain/tree"
)

// FetchService pulls the flat hierarchies of all configured source
// instances. Fetches run concurrently; they are read-only and share no
// state, so results are merged only after every fetch has finished.
type FetchService struct {
	sources []Source
	logger  *slog.Logger
}

// NewFetchService creates a FetchService over the given sources.
func NewFetchService(sources []Source, logger *slog.Logger) *FetchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FetchService{sources: sources, logger: logger}
}

// FetchAll fetches every instance and merges the batches in configuration
// order. Any single failure fails the whole fetch.
func (s *FetchService) FetchAll(ctx context.Context) ([]tree.SourceRecord, error) {
	results := make([][]tree.SourceRecord, len(s.sources))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, src := range s.sources {
		eg.Go(func() error {
			s.logger.Info("fetching source", "instance", src.Name())
			records, err := src.Fetch(egCtx)
			if err != nil {
				return fmt.Errorf("%w: instance %s: %v", ErrSourceFetch, src.Name(), err)
			}
			s.logger.Info("fetched source", "instance", src.Name(), "records", len(records))
			results[i] = records
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	merged := make([]tree.SourceRecord, 0)
	for _, batch := range results {
		merged = append(merged, batch...)
	}
	return merged, nil
}
