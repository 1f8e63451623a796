package ops

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/klistr-labs/fedgatewayd/internal/model"
)

// BatchError pairs a batch input's index with its failure message, per
// §4.8 batch-fetch's {ok[], err[]} result shape.
type BatchError struct {
	Index int
	Err   string
}

// BatchResult holds per-item outcomes from a fan-out operation — items that
// fail are isolated into Errs and never abort their siblings.
type BatchResult[T any] struct {
	OK   []T
	Errs []BatchError
}

// BatchFetchActors resolves each identifier concurrently, capped at
// o.BatchConcurrency (default 5), isolating per-item failures instead of
// aborting the batch. Grounded on bsky's poller fan-out, replacing its
// hand-rolled `sem := make(chan struct{}, N)` worker-pool with
// golang.org/x/sync/errgroup's SetLimit, per SPEC_FULL.md's domain stack
// note. §4.8 batch-fetch. Rejects batches over o.MaxBatchSize (default 20)
// with InvalidInput before any network call, per §8.
func (o *Operations) BatchFetchActors(ctx context.Context, caller string, identifiers []string) (BatchResult[*model.Actor], error) {
	if len(identifiers) > o.MaxBatchSize {
		return BatchResult[*model.Actor]{}, &model.InvalidInputError{Field: "identifiers", Reason: fmt.Sprintf("batch exceeds max size of %d items (got %d)", o.MaxBatchSize, len(identifiers))}
	}

	results := make([]*model.Actor, len(identifiers))
	errs := make([]error, len(identifiers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.BatchConcurrency)

	for i, identifier := range identifiers {
		i, identifier := i, identifier
		g.Go(func() error {
			select {
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return nil
			default:
			}
			actor, err := o.DiscoverActor(gctx, caller, identifier)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = actor
			return nil
		})
	}
	_ = g.Wait()

	out := BatchResult[*model.Actor]{}
	for i, actor := range results {
		if errs[i] != nil {
			msg := errs[i].Error()
			if ctx.Err() != nil {
				msg = "cancelled"
			}
			out.Errs = append(out.Errs, BatchError{Index: i, Err: msg})
			continue
		}
		out.OK = append(out.OK, actor)
	}
	return out, nil
}
