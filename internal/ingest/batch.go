package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultBatchConcurrency is the number of templates ingested in parallel
// when the caller does not choose.
const DefaultBatchConcurrency = 4

// BatchItem is the outcome of one batch input, in input order.
type BatchItem struct {
	Input  Input
	Result *Result
	Err    error
}

// BatchSummary totals a batch.
type BatchSummary struct {
	Items     []BatchItem
	Succeeded int
	Failed    int
	Cost      CostEstimate
	Duration  time.Duration
}

// Batch ingests inputs with at most concurrency in flight. Each start waits
// on Limiter when one is set. One failure does not stop the others; only ctx
// cancellation ends the batch early, leaving unstarted items with ctx's error.
func (s *Service) Batch(ctx context.Context, inputs []Input, concurrency int, limiter *rate.Limiter) *BatchSummary {
	start := time.Now()
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	items := make([]BatchItem, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, in := range inputs {
		items[i].Input = in
		if err := gctx.Err(); err != nil {
			items[i].Err = err
			continue
		}
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					items[i].Err = err
					return nil
				}
			}
			res, err := s.Ingest(gctx, in)
			items[i].Result, items[i].Err = res, err
			return nil
		})
	}
	_ = g.Wait()

	summary := &BatchSummary{Items: items, Cost: CostEstimate{Model: s.ModelName}}
	for _, it := range items {
		if it.Err != nil {
			summary.Failed++
			log.Warn().Err(it.Err).Str("templateId", it.Input.ID).Str("source", it.Input.Source).Msg("Batch item failed")
			continue
		}
		summary.Succeeded++
		summary.Cost = summary.Cost.Add(it.Result.Cost)
	}
	summary.Duration = time.Since(start)

	log.Info().
		Int("total", len(inputs)).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Float64("costUsd", summary.Cost.USD).
		Dur("duration", summary.Duration).
		Msg("Batch ingestion complete")
	return summary
}
