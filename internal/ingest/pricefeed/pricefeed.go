// Package pricefeed is the optional historical-price ingestion adapter
// (§4.K): it is not part of the engine core, and its goroutines never touch
// a ledger.Ledger directly. It fetches daily aggregates from Polygon.io for
// securities that carry a ticker and folds them into price series the
// engine core can consume through priceindex.Index.
package pricefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"abgeltungsteuer-engine/internal/engine/money"
	"abgeltungsteuer-engine/internal/engine/priceindex"
)

// Security is the minimal shape the adapter needs from a security record: a
// UUID to key the result map and a ticker to query Polygon with.
type Security struct {
	UUID   uuid.UUID
	Ticker string
}

// maxRetries bounds retryWithBackoff, matching the teacher's polygon client
// idiom (internal/data/polygon/quote.go).
const maxRetries = 3

// Fetcher wraps a Polygon REST client with the bounded-concurrency fan-out
// described in §5: a buffered channel limiter, the teacher's
// internal/app/agent/executor.go idiom, caps how many securities are
// in flight at once regardless of how many are requested.
type Fetcher struct {
	client      *polygon.Client
	logger      *zap.Logger
	concurrency int
}

// NewFetcher constructs a Fetcher. concurrency <= 0 defaults to 4.
func NewFetcher(apiKey string, logger *zap.Logger, concurrency int) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Fetcher{
		client:      polygon.New(apiKey),
		logger:      logger,
		concurrency: concurrency,
	}
}

// FetchDailyCloses fetches one daily-close price series per security between
// from and to (inclusive), fanning requests out across f.concurrency workers.
// A failed fetch for one security never aborts the others: it logs a
// warning and yields an empty series for that security, which the
// Vorabpauschale allocator already tolerates by skipping the affected years
// (§4.D).
func (f *Fetcher) FetchDailyCloses(ctx context.Context, securities []Security, from, to time.Time) map[uuid.UUID]*priceindex.Index {
	results := make(map[uuid.UUID]*priceindex.Index, len(securities))
	resultCh := make(chan struct {
		key uuid.UUID
		idx *priceindex.Index
	}, len(securities))

	limiter := make(chan struct{}, f.concurrency)
	g, gctx := errgroup.WithContext(ctx)

	for _, sec := range securities {
		sec := sec
		g.Go(func() error {
			limiter <- struct{}{}
			defer func() { <-limiter }()

			idx, err := f.fetchOne(gctx, sec, from, to)
			if err != nil {
				f.logger.Warn("pricefeed: fetch failed, continuing with empty series",
					zap.String("ticker", sec.Ticker), zap.Error(err))
				idx = priceindex.NewIndex()
			}
			resultCh <- struct {
				key uuid.UUID
				idx *priceindex.Index
			}{key: sec.UUID, idx: idx}
			return nil
		})
	}

	// Errors from individual fetches are swallowed inside fetchOne's caller
	// above; every goroutine returns nil, so g.Wait never reports an error.
	_ = g.Wait()
	close(resultCh)

	for r := range resultCh {
		results[r.key] = r.idx
	}
	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, sec Security, from, to time.Time) (*priceindex.Index, error) {
	idx := priceindex.NewIndex()

	aggs, err := retryWithBackoff(maxRetries, func() ([]models.Agg, error) {
		return f.listDailyAggs(ctx, sec.Ticker, from, to)
	})
	if err != nil {
		return idx, err
	}

	for _, agg := range aggs {
		date := time.Time(agg.Timestamp).UTC()
		idx.Set(date, money.New(agg.Close))
	}
	return idx, nil
}

func (f *Fetcher) listDailyAggs(ctx context.Context, ticker string, from, to time.Time) ([]models.Agg, error) {
	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: 1,
		Timespan:   models.Timespan("day"),
		From:       models.Millis(from),
		To:         models.Millis(to),
	}.WithOrder(models.Asc).WithLimit(5000).WithAdjusted(true)

	it := f.client.ListAggs(ctx, params)
	var out []models.Agg
	for it.Next() {
		out = append(out, it.Item())
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("pricefeed: listing aggregates for %s: %w", ticker, err)
	}
	return out, nil
}

// retryWithBackoff calls fn up to maxRetries times in all, sleeping
// attempt*2 seconds between attempts (a linear backoff), modelled on
// internal/data/polygon/quote.go's retryWithBackoff. Every error is retried;
// there is no transient/permanent classification. Retry only makes sense
// here, the one place in this repo that does network I/O; the engine core
// never retries (§7).
func retryWithBackoff[T any](maxRetries int, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}
		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt*2) * time.Second)
		}
	}
	return result, fmt.Errorf("pricefeed: failed after %d attempts: %w", maxRetries, lastErr)
}
