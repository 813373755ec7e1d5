package session

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultLoadConcurrency bounds LoadAll when no concurrency is given.
const DefaultLoadConcurrency = 4

// LoadAll loads the detail documents of records, at most concurrency at a
// time. Every fetch still passes through the client's rate limiter. The first
// error cancels the remaining loads and is returned.
func LoadAll(ctx context.Context, records []*Record, concurrency int) error {
	if concurrency <= 0 {
		concurrency = DefaultLoadConcurrency
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, rec := range records {
		if rec == nil || rec.Loaded() {
			continue
		}
		g.Go(func() error {
			return rec.Load(ctx)
		})
	}
	return g.Wait()
}
