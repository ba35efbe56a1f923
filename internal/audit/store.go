package audit

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Store persists audit records.
type Store interface {
	Write(ctx context.Context, record Record) error
	WriteBatch(ctx context.Context, records []Record) error
}

// NopStore discards everything.
type NopStore struct{}

func (NopStore) Write(context.Context, Record) error        { return nil }
func (NopStore) WriteBatch(context.Context, []Record) error { return nil }

// MultiStore writes every batch to all stores concurrently and returns the
// first error. A failing store does not cancel the others.
type MultiStore []Store

func (m MultiStore) Write(ctx context.Context, record Record) error {
	return m.WriteBatch(ctx, []Record{record})
}

func (m MultiStore) WriteBatch(ctx context.Context, records []Record) error {
	var g errgroup.Group
	for _, s := range m {
		g.Go(func() error { return s.WriteBatch(ctx, records) })
	}
	return g.Wait()
}
