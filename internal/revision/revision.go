// Package revision provides the global revision counter used to stamp every
// unit mutation. Revisions are strictly increasing across the whole system,
// not per store.
package revision

import "sync/atomic"

// Source hands out global revision numbers. Next must be an atomic
// increment-and-fetch: two callers can never observe the same value.
type Source interface {
	// Next allocates and returns a fresh revision.
	Next() (int64, error)

	// Current returns the latest allocated revision without consuming one.
	Current() (int64, error)
}

// Counter is an in-memory Source backed by an atomic integer. Production
// deployments use the SQLite-backed source from the repo package; Counter
// serves tests and single-process runs.
type Counter struct {
	n atomic.Int64
}

// NewCounter creates a counter whose next value is start+1.
func NewCounter(start int64) *Counter {
	c := &Counter{}
	c.n.Store(start)
	return c
}

// Next implements Source.
func (c *Counter) Next() (int64, error) {
	return c.n.Add(1), nil
}

// Current implements Source.
func (c *Counter) Current() (int64, error) {
	return c.n.Load(), nil
}
