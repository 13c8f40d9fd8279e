package compiler

import (
	"context"
	"sync"
)

// result is a write-once cell for a compile outcome. Only the first resolve
// is kept; later ones are dropped.
type result struct {
	once sync.Once
	done chan struct{}

	artifact *Artifact
	err      error
}

func newResult() *result {
	return &result{done: make(chan struct{})}
}

// resolve stores the outcome and reports whether this call was the first.
func (r *result) resolve(artifact *Artifact, err error) bool {
	first := false
	r.once.Do(func() {
		r.artifact = artifact
		r.err = err
		first = true
		close(r.done)
	})
	return first
}

func (r *result) fail(err error) bool {
	return r.resolve(nil, err)
}

// wait blocks until the cell is resolved or ctx is done.
func (r *result) wait(ctx context.Context) (*Artifact, error) {
	select {
	case <-r.done:
		return r.artifact, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
