package upstream

import (
	"context"
	"errors"
	"sync"
)

// Slot serializes fetches for one logical data slot (one view's row set).
// Starting a fetch cancels whatever the slot had in flight; when the
// superseded request eventually settles its result is discarded and it is
// not allowed to touch the loading flag. Only the newest request's settle
// clears loading. Cancellation is advisory at the transport (the request
// may still complete on the wire) but mandatory here: a stale result is
// never applied.
type Slot[T any] struct {
	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	loading bool
}

// Loading reports whether the newest request is still in flight.
func (s *Slot[T]) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Do runs fetch under this slot. The boolean result is false when the
// request was superseded before it settled; in that case the value and
// error are zero and must be ignored. ErrCanceled from the fetch itself
// is folded into the same discarded outcome.
func (s *Slot[T]) Do(ctx context.Context, fetch func(context.Context) (T, error)) (T, bool, error) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.gen++
	gen := s.gen
	s.loading = true
	s.mu.Unlock()

	val, err := fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if gen != s.gen {
		// Superseded: a newer request owns the slot now. Its settle, not
		// ours, clears the loading flag.
		cancel()
		return zero, false, nil
	}

	s.loading = false
	s.cancel = nil
	cancel()

	if errors.Is(err, ErrCanceled) {
		// Canceled by consumer teardown rather than supersession; still
		// never a user-visible error.
		return zero, false, nil
	}
	if err != nil {
		return zero, true, err
	}
	return val, true, nil
}
