package device

import (
	"context"
	"sync"

	"github.com/fieldlens/go-fieldlens/internal/log"
)

// Gateway owns the single live camera stream. Opening a new stream
// always releases the previous one first, so two hardware handles are
// never held concurrently.
type Gateway struct {
	backend Backend

	mu      sync.Mutex
	current Stream
}

// NewGateway creates a gateway over the given backend.
func NewGateway(backend Backend) *Gateway {
	return &Gateway{backend: backend}
}

// OpenStream tries each constraint set in order and returns the first
// stream that opens. Any previously held stream is released before the
// first attempt. When every attempt fails, the returned error matches
// ErrNoCameraAvailable and wraps the last underlying failure.
func (g *Gateway) OpenStream(ctx context.Context, chain []Constraints) (Stream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.releaseLocked()

	var lastErr error
	for _, c := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := g.backend.Open(ctx, c)
		if err != nil {
			log.Debug("camera open attempt failed", "constraints", c.String(), "err", err)
			lastErr = err
			continue
		}
		log.Info("camera opened", "constraints", c.String())
		g.current = s
		return s, nil
	}

	if lastErr == nil {
		lastErr = ErrNotFound
	}
	return nil, &openError{attempts: len(chain), last: lastErr}
}

// ReleaseIf closes the stream only if the gateway still holds it. A
// superseded opener cleans up with this so it can never close a
// successor's stream.
func (g *Gateway) ReleaseIf(s Stream) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == s {
		g.releaseLocked()
	}
}

// Release closes the held stream, if any. Idempotent.
func (g *Gateway) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseLocked()
}

func (g *Gateway) releaseLocked() {
	if g.current == nil {
		return
	}
	if err := g.current.Close(); err != nil {
		log.Warn("stream close failed", "err", err)
	}
	g.current = nil
}

// LiveStreams returns the number of streams currently held (0 or 1).
func (g *Gateway) LiveStreams() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current != nil && g.current.Live() {
		return 1
	}
	return 0
}
