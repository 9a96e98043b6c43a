package assistant

import (
	"context"

	"github.com/fieldlens/go-fieldlens/internal/log"
	"github.com/fieldlens/go-fieldlens/pkg/capture"
	"github.com/fieldlens/go-fieldlens/pkg/netcheck"
)

// Queuer accepts a capture for deferred delivery.
type Queuer interface {
	Enqueue(img *capture.Image, req Request) (string, error)
}

// Dispatcher routes a capture to the webhook when online, or to the
// offline queue otherwise. Ownership of the image transfers to
// whichever collaborator consumes it.
type Dispatcher struct {
	client *Client
	queue  Queuer
	net    netcheck.Checker
}

// NewDispatcher wires the delivery path.
func NewDispatcher(client *Client, queue Queuer, net netcheck.Checker) *Dispatcher {
	return &Dispatcher{client: client, queue: queue, net: net}
}

// Deliver submits the capture. When offline, no HTTP attempt is made:
// the capture is handed to the queue and queued=true is returned with a
// nil response. Online failures are surfaced as-is, never retried here.
func (d *Dispatcher) Deliver(ctx context.Context, img *capture.Image, req Request) (resp *Response, queued bool, err error) {
	if !d.net.Online(ctx) {
		id, err := d.queue.Enqueue(img, req)
		if err != nil {
			return nil, false, err
		}
		log.Info("offline, capture queued", "id", id)
		return nil, true, nil
	}

	resp, err = d.client.Submit(ctx, img, req)
	if err != nil {
		return nil, false, err
	}
	return resp, false, nil
}
