package assistant_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fieldlens/go-fieldlens/pkg/assistant"
	"github.com/fieldlens/go-fieldlens/pkg/capture"
	"github.com/fieldlens/go-fieldlens/pkg/netcheck"
)

type memQueue struct {
	entries []assistant.Request
}

func (q *memQueue) Enqueue(img *capture.Image, req assistant.Request) (string, error) {
	q.entries = append(q.entries, req)
	return "queued-1", nil
}

func TestDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("online goes to the webhook", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.Write([]byte(`{"textResponse": "seen"}`))
		}))
		defer srv.Close()

		client, _ := assistant.New(srv.URL)
		queue := &memQueue{}
		d := assistant.NewDispatcher(client, queue, netcheck.Static(true))

		resp, queued, err := d.Deliver(ctx, testImage(), assistant.Request{Filename: "a", CapturedAt: time.Now()})
		if err != nil {
			t.Fatalf("deliver: %v", err)
		}
		if queued {
			t.Error("should not queue while online")
		}
		if resp.TextResponse != "seen" {
			t.Errorf("textResponse = %q", resp.TextResponse)
		}
		if hits.Load() != 1 {
			t.Errorf("webhook hits = %d", hits.Load())
		}
		if len(queue.entries) != 0 {
			t.Errorf("queue should be empty, has %d", len(queue.entries))
		}
	})

	t.Run("offline queues without an HTTP attempt", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
		}))
		defer srv.Close()

		client, _ := assistant.New(srv.URL)
		queue := &memQueue{}
		d := assistant.NewDispatcher(client, queue, netcheck.Static(false))

		resp, queued, err := d.Deliver(ctx, testImage(), assistant.Request{Filename: "b", CapturedAt: time.Now()})
		if err != nil {
			t.Fatalf("deliver: %v", err)
		}
		if !queued {
			t.Error("expected queued delivery")
		}
		if resp != nil {
			t.Error("queued delivery has no response")
		}
		if hits.Load() != 0 {
			t.Errorf("expected no HTTP attempt, got %d", hits.Load())
		}
		if len(queue.entries) != 1 || queue.entries[0].Filename != "b" {
			t.Errorf("queue entries = %+v", queue.entries)
		}
	})
}
