// Package offline spools captures to disk when the webhook is not
// reachable and drains them later. Each entry is an image file plus a
// JSON sidecar with the delivery metadata; the sidecar is written last,
// so a crash mid-write leaves an orphan image that flushes ignore.
package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldlens/go-fieldlens/internal/log"
	"github.com/fieldlens/go-fieldlens/pkg/assistant"
	"github.com/fieldlens/go-fieldlens/pkg/capture"
)

// Uploader delivers one spooled capture. *assistant.Client satisfies it.
type Uploader interface {
	Submit(ctx context.Context, img *capture.Image, req assistant.Request) (*assistant.Response, error)
}

// sidecar is the on-disk metadata for one spooled capture.
type sidecar struct {
	Filename    string    `json:"filename"`
	WantAudio   bool      `json:"want_audio"`
	Orientation int       `json:"orientation"`
	CapturedAt  time.Time `json:"captured_at"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
}

// Spool is a disk-backed offline queue.
type Spool struct {
	dir string
}

// New creates the spool, creating its directory if needed.
func New(dir string) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("offline: create spool dir: %w", err)
	}
	return &Spool{dir: dir}, nil
}

// Enqueue persists a capture for deferred delivery and returns its id.
// The caller's responsibility for the image ends here.
func (s *Spool) Enqueue(img *capture.Image, req assistant.Request) (string, error) {
	id := uuid.NewString()

	imgPath := filepath.Join(s.dir, id+".jpg")
	if err := os.WriteFile(imgPath, img.Bytes, 0o644); err != nil {
		return "", fmt.Errorf("offline: write image: %w", err)
	}

	meta := sidecar{
		Filename:    req.NormalizedFilename(),
		WantAudio:   req.WantAudio,
		Orientation: int(req.Orientation),
		CapturedAt:  req.CapturedAt,
		Width:       img.Width,
		Height:      img.Height,
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		os.Remove(imgPath)
		return "", fmt.Errorf("offline: encode sidecar: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, id+".json"), raw, 0o644); err != nil {
		os.Remove(imgPath)
		return "", fmt.Errorf("offline: write sidecar: %w", err)
	}

	log.Info("capture spooled for deferred delivery", "id", id, "filename", meta.Filename)
	return id, nil
}

// Len returns the number of complete entries queued.
func (s *Spool) Len() (int, error) {
	ids, err := s.ids()
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Flush delivers queued entries oldest-first, deleting each on success.
// It stops at the first delivery failure and leaves the remainder
// queued for the next run. Returns the number delivered.
func (s *Spool) Flush(ctx context.Context, up Uploader) (int, error) {
	ids, err := s.ids()
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		ok, err := s.deliver(ctx, up, id)
		if err != nil {
			return delivered, fmt.Errorf("offline: flush %s: %w", id, err)
		}
		if ok {
			delivered++
		}
	}
	return delivered, nil
}

// deliver uploads one entry. It reports false with a nil error when the
// entry was corrupt and dropped rather than delivered.
func (s *Spool) deliver(ctx context.Context, up Uploader, id string) (bool, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if err != nil {
		return false, err
	}
	var meta sidecar
	if err := json.Unmarshal(raw, &meta); err != nil {
		s.drop(id, "unreadable sidecar")
		return false, nil
	}

	data, err := os.ReadFile(filepath.Join(s.dir, id+".jpg"))
	if os.IsNotExist(err) {
		// Sidecar without its image. A corrupt entry sorts first
		// forever, so it must be dropped, not left to stop every
		// future flush at the same spot.
		s.drop(id, "image file missing")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	img := &capture.Image{
		Bytes:    data,
		MimeType: "image/jpeg",
		Width:    meta.Width,
		Height:   meta.Height,
	}
	req := assistant.Request{
		Filename:    meta.Filename,
		WantAudio:   meta.WantAudio,
		Orientation: capture.ParseOrientation(meta.Orientation),
		CapturedAt:  meta.CapturedAt,
	}

	if _, err := up.Submit(ctx, img, req); err != nil {
		return false, err
	}

	// Sidecar first: a crash between the removals leaves an orphan
	// image, which flushes ignore, never a half-readable entry.
	os.Remove(filepath.Join(s.dir, id+".json"))
	os.Remove(filepath.Join(s.dir, id+".jpg"))
	log.Info("spooled capture delivered", "id", id, "filename", meta.Filename)
	return true, nil
}

// drop removes a corrupt entry so it cannot block the queue.
func (s *Spool) drop(id, why string) {
	os.Remove(filepath.Join(s.dir, id+".json"))
	os.Remove(filepath.Join(s.dir, id+".jpg"))
	log.Warn("dropped corrupt spool entry", "id", id, "reason", why)
}

// ids lists complete entries (sidecar present), oldest first by the
// sidecar's modification time.
func (s *Spool) ids() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("offline: read spool dir: %w", err)
	}

	type item struct {
		id  string
		mod time.Time
	}
	var items []item
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, item{id: strings.TrimSuffix(name, ".json"), mod: info.ModTime()})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].mod.Before(items[j].mod) })

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.id
	}
	return ids, nil
}
