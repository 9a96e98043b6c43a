// Package agent wires the capture session, the delivery path, the
// transcript and audio playback into one application core. It manages
// component lifecycle the same way for the daemon and the one-shot CLI.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fieldlens/go-fieldlens/internal/log"
	"github.com/fieldlens/go-fieldlens/pkg/assistant"
	"github.com/fieldlens/go-fieldlens/pkg/audio"
	"github.com/fieldlens/go-fieldlens/pkg/capture"
	"github.com/fieldlens/go-fieldlens/pkg/chat"
	"github.com/fieldlens/go-fieldlens/pkg/device"
	"github.com/fieldlens/go-fieldlens/pkg/netcheck"
	"github.com/fieldlens/go-fieldlens/pkg/offline"
)

// Config holds the application-level settings.
type Config struct {
	// WebhookURL is the assistant endpoint. Required.
	WebhookURL string

	// Source tags every upload.
	Source string

	// SpoolDir is the offline queue directory.
	SpoolDir string

	// Session holds the capture tunables.
	Session capture.Config

	// FlushSchedule is the cron spec for draining the spool.
	// Empty disables scheduled flushing.
	FlushSchedule string

	// PreviewInterval paces the live preview broadcast while the
	// session is ready. Zero disables the preview loop.
	PreviewInterval time.Duration
}

// CaptureRequest is one user capture with its confirmation metadata.
type CaptureRequest struct {
	Filename    string
	WantAudio   bool
	Display     capture.DisplayGeometry
	Orientation capture.Orientation
}

// CaptureResult reports how a capture was delivered.
type CaptureResult struct {
	// Queued is true when the capture went to the offline spool.
	Queued bool

	// Text is the assistant's text reply, when any.
	Text string

	// HasAudio reports whether a spoken reply was received.
	HasAudio bool
}

// App is the application core.
type App struct {
	cfg Config

	session    *capture.Session
	client     *assistant.Client
	spool      *offline.Spool
	dispatcher *assistant.Dispatcher
	transcript *chat.Log
	speaker    audio.Speaker
	net        netcheck.Checker
	sched      *cron.Cron

	// OnPreviewFrame, when set, receives JPEG preview frames while the
	// session is ready. Wired to the preview websocket hub.
	OnPreviewFrame func(jpeg []byte)
}

// New builds the application core over the given camera backend.
// A nil speaker plays nothing; a nil checker probes the webhook host.
func New(cfg Config, backend device.Backend, speaker audio.Speaker, checker netcheck.Checker) (*App, error) {
	client, err := assistant.New(cfg.WebhookURL, assistant.WithSource(cfg.Source))
	if err != nil {
		return nil, err
	}

	spool, err := offline.New(cfg.SpoolDir)
	if err != nil {
		return nil, err
	}

	if checker == nil {
		checker, err = netcheck.NewProbe(cfg.WebhookURL)
		if err != nil {
			return nil, fmt.Errorf("agent: bad webhook URL: %w", err)
		}
	}
	if speaker == nil {
		speaker = audio.Nop{}
	}

	a := &App{
		cfg:        cfg,
		session:    capture.NewSession(device.NewGateway(backend), cfg.Session),
		client:     client,
		spool:      spool,
		dispatcher: assistant.NewDispatcher(client, spool, checker),
		transcript: chat.NewLog(),
		speaker:    speaker,
		net:        checker,
	}
	return a, nil
}

// Session returns the capture session for state queries and hooks.
func (a *App) Session() *capture.Session {
	return a.session
}

// Transcript returns the chat transcript.
func (a *App) Transcript() *chat.Log {
	return a.transcript
}

// Online reports webhook reachability.
func (a *App) Online(ctx context.Context) bool {
	return a.net.Online(ctx)
}

// Speaking reports whether an audio reply is playing.
func (a *App) Speaking() bool {
	return a.speaker.Speaking()
}

// OpenSession opens the camera for the preferred facing.
func (a *App) OpenSession(ctx context.Context, facing device.Facing) error {
	err := a.session.Open(ctx, facing)
	if err != nil {
		reason := device.Classify(err)
		a.transcript.Add(chat.RoleSystem, reason.Remedy(), false)
	}
	return err
}

// CloseSession releases the camera.
func (a *App) CloseSession() {
	a.session.Close()
}

// SuspendSession releases the camera when the UI is hidden.
func (a *App) SuspendSession() {
	a.session.Suspend()
}

// SwitchFacing swaps cameras with a full close-then-reopen.
func (a *App) SwitchFacing(ctx context.Context, facing device.Facing) error {
	return a.session.SwitchFacing(ctx, facing)
}

// CaptureAndSend captures a still, delivers it (webhook or spool), and
// appends the exchange to the transcript. The session returns to idle
// once the capture has been handed off; retaking means reopening.
func (a *App) CaptureAndSend(ctx context.Context, req CaptureRequest) (CaptureResult, error) {
	img, err := a.session.Capture(ctx, req.Display, req.Orientation)
	if err != nil {
		return CaptureResult{}, err
	}

	sreq := assistant.Request{
		Filename:    req.Filename,
		WantAudio:   req.WantAudio,
		Orientation: req.Orientation,
		CapturedAt:  time.Now(),
	}
	a.transcript.Add(chat.RoleUser, sreq.NormalizedFilename(), false)

	resp, queued, err := a.dispatcher.Deliver(ctx, img, sreq)
	if err != nil {
		// Terminal for this attempt; the user resubmits by hand.
		a.transcript.Add(chat.RoleSystem, "upload failed: "+err.Error(), false)
		return CaptureResult{}, err
	}

	a.session.Close()

	if queued {
		a.transcript.Add(chat.RoleSystem, "offline, photo queued for delivery", false)
		return CaptureResult{Queued: true}, nil
	}

	result := CaptureResult{Text: resp.TextResponse, HasAudio: resp.HasAudio()}
	if resp.HasText() || resp.HasAudio() {
		a.transcript.Add(chat.RoleAssistant, resp.TextResponse, resp.HasAudio())
	}

	if resp.HasAudio() {
		if raw, err := resp.AudioBytes(); err == nil {
			go func() {
				if err := a.speaker.Play(context.Background(), raw); err != nil {
					log.Warn("audio reply playback failed", "err", err)
				}
			}()
		} else {
			log.Warn("audio reply unusable", "err", err)
		}
	}
	return result, nil
}

// QueueDepth returns the number of spooled captures.
func (a *App) QueueDepth() int {
	n, err := a.spool.Len()
	if err != nil {
		log.Warn("spool depth unavailable", "err", err)
		return 0
	}
	return n
}

// FlushQueue drains the spool through the webhook once.
func (a *App) FlushQueue(ctx context.Context) (int, error) {
	return a.spool.Flush(ctx, a.client)
}

// Run starts the scheduled spool flush and, when configured, the
// preview loop, then blocks until the context is cancelled. The camera
// is always released on the way out.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.FlushSchedule != "" {
		a.sched = cron.New()
		_, err := a.sched.AddFunc(a.cfg.FlushSchedule, func() {
			fctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if !a.net.Online(fctx) {
				return
			}
			if n, err := a.spool.Flush(fctx, a.client); err != nil {
				log.Warn("scheduled flush stopped", "delivered", n, "err", err)
			} else if n > 0 {
				log.Info("scheduled flush delivered spooled captures", "count", n)
			}
		})
		if err != nil {
			return fmt.Errorf("agent: bad flush schedule: %w", err)
		}
		a.sched.Start()
	}

	if a.cfg.PreviewInterval > 0 && a.OnPreviewFrame != nil {
		go a.previewLoop(ctx)
	}

	<-ctx.Done()
	a.Shutdown()
	return ctx.Err()
}

// Shutdown releases the camera and stops the scheduler.
func (a *App) Shutdown() {
	a.session.Close()
	if a.sched != nil {
		a.sched.Stop()
	}
	log.Info("agent stopped")
}

// previewLoop streams small JPEG frames to the preview hub while the
// session is ready. Previews bypass the capturing transition so they
// cannot make a concurrent user capture fail; they are never uploaded.
func (a *App) previewLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.PreviewInterval)
	defer ticker.Stop()

	previewBox := capture.DisplayGeometry{Width: 640, Height: 480}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if a.session.State() != capture.StateReady {
			continue
		}
		img, err := a.session.Preview(ctx, previewBox)
		if err != nil {
			continue
		}
		a.OnPreviewFrame(img.Bytes)
	}
}
