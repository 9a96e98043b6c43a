// Package audio plays the assistant's spoken replies on the local
// output device. Replies arrive as MP3 (audio/mpeg) bytes.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/fieldlens/go-fieldlens/internal/log"
)

// Speaker plays one audio reply at a time.
type Speaker interface {
	// Play decodes and plays an MP3 payload, blocking until playback
	// finishes or the context is cancelled.
	Play(ctx context.Context, mp3Bytes []byte) error

	// Speaking reports whether playback is in progress.
	Speaking() bool
}

// Player is the real output-device speaker.
type Player struct {
	mu       sync.Mutex
	otoCtx   *oto.Context
	speaking bool

	// Callbacks for UI state. Called outside the lock.
	OnPlaybackStart func()
	OnPlaybackEnd   func()
}

// NewPlayer creates a speaker. The audio device is claimed lazily on
// the first Play, so headless construction is cheap and error-free.
func NewPlayer() *Player {
	return &Player{}
}

// Speaking reports whether playback is in progress.
func (p *Player) Speaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speaking
}

// Play decodes and plays an MP3 payload. Playback requests are
// serialized; a second Play blocks until the first finishes.
func (p *Player) Play(ctx context.Context, mp3Bytes []byte) error {
	dec, err := mp3.NewDecoder(bytes.NewReader(mp3Bytes))
	if err != nil {
		return fmt.Errorf("audio: decode mp3: %w", err)
	}

	p.mu.Lock()
	if p.otoCtx == nil {
		// The oto context is process-global and created once.
		otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   dec.SampleRate(),
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			p.mu.Unlock()
			return fmt.Errorf("audio: open output device: %w", err)
		}
		<-ready
		p.otoCtx = otoCtx
	}
	for p.speaking {
		// Serialize with any in-flight playback.
		p.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
		p.mu.Lock()
	}
	p.speaking = true
	otoCtx := p.otoCtx
	p.mu.Unlock()

	if p.OnPlaybackStart != nil {
		p.OnPlaybackStart()
	}
	defer func() {
		p.mu.Lock()
		p.speaking = false
		p.mu.Unlock()
		if p.OnPlaybackEnd != nil {
			p.OnPlaybackEnd()
		}
	}()

	player := otoCtx.NewPlayer(dec)
	defer player.Close()
	player.Play()

	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
	log.Debug("audio reply played", "bytes", len(mp3Bytes))
	return nil
}

// Nop is a speaker for headless runs and tests; it discards audio.
type Nop struct{}

// Play discards the payload.
func (Nop) Play(context.Context, []byte) error { return nil }

// Speaking always reports false.
func (Nop) Speaking() bool { return false }
