// Snap takes a single photo from the command line: open the camera,
// capture one framed still, then write it to disk or upload it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fieldlens/go-fieldlens/internal/config"
	"github.com/fieldlens/go-fieldlens/internal/log"
	"github.com/fieldlens/go-fieldlens/pkg/assistant"
	"github.com/fieldlens/go-fieldlens/pkg/capture"
	"github.com/fieldlens/go-fieldlens/pkg/device"
)

func main() {
	facing := flag.String("facing", "environment", "camera facing: environment, user, any")
	display := flag.String("display", "360x480", "framing box as WxH")
	orient := flag.Int("orientation", 0, "device orientation in degrees")
	out := flag.String("out", "", "write the JPEG to this path instead of uploading")
	name := flag.String("name", "", "filename sent with the upload")
	wantAudio := flag.Bool("audio", false, "request a spoken reply")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline")
	flag.Parse()

	log.Init(config.LogLevel())

	geom, err := parseDisplay(*display)
	if err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	session := capture.NewSession(device.NewGateway(device.NewUVC()), capture.DefaultConfig())
	if err := session.Open(ctx, parseFacing(*facing)); err != nil {
		reason := device.Classify(err)
		fmt.Fprintf(os.Stderr, "camera unavailable: %v\n%s\n", err, reason.Remedy())
		os.Exit(1)
	}
	defer session.Close()

	img, err := session.Capture(ctx, geom, capture.ParseOrientation(*orient))
	if err != nil {
		fatal(err)
	}

	if *out != "" {
		if err := os.WriteFile(*out, img.Bytes, 0o644); err != nil {
			fatal(err)
		}
		fmt.Printf("wrote %s (%dx%d, %d bytes)\n", *out, img.Width, img.Height, len(img.Bytes))
		return
	}

	client, err := assistant.New(config.WebhookURL(), assistant.WithSource(config.SourceTag()))
	if err != nil {
		fatal(err)
	}
	resp, err := client.Submit(ctx, img, assistant.Request{
		Filename:    *name,
		WantAudio:   *wantAudio,
		Orientation: capture.ParseOrientation(*orient),
		CapturedAt:  time.Now(),
	})
	if err != nil {
		fatal(err)
	}
	if resp.HasText() {
		fmt.Println(resp.TextResponse)
	} else {
		fmt.Println("delivered")
	}
}

func parseFacing(s string) device.Facing {
	switch s {
	case "user", "front":
		return device.FacingFront
	case "any":
		return device.FacingAny
	default:
		return device.FacingBack
	}
}

func parseDisplay(s string) (capture.DisplayGeometry, error) {
	var g capture.DisplayGeometry
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		return g, fmt.Errorf("bad display %q, want WxH", s)
	}
	if _, err := fmt.Sscanf(s, "%dx%d", &g.Width, &g.Height); err != nil {
		return g, fmt.Errorf("bad display %q: %w", s, err)
	}
	if g.Width <= 0 || g.Height <= 0 {
		return g, fmt.Errorf("bad display %q: dimensions must be positive", s)
	}
	return g, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
