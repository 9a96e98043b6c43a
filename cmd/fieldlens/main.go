// Fieldlens capture agent daemon: camera session, assistant uploads,
// offline spool and the dashboard web server.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldlens/go-fieldlens/internal/config"
	"github.com/fieldlens/go-fieldlens/internal/log"
	"github.com/fieldlens/go-fieldlens/pkg/agent"
	"github.com/fieldlens/go-fieldlens/pkg/audio"
	"github.com/fieldlens/go-fieldlens/pkg/capture"
	"github.com/fieldlens/go-fieldlens/pkg/device"
	"github.com/fieldlens/go-fieldlens/pkg/web"
)

func main() {
	cfg := parseFlags()
	log.Init(config.LogLevel())

	app, err := agent.New(cfg, device.NewUVC(), audio.NewPlayer(), nil)
	if err != nil {
		log.Error("configuration error", "err", err)
		os.Exit(1)
	}

	server := web.NewServer(config.Port(), config.StaticDir(), app)
	server.StartAsync()
	defer server.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("fieldlens agent running",
		"port", config.Port(),
		"spool", cfg.SpoolDir,
		"source", cfg.Source)

	if err := app.Run(ctx); err != nil && err != context.Canceled {
		log.Error("runtime error", "err", err)
		os.Exit(1)
	}
}

// parseFlags builds the agent configuration from flags and environment.
func parseFlags() agent.Config {
	flushSpec := flag.String("flush-every", "1m", "spool flush interval (empty disables)")
	preview := flag.Duration("preview", 500*time.Millisecond, "preview frame interval (0 disables)")
	spoolDir := flag.String("spool", config.SpoolDir(), "offline spool directory")
	source := flag.String("source", config.SourceTag(), "source tag attached to uploads")
	flag.Parse()

	cfg := agent.Config{
		WebhookURL:      config.WebhookURL(),
		Source:          *source,
		SpoolDir:        *spoolDir,
		Session:         capture.DefaultConfig(),
		PreviewInterval: *preview,
	}
	if *flushSpec != "" {
		cfg.FlushSchedule = "@every " + *flushSpec
	}
	return cfg
}
