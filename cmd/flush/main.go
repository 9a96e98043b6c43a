// Flush drains the offline spool through the webhook once and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fieldlens/go-fieldlens/internal/config"
	"github.com/fieldlens/go-fieldlens/internal/log"
	"github.com/fieldlens/go-fieldlens/pkg/assistant"
	"github.com/fieldlens/go-fieldlens/pkg/netcheck"
	"github.com/fieldlens/go-fieldlens/pkg/offline"
)

func main() {
	spoolDir := flag.String("spool", config.SpoolDir(), "offline spool directory")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline")
	flag.Parse()

	log.Init(config.LogLevel())

	webhook := config.WebhookURL()
	spool, err := offline.New(*spoolDir)
	if err != nil {
		fatal(err)
	}

	depth, err := spool.Len()
	if err != nil {
		fatal(err)
	}
	if depth == 0 {
		fmt.Println("spool is empty")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	probe, err := netcheck.NewProbe(webhook)
	if err != nil {
		fatal(err)
	}
	if !probe.Online(ctx) {
		fmt.Fprintln(os.Stderr, "webhook unreachable, leaving spool intact")
		os.Exit(1)
	}

	client, err := assistant.New(webhook, assistant.WithSource(config.SourceTag()))
	if err != nil {
		fatal(err)
	}

	n, err := spool.Flush(ctx, client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "delivered %d of %d, stopped: %v\n", n, depth, err)
		os.Exit(1)
	}
	fmt.Printf("delivered %d spooled capture(s)\n", n)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
