// Package config provides configuration helpers for go-fieldlens commands.
package config

import (
	"fmt"
	"os"
)

// Defaults for the capture agent.
const (
	DefaultPort      = "8090"
	DefaultSpoolDir  = "./spool"
	DefaultStaticDir = "./web"
	DefaultSource    = "fieldlens"
)

// WebhookURL returns the assistant webhook URL from WEBHOOK_URL.
// Exits with a usage message if not set.
func WebhookURL() string {
	url := os.Getenv("WEBHOOK_URL")
	if url == "" {
		fmt.Fprintln(os.Stderr, "Error: WEBHOOK_URL environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: WEBHOOK_URL=https://example.com/hook go run ./cmd/fieldlens")
		os.Exit(1)
	}
	return url
}

// Port returns the HTTP listen port from PORT or the default.
func Port() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return DefaultPort
}

// SpoolDir returns the offline spool directory from SPOOL_DIR or the default.
func SpoolDir() string {
	if d := os.Getenv("SPOOL_DIR"); d != "" {
		return d
	}
	return DefaultSpoolDir
}

// StaticDir returns the static asset directory from STATIC_DIR or the default.
func StaticDir() string {
	if d := os.Getenv("STATIC_DIR"); d != "" {
		return d
	}
	return DefaultStaticDir
}

// LogLevel returns the log level from LOG_LEVEL or "info".
func LogLevel() string {
	if l := os.Getenv("LOG_LEVEL"); l != "" {
		return l
	}
	return "info"
}

// SourceTag returns the upload source tag from SOURCE_TAG or the default.
func SourceTag() string {
	if s := os.Getenv("SOURCE_TAG"); s != "" {
		return s
	}
	return DefaultSource
}
