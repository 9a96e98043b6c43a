// Package web serves the capture UI backend: REST endpoints for the
// session lifecycle and capture flow, plus websocket feeds for status,
// chat and the live preview.
package web

import (
	"context"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/fieldlens/go-fieldlens/internal/log"
	"github.com/fieldlens/go-fieldlens/pkg/agent"
	"github.com/fieldlens/go-fieldlens/pkg/capture"
	"github.com/fieldlens/go-fieldlens/pkg/chat"
	"github.com/fieldlens/go-fieldlens/pkg/hub"
)

// AgentState is the status snapshot pushed to the dashboard.
type AgentState struct {
	SessionState string `json:"session_state"`
	Facing       string `json:"facing"`
	Online       bool   `json:"online"`
	QueueDepth   int    `json:"queue_depth"`
	Speaking     bool   `json:"speaking"`
	LastError    string `json:"last_error,omitempty"`
	Remedy       string `json:"remedy,omitempty"`
}

// Server is the capture UI backend.
type Server struct {
	app  *fiber.App
	port string
	core *agent.App

	statusHub  *hub.Hub
	chatHub    *hub.Hub
	previewHub *hub.Hub
}

// NewServer creates the server over the application core and wires the
// core's events into the websocket hubs.
func NewServer(port, staticDir string, core *agent.App) *Server {
	s := &Server{
		port:       port,
		core:       core,
		statusHub:  hub.New("status"),
		chatHub:    hub.New("chat"),
		previewHub: hub.New("preview"),
	}

	core.Session().OnStateChange = func(capture.State) {
		// Snapshotting probes connectivity; do it off the session's
		// goroutine so transitions never wait on the network.
		go s.broadcastState()
	}
	core.Transcript().OnAppend = func(e chat.Entry) {
		s.chatHub.BroadcastJSON(e)
	}
	core.OnPreviewFrame = func(jpeg []byte) {
		s.previewHub.BroadcastBinary(jpeg)
	}

	app := fiber.New(fiber.Config{
		AppName:               "fieldlens",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())
	if staticDir != "" {
		app.Static("/", staticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/session/open", s.handleOpen)
	api.Post("/session/close", s.handleClose)
	api.Post("/session/hide", s.handleHide)
	api.Post("/session/facing", s.handleFacing)
	api.Post("/capture", s.handleCapture)
	api.Get("/chat", s.handleChat)
	api.Get("/queue", s.handleQueue)
	api.Post("/queue/flush", s.handleFlush)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/chat", websocket.New(s.handleChatWS))
	app.Get("/ws/preview", websocket.New(s.handlePreviewWS))

	s.app = app
	return s
}

// Start runs the hubs and blocks serving HTTP.
func (s *Server) Start() error {
	s.runHubs()
	log.Info("web server listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync runs the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("web server stopped", "err", err)
		}
	}()
}

// Serve runs the hubs and serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.runHubs()
	return s.app.Listener(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) runHubs() {
	go s.statusHub.Run()
	go s.chatHub.Run()
	go s.previewHub.Run()
}

// snapshot renders the current agent state.
func (s *Server) snapshot(ctx context.Context) AgentState {
	session := s.core.Session()
	state := AgentState{
		SessionState: session.State().String(),
		Facing:       string(session.Facing()),
		Online:       s.core.Online(ctx),
		QueueDepth:   s.core.QueueDepth(),
		Speaking:     s.core.Speaking(),
	}
	if err := session.LastError(); err != nil {
		state.LastError = err.Error()
		state.Remedy = reasonOf(err).Remedy()
	}
	return state
}

func (s *Server) broadcastState() {
	ctx, cancel := context.WithTimeout(context.Background(), statusProbeTimeout)
	defer cancel()
	s.statusHub.BroadcastJSON(s.snapshot(ctx))
}
