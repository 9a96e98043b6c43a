package web

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/fieldlens/go-fieldlens/pkg/agent"
	"github.com/fieldlens/go-fieldlens/pkg/capture"
	"github.com/fieldlens/go-fieldlens/pkg/device"
	"github.com/fieldlens/go-fieldlens/pkg/hub"
)

// statusProbeTimeout bounds the connectivity check inside status
// rendering so a dead network cannot stall the endpoint.
const statusProbeTimeout = 2 * time.Second

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

// reasonOf maps a session failure to its user-facing category.
func reasonOf(err error) device.Reason {
	if errors.Is(err, capture.ErrReadinessTimeout) {
		return device.ReasonUnknown
	}
	return device.Classify(err)
}

// statusFor picks the HTTP status for a session open failure.
func statusFor(err error) int {
	switch reasonOf(err) {
	case device.ReasonPermissionDenied, device.ReasonSecurity:
		return fiber.StatusForbidden
	case device.ReasonNotFound:
		return fiber.StatusNotFound
	case device.ReasonBusy:
		return fiber.StatusConflict
	case device.ReasonOverconstrained:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func errBody(err error) fiber.Map {
	reason := reasonOf(err)
	return fiber.Map{
		"error":  err.Error(),
		"reason": string(reason),
		"remedy": reason.Remedy(),
	}
}

// handleStatus returns the agent status snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), statusProbeTimeout)
	defer cancel()
	return c.JSON(s.snapshot(ctx))
}

// SessionRequest selects the camera facing for open/switch requests.
type SessionRequest struct {
	Facing string `json:"facing"`
}

// handleOpen opens the capture session.
func (s *Server) handleOpen(c *fiber.Ctx) error {
	var req SessionRequest
	c.BodyParser(&req) // empty body means default facing

	if err := s.core.OpenSession(c.UserContext(), parseFacing(req.Facing)); err != nil {
		return c.Status(statusFor(err)).JSON(errBody(err))
	}
	return c.JSON(fiber.Map{"session_state": s.core.Session().State().String()})
}

// handleClose releases the camera.
func (s *Server) handleClose(c *fiber.Ctx) error {
	s.core.CloseSession()
	return c.JSON(fiber.Map{"session_state": s.core.Session().State().String()})
}

// handleHide is the visibility cleanup hook: the front-end calls it
// when the page is hidden or backgrounded.
func (s *Server) handleHide(c *fiber.Ctx) error {
	s.core.SuspendSession()
	return c.JSON(fiber.Map{"session_state": s.core.Session().State().String()})
}

// handleFacing switches cameras with a full close-then-reopen.
func (s *Server) handleFacing(c *fiber.Ctx) error {
	var req SessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "facing required"})
	}

	if err := s.core.SwitchFacing(c.UserContext(), parseFacing(req.Facing)); err != nil {
		if errors.Is(err, capture.ErrBadState) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "session not ready"})
		}
		return c.Status(statusFor(err)).JSON(errBody(err))
	}
	return c.JSON(fiber.Map{"session_state": s.core.Session().State().String()})
}

// CaptureRequest is the capture confirmation payload from the UI.
type CaptureRequest struct {
	Filename    string `json:"filename"`
	WantAudio   bool   `json:"want_audio"`
	DisplayW    int    `json:"display_w"`
	DisplayH    int    `json:"display_h"`
	Orientation int    `json:"orientation"`
}

// handleCapture captures a still and delivers it.
func (s *Server) handleCapture(c *fiber.Ctx) error {
	var req CaptureRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad capture request"})
	}

	result, err := s.core.CaptureAndSend(c.UserContext(), agent.CaptureRequest{
		Filename:    req.Filename,
		WantAudio:   req.WantAudio,
		Display:     capture.DisplayGeometry{Width: req.DisplayW, Height: req.DisplayH},
		Orientation: capture.ParseOrientation(req.Orientation),
	})
	if err != nil {
		if errors.Is(err, capture.ErrNotReady) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "camera not ready"})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"queued":    result.Queued,
		"text":      result.Text,
		"has_audio": result.HasAudio,
	})
}

// handleChat returns the transcript.
func (s *Server) handleChat(c *fiber.Ctx) error {
	return c.JSON(s.core.Transcript().Entries())
}

// handleQueue returns the offline queue depth.
func (s *Server) handleQueue(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"depth": s.core.QueueDepth()})
}

// handleFlush drains the offline queue once.
func (s *Server) handleFlush(c *fiber.Ctx) error {
	delivered, err := s.core.FlushQueue(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":     err.Error(),
			"delivered": delivered,
		})
	}
	return c.JSON(fiber.Map{"delivered": delivered})
}

// handleStatusWS streams status snapshots.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), statusProbeTimeout)
	c.WriteJSON(s.snapshot(ctx))
	cancel()

	hub.NewClient(s.statusHub, c).Run()
}

// handleChatWS streams transcript entries, replaying the backlog on
// connect.
func (s *Server) handleChatWS(c *websocket.Conn) {
	for _, entry := range s.core.Transcript().Entries() {
		c.WriteJSON(entry)
	}

	hub.NewClient(s.chatHub, c).Run()
}

// handlePreviewWS streams binary JPEG preview frames.
func (s *Server) handlePreviewWS(c *websocket.Conn) {
	hub.NewClient(s.previewHub, c).Run()
}
