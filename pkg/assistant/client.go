// Package assistant delivers captured stills to the external assistant
// webhook and parses its text/audio replies. The webhook is an opaque
// HTTP collaborator: one multipart POST per capture, no automatic
// retry, offline captures handed to the spool instead.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldlens/go-fieldlens/internal/httpc"
	"github.com/fieldlens/go-fieldlens/pkg/capture"
)

// Request carries the user-chosen metadata for one delivery.
type Request struct {
	// Filename is the user-chosen name; a .jpg suffix is added when
	// missing.
	Filename string

	// WantAudio asks the webhook for a spoken reply.
	WantAudio bool

	// Orientation is the device angle at capture time.
	Orientation capture.Orientation

	// CapturedAt is the capture timestamp.
	CapturedAt time.Time
}

// NormalizedFilename returns the filename with the image extension.
func (r Request) NormalizedFilename() string {
	name := strings.TrimSpace(r.Filename)
	if name == "" {
		name = "capture"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".jpg") &&
		!strings.HasSuffix(strings.ToLower(name), ".jpeg") {
		name += ".jpg"
	}
	return name
}

// Response is the parsed webhook reply. An empty acknowledgment parses
// to the zero value.
type Response struct {
	TextResponse  string `json:"textResponse"`
	AudioResponse string `json:"audioResponse"`
}

// Client posts captures to the assistant webhook.
type Client struct {
	url    string
	source string
	http   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the shared HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithSource sets the source tag sent with every upload.
func WithSource(tag string) Option {
	return func(c *Client) { c.source = tag }
}

// New creates a webhook client.
func New(url string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, ErrNoWebhook
	}
	c := &Client{url: url, source: "fieldlens", http: httpc.Client}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL returns the webhook endpoint.
func (c *Client) URL() string {
	return c.url
}

// Submit posts the image as multipart form data and parses the reply.
// A non-2xx status or transport error is terminal for this attempt;
// the caller surfaces it and the user resubmits manually.
func (c *Client) Submit(ctx context.Context, img *capture.Image, req Request) (*Response, error) {
	body, contentType, err := encodeMultipart(img, req, c.source)
	if err != nil {
		return nil, fmt.Errorf("assistant: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("assistant: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("assistant: upload failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("assistant: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	// An empty body is a bare success acknowledgment.
	if len(bytes.TrimSpace(raw)) == 0 {
		return &Response{}, nil
	}

	var parsed Response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// A non-JSON 2xx body still acknowledges the upload.
		return &Response{}, nil
	}
	return &parsed, nil
}

func encodeMultipart(img *capture.Image, req Request, source string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	filename := req.NormalizedFilename()

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", img.MimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Bytes); err != nil {
		return nil, "", err
	}

	fields := map[string]string{
		"filename":    filename,
		"filetype":    img.MimeType,
		"source":      source,
		"timestamp":   req.CapturedAt.UTC().Format(time.RFC3339),
		"orientation": strconv.Itoa(int(req.Orientation)),
	}
	if req.WantAudio {
		fields["wantAudio"] = "true"
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}
