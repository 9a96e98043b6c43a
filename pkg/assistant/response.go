package assistant

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// HasText reports whether the reply carries text to show in the panel.
func (r *Response) HasText() bool {
	return strings.TrimSpace(r.TextResponse) != ""
}

// HasAudio reports whether the reply carries an audio payload.
func (r *Response) HasAudio() bool {
	return strings.TrimSpace(r.AudioResponse) != ""
}

// AudioBytes decodes the audio payload. The field is assumed to be
// base64 MP3 (audio/mpeg) unless it is already a data URI, whose
// payload is extracted, or a blob URI, which is rejected: a blob
// reference only resolved inside the page that minted it.
func (r *Response) AudioBytes() ([]byte, error) {
	s := strings.TrimSpace(r.AudioResponse)
	if s == "" {
		return nil, ErrNoAudio
	}

	if strings.HasPrefix(s, "blob:") {
		return nil, ErrBlobAudio
	}

	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, fmt.Errorf("assistant: malformed data URI")
		}
		meta, payload := s[5:comma], s[comma+1:]
		if !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("assistant: unsupported data URI encoding %q", meta)
		}
		s = payload
	}

	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("assistant: decode audio: %w", err)
	}
	return raw, nil
}
