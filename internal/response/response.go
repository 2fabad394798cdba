// Package response decodes server response envelopes and turns error
// responses into Go errors.
package response

import (
	"encoding/json"
	"fmt"

	"reqlkit/internal/proto"
)

// Response is a decoded response envelope.
type Response struct {
	Type      proto.ResponseType   `json:"t"`
	Results   []json.RawMessage    `json:"r"`
	ErrType   proto.ErrorType      `json:"e,omitempty"`
	Backtrace []json.RawMessage    `json:"b,omitempty"`
	Notes     []proto.ResponseNote `json:"n,omitempty"`
	Profile   json.RawMessage      `json:"p,omitempty"`
}

// Parse decodes a raw payload.
func Parse(data []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("response: parse: %w", err)
	}
	if r.Type == 0 {
		return nil, fmt.Errorf("response: missing response type in %q", truncate(data, 64))
	}
	return &r, nil
}

// IsFeed reports whether the response belongs to a changefeed.
func (r *Response) IsFeed() bool {
	for _, n := range r.Notes {
		if n.IsFeed() {
			return true
		}
	}
	return false
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
