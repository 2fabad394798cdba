// Package wire implements the RethinkDB query frame: an 8-byte
// little-endian token, a 4-byte little-endian payload length, then the
// JSON payload.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"reqlkit/internal/proto"
)

// HeaderSize is the length of a frame header in bytes.
const HeaderSize = 12

// Encode builds a frame for token and payload.
func Encode(token uint64, payload []byte) ([]byte, error) {
	if len(payload) > int(proto.MaxFrameSize) {
		return nil, fmt.Errorf("wire: payload length %d exceeds max %d", len(payload), proto.MaxFrameSize)
	}
	frame := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint64(frame[0:8], token)
	binary.LittleEndian.PutUint32(frame[8:12], uint32(len(payload))) //nolint:gosec // bounded by MaxFrameSize
	copy(frame[HeaderSize:], payload)
	return frame, nil
}

// DecodeHeader splits a frame header into token and payload length.
func DecodeHeader(hdr [HeaderSize]byte) (token uint64, length uint32) {
	return binary.LittleEndian.Uint64(hdr[0:8]), binary.LittleEndian.Uint32(hdr[8:12])
}

// ReadResponse reads one frame from r. Payloads over proto.MaxFrameSize
// are rejected before any allocation.
func ReadResponse(r io.Reader) (token uint64, payload []byte, err error) {
	var hdr [HeaderSize]byte
	if _, err = io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, fmt.Errorf("wire: read header: %w", err)
	}
	token, length := DecodeHeader(hdr)
	if length > proto.MaxFrameSize {
		return 0, nil, fmt.Errorf("wire: payload length %d exceeds max %d", length, proto.MaxFrameSize)
	}
	payload = make([]byte, length)
	if _, err = io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("wire: read payload: %w", err)
	}
	return token, payload, nil
}

// WriteQuery frames payload and writes it to w in a single Write call.
func WriteQuery(w io.Writer, token uint64, payload []byte) error {
	frame, err := Encode(token, payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("wire: write query: %w", err)
	}
	return nil
}
