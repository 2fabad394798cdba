package conn

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"reqlkit/internal/proto"
	"reqlkit/internal/scram"
)

// ErrReqlAuth marks an authentication failure (server error_code 10-20).
var ErrReqlAuth = errors.New("reql: authentication error")

type authRequest struct {
	ProtocolVersion      *int   `json:"protocol_version,omitempty"`
	AuthenticationMethod string `json:"authentication_method,omitempty"`
	Authentication       string `json:"authentication"`
}

type versionResponse struct {
	Success            bool   `json:"success"`
	MinProtocolVersion int    `json:"min_protocol_version"`
	MaxProtocolVersion int    `json:"max_protocol_version"`
	ServerVersion      string `json:"server_version"`
	Error              string `json:"error"`
}

type authResponse struct {
	Success        bool   `json:"success"`
	Authentication string `json:"authentication"`
	Error          string `json:"error"`
	ErrorCode      int    `json:"error_code"`
}

// Handshake runs the V1_0 handshake with SCRAM-SHA-256 over rw and
// returns the server version string.
func Handshake(rw io.ReadWriter, user, password string) (string, error) {
	client, err := scram.NewClient(user, password)
	if err != nil {
		return "", err
	}
	return handshake(rw, client)
}

func handshake(rw io.ReadWriter, client *scram.Client) (string, error) {
	if _, err := rw.Write(magicBytes()); err != nil {
		return "", fmt.Errorf("handshake: write version: %w", err)
	}
	raw, err := readNullTerminated(rw)
	if err != nil {
		return "", fmt.Errorf("handshake: %w", err)
	}
	ver, err := parseVersion(raw)
	if err != nil {
		return "", err
	}

	zero := 0
	first := authRequest{
		ProtocolVersion:      &zero,
		AuthenticationMethod: "SCRAM-SHA-256",
		Authentication:       client.ClientFirst(),
	}
	serverFirst, err := exchange(rw, first, "server-first")
	if err != nil {
		return "", err
	}
	clientFinal, err := client.ClientFinal(serverFirst)
	if err != nil {
		return "", fmt.Errorf("handshake: %w", err)
	}
	serverFinal, err := exchange(rw, authRequest{Authentication: clientFinal}, "server-final")
	if err != nil {
		return "", err
	}
	if err := client.VerifyServerFinal(serverFinal); err != nil {
		return "", fmt.Errorf("handshake: %w", err)
	}
	return ver.ServerVersion, nil
}

// magicBytes is proto.V1_0 as 4 little-endian bytes.
func magicBytes() []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(proto.V1_0))
	return b
}

// exchange writes req as a null-terminated JSON message and returns the
// authentication field of the reply.
func exchange(rw io.ReadWriter, req authRequest, step string) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("handshake: encode %s request: %w", step, err)
	}
	if err := writeNullTerminated(rw, data); err != nil {
		return "", fmt.Errorf("handshake: %w", err)
	}
	raw, err := readNullTerminated(rw)
	if err != nil {
		return "", fmt.Errorf("handshake: %w", err)
	}
	return parseAuth(raw, step)
}

func parseVersion(data []byte) (*versionResponse, error) {
	var resp versionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		// pre-V1_0 servers answer with a bare error string
		return nil, fmt.Errorf("handshake: unexpected server reply %q", data)
	}
	if !resp.Success {
		return nil, fmt.Errorf("handshake: server rejected protocol: %s", resp.Error)
	}
	if resp.MinProtocolVersion > 0 || resp.MaxProtocolVersion < 0 {
		return nil, fmt.Errorf("handshake: server protocol range [%d,%d] excludes 0",
			resp.MinProtocolVersion, resp.MaxProtocolVersion)
	}
	return &resp, nil
}

// parseAuth returns the authentication field of a SCRAM step reply.
// Error codes 10-20 wrap ErrReqlAuth.
func parseAuth(data []byte, step string) (string, error) {
	var resp authResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("handshake: decode %s: %w", step, err)
	}
	if !resp.Success {
		if resp.ErrorCode >= 10 && resp.ErrorCode <= 20 {
			return "", fmt.Errorf("%w: %s", ErrReqlAuth, resp.Error)
		}
		return "", fmt.Errorf("handshake: %s failed: %s", step, resp.Error)
	}
	return resp.Authentication, nil
}

// maxHandshakeMessage bounds a single handshake reply.
const maxHandshakeMessage = 16 * 1024

// readNullTerminated reads up to a NUL byte one byte at a time so that
// nothing past the handshake is consumed from r.
func readNullTerminated(r io.Reader) ([]byte, error) {
	var buf []byte
	var b [1]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("read message: %w", err)
		}
		if b[0] == 0 {
			return buf, nil
		}
		if len(buf) == maxHandshakeMessage {
			return nil, fmt.Errorf("read message: exceeds %d bytes", maxHandshakeMessage)
		}
		buf = append(buf, b[0])
	}
}

func writeNullTerminated(w io.Writer, data []byte) error {
	out := make([]byte, len(data)+1)
	copy(out, data)
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}
