// Package scram implements the client side of SCRAM-SHA-256 (RFC 5802,
// RFC 7677) as used by the RethinkDB V1_0 handshake.
package scram

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// ErrServerSignature is returned when the server-final-message does not
// prove knowledge of the password.
var ErrServerSignature = errors.New("scram: server signature mismatch")

// gs2Header is "n,," (no channel binding, no authzid).
const gs2Header = "n,,"

// GenerateNonce returns 18 random bytes, base64 encoded.
func GenerateNonce() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("scram: generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Client holds the state of one authentication exchange.
type Client struct {
	user      string
	password  string
	nonce     string
	firstBare string
	serverSig []byte
}

// NewClient starts an exchange for user with a fresh nonce.
func NewClient(user, password string) (*Client, error) {
	nonce, err := GenerateNonce()
	if err != nil {
		return nil, err
	}
	return NewClientWithNonce(user, password, nonce), nil
}

// NewClientWithNonce is NewClient with a caller-chosen nonce.
func NewClientWithNonce(user, password, nonce string) *Client {
	return &Client{
		user:      user,
		password:  password,
		nonce:     nonce,
		firstBare: "n=" + escapeUsername(user) + ",r=" + nonce,
	}
}

// ClientFirst returns the client-first-message.
func (c *Client) ClientFirst() string {
	return gs2Header + c.firstBare
}

// ClientFinal consumes the server-first-message and returns the
// client-final-message carrying the proof.
func (c *Client) ClientFinal(serverFirst string) (string, error) {
	sf, err := ParseServerFirst(serverFirst, c.nonce)
	if err != nil {
		return "", err
	}
	withoutProof := "c=" + base64.StdEncoding.EncodeToString([]byte(gs2Header)) + ",r=" + sf.Nonce
	authMsg := c.firstBare + "," + serverFirst + "," + withoutProof
	proof, sig := ComputeProof(c.password, sf.Salt, sf.Iterations, authMsg)
	c.serverSig = sig
	return withoutProof + ",p=" + base64.StdEncoding.EncodeToString(proof), nil
}

// VerifyServerFinal checks the v= field of the server-final-message.
func (c *Client) VerifyServerFinal(serverFinal string) error {
	if c.serverSig == nil {
		return errors.New("scram: server-final before client-final")
	}
	fields, err := parseServerFields(serverFinal)
	if err != nil {
		return err
	}
	if e, ok := fields["e"]; ok {
		return fmt.Errorf("scram: server error: %s", e)
	}
	v, ok := fields["v"]
	if !ok {
		return errors.New("scram: missing verifier field")
	}
	got, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return fmt.Errorf("scram: invalid verifier: %w", err)
	}
	if !hmac.Equal(got, c.serverSig) {
		return ErrServerSignature
	}
	return nil
}

// escapeUsername replaces = with =3D and , with =2C.
func escapeUsername(user string) string {
	user = strings.ReplaceAll(user, "=", "=3D")
	return strings.ReplaceAll(user, ",", "=2C")
}

// ServerFirst holds the fields of a server-first-message.
type ServerFirst struct {
	Nonce      string
	Salt       []byte
	Iterations int
}

func parseServerFields(msg string) (map[string]string, error) {
	fields := make(map[string]string)
	for _, part := range strings.Split(msg, ",") {
		if len(part) < 2 || part[1] != '=' {
			return nil, fmt.Errorf("scram: malformed field %q", part)
		}
		fields[part[:1]] = part[2:]
	}
	return fields, nil
}

// ParseServerFirst parses msg and checks that the combined nonce extends
// clientNonce.
func ParseServerFirst(msg, clientNonce string) (*ServerFirst, error) {
	fields, err := parseServerFields(msg)
	if err != nil {
		return nil, err
	}

	nonce, ok := fields["r"]
	if !ok {
		return nil, errors.New("scram: missing nonce field")
	}
	if !strings.HasPrefix(nonce, clientNonce) || len(nonce) == len(clientNonce) {
		return nil, errors.New("scram: server nonce does not extend client nonce")
	}

	saltB64, ok := fields["s"]
	if !ok {
		return nil, errors.New("scram: missing salt field")
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, fmt.Errorf("scram: invalid salt: %w", err)
	}

	iterStr, ok := fields["i"]
	if !ok {
		return nil, errors.New("scram: missing iteration count field")
	}
	iter, err := strconv.Atoi(iterStr)
	if err != nil || iter < 1 {
		return nil, fmt.Errorf("scram: invalid iteration count %q", iterStr)
	}

	return &ServerFirst{Nonce: nonce, Salt: salt, Iterations: iter}, nil
}

// ComputeProof returns the ClientProof and the expected ServerSignature
// for authMsg.
func ComputeProof(password string, salt []byte, iter int, authMsg string) (clientProof, serverSig []byte) {
	salted := pbkdf2.Key([]byte(password), salt, iter, sha256.Size, sha256.New)

	clientKey := hmacSHA256(salted, []byte("Client Key"))
	storedKey := sha256.Sum256(clientKey)
	clientSig := hmacSHA256(storedKey[:], []byte(authMsg))
	clientProof = make([]byte, len(clientKey))
	for i := range clientKey {
		clientProof[i] = clientKey[i] ^ clientSig[i]
	}

	serverKey := hmacSHA256(salted, []byte("Server Key"))
	return clientProof, hmacSHA256(serverKey, []byte(authMsg))
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
