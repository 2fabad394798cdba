// Package conntest provides an in-process stand-in for a RethinkDB server.
// It speaks the V1_0 handshake with SCRAM-SHA-256 and hands every query
// frame to a Handler.
package conntest

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"reqlkit/internal/conn"
	"reqlkit/internal/proto"
	"reqlkit/internal/scram"
	"reqlkit/internal/wire"
)

// Handler answers one query frame. It may call Reply any number of
// times, including zero for noreply queries.
type Handler func(r *Responder, token uint64, payload []byte)

// Responder writes response frames back to the client.
type Responder struct {
	nc net.Conn
	mu sync.Mutex
}

// Reply marshals v and writes it as the response for token.
func (r *Responder) Reply(token uint64, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = wire.WriteQuery(r.nc, token, b)
}

// Close drops the client connection.
func (r *Responder) Close() { _ = r.nc.Close() }

// Server is a listening fake.
type Server struct {
	Host     string
	Port     int
	User     string
	Password string

	ln      net.Listener
	handler Handler
	drops   atomic.Int32
	accepts atomic.Int32
}

// Start listens on a random loopback port. The server stops when the test
// ends.
func Start(t testing.TB, password string, h Handler) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("conntest: listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	s := &Server{Host: "127.0.0.1", Port: addr.Port, User: "admin", Password: password, ln: ln, handler: h}
	go s.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

// DropNext makes the next n connections close right after the handshake.
func (s *Server) DropNext(n int) { s.drops.Store(int32(n)) } //nolint:gosec // test helper

// Accepts reports how many connections have been accepted.
func (s *Server) Accepts() int { return int(s.accepts.Load()) }

// Config returns a conn.Config that authenticates against s.
func (s *Server) Config() conn.Config {
	return conn.Config{Host: s.Host, Port: s.Port, User: s.User, Password: s.Password}
}

func (s *Server) serve() {
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.accepts.Add(1)
		go s.serveConn(nc)
	}
}

func (s *Server) serveConn(nc net.Conn) {
	defer nc.Close()
	if err := s.handshake(nc); err != nil {
		return
	}
	if s.drops.Add(-1) >= 0 {
		return
	}
	r := &Responder{nc: nc}
	for {
		token, payload, err := wire.ReadResponse(nc)
		if err != nil {
			return
		}
		if s.handler != nil {
			s.handler(r, token, payload)
		}
	}
}

func (s *Server) handshake(nc net.Conn) error {
	var magic [4]byte
	if _, err := io.ReadFull(nc, magic[:]); err != nil {
		return err
	}
	if binary.LittleEndian.Uint32(magic[:]) != uint32(proto.V1_0) {
		_ = writeMsg(nc, []byte("ERROR: Received an unsupported protocol version."))
		return errors.New("conntest: bad magic")
	}
	if err := writeJSON(nc, map[string]interface{}{
		"success": true, "min_protocol_version": 0, "max_protocol_version": 0, "server_version": "2.4.4~conntest",
	}); err != nil {
		return err
	}

	var first struct {
		Authentication string `json:"authentication"`
	}
	if err := readJSON(nc, &first); err != nil {
		return err
	}
	firstBare := strings.TrimPrefix(first.Authentication, "n,,")
	var user, nonce string
	for _, f := range strings.Split(firstBare, ",") {
		switch {
		case strings.HasPrefix(f, "n="):
			user = f[2:]
		case strings.HasPrefix(f, "r="):
			nonce = f[2:]
		}
	}
	if user != s.User {
		_ = writeJSON(nc, map[string]interface{}{"success": false, "error": "Unknown user", "error_code": 17})
		return errors.New("conntest: unknown user")
	}

	salt := []byte("conntest-salt-16")
	const iter = 64
	serverFirst := fmt.Sprintf("r=%sSRV,s=%s,i=%d", nonce, base64.StdEncoding.EncodeToString(salt), iter)
	if err := writeJSON(nc, map[string]interface{}{"success": true, "authentication": serverFirst}); err != nil {
		return err
	}

	var final struct {
		Authentication string `json:"authentication"`
	}
	if err := readJSON(nc, &final); err != nil {
		return err
	}
	idx := strings.LastIndex(final.Authentication, ",p=")
	if idx < 0 {
		return errors.New("conntest: missing proof")
	}
	authMsg := firstBare + "," + serverFirst + "," + final.Authentication[:idx]
	proof, sig := scram.ComputeProof(s.Password, salt, iter, authMsg)
	if final.Authentication[idx+3:] != base64.StdEncoding.EncodeToString(proof) {
		_ = writeJSON(nc, map[string]interface{}{"success": false, "error": "Wrong password", "error_code": 12})
		return errors.New("conntest: wrong password")
	}
	return writeJSON(nc, map[string]interface{}{
		"success": true, "authentication": "v=" + base64.StdEncoding.EncodeToString(sig),
	})
}

func writeMsg(w io.Writer, b []byte) error {
	_, err := w.Write(append(b, 0))
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return writeMsg(w, b)
}

func readJSON(r io.Reader, v interface{}) error {
	var buf []byte
	var b [1]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		if b[0] == 0 {
			return json.Unmarshal(buf, v)
		}
		buf = append(buf, b[0])
	}
}
