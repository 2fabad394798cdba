// Package conn maintains a single multiplexed RethinkDB connection: one
// writer at a time, and a background read loop that hands each response
// frame to the caller waiting on its token.
package conn

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"reqlkit/internal/wire"
)

// ErrClosed is returned when a query is sent on a closed connection.
var ErrClosed = errors.New("conn: connection closed")

// stopPayload is a STOP query.
var stopPayload = []byte(`[3]`)

type result struct {
	payload []byte
	err     error
}

// Config holds connection parameters.
type Config struct {
	Host     string       `json:"host"`
	Port     int          `json:"port"`
	User     string       `json:"user"`
	Password string       `json:"-"`
	TLS      *tls.Config  `json:"-"`
	Logger   *slog.Logger `json:"-"`
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// String returns Config without the password.
func (c Config) String() string {
	return fmt.Sprintf("conn{%s user=%s tls=%t}", c.Addr(), c.User, c.TLS != nil)
}

// Conn is safe for concurrent use.
type Conn struct {
	ID string

	token   atomic.Uint64
	nc      net.Conn
	log     *slog.Logger
	mu      sync.Mutex
	waiters map[uint64]chan result
	writeMu sync.Mutex
	closed  bool
	done    chan struct{}
}

// Dial connects to cfg.Addr(), performs the handshake and starts the
// read loop. The handshake is abandoned if ctx ends first.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	addr := cfg.Addr()
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	id := uuid.NewString()
	log = log.With("conn", id)

	nc, err := dialNet(ctx, addr, cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	log.Debug("dialed", "addr", addr, "tls", cfg.TLS != nil)

	type hsResult struct {
		version string
		err     error
	}
	hsC := make(chan hsResult, 1)
	go func() {
		v, err := Handshake(nc, cfg.User, cfg.Password)
		hsC <- hsResult{v, err}
	}()

	select {
	case <-ctx.Done():
		_ = nc.Close()
		<-hsC
		return nil, fmt.Errorf("dial %s: %w", addr, ctx.Err())
	case res := <-hsC:
		if res.err != nil {
			_ = nc.Close()
			log.Debug("handshake failed", "err", res.err)
			return nil, fmt.Errorf("dial %s: %w", addr, res.err)
		}
		log.Debug("handshake complete", "user", cfg.User, "server_version", res.version)
	}
	c := newConn(nc, log)
	c.ID = id
	return c, nil
}

func dialNet(ctx context.Context, addr string, tlsCfg *tls.Config) (net.Conn, error) {
	d := &net.Dialer{}
	if tlsCfg != nil {
		td := tls.Dialer{NetDialer: d, Config: tlsCfg}
		return td.DialContext(ctx, "tcp", addr)
	}
	return d.DialContext(ctx, "tcp", addr)
}

// newConn wraps an already authenticated nc.
func newConn(nc net.Conn, log *slog.Logger) *Conn {
	c := &Conn{
		nc:      nc,
		log:     log,
		waiters: make(map[uint64]chan result),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// IsClosed reports whether the connection is closed.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close closes the socket and waits for the read loop to release every
// pending Send.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.nc.Close()
	<-c.done
	c.log.Debug("closed")
	return err
}

// Send writes payload under token and waits for the matching response.
// If ctx ends first a STOP is sent for token and ctx.Err() returned.
func (c *Conn) Send(ctx context.Context, token uint64, payload []byte) ([]byte, error) {
	ch := make(chan result, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.waiters[token] = ch
	c.mu.Unlock()

	if err := c.write(token, payload); err != nil {
		c.removeWaiter(token)
		return nil, fmt.Errorf("send: %w", err)
	}

	select {
	case <-ctx.Done():
		c.removeWaiter(token)
		c.log.Debug("query cancelled, sending stop", "token", token)
		_ = c.write(token, stopPayload)
		return nil, ctx.Err()
	case res := <-ch:
		return res.payload, res.err
	}
}

// WriteFrame writes a frame with no response waiter, for noreply
// queries and STOP.
func (c *Conn) WriteFrame(token uint64, payload []byte) error {
	if c.IsClosed() {
		return ErrClosed
	}
	return c.write(token, payload)
}

// NextToken returns a fresh query token. Tokens start at 1.
func (c *Conn) NextToken() uint64 {
	return c.token.Add(1)
}

func (c *Conn) write(token uint64, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.log.Debug("wire out", "token", token, "bytes", len(payload), "payload", string(payload))
	return wire.WriteQuery(c.nc, token, payload)
}

func (c *Conn) removeWaiter(token uint64) {
	c.mu.Lock()
	delete(c.waiters, token)
	c.mu.Unlock()
}

func (c *Conn) readLoop() {
	defer close(c.done)
	for {
		token, payload, err := wire.ReadResponse(c.nc)
		if err != nil {
			// Close does not reach nc once closed is set by closeWaiters.
			_ = c.nc.Close()
			if !c.IsClosed() {
				c.log.Debug("read loop stopped", "err", err)
			}
			c.closeWaiters(fmt.Errorf("conn: %w", err))
			return
		}
		c.log.Debug("wire in", "token", token, "bytes", len(payload))
		c.dispatch(token, payload)
	}
}

// dispatch hands payload to the waiter for token. Frames for tokens
// nobody waits on (stopped or noreply queries) are dropped.
func (c *Conn) dispatch(token uint64, payload []byte) {
	c.mu.Lock()
	ch, ok := c.waiters[token]
	delete(c.waiters, token)
	c.mu.Unlock()
	if ok {
		ch <- result{payload: payload}
	}
}

func (c *Conn) closeWaiters(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for token, ch := range c.waiters {
		ch <- result{err: err}
		delete(c.waiters, token)
	}
}
