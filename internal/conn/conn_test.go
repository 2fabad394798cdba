package conn

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"reqlkit/internal/wire"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pipeConn returns a Conn whose peer end is handed to the caller.
func pipeConn(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	c := newConn(client, discardLogger())
	t.Cleanup(func() {
		_ = c.Close()
		_ = server.Close()
	})
	return c, server
}

func TestNextTokenMonotonic(t *testing.T) {
	t.Parallel()
	c := &Conn{}
	if first := c.NextToken(); first != 1 {
		t.Fatalf("first token=%d, want 1", first)
	}
	prev := uint64(1)
	for range 100 {
		next := c.NextToken()
		if next <= prev {
			t.Fatalf("token %d is not greater than previous %d", next, prev)
		}
		prev = next
	}
}

func TestNextTokenConcurrentNoDuplicates(t *testing.T) {
	t.Parallel()
	const goroutines, tokensEach = 50, 100

	c := &Conn{}
	seen := make(map[uint64]struct{}, goroutines*tokensEach)
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range tokensEach {
				tok := c.NextToken()
				mu.Lock()
				if _, dup := seen[tok]; dup {
					t.Errorf("duplicate token: %d", tok)
				}
				seen[tok] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

func TestConfig(t *testing.T) {
	t.Parallel()
	cfg := Config{Host: "db.local", Port: 28015, User: "admin", Password: "supersecret"}
	if got := cfg.Addr(); got != "db.local:28015" {
		t.Errorf("Addr()=%q", got)
	}
	if s := cfg.String(); strings.Contains(s, "supersecret") {
		t.Fatalf("Config.String() leaks password: %q", s)
	}
	if got := (Config{Host: "::1", Port: 1}).Addr(); got != "[::1]:1" {
		t.Errorf("IPv6 Addr()=%q", got)
	}
}

func TestSend_RoutesByToken(t *testing.T) {
	t.Parallel()
	c, server := pipeConn(t)

	// answer two queries out of order
	go func() {
		var toks []uint64
		for range 2 {
			tok, _, err := wire.ReadResponse(server)
			if err != nil {
				return
			}
			toks = append(toks, tok)
		}
		for i := len(toks) - 1; i >= 0; i-- {
			_ = wire.WriteQuery(server, toks[i], []byte(`{"t":1,"r":[`+strconv.FormatUint(toks[i], 10)+`]}`))
		}
	}()

	var wg sync.WaitGroup
	got := make([]string, 3)
	for _, tok := range []uint64{1, 2} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := c.Send(context.Background(), tok, []byte(`[1,null,{}]`))
			if err != nil {
				t.Errorf("Send(%d): %v", tok, err)
				return
			}
			got[tok] = string(resp)
		}()
	}
	wg.Wait()
	if got[1] != `{"t":1,"r":[1]}` || got[2] != `{"t":1,"r":[2]}` {
		t.Errorf("responses misrouted: %q", got[1:])
	}
}

func TestSend_CancelSendsStop(t *testing.T) {
	t.Parallel()
	c, server := pipeConn(t)

	frames := make(chan string, 2)
	go func() {
		for {
			_, payload, err := wire.ReadResponse(server)
			if err != nil {
				return
			}
			frames <- string(payload)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	errC := make(chan error, 1)
	go func() {
		_, err := c.Send(ctx, 7, []byte(`[1,[59,[]],{}]`))
		errC <- err
	}()
	if got := <-frames; got != `[1,[59,[]],{}]` {
		t.Fatalf("first frame=%q", got)
	}
	cancel()
	if err := <-errC; !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	select {
	case got := <-frames:
		if got != `[3]` {
			t.Errorf("after cancel got %q, want STOP", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no STOP frame after cancel")
	}
}

func TestSend_PeerCloseFailsPending(t *testing.T) {
	t.Parallel()
	c, server := pipeConn(t)

	go func() {
		_, _, _ = wire.ReadResponse(server)
		_ = server.Close()
	}()
	_, err := c.Send(context.Background(), 1, []byte(`[1,null,{}]`))
	if err == nil {
		t.Fatal("expected error after peer close")
	}
	<-c.done
	if !c.IsClosed() {
		t.Error("connection not marked closed")
	}
	if _, err := c.Send(context.Background(), 2, []byte(`[2]`)); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after close err=%v, want ErrClosed", err)
	}
	if err := c.WriteFrame(3, []byte(`[3]`)); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteFrame after close err=%v, want ErrClosed", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()
	c, _ := pipeConn(t)
	if err := c.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestDial_Cancelled(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("listen: %v", err)
	}
	defer ln.Close()
	// accept and never answer the handshake
	go func() {
		nc, err := ln.Accept()
		if err == nil {
			defer nc.Close()
			_, _ = io.Copy(io.Discard, nc)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = Dial(ctx, Config{Host: "127.0.0.1", Port: addr.Port, User: "admin"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v, want DeadlineExceeded", err)
	}
}
