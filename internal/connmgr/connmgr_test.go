package connmgr

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"reqlkit/internal/conn"
	"reqlkit/internal/conn/conntest"
)

func countingDial(cfg conn.Config, n *atomic.Int32) DialFunc {
	return func(ctx context.Context) (*conn.Conn, error) {
		n.Add(1)
		return conn.Dial(ctx, cfg)
	}
}

func waitClosed(t *testing.T, c *conn.Conn) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !c.IsClosed() {
		time.Sleep(time.Millisecond)
	}
	if !c.IsClosed() {
		t.Fatal("connection not marked closed after 2s")
	}
}

func TestGet_DialsOnceAndReuses(t *testing.T) {
	t.Parallel()
	srv := conntest.Start(t, "pw", nil)
	var dials atomic.Int32
	mgr := New(countingDial(srv.Config(), &dials))
	defer mgr.Close()

	c1, err := mgr.Get(context.Background())
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}
	c2, err := mgr.Get(context.Background())
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if c1 != c2 {
		t.Fatal("second Get returned a different connection")
	}
	if n := dials.Load(); n != 1 {
		t.Fatalf("dial called %d times, want 1", n)
	}
}

func TestGet_RedialsAfterDrop(t *testing.T) {
	t.Parallel()
	srv := conntest.Start(t, "pw", nil)
	srv.DropNext(1)
	mgr := NewFromConfig(srv.Config())
	defer mgr.Close()

	c1, err := mgr.Get(context.Background())
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}
	waitClosed(t, c1)

	c2, err := mgr.Get(context.Background())
	if err != nil {
		t.Fatalf("reconnect Get: %v", err)
	}
	if c1 == c2 {
		t.Fatal("expected a new connection after drop")
	}
	if srv.Accepts() != 2 {
		t.Errorf("server accepted %d connections, want 2", srv.Accepts())
	}
}

func TestGet_FailedDialNotCached(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	var dials atomic.Int32
	mgr := New(countingDial(conn.Config{Host: "127.0.0.1", Port: port, User: "admin"}, &dials))
	for i := 1; i <= 2; i++ {
		if _, err := mgr.Get(context.Background()); err == nil {
			t.Fatalf("Get #%d: expected dial error", i)
		}
		if n := dials.Load(); int(n) != i {
			t.Fatalf("dial called %d times after %d failures", n, i)
		}
	}
}

func TestClose_ClosesConnection(t *testing.T) {
	t.Parallel()
	srv := conntest.Start(t, "pw", nil)
	mgr := NewFromConfig(srv.Config())

	c, err := mgr.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := c.Send(context.Background(), 1, []byte(`[1,[59,[]],{}]`)); !errors.Is(err, conn.ErrClosed) {
		t.Errorf("Send after Close err=%v, want ErrClosed", err)
	}
	if err := mgr.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
