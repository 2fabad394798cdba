// Package cursor iterates over query results: a single atom, a complete
// sequence, or a stream fetched batch by batch.
package cursor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"reqlkit/internal/proto"
	"reqlkit/internal/response"
)

// Cursor yields raw JSON rows. Next returns io.EOF when exhausted.
type Cursor interface {
	Next() (json.RawMessage, error)
	All() ([]json.RawMessage, error)
	Close() error
}

type atomCursor struct {
	item    json.RawMessage
	hasItem bool
	done    bool
}

// NewAtom returns a cursor over the single value of a SUCCESS_ATOM
// response.
func NewAtom(resp *response.Response) Cursor {
	if len(resp.Results) > 0 {
		return &atomCursor{item: resp.Results[0], hasItem: true}
	}
	return &atomCursor{}
}

func (c *atomCursor) Next() (json.RawMessage, error) {
	if c.done || !c.hasItem {
		return nil, io.EOF
	}
	c.done = true
	return c.item, nil
}

func (c *atomCursor) All() ([]json.RawMessage, error) {
	if !c.hasItem {
		return nil, nil
	}
	return []json.RawMessage{c.item}, nil
}

func (c *atomCursor) Close() error { return nil }

type seqCursor struct {
	items []json.RawMessage
	pos   int
}

// NewSequence returns a cursor over a SUCCESS_SEQUENCE response.
func NewSequence(resp *response.Response) Cursor {
	return &seqCursor{items: resp.Results}
}

func (c *seqCursor) Next() (json.RawMessage, error) {
	if c.pos >= len(c.items) {
		return nil, io.EOF
	}
	item := c.items[c.pos]
	c.pos++
	return item, nil
}

func (c *seqCursor) All() ([]json.RawMessage, error) {
	rest := c.items[c.pos:]
	c.pos = len(c.items)
	return rest, nil
}

func (c *seqCursor) Close() error { return nil }

// Fetcher continues or abandons the stream behind a cursor.
type Fetcher interface {
	// Continue sends CONTINUE and returns the next batch.
	Continue(ctx context.Context) (*response.Response, error)
	// Stop sends STOP without waiting for a reply.
	Stop() error
}

// ErrFeed is returned by All on a changefeed, which never ends.
var ErrFeed = errors.New("cursor: All called on an infinite changefeed")

type streamCursor struct {
	ctx   context.Context
	fetch Fetcher
	feed  bool

	mu     sync.Mutex
	buf    []json.RawMessage
	more   bool
	closed bool
	err    error
}

// NewStream returns a cursor that starts with the rows of a
// SUCCESS_PARTIAL response and fetches further batches on demand. If
// ctx ends while rows remain on the server, the stream is stopped.
func NewStream(ctx context.Context, first *response.Response, f Fetcher) Cursor {
	return &streamCursor{
		ctx:   ctx,
		fetch: f,
		feed:  first.IsFeed(),
		buf:   first.Results,
		more:  first.Type == proto.ResponseSuccessPartial,
	}
}

func (c *streamCursor) Next() (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.buf) == 0 {
		if c.err != nil {
			return nil, c.err
		}
		if c.closed || !c.more {
			return nil, io.EOF
		}
		if err := c.ctx.Err(); err != nil {
			c.stopLocked()
			c.err = err
			return nil, err
		}
		c.fetchLocked()
	}
	item := c.buf[0]
	c.buf = c.buf[1:]
	return item, nil
}

// fetchLocked loads the next batch into buf, or records why it could not.
func (c *streamCursor) fetchLocked() {
	resp, err := c.fetch.Continue(c.ctx)
	if err != nil {
		// a failed CONTINUE leaves nothing to stop: the connection is
		// gone or the cancelled send already issued STOP
		c.more = false
		c.err = err
		return
	}
	if err := response.MapError(resp); err != nil {
		c.more = false
		c.err = err
		return
	}
	switch resp.Type {
	case proto.ResponseSuccessPartial:
	case proto.ResponseSuccessSequence:
		c.more = false
	default:
		c.more = false
		c.err = fmt.Errorf("cursor: unexpected response type %d in stream", resp.Type)
		return
	}
	c.buf = resp.Results
}

func (c *streamCursor) All() ([]json.RawMessage, error) {
	if c.feed {
		return nil, ErrFeed
	}
	var out []json.RawMessage
	for {
		item, err := c.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
}

// Close stops the stream on the server if it has not finished.
func (c *streamCursor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.buf = nil
	return c.stopLocked()
}

func (c *streamCursor) stopLocked() error {
	if !c.more {
		return nil
	}
	c.more = false
	return c.fetch.Stop()
}
