// Package query runs built queries over a managed connection.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"reqlkit/internal/conn"
	"reqlkit/internal/connmgr"
	"reqlkit/internal/cursor"
	"reqlkit/internal/proto"
	"reqlkit/internal/reql"
	"reqlkit/internal/response"
)

// Executor sends queries and wraps their responses in cursors.
type Executor struct {
	mgr *connmgr.ConnManager
	log *slog.Logger
}

// New returns an Executor on mgr. A nil log discards output.
func New(mgr *connmgr.ConnManager, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{mgr: mgr, log: log}
}

// Build returns the START envelope for q without sending it.
func (e *Executor) Build(q reql.Query, opts reql.OptArgs) ([]byte, error) {
	payload, err := reql.BuildQuery(proto.QueryStart, q, opts)
	if err != nil {
		return nil, fmt.Errorf("query: build: %w", err)
	}
	return payload, nil
}

// Run sends q and returns a cursor over its results. With the noreply
// option set, Run returns a nil cursor as soon as the frame is written.
func (e *Executor) Run(ctx context.Context, q reql.Query, opts reql.OptArgs) (cursor.Cursor, error) {
	payload, err := e.Build(q, opts)
	if err != nil {
		return nil, err
	}
	c, err := e.mgr.Get(ctx)
	if err != nil {
		return nil, err
	}
	token := c.NextToken()
	if noreply, _ := opts["noreply"].(bool); noreply {
		e.log.Debug("query noreply", "token", token, "type", q.Type())
		return nil, c.WriteFrame(token, payload)
	}

	start := time.Now()
	raw, err := c.Send(ctx, token, payload)
	if err != nil {
		return nil, fmt.Errorf("query: send: %w", err)
	}
	resp, err := response.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	e.log.Debug("query response", "token", token, "type", q.Type(), "response", resp.Type,
		"rows", len(resp.Results), "elapsed", time.Since(start))
	if err := response.MapError(resp); err != nil {
		return nil, err
	}

	switch resp.Type {
	case proto.ResponseSuccessAtom:
		return cursor.NewAtom(resp), nil
	case proto.ResponseSuccessSequence:
		return cursor.NewSequence(resp), nil
	case proto.ResponseSuccessPartial:
		return cursor.NewStream(ctx, resp, &stream{c: c, token: token}), nil
	default:
		return nil, fmt.Errorf("query: unexpected response type %d", resp.Type)
	}
}

// stream fetches further batches for one token.
type stream struct {
	c     *conn.Conn
	token uint64
}

func (s *stream) Continue(ctx context.Context) (*response.Response, error) {
	payload, _ := reql.BuildQuery(proto.QueryContinue, reql.Query{}, nil)
	raw, err := s.c.Send(ctx, s.token, payload)
	if err != nil {
		return nil, fmt.Errorf("query: continue: %w", err)
	}
	return response.Parse(raw)
}

func (s *stream) Stop() error {
	payload, _ := reql.BuildQuery(proto.QueryStop, reql.Query{}, nil)
	if err := s.c.WriteFrame(s.token, payload); err != nil && !errors.Is(err, conn.ErrClosed) {
		return fmt.Errorf("query: stop: %w", err)
	}
	return nil
}

// ServerInfo describes the connected server.
type ServerInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Proxy bool   `json:"proxy"`
}

// ServerInfo sends a SERVER_INFO query.
func (e *Executor) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	resp, err := e.control(ctx, proto.QueryServerInfo, proto.ResponseServerInfo)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, errors.New("query: empty server info response")
	}
	var info ServerInfo
	if err := json.Unmarshal(resp.Results[0], &info); err != nil {
		return nil, fmt.Errorf("query: parse server info: %w", err)
	}
	return &info, nil
}

// NoreplyWait blocks until the server has processed every noreply query
// sent on the connection.
func (e *Executor) NoreplyWait(ctx context.Context) error {
	_, err := e.control(ctx, proto.QueryNoreplyWait, proto.ResponseWaitComplete)
	return err
}

func (e *Executor) control(ctx context.Context, qt proto.QueryType, want proto.ResponseType) (*response.Response, error) {
	c, err := e.mgr.Get(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := reql.BuildQuery(qt, reql.Query{}, nil)
	if err != nil {
		return nil, err
	}
	raw, err := c.Send(ctx, c.NextToken(), payload)
	if err != nil {
		return nil, fmt.Errorf("query: send: %w", err)
	}
	resp, err := response.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if err := response.MapError(resp); err != nil {
		return nil, err
	}
	if resp.Type != want {
		return nil, fmt.Errorf("query: unexpected response type %d", resp.Type)
	}
	return resp, nil
}
