package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"reqlkit/internal/proto"
)

// Error kinds, matched with errors.Is against a *ServerError.
var (
	ErrClient        = errors.New("reql: client error")
	ErrCompile       = errors.New("reql: compile error")
	ErrRuntime       = errors.New("reql: runtime error")
	ErrNonExistence  = errors.New("reql: non-existence error")
	ErrPermission    = errors.New("reql: permission error")
	ErrOpFailed      = errors.New("reql: operation failed")
	ErrResourceLimit = errors.New("reql: resource limit")
)

// ServerError is an error response from the server.
type ServerError struct {
	Type      proto.ResponseType
	ErrType   proto.ErrorType
	Msg       string
	Backtrace []json.RawMessage
}

func (e *ServerError) Error() string {
	if len(e.Backtrace) == 0 {
		return e.Msg
	}
	frames := make([]string, len(e.Backtrace))
	for i, f := range e.Backtrace {
		frames[i] = string(f)
	}
	return fmt.Sprintf("%s\nBacktrace: %s", e.Msg, strings.Join(frames, ", "))
}

// Is matches the kind sentinels. Every runtime error is ErrRuntime as
// well as its refined kind.
func (e *ServerError) Is(target error) bool {
	switch e.Type {
	case proto.ResponseClientError:
		return target == ErrClient
	case proto.ResponseCompileError:
		return target == ErrCompile
	case proto.ResponseRuntimeError:
		if target == ErrRuntime {
			return true
		}
		switch e.ErrType {
		case proto.ErrorNonExistence:
			return target == ErrNonExistence
		case proto.ErrorPermission:
			return target == ErrPermission
		case proto.ErrorOpFailed, proto.ErrorOpIndeterminate:
			return target == ErrOpFailed
		case proto.ErrorResourceLimit:
			return target == ErrResourceLimit
		}
	}
	return false
}

// MapError returns the error carried by resp, or nil for success types.
func MapError(resp *Response) error {
	if !resp.Type.IsError() {
		return nil
	}
	switch resp.Type {
	case proto.ResponseClientError, proto.ResponseCompileError, proto.ResponseRuntimeError:
		return &ServerError{
			Type:      resp.Type,
			ErrType:   resp.ErrType,
			Msg:       firstMessage(resp.Results),
			Backtrace: resp.Backtrace,
		}
	default:
		return fmt.Errorf("reql: unknown error response type %d: %s", resp.Type, firstMessage(resp.Results))
	}
}

func firstMessage(results []json.RawMessage) string {
	if len(results) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(results[0], &s); err != nil {
		return string(results[0])
	}
	return s
}
