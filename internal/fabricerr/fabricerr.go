// Package fabricerr defines the stable error taxonomy shared by the
// machine library, the server, and everything in between. Kind values
// cross the machine library's ABI boundary and must not be renumbered.
package fabricerr

import (
	"errors"
	"fmt"
	"syscall"
)

// Kind classifies a fabric error. Values are stable across releases because
// RegisterFunction and friends return them across the C ABI (see
// machine/cabi).
type Kind int

const (
	NoError Kind = iota
	InvalidHandle
	NotConnected
	AlreadyConnected
	NullParameter
	NonUtf8String
	InvalidParameter
	MessageReadError
	MessageWriteError
	InvalidMessageReceived
	DuplicateName
	ServerDisconnected
	Unsupported
	ConnectionRejected
	MissingRequiredValue
	ConnectionError
	OtherError
)

// String returns the wire/ABI-stable name of the error kind.
func (k Kind) String() string {
	switch k {
	case NoError:
		return "no_error"
	case InvalidHandle:
		return "invalid_handle"
	case NotConnected:
		return "not_connected"
	case AlreadyConnected:
		return "already_connected"
	case NullParameter:
		return "null_parameter"
	case NonUtf8String:
		return "non_utf8_string"
	case InvalidParameter:
		return "invalid_parameter"
	case MessageReadError:
		return "message_read_error"
	case MessageWriteError:
		return "message_write_error"
	case InvalidMessageReceived:
		return "invalid_message_received"
	case DuplicateName:
		return "duplicate_name"
	case ServerDisconnected:
		return "server_disconnected"
	case Unsupported:
		return "unsupported"
	case ConnectionRejected:
		return "connection_rejected"
	case MissingRequiredValue:
		return "missing_required_value"
	case ConnectionError:
		return "connection_error"
	case OtherError:
		return "other_error"
	default:
		return "unknown"
	}
}

// Error is a classified fabric error: a stable Kind plus the underlying
// cause and whatever context helps a caller or log line make sense of it.
type Error struct {
	Kind       Kind
	Underlying error
	Context    map[string]interface{}
}

func New(kind Kind, underlying error) *Error {
	return &Error{Kind: kind, Underlying: underlying}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Underlying: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Underlying == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind.String(), e.Underlying)
}

func (e *Error) Unwrap() error { return e.Underlying }

// WithContext attaches a diagnostic key/value and returns the same Error
// for chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is reports whether err carries the given Kind, classifying plain
// broken-pipe style errors from the network stack as ServerDisconnected if
// the caller hasn't already classified them.
func Is(err error, kind Kind) bool {
	fe, ok := err.(*Error)
	if !ok {
		return kind == ServerDisconnected && errors.Is(err, syscall.EPIPE)
	}
	return fe.Kind == kind
}

// KindOf extracts the Kind from err, defaulting to OtherError for
// unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return NoError
	}
	if fe, ok := err.(*Error); ok {
		return fe.Kind
	}
	return OtherError
}
