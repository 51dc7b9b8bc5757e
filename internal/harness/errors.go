// ABOUTME: Failure taxonomy for probes and streaming requests
// ABOUTME: Transport, protocol and server errors wrap their cause for errors.Is/As

package harness

import (
	"errors"
	"fmt"
)

// ErrUnhealthy is returned by Run when the liveness check fails.
var ErrUnhealthy = errors.New("server is not healthy")

// ErrorKind classifies why a request failed.
type ErrorKind int

const (
	// TransportError covers refused or reset connections, DNS failures and timeouts.
	TransportError ErrorKind = iota + 1
	// ProtocolError covers malformed frames and streams that end without a terminator.
	ProtocolError
	// ServerError covers non-2xx responses.
	ServerError
)

func (k ErrorKind) String() string {
	switch k {
	case TransportError:
		return "transport"
	case ProtocolError:
		return "protocol"
	case ServerError:
		return "server"
	default:
		return "none"
	}
}

// RequestError is the classified cause of a failed probe or request.
type RequestError struct {
	Kind ErrorKind
	// StatusCode is set for ServerError.
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func transportErr(err error) *RequestError {
	return &RequestError{Kind: TransportError, Err: err}
}

func protocolErr(err error) *RequestError {
	return &RequestError{Kind: ProtocolError, Err: err}
}

func serverErr(status int, body string) *RequestError {
	msg := fmt.Sprintf("HTTP %d", status)
	if body != "" {
		msg += ": " + body
	}
	return &RequestError{Kind: ServerError, StatusCode: status, Err: errors.New(msg)}
}

// KindOf returns the ErrorKind of err, or 0 if err is not a *RequestError.
func KindOf(err error) ErrorKind {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Kind
	}
	return 0
}
