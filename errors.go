package groupcall

import (
	"errors"
	"fmt"
)

const Namespace = "groupcall"

var (
	ErrNilDestination = errors.New(Namespace + ": nil destination on a unicast request")
	ErrNotConnected   = errors.New(Namespace + ": channel is not connected")
	ErrClosed         = errors.New(Namespace + ": dispatcher is closed")
	ErrTimeout        = errors.New(Namespace + ": request timed out before completion")
	ErrSuspected      = errors.New(Namespace + ": target was suspected before replying")
	ErrSendFailed     = errors.New(Namespace + ": transport rejected the request")
	ErrRemote         = errors.New(Namespace + ": remote handler returned a failure")
	ErrBadHeader      = errors.New(Namespace + ": malformed correlator header")
	ErrInvalidHandler = errors.New(Namespace + ": invalid request handler type")
)

// CallMetaError exposes correlation metadata for a failed call.
type CallMetaError interface {
	error
	Unwrap() error
	Sender() (Address, bool)
	RequestID() (uint64, bool)
}

type callTaggedError struct {
	err    error
	sender Address
	reqID  uint64
}

func newCallTaggedError(err error, sender Address, reqID uint64) error {
	if err == nil {
		return nil
	}
	return &callTaggedError{err: err, sender: sender, reqID: reqID}
}

// newRemoteError wraps the failure text a responder shipped back in an
// EXCEPTION_RSP. errors.Is(err, ErrRemote) holds for the result.
func newRemoteError(text string, sender Address, reqID uint64) error {
	return &callTaggedError{
		err:    fmt.Errorf("%w: %s", ErrRemote, text),
		sender: sender,
		reqID:  reqID,
	}
}

func (e *callTaggedError) Error() string { return e.err.Error() }
func (e *callTaggedError) Unwrap() error { return e.err }

func (e *callTaggedError) Sender() (Address, bool) {
	if e.sender == nil {
		return nil, false
	}
	return e.sender, true
}

func (e *callTaggedError) RequestID() (uint64, bool) { return e.reqID, true }

func (e *callTaggedError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "call(id=%d,sender=%v): %+v", e.reqID, e.sender, e.err)
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// ExtractSender returns the responder address from err if present.
func ExtractSender(err error) (Address, bool) {
	var cme CallMetaError
	if errors.As(err, &cme) {
		return cme.Sender()
	}
	return nil, false
}

// ExtractRequestID returns the request id from err if present.
func ExtractRequestID(err error) (uint64, bool) {
	var cme CallMetaError
	if errors.As(err, &cme) {
		return cme.RequestID()
	}
	return 0, false
}
