package peer

import (
	"errors"
	"fmt"
)

type HandshakeErrorKind int

const (
	InvalidLength HandshakeErrorKind = iota + 1
	InvalidProtocolLength
	InvalidProtocolString
	InfoHashMismatch
	SelfConnection
)

// HandshakeError reports which handshake invariant a peer violated. Got
// holds the received buffer length for InvalidLength and the received
// protocol-length byte for InvalidProtocolLength.
type HandshakeError struct {
	Kind HandshakeErrorKind
	Got  int
}

var (
	ErrInvalidLength         = &HandshakeError{Kind: InvalidLength}
	ErrInvalidProtocolLength = &HandshakeError{Kind: InvalidProtocolLength}
	ErrInvalidProtocolString = &HandshakeError{Kind: InvalidProtocolString}
	ErrInfoHashMismatch      = &HandshakeError{Kind: InfoHashMismatch}
	ErrSelfConnection        = &HandshakeError{Kind: SelfConnection}
)

var (
	ErrMalformedMessage = errors.New("malformed peer message")
	ErrMessageTooLong   = errors.New("peer message exceeds maximum length")
)

func (e *HandshakeError) Error() string {
	switch e.Kind {
	case InvalidLength:
		return fmt.Sprintf("invalid handshake length: expected %d bytes, got %d", HandshakeLen, e.Got)
	case InvalidProtocolLength:
		return fmt.Sprintf("invalid protocol string length: expected %d, got %d", pstrLen, e.Got)
	case InvalidProtocolString:
		return fmt.Sprintf("invalid protocol string: expected '%s'", Pstr)
	case InfoHashMismatch:
		return "received info hash does not match expected info hash"
	case SelfConnection:
		return "remote peer id matches local peer id: refusing to connect to self"
	default:
		return fmt.Sprintf("handshake error %d", int(e.Kind))
	}
}

// Is matches on Kind so that errors.Is(err, ErrInfoHashMismatch) works for
// any HandshakeError of that kind.
func (e *HandshakeError) Is(target error) bool {
	t, ok := target.(*HandshakeError)
	return ok && t.Kind == e.Kind
}

// TransportError wraps a failure of the underlying connection (short read,
// reset, timeout). Anything that is not a TransportError is a protocol
// violation by the remote peer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsTransportError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
