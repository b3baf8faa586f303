package bencode

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInteger   = errors.New("invalid integer")
	ErrInvalidString    = errors.New("invalid string")
	ErrInvalidList      = errors.New("invalid list")
	ErrInvalidDict      = errors.New("invalid dictionary")
	ErrUnexpectedEOF    = errors.New("unexpected end of input")
	ErrUnknownDelimiter = errors.New("unknown delimiter")
	ErrDuplicateKey     = errors.New("duplicate dictionary key")
	ErrMaxDepthExceeded = errors.New("maximum nesting depth exceeded")

	ErrMissingKey = errors.New("missing key")
	ErrWrongType  = errors.New("wrong type")
)

const maxFragmentLen = 16

// DecodeError reports where and why a decode attempt failed. Err is always
// one of the ErrInvalid*, ErrUnexpectedEOF, ErrUnknownDelimiter,
// ErrDuplicateKey or ErrMaxDepthExceeded sentinels.
type DecodeError struct {
	Err      error
	Offset   int
	Fragment string
	Reason   string
}

func newDecodeError(sentinel error, data []byte, offset int, format string, args ...any) *DecodeError {
	end := min(offset+maxFragmentLen, len(data))
	start := min(offset, end)

	return &DecodeError{
		Err:      sentinel,
		Offset:   offset,
		Fragment: string(data[start:end]),
		Reason:   fmt.Sprintf(format, args...),
	}
}

func (e *DecodeError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("%s at offset %d: %s", e.Err, e.Offset, e.Reason)
	}

	return fmt.Sprintf("%s at offset %d: %s (near %q)", e.Err, e.Offset, e.Reason, e.Fragment)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing key '%s'", e.Key)
}

func (e *MissingKeyError) Is(target error) bool {
	return target == ErrMissingKey
}

// WrongTypeError is returned when a value exists but holds a different
// variant than the caller asked for. Key is empty for list elements.
type WrongTypeError struct {
	Key      string
	Expected Kind
	Found    string
}

func (e *WrongTypeError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("wrong type: expected %s, found %s", e.Expected, e.Found)
	}

	return fmt.Sprintf("wrong type for key '%s': expected %s, found %s", e.Key, e.Expected, e.Found)
}

func (e *WrongTypeError) Is(target error) bool {
	return target == ErrWrongType
}
