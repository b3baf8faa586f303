package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

const (
	defaultCharacterSet = "abcdefghijklmnopqrstuvwxyz" +
		"ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type RetryOptions[T any] struct {
	Delay       time.Duration
	MaxAttempts int
	Operation   func() (T, error)
}

func FileExists(filepath string) bool {
	_, err := os.Stat(filepath)

	return !errors.Is(err, os.ErrNotExist)
}

// Reads exactly len(buffer) bytes from the provided net.Conn into buffer.
// If a non-zero deadline is provided, it sets the read deadline on the connection before reading.
// If the deadline is zero, no deadline is set and the function may block indefinitely
// until all bytes are read or an error occurs.
// Returns the number of bytes read and any error encountered.
func ConnReadFull(conn net.Conn, buffer []byte, deadline time.Time) (int, error) {
	if !deadline.IsZero() {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return 0, err
		}

		defer conn.SetReadDeadline(time.Time{})
	}

	return io.ReadFull(conn, buffer)
}

// Writes exactly len(buffer) bytes from the provided buffer to the given net.Conn.
// If a non-zero deadline is provided, it sets the write deadline on the connection before writing.
// If the deadline is zero, no deadline is set and the function may block indefinitely
// until all bytes are written or an error occurs.
// Returns the number of bytes written and any error encountered.
func ConnWriteFull(conn net.Conn, buffer []byte, deadline time.Time) (int, error) {
	if !deadline.IsZero() {
		if err := conn.SetWriteDeadline(deadline); err != nil {
			return 0, err
		}

		defer conn.SetWriteDeadline(time.Time{})
	}

	return conn.Write(buffer)
}

// DeadlineFromTimeout returns the zero time for a non-positive timeout.
func DeadlineFromTimeout(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}

	return time.Now().Add(timeout)
}

// Retry runs options.Operation until it succeeds, MaxAttempts is reached or
// ctx is done. The last error is returned.
func Retry[T any](ctx context.Context, options RetryOptions[T]) (T, error) {
	var res T
	var err error

	attempts := max(options.MaxAttempts, 1)

	for attempt := range attempts {
		res, err = options.Operation()

		if err == nil || attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return res, fmt.Errorf("retry aborted after %d attempts: %w", attempt+1, errors.Join(err, ctx.Err()))
		case <-time.After(options.Delay):
		}
	}

	return res, err
}

// GenerateRandomString maps bytes read from source onto charset. Callers
// pass crypto/rand.Reader in production and a fixed reader in tests.
func GenerateRandomString(source io.Reader, length int, charset string) (string, error) {
	if charset == "" {
		charset = defaultCharacterSet
	}

	byteArr := make([]byte, length)

	if _, err := io.ReadFull(source, byteArr); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	for i := range byteArr {
		byteArr[i] = charset[int(byteArr[i])%len(charset)]
	}

	return string(byteArr), nil
}
