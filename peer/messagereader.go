package peer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxMessageLength admits a 16KiB block plus its piece header with
// room to spare; bitfields for very large torrents also fit.
const DefaultMaxMessageLength = 1 << 17

// ReadMessage reads one frame from r. A zero length prefix is a keep-alive
// and nothing further is read. A non-positive maxLength means
// DefaultMaxMessageLength; the length prefix is checked before any payload
// buffer is allocated.
func ReadMessage(r io.Reader, maxLength int) (Message, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}

	var messageLengthBuffer [messageLengthPrefixLen]byte

	if err := readBuffer(r, messageLengthBuffer[:], "read message length"); err != nil {
		return nil, err
	}

	messageLength := binary.BigEndian.Uint32(messageLengthBuffer[:])

	if messageLength == 0 {
		return KeepAlive{}, nil
	}

	if uint64(messageLength) > uint64(maxLength) {
		return nil, fmt.Errorf("%w: length %d exceeds maximum allowed length %d", ErrMessageTooLong, messageLength, maxLength)
	}

	messageBuffer := make([]byte, messageLength)

	if err := readBuffer(r, messageBuffer, "read message body"); err != nil {
		return nil, err
	}

	return parseMessage(messageBuffer)
}

func readBuffer(r io.Reader, buffer []byte, op string) error {
	_, err := io.ReadFull(r, buffer)

	if errors.Is(err, io.EOF) {
		return &TransportError{Op: op, Err: fmt.Errorf("remote peer closed the connection: %w", err)}
	}

	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	return nil
}
