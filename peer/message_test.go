package peer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected Message
	}{
		{name: "keep-alive", input: []byte{0, 0, 0, 0}, expected: KeepAlive{}},
		{name: "choke", input: []byte{0, 0, 0, 1, 0}, expected: Choke{}},
		{name: "unchoke", input: []byte{0, 0, 0, 1, 1}, expected: Unchoke{}},
		{name: "interested", input: []byte{0, 0, 0, 1, 2}, expected: Interested{}},
		{name: "not interested", input: []byte{0, 0, 0, 1, 3}, expected: NotInterested{}},
		{name: "have", input: []byte{0, 0, 0, 5, 4, 0, 0, 1, 0}, expected: Have{Index: 256}},
		{name: "bitfield", input: []byte{0, 0, 0, 3, 5, 0xff, 0x80}, expected: Bitfield{Bits: []byte{0xff, 0x80}}},
		{
			name:     "request",
			input:    []byte{0, 0, 0, 13, 6, 0, 0, 0, 1, 0, 0, 0x40, 0, 0, 0, 0x40, 0},
			expected: Request{Index: 1, Begin: 16384, Length: 16384},
		},
		{
			name:     "piece",
			input:    []byte{0, 0, 0, 12, 7, 0, 0, 0, 2, 0, 0, 0, 0, 'a', 'b', 'c'},
			expected: Piece{Index: 2, Begin: 0, Block: []byte("abc")},
		},
		{
			name:     "cancel",
			input:    []byte{0, 0, 0, 13, 8, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 1},
			expected: Cancel{Index: 1, Begin: 0, Length: 1},
		},
		{name: "unknown", input: []byte{0, 0, 0, 4, 20, 1, 2, 3}, expected: Unknown{MessageId: 20, Payload: []byte{1, 2, 3}}},
		{name: "unknown without payload", input: []byte{0, 0, 0, 1, 99}, expected: Unknown{MessageId: 99, Payload: []byte{}}},
	}

	for i, test := range tests {
		t.Run(fmt.Sprintf("Test %d: %s", i, test.name), func(t *testing.T) {
			reader := bytes.NewReader(test.input)
			message, err := ReadMessage(reader, DefaultMaxMessageLength)

			require.NoError(t, err)
			assert.Equal(t, test.expected, message)
			assert.Zero(t, reader.Len(), "framing must consume exactly one message")
		})
	}
}

func TestReadMessageKeepAliveReadsNothingFurther(t *testing.T) {
	reader := bytes.NewReader([]byte{0, 0, 0, 0, 0, 0, 0, 1, 1})

	message, err := ReadMessage(reader, 0)
	require.NoError(t, err)
	assert.Equal(t, KeepAlive{}, message)
	assert.Equal(t, 5, reader.Len())

	message, err = ReadMessage(reader, 0)
	require.NoError(t, err)
	assert.Equal(t, Unchoke{}, message)
}

func TestReadMessageErrors(t *testing.T) {
	tests := []struct {
		name      string
		input     []byte
		maxLength int
		wantErr   error
		transport bool
	}{
		{name: "short prefix", input: []byte{0, 0}, wantErr: io.ErrUnexpectedEOF, transport: true},
		{name: "empty stream", input: nil, wantErr: io.EOF, transport: true},
		{name: "short body", input: []byte{0, 0, 0, 5, 4, 0}, wantErr: io.ErrUnexpectedEOF, transport: true},
		{name: "have too short", input: []byte{0, 0, 0, 4, 4, 0, 0, 1}, wantErr: ErrMalformedMessage},
		{name: "choke with payload", input: []byte{0, 0, 0, 2, 0, 1}, wantErr: ErrMalformedMessage},
		{name: "request too long", input: append([]byte{0, 0, 0, 14, 6}, make([]byte, 13)...), wantErr: ErrMalformedMessage},
		{name: "piece without header", input: []byte{0, 0, 0, 5, 7, 0, 0, 0, 1}, wantErr: ErrMalformedMessage},
		{name: "too long", input: []byte{0, 0, 0x10, 0, 5}, maxLength: 16, wantErr: ErrMessageTooLong},
	}

	for i, test := range tests {
		t.Run(fmt.Sprintf("Test %d: %s", i, test.name), func(t *testing.T) {
			maxLength := test.maxLength

			if maxLength == 0 {
				maxLength = DefaultMaxMessageLength
			}

			_, err := ReadMessage(bytes.NewReader(test.input), maxLength)

			require.ErrorIs(t, err, test.wantErr)
			assert.Equal(t, test.transport, IsTransportError(err))
		})
	}
}

func TestReadMessageNonPositiveMaxLengthUsesDefault(t *testing.T) {
	for _, maxLength := range []int{0, -1} {
		prefix := []byte{0, 0, 0, 0, byte(BitfieldMessageId)}
		binary.BigEndian.PutUint32(prefix, DefaultMaxMessageLength+1)

		_, err := ReadMessage(bytes.NewReader(prefix), maxLength)
		require.ErrorIs(t, err, ErrMessageTooLong)

		_, err = ReadMessage(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff}), maxLength)
		require.ErrorIs(t, err, ErrMessageTooLong)
	}
}

func TestMarshalMessageRoundTrip(t *testing.T) {
	messages := []Message{
		KeepAlive{},
		Choke{},
		Unchoke{},
		Interested{},
		NotInterested{},
		Have{Index: 7},
		Bitfield{Bits: []byte{0xaa}},
		Request{Index: 1, Begin: 2, Length: 3},
		Piece{Index: 4, Begin: 5, Block: []byte("block")},
		Cancel{Index: 6, Begin: 7, Length: 8},
		Unknown{MessageId: 20, Payload: []byte{0, 'd', 'e'}},
	}

	var stream bytes.Buffer

	for _, message := range messages {
		require.NoError(t, WriteMessage(&stream, message))
	}

	for _, expected := range messages {
		message, err := ReadMessage(&stream, DefaultMaxMessageLength)

		require.NoError(t, err)
		assert.Equal(t, expected, message)
	}

	assert.Zero(t, stream.Len())
}

func TestMarshalMessageBytes(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 0, 0}, MarshalMessage(KeepAlive{}))
	assert.Equal(t, []byte{0, 0, 0, 1, 0}, MarshalMessage(Choke{}))
	assert.Equal(t, []byte{0, 0, 0, 5, 4, 0, 0, 0, 9}, MarshalMessage(Have{Index: 9}))
}

func TestMessageIdString(t *testing.T) {
	assert.Equal(t, "piece", PieceMessageId.String())
	assert.Equal(t, "unknown(20)", MessageId(20).String())
}
