package peer

import (
	"encoding/binary"
	"fmt"
)

type MessageId uint8

const (
	ChokeMessageId MessageId = iota
	UnchokeMessageId
	InterestedMessageId
	NotInterestedMessageId
	HaveMessageId
	BitfieldMessageId
	RequestMessageId
	PieceMessageId
	CancelMessageId
)

const (
	messageLengthPrefixLen = 4
	messageIdLen           = 1
	blockHeaderLen         = 8
	requestPayloadLen      = 12
)

var messageIdNames = map[MessageId]string{
	ChokeMessageId:         "choke",
	UnchokeMessageId:       "unchoke",
	InterestedMessageId:    "interested",
	NotInterestedMessageId: "not_interested",
	HaveMessageId:          "have",
	BitfieldMessageId:      "bitfield",
	RequestMessageId:       "request",
	PieceMessageId:         "piece",
	CancelMessageId:        "cancel",
}

func (id MessageId) String() string {
	if name, ok := messageIdNames[id]; ok {
		return name
	}

	return fmt.Sprintf("unknown(%d)", uint8(id))
}

// Message is one framed peer-wire message. The set of implementations is
// closed; anything with an unrecognised tag is carried as Unknown.
type Message interface {
	// Id reports the tag byte. KeepAlive has none and reports false.
	Id() (MessageId, bool)
	payload() []byte
}

type KeepAlive struct{}

type Choke struct{}

type Unchoke struct{}

type Interested struct{}

type NotInterested struct{}

type Have struct {
	Index uint32
}

// Bitfield payload is opaque; its length depends on the torrent's piece count.
type Bitfield struct {
	Bits []byte
}

type Request struct {
	Index  uint32
	Begin  uint32
	Length uint32
}

type Piece struct {
	Index uint32
	Begin uint32
	Block []byte
}

type Cancel struct {
	Index  uint32
	Begin  uint32
	Length uint32
}

type Unknown struct {
	MessageId MessageId
	Payload   []byte
}

func (KeepAlive) Id() (MessageId, bool)     { return 0, false }
func (Choke) Id() (MessageId, bool)         { return ChokeMessageId, true }
func (Unchoke) Id() (MessageId, bool)       { return UnchokeMessageId, true }
func (Interested) Id() (MessageId, bool)    { return InterestedMessageId, true }
func (NotInterested) Id() (MessageId, bool) { return NotInterestedMessageId, true }
func (Have) Id() (MessageId, bool)          { return HaveMessageId, true }
func (Bitfield) Id() (MessageId, bool)      { return BitfieldMessageId, true }
func (Request) Id() (MessageId, bool)       { return RequestMessageId, true }
func (Piece) Id() (MessageId, bool)         { return PieceMessageId, true }
func (Cancel) Id() (MessageId, bool)        { return CancelMessageId, true }
func (m Unknown) Id() (MessageId, bool)     { return m.MessageId, true }

func (KeepAlive) payload() []byte     { return nil }
func (Choke) payload() []byte         { return nil }
func (Unchoke) payload() []byte       { return nil }
func (Interested) payload() []byte    { return nil }
func (NotInterested) payload() []byte { return nil }
func (m Bitfield) payload() []byte    { return m.Bits }
func (m Unknown) payload() []byte     { return m.Payload }

func (m Have) payload() []byte {
	return binary.BigEndian.AppendUint32(nil, m.Index)
}

func (m Request) payload() []byte {
	return marshalBlockRequest(m.Index, m.Begin, m.Length)
}

func (m Cancel) payload() []byte {
	return marshalBlockRequest(m.Index, m.Begin, m.Length)
}

func (m Piece) payload() []byte {
	buffer := make([]byte, blockHeaderLen, blockHeaderLen+len(m.Block))

	binary.BigEndian.PutUint32(buffer[0:4], m.Index)
	binary.BigEndian.PutUint32(buffer[4:8], m.Begin)

	return append(buffer, m.Block...)
}

func marshalBlockRequest(index, begin, length uint32) []byte {
	buffer := make([]byte, requestPayloadLen)

	binary.BigEndian.PutUint32(buffer[0:4], index)
	binary.BigEndian.PutUint32(buffer[4:8], begin)
	binary.BigEndian.PutUint32(buffer[8:12], length)

	return buffer
}

// MarshalMessage returns the complete frame for m, length prefix included.
func MarshalMessage(m Message) []byte {
	id, ok := m.Id()

	if !ok {
		return make([]byte, messageLengthPrefixLen)
	}

	payload := m.payload()
	messageBuffer := make([]byte, messageLengthPrefixLen+messageIdLen+len(payload))
	binary.BigEndian.PutUint32(messageBuffer, uint32(messageIdLen+len(payload)))

	index := messageLengthPrefixLen
	messageBuffer[index] = byte(id)
	copy(messageBuffer[index+1:], payload)

	return messageBuffer
}

// parseMessage interprets a frame body (tag byte followed by payload).
func parseMessage(body []byte) (Message, error) {
	if len(body) == 0 {
		return KeepAlive{}, nil
	}

	id := MessageId(body[0])
	payload := body[1:]

	switch id {
	case ChokeMessageId, UnchokeMessageId, InterestedMessageId, NotInterestedMessageId:
		if len(payload) != 0 {
			return nil, malformedMessageError(id, 0, len(payload))
		}

		switch id {
		case ChokeMessageId:
			return Choke{}, nil
		case UnchokeMessageId:
			return Unchoke{}, nil
		case InterestedMessageId:
			return Interested{}, nil
		default:
			return NotInterested{}, nil
		}

	case HaveMessageId:
		if len(payload) != 4 {
			return nil, malformedMessageError(id, 4, len(payload))
		}

		return Have{Index: binary.BigEndian.Uint32(payload)}, nil

	case BitfieldMessageId:
		return Bitfield{Bits: payload}, nil

	case RequestMessageId, CancelMessageId:
		if len(payload) != requestPayloadLen {
			return nil, malformedMessageError(id, requestPayloadLen, len(payload))
		}

		index := binary.BigEndian.Uint32(payload[0:4])
		begin := binary.BigEndian.Uint32(payload[4:8])
		length := binary.BigEndian.Uint32(payload[8:12])

		if id == RequestMessageId {
			return Request{Index: index, Begin: begin, Length: length}, nil
		}

		return Cancel{Index: index, Begin: begin, Length: length}, nil

	case PieceMessageId:
		if len(payload) < blockHeaderLen {
			return nil, fmt.Errorf("%w: piece payload has %d bytes, need at least %d", ErrMalformedMessage, len(payload), blockHeaderLen)
		}

		return Piece{
			Index: binary.BigEndian.Uint32(payload[0:4]),
			Begin: binary.BigEndian.Uint32(payload[4:8]),
			Block: payload[blockHeaderLen:],
		}, nil

	default:
		return Unknown{MessageId: id, Payload: payload}, nil
	}
}

func malformedMessageError(id MessageId, expected int, got int) error {
	return fmt.Errorf("%w: %s payload has %d bytes, expected %d", ErrMalformedMessage, id, got, expected)
}
