package peer

import (
	"bytes"
	"fmt"
	"io"

	"github.com/MlkMahmud/peerwire/utils"
)

const (
	HandshakeLen = pstrLen + 49
	Pstr         = "BitTorrent protocol"
	pstrLen      = len(Pstr)

	peerIdLen = 20
)

/*
Handshake is the first message sent on every peer connection:

	Offset  Size  Field
	0       1     pstrlen (19)
	1       19    pstr ("BitTorrent protocol")
	20      8     reserved (extension flags, all zero)
	28      20    info hash
	48      20    peer id
	68
*/
type Handshake struct {
	Reserved [8]byte
	InfoHash [20]byte
	PeerId   [peerIdLen]byte
}

func NewHandshake(infoHash [20]byte, peerId [peerIdLen]byte) Handshake {
	return Handshake{InfoHash: infoHash, PeerId: peerId}
}

func (h Handshake) Bytes() [HandshakeLen]byte {
	var messageBuffer [HandshakeLen]byte

	messageBuffer[0] = byte(pstrLen)

	index := 1
	index += copy(messageBuffer[index:], Pstr)
	index += copy(messageBuffer[index:], h.Reserved[:])
	index += copy(messageBuffer[index:], h.InfoHash[:])
	copy(messageBuffer[index:], h.PeerId[:])

	return messageBuffer
}

func (h Handshake) MarshalBinary() ([]byte, error) {
	buffer := h.Bytes()
	return buffer[:], nil
}

// ParseHandshake validates a received handshake. The checks run in wire
// order and the first violation is returned.
func ParseHandshake(buffer []byte, expectedInfoHash [20]byte, ownPeerId [peerIdLen]byte) (Handshake, error) {
	if len(buffer) != HandshakeLen {
		return Handshake{}, &HandshakeError{Kind: InvalidLength, Got: len(buffer)}
	}

	if buffer[0] != byte(pstrLen) {
		return Handshake{}, &HandshakeError{Kind: InvalidProtocolLength, Got: int(buffer[0])}
	}

	if string(buffer[1:pstrLen+1]) != Pstr {
		return Handshake{}, &HandshakeError{Kind: InvalidProtocolString}
	}

	var handshake Handshake

	copy(handshake.Reserved[:], buffer[20:28])
	copy(handshake.InfoHash[:], buffer[28:48])
	copy(handshake.PeerId[:], buffer[48:68])

	if !bytes.Equal(handshake.InfoHash[:], expectedInfoHash[:]) {
		return Handshake{}, &HandshakeError{Kind: InfoHashMismatch}
	}

	if handshake.PeerId == ownPeerId {
		return Handshake{}, &HandshakeError{Kind: SelfConnection}
	}

	return handshake, nil
}

func readHandshake(r io.Reader, expectedInfoHash [20]byte, ownPeerId [peerIdLen]byte) (Handshake, error) {
	responseBuffer := make([]byte, HandshakeLen)

	if _, err := io.ReadFull(r, responseBuffer); err != nil {
		return Handshake{}, &TransportError{Op: "read handshake", Err: err}
	}

	return ParseHandshake(responseBuffer, expectedInfoHash, ownPeerId)
}

func writeHandshake(w io.Writer, infoHash [20]byte, ownPeerId [peerIdLen]byte) error {
	messageBuffer := NewHandshake(infoHash, ownPeerId).Bytes()

	if _, err := w.Write(messageBuffer[:]); err != nil {
		return &TransportError{Op: "write handshake", Err: err}
	}

	return nil
}

// PerformHandshake runs the initiating side: send our handshake, then read
// and validate the remote one. It is not retried.
func PerformHandshake(rw io.ReadWriter, infoHash [20]byte, ownPeerId [peerIdLen]byte) (Handshake, error) {
	if err := writeHandshake(rw, infoHash, ownPeerId); err != nil {
		return Handshake{}, err
	}

	return readHandshake(rw, infoHash, ownPeerId)
}

// ReceiveHandshake runs the accepting side: read and validate the remote
// handshake first, then reply with ours.
func ReceiveHandshake(rw io.ReadWriter, infoHash [20]byte, ownPeerId [peerIdLen]byte) (Handshake, error) {
	remote, err := readHandshake(rw, infoHash, ownPeerId)

	if err != nil {
		return Handshake{}, err
	}

	if err := writeHandshake(rw, infoHash, ownPeerId); err != nil {
		return Handshake{}, err
	}

	return remote, nil
}

// NewPeerId builds a 20-byte peer id from prefix (Azureus style, e.g.
// "-PW0001-") followed by alphanumeric characters drawn from source.
func NewPeerId(prefix string, source io.Reader) ([peerIdLen]byte, error) {
	var peerId [peerIdLen]byte

	if len(prefix) >= peerIdLen {
		return peerId, fmt.Errorf("peer id prefix must be shorter than %d bytes, got %d", peerIdLen, len(prefix))
	}

	suffix, err := utils.GenerateRandomString(source, peerIdLen-len(prefix), "")

	if err != nil {
		return peerId, fmt.Errorf("failed to generate peer id: %w", err)
	}

	copy(peerId[:], prefix+suffix)
	return peerId, nil
}
