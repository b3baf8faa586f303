package peer

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) net.Listener {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	return listener
}

func connOpts(peerId [20]byte) ConnOpts {
	return ConnOpts{
		InfoHash:         testInfoHash,
		PeerId:           peerId,
		DialTimeout:      time.Second,
		HandshakeTimeout: time.Second,
		ReadTimeout:      5 * time.Second,
		WriteTimeout:     time.Second,
		MaxMessageLength: DefaultMaxMessageLength,
	}
}

func TestDialAndAccept(t *testing.T) {
	listener := listen(t)
	accepted := make(chan *Conn, 1)

	go func() {
		netConn, err := listener.Accept()

		if err != nil {
			close(accepted)
			return
		}

		conn, err := Accept(netConn, connOpts(remotePeerId))

		if err != nil {
			close(accepted)
			return
		}

		accepted <- conn
	}()

	client, err := Dial(context.Background(), listener.Addr().String(), connOpts(localPeerId))
	require.NoError(t, err)
	defer client.Close()

	server, ok := <-accepted
	require.True(t, ok, "inbound handshake failed")
	defer server.Close()

	assert.Equal(t, remotePeerId, client.RemotePeerId())
	assert.Equal(t, localPeerId, server.RemotePeerId())

	require.NoError(t, client.WriteMessage(Interested{}))
	require.NoError(t, client.WriteMessage(Have{Index: 3}))

	message, err := server.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, Interested{}, message)

	message, err = server.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, Have{Index: 3}, message)
}

func TestDialRejectsWrongInfoHash(t *testing.T) {
	listener := listen(t)

	go func() {
		netConn, err := listener.Accept()

		if err != nil {
			return
		}

		defer netConn.Close()

		handshake := NewHandshake(otherInfoHash, remotePeerId).Bytes()
		netConn.Write(handshake[:])
		netConn.Read(make([]byte, HandshakeLen))
	}()

	_, err := Dial(context.Background(), listener.Addr().String(), connOpts(localPeerId))

	require.ErrorIs(t, err, ErrInfoHashMismatch)
	assert.False(t, IsTransportError(err))
}

func TestDialUnreachable(t *testing.T) {
	listener := listen(t)
	addr := listener.Addr().String()
	listener.Close()

	_, err := Dial(context.Background(), addr, connOpts(localPeerId))

	require.Error(t, err)
	assert.True(t, IsTransportError(err))
}

func TestRunStopsOnCancel(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	conn := &Conn{conn: server, opts: connOpts(localPeerId)}

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan Message, 4)
	done := make(chan error, 1)

	go func() {
		done <- conn.Run(ctx, func(m Message) error {
			received <- m
			return nil
		})
	}()

	require.NoError(t, WriteMessage(client, Unchoke{}))
	assert.Equal(t, Unchoke{}, <-received)

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRunReturnsHandlerError(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	conn := &Conn{conn: server, opts: connOpts(localPeerId)}
	stop := errors.New("stop")

	go WriteMessage(client, Choke{})

	err := conn.Run(context.Background(), func(Message) error { return stop })

	require.ErrorIs(t, err, stop)
}

func TestZeroValueOptsLimitMessageLength(t *testing.T) {
	listener := listen(t)
	accepted := make(chan *Conn, 1)

	go func() {
		netConn, err := listener.Accept()

		if err != nil {
			close(accepted)
			return
		}

		conn, err := Accept(netConn, ConnOpts{InfoHash: testInfoHash, PeerId: remotePeerId})

		if err != nil {
			close(accepted)
			return
		}

		accepted <- conn
	}()

	client, err := Dial(context.Background(), listener.Addr().String(), ConnOpts{InfoHash: testInfoHash, PeerId: localPeerId})
	require.NoError(t, err)
	defer client.Close()

	server, ok := <-accepted
	require.True(t, ok, "inbound handshake failed")
	defer server.Close()

	_, err = client.conn.Write([]byte{0xff, 0xff, 0xff, 0xff, byte(PieceMessageId)})
	require.NoError(t, err)

	_, err = server.ReadMessage()
	require.ErrorIs(t, err, ErrMessageTooLong)
	assert.False(t, IsTransportError(err))
}
