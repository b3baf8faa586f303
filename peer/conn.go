package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/MlkMahmud/peerwire/utils"
)

type ConnOpts struct {
	InfoHash         [20]byte
	PeerId           [peerIdLen]byte
	DialTimeout      time.Duration
	HandshakeTimeout time.Duration
	// ReadTimeout bounds each read on an established connection. Peers send
	// keep-alives every two minutes, so it should be longer than that.
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	// MaxMessageLength defaults to DefaultMaxMessageLength when not positive.
	MaxMessageLength int
}

// Conn is a handshaken peer-wire connection. Reads must come from a single
// goroutine; writes may come from any.
type Conn struct {
	conn         net.Conn
	opts         ConnOpts
	remotePeerId [peerIdLen]byte
	writeMu      sync.Mutex
	closeOnce    sync.Once
	closeErr     error
}

type connReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r connReader) Read(buffer []byte) (int, error) {
	return utils.ConnReadFull(r.conn, buffer, utils.DeadlineFromTimeout(r.timeout))
}

// Dial connects to addr and performs the outbound handshake.
func Dial(ctx context.Context, addr string, opts ConnOpts) (*Conn, error) {
	dialer := net.Dialer{Timeout: opts.DialTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)

	if err != nil {
		return nil, &TransportError{Op: "dial " + addr, Err: err}
	}

	conn, err := newConn(netConn, opts, PerformHandshake)

	if err != nil {
		netConn.Close()
		return nil, err
	}

	return conn, nil
}

// Accept performs the inbound handshake on an accepted connection. netConn
// is closed if the handshake fails.
func Accept(netConn net.Conn, opts ConnOpts) (*Conn, error) {
	conn, err := newConn(netConn, opts, ReceiveHandshake)

	if err != nil {
		netConn.Close()
		return nil, err
	}

	return conn, nil
}

type handshakeFunc func(rw io.ReadWriter, infoHash [20]byte, ownPeerId [peerIdLen]byte) (Handshake, error)

func newConn(netConn net.Conn, opts ConnOpts, handshake handshakeFunc) (*Conn, error) {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = DefaultMaxMessageLength
	}

	if err := netConn.SetDeadline(utils.DeadlineFromTimeout(opts.HandshakeTimeout)); err != nil {
		return nil, &TransportError{Op: "set handshake deadline", Err: err}
	}

	remote, err := handshake(netConn, opts.InfoHash, opts.PeerId)

	if err != nil {
		return nil, fmt.Errorf("handshake with %s failed: %w", netConn.RemoteAddr(), err)
	}

	if err := netConn.SetDeadline(time.Time{}); err != nil {
		return nil, &TransportError{Op: "clear handshake deadline", Err: err}
	}

	return &Conn{
		conn:         netConn,
		opts:         opts,
		remotePeerId: remote.PeerId,
	}, nil
}

func (c *Conn) RemotePeerId() [peerIdLen]byte {
	return c.remotePeerId
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) ReadMessage() (Message, error) {
	return ReadMessage(connReader{conn: c.conn, timeout: c.opts.ReadTimeout}, c.opts.MaxMessageLength)
}

func (c *Conn) WriteMessage(m Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := utils.ConnWriteFull(c.conn, MarshalMessage(m), utils.DeadlineFromTimeout(c.opts.WriteTimeout)); err != nil {
		return &TransportError{Op: "write message", Err: err}
	}

	return nil
}

// Run reads messages in order and passes each to handler until the handler
// fails, the connection fails or ctx is done. Cancelling ctx closes the
// connection.
func (c *Conn) Run(ctx context.Context, handler func(Message) error) error {
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	for {
		message, err := c.ReadMessage()

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			return err
		}

		if err := handler(message); err != nil {
			return err
		}
	}
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.closeErr = err
		}
	})

	return c.closeErr
}
