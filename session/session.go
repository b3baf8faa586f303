package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MlkMahmud/peerwire/internal/peerstore"
	"github.com/MlkMahmud/peerwire/peer"
	"github.com/MlkMahmud/peerwire/torrent"
	"github.com/MlkMahmud/peerwire/utils"
)

// Handler is called for every message received on a connection, in arrival
// order, from the goroutine that owns the connection. Returning an error
// closes that connection only.
type Handler func(ctx context.Context, conn *peer.Conn, message peer.Message) error

type Announcer interface {
	Announce(ctx context.Context, req torrent.AnnounceRequest) (*torrent.AnnounceResponse, error)
}

type PeerCache interface {
	Save(infoHash torrent.InfoHash, peers []torrent.Peer) error
	Peers(infoHash torrent.InfoHash) ([]torrent.Peer, time.Time, error)
}

type SessionOpts struct {
	Logger           *slog.Logger
	PeerId           [20]byte
	Port             uint16
	MaxPeers         int
	DialTimeout      time.Duration
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	MaxMessageLength int
	AnnounceRetries  int
	RetryDelay       time.Duration
	Tracker          Announcer
	// PeerCache is optional.
	PeerCache PeerCache
}

type Session struct {
	cancel context.CancelFunc
	ctx    context.Context
	logger *slog.Logger
	opts   SessionOpts
	pool   *connectionPool
}

const (
	defaultMaxPeers   = 30
	defaultRetryDelay = 2 * time.Second
)

func NewSession(opts SessionOpts) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	if opts.MaxPeers <= 0 {
		opts.MaxPeers = defaultMaxPeers
	}

	if opts.Tracker == nil {
		opts.Tracker = &torrent.TrackerClient{Logger: opts.Logger}
	}

	if opts.RetryDelay == 0 {
		opts.RetryDelay = defaultRetryDelay
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		cancel: cancel,
		ctx:    ctx,
		logger: opts.Logger,
		opts:   opts,
		pool:   newConnectionPool(),
	}
}

func (s *Session) connOpts(infoHash torrent.InfoHash) peer.ConnOpts {
	return peer.ConnOpts{
		InfoHash:         infoHash,
		PeerId:           s.opts.PeerId,
		DialTimeout:      s.opts.DialTimeout,
		HandshakeTimeout: s.opts.HandshakeTimeout,
		ReadTimeout:      s.opts.ReadTimeout,
		WriteTimeout:     s.opts.WriteTimeout,
		MaxMessageLength: s.opts.MaxMessageLength,
	}
}

// scoped returns a context that is also cancelled by Stop.
func (s *Session) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)

	return ctx, func() {
		stop()
		cancel()
	}
}

// Discover announces to every HTTP tracker of metainfo and merges the result
// with peers cached from earlier runs.
func (s *Session) Discover(ctx context.Context, metainfo *torrent.Metainfo) ([]torrent.Peer, error) {
	return s.discover(ctx, metainfo.InfoHash, metainfo.Trackers(), metainfo.Info.TotalLength())
}

// DiscoverMagnet is Discover for a magnet link. The remaining length is
// unknown, so trackers are told the whole torrent is missing with left=1.
func (s *Session) DiscoverMagnet(ctx context.Context, magnet *torrent.Magnet) ([]torrent.Peer, error) {
	return s.discover(ctx, magnet.InfoHash, magnet.Trackers, 1)
}

func (s *Session) discover(ctx context.Context, infoHash torrent.InfoHash, trackers []string, left int64) ([]torrent.Peer, error) {
	seen := utils.NewSet()
	peers := []torrent.Peer{}
	errs := []error{}

	add := func(candidates []torrent.Peer) {
		for _, candidate := range candidates {
			if seen.AddIfAbsent(candidate.String()) {
				peers = append(peers, candidate)
			}
		}
	}

	for _, tracker := range trackers {
		request := torrent.AnnounceRequest{
			AnnounceURL: tracker,
			InfoHash:    infoHash,
			PeerId:      s.opts.PeerId,
			Port:        s.opts.Port,
			Left:        left,
			Compact:     true,
			Event:       torrent.EventStarted,
		}

		response, err := utils.Retry(ctx, utils.RetryOptions[*torrent.AnnounceResponse]{
			Delay:       s.opts.RetryDelay,
			MaxAttempts: s.opts.AnnounceRetries,
			Operation: func() (*torrent.AnnounceResponse, error) {
				return s.opts.Tracker.Announce(ctx, request)
			},
		})

		if err != nil {
			s.logger.Warn("announce failed", "tracker", tracker, "error", err)
			errs = append(errs, fmt.Errorf("announce to %s failed: %w", tracker, err))
			continue
		}

		add(response.Peers)
	}

	if s.opts.PeerCache != nil {
		s.mergeCachedPeers(infoHash, peers, add)
	}

	if len(peers) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	s.logger.Debug("discovered peers", "info_hash", infoHash, "trackers", len(trackers), "peers", len(peers))

	return peers, nil
}

// mergeCachedPeers adds the peers an earlier run cached and replaces the cache
// with fresh tracker results when there are any.
func (s *Session) mergeCachedPeers(infoHash torrent.InfoHash, fresh []torrent.Peer, add func([]torrent.Peer)) {
	cached, savedAt, err := s.opts.PeerCache.Peers(infoHash)

	switch {
	case errors.Is(err, peerstore.ErrNotFound):
	case err != nil:
		s.logger.Warn("failed to read cached peers", "info_hash", infoHash, "error", err)
	default:
		s.logger.Debug("merging cached peers", "info_hash", infoHash, "peers", len(cached), "saved_at", savedAt)
		add(cached)
	}

	if len(fresh) == 0 {
		return
	}

	if err := s.opts.PeerCache.Save(infoHash, fresh); err != nil {
		s.logger.Warn("failed to cache peers", "info_hash", infoHash, "error", err)
	}
}

// Connect dials peers, at most MaxPeers at a time, and runs handler for each
// established connection until it ends. Failures of one peer are logged and
// never affect the others. Connect returns once every connection has ended.
func (s *Session) Connect(ctx context.Context, infoHash torrent.InfoHash, peers []torrent.Peer, handler Handler) error {
	ctx, cancel := s.scoped(ctx)
	defer cancel()

	g := new(errgroup.Group)
	g.SetLimit(s.opts.MaxPeers)

	for _, remotePeer := range peers {
		if ctx.Err() != nil {
			break
		}

		addr := remotePeer.String()

		if !s.pool.reserve(addr) {
			s.logger.Debug("skipping peer with a live connection", "peer", addr)
			continue
		}

		g.Go(func() error {
			logger := s.logger.With("peer", addr)
			conn, err := peer.Dial(ctx, addr, s.connOpts(infoHash))

			if err != nil {
				s.pool.release(addr)
				logFailure(ctx, logger, "failed to connect to peer", err)
				return nil
			}

			s.serveConn(ctx, logger, addr, conn, handler)
			return nil
		})
	}

	return g.Wait()
}

// Serve accepts inbound connections on listener until ctx is done or Stop is
// called. Connections beyond MaxPeers are refused. Every connection Serve
// accepted, handshaking or established, is closed before it returns.
func (s *Session) Serve(ctx context.Context, listener net.Listener, infoHash torrent.InfoHash, handler Handler) error {
	ctx, cancel := s.scoped(ctx)
	defer cancel()

	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	g := new(errgroup.Group)
	g.SetLimit(s.opts.MaxPeers)

	for {
		netConn, err := listener.Accept()

		if err != nil {
			stopped := ctx.Err() != nil

			cancel()
			g.Wait()

			if stopped {
				return nil
			}

			return fmt.Errorf("failed to accept connection: %w", err)
		}

		addr := netConn.RemoteAddr().String()
		logger := s.logger.With("peer", addr)

		if s.pool.size() >= s.opts.MaxPeers || !s.pool.reserve(addr) {
			logger.Debug("refusing inbound connection")
			netConn.Close()
			continue
		}

		started := g.TryGo(func() error {
			// peer.Accept only observes deadlines.
			stopHandshake := context.AfterFunc(ctx, func() { netConn.Close() })
			conn, err := peer.Accept(netConn, s.connOpts(infoHash))
			stopHandshake()

			if err != nil {
				s.pool.release(addr)
				logFailure(ctx, logger, "inbound handshake failed", err)
				return nil
			}

			s.serveConn(ctx, logger, addr, conn, handler)
			return nil
		})

		if !started {
			s.pool.release(addr)
			logger.Debug("refusing inbound connection")
			netConn.Close()
		}
	}
}

func (s *Session) serveConn(ctx context.Context, logger *slog.Logger, addr string, conn *peer.Conn, handler Handler) {
	id := uuid.New()
	logger = logger.With("conn_id", id.String())

	s.pool.addConnection(addr, id, conn)

	defer func() {
		s.pool.removeConnection(addr, id)
		conn.Close()
	}()

	remotePeerId := conn.RemotePeerId()
	logger.Info("peer connected", "remote_peer_id", fmt.Sprintf("%x", remotePeerId[:]))

	err := conn.Run(ctx, func(message peer.Message) error {
		return handler(ctx, conn, message)
	})

	logFailure(ctx, logger, "peer connection closed", err)
}

// logFailure reports network trouble at Debug and protocol violations at
// Warn; cancellation is not a failure.
func logFailure(ctx context.Context, logger *slog.Logger, msg string, err error) {
	switch {
	case err == nil:
		logger.Debug(msg)
	case ctx.Err() != nil:
		logger.Debug(msg, "reason", ctx.Err())
	case peer.IsTransportError(err):
		logger.Debug(msg, "error", err)
	default:
		logger.Warn(msg, "error", err)
	}
}

// Connections returns the addresses of live connections, sorted.
func (s *Session) Connections() []string {
	return slices.Sorted(slices.Values(s.pool.addresses()))
}

// Stop cancels every running Connect and Serve call and closes all live
// connections.
func (s *Session) Stop() {
	s.cancel()
	s.pool.closeConnections()
}
