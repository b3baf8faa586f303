package commands

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/MlkMahmud/peerwire/peer"
	"github.com/MlkMahmud/peerwire/torrent"
)

// HandleConnectCommand joins the swarm for a torrent: it dials the peers
// trackers return, accepts inbound connections on the configured port and
// logs every message received until interrupted.
func HandleConnectCommand(ctx *cli.Context) error {
	src, err := loadSource(ctx, ctx.Args().First())

	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sesh, cleanup, err := newSession(ctx)

	if err != nil {
		return err
	}

	defer cleanup()
	defer sesh.Stop()

	var peers []torrent.Peer

	if src.metainfo != nil {
		peers, err = sesh.Discover(runCtx, src.metainfo)
	} else {
		peers, err = sesh.DiscoverMagnet(runCtx, src.magnet)
	}

	if err != nil {
		return err
	}

	cfg := configFrom(ctx)
	logger := loggerFrom(ctx).With("info_hash", src.infoHash)

	listener, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(cfg.Port)))

	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", cfg.Port, err)
	}

	handler := func(_ context.Context, conn *peer.Conn, message peer.Message) error {
		id, ok := message.Id()

		if !ok {
			logger.Debug("keep-alive", "peer", conn.RemoteAddr())
			return nil
		}

		logger.Info("message received", "peer", conn.RemoteAddr(), "type", id)
		return nil
	}

	g, groupCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return sesh.Serve(groupCtx, listener, src.infoHash, handler)
	})

	g.Go(func() error {
		return sesh.Connect(groupCtx, src.infoHash, peers, handler)
	})

	return g.Wait()
}
