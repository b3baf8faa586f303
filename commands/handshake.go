package commands

import (
	"fmt"
	"net"

	"github.com/urfave/cli/v2"

	"github.com/MlkMahmud/peerwire/peer"
)

func HandleHandshakeCommand(ctx *cli.Context) error {
	src, err := loadSource(ctx, ctx.Args().Get(0))

	if err != nil {
		return err
	}

	peerAddress := ctx.Args().Get(1)

	if _, _, err := net.SplitHostPort(peerAddress); err != nil {
		return fmt.Errorf("peer address must be in the form <ip>:<port>: %w", err)
	}

	cfg := configFrom(ctx)
	peerId, err := newPeerId(cfg)

	if err != nil {
		return err
	}

	conn, err := peer.Dial(ctx.Context, peerAddress, peer.ConnOpts{
		InfoHash:         src.infoHash,
		PeerId:           peerId,
		DialTimeout:      cfg.DialTimeout,
		HandshakeTimeout: cfg.HandshakeTimeout,
	})

	if err != nil {
		return err
	}

	defer conn.Close()

	remotePeerId := conn.RemotePeerId()
	fmt.Fprintf(ctx.App.Writer, "Peer ID: %x\n", remotePeerId[:])

	return nil
}
