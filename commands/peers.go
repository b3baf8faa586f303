package commands

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/MlkMahmud/peerwire/torrent"
)

func HandlePeersCommand(ctx *cli.Context) error {
	src, err := loadSource(ctx, ctx.Args().First())

	if err != nil {
		return err
	}

	sesh, cleanup, err := newSession(ctx)

	if err != nil {
		return err
	}

	defer cleanup()

	var peers []torrent.Peer

	if src.metainfo != nil {
		peers, err = sesh.Discover(ctx.Context, src.metainfo)
	} else {
		peers, err = sesh.DiscoverMagnet(ctx.Context, src.magnet)
	}

	if err != nil {
		return err
	}

	for _, p := range peers {
		fmt.Fprintln(ctx.App.Writer, p.String())
	}

	return nil
}
