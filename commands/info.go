package commands

import (
	"fmt"
	"path"

	"github.com/urfave/cli/v2"

	"github.com/MlkMahmud/peerwire/torrent"
)

func HandleInfoCommand(ctx *cli.Context) error {
	metainfo, err := torrent.MetainfoDecoder{Decoder: bencodeDecoder(configFrom(ctx))}.ReadFile(ctx.Args().First())

	if err != nil {
		return err
	}

	w := ctx.App.Writer

	fmt.Fprintf(w, "Tracker URL: %s\n", metainfo.Announce)
	fmt.Fprintf(w, "Length: %d\n", metainfo.Info.TotalLength())
	fmt.Fprintf(w, "Info Hash: %s\n", metainfo.InfoHash)
	fmt.Fprintf(w, "Piece Length: %d\n", metainfo.Info.PieceLength)
	fmt.Fprintln(w, "Piece Hashes:")

	for _, hash := range metainfo.Info.Pieces {
		fmt.Fprintf(w, "%x\n", hash)
	}

	if layout, ok := metainfo.Info.Layout.(torrent.MultiFile); ok {
		fmt.Fprintln(w, "Files:")

		for _, file := range layout.Files {
			fmt.Fprintf(w, "%s (%d)\n", path.Join(file.Path...), file.Length)
		}
	}

	return nil
}
