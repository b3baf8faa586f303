package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/MlkMahmud/peerwire/commands"
	"github.com/MlkMahmud/peerwire/internal/config"
)

var app = &cli.App{
	Name:        "peerwire",
	Usage:       "Inspect torrents and talk to BitTorrent peers.",
	Description: "Decodes bencoded data and metainfo files, queries HTTP trackers and speaks the peer wire protocol.",
	Before: func(ctx *cli.Context) error {
		logLevel := slog.LevelError

		if ctx.Bool("debug") {
			logLevel = slog.LevelDebug
		}

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

		overrides := map[string]any{}

		if ctx.IsSet("port") {
			overrides["port"] = ctx.Int("port")
		}

		if ctx.IsSet("max-peers") {
			overrides["max_peers"] = ctx.Int("max-peers")
		}

		cfg, err := config.Load(ctx.String("config"), overrides)

		if err != nil {
			return err
		}

		commands.Setup(ctx, cfg, logger)
		return nil
	},
	Commands: []*cli.Command{
		{
			Name:      "decode",
			Usage:     "prints a bencoded value as JSON",
			ArgsUsage: "<bencoded value>",
			Action:    commands.HandleDecodeCommand,
		},
		{
			Name:      "info",
			Usage:     "prints the tracker, length, info hash and pieces of a metainfo file",
			ArgsUsage: "<file>",
			Action:    commands.HandleInfoCommand,
		},
		{
			Name:      "peers",
			Usage:     "announces to the torrent's trackers and prints the peers they return",
			ArgsUsage: "<file|magnet>",
			Action:    commands.HandlePeersCommand,
		},
		{
			Name:      "handshake",
			Usage:     "performs a handshake with a peer and prints its peer id",
			ArgsUsage: "<file|magnet> <ip:port>",
			Action:    commands.HandleHandshakeCommand,
		},
		{
			Name:      "connect",
			Usage:     "connects to the swarm and logs every message received until interrupted",
			ArgsUsage: "<file|magnet>",
			Action:    commands.HandleConnectCommand,
		},
	},
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"d"},
			Usage:   "enable debug logging output for troubleshooting and development",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to a YAML config file (default: $XDG_CONFIG_HOME/peerwire/config.yaml)",
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "port to listen on and announce to trackers",
		},
		&cli.IntFlag{
			Name:  "max-peers",
			Usage: "maximum number of concurrent peer connections",
		},
	},
}

func main() {
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
