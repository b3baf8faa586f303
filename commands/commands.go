package commands

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/MlkMahmud/peerwire/bencode"
	"github.com/MlkMahmud/peerwire/internal/config"
	"github.com/MlkMahmud/peerwire/internal/peerstore"
	"github.com/MlkMahmud/peerwire/peer"
	"github.com/MlkMahmud/peerwire/session"
	"github.com/MlkMahmud/peerwire/torrent"
	"github.com/MlkMahmud/peerwire/utils"
)

const (
	configKey = "config"
	loggerKey = "logger"
)

// Setup stores the loaded configuration and logger on the app so that every
// command handler can reach them. Call it from the app's Before hook.
func Setup(ctx *cli.Context, cfg *config.Config, logger *slog.Logger) {
	if ctx.App.Metadata == nil {
		ctx.App.Metadata = map[string]any{}
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx.App.Metadata[configKey] = cfg
	ctx.App.Metadata[loggerKey] = logger
}

func configFrom(ctx *cli.Context) *config.Config {
	if cfg, ok := ctx.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}

	cfg := config.DefaultConfig()
	return &cfg
}

func loggerFrom(ctx *cli.Context) *slog.Logger {
	if logger, ok := ctx.App.Metadata[loggerKey].(*slog.Logger); ok {
		return logger
	}

	return slog.New(slog.DiscardHandler)
}

// source is what the peer-facing commands need from either a metainfo file
// or a magnet link.
type source struct {
	infoHash torrent.InfoHash
	metainfo *torrent.Metainfo
	magnet   *torrent.Magnet
}

// bencodeDecoder applies the max_decode_depth setting.
func bencodeDecoder(cfg *config.Config) bencode.Decoder {
	return bencode.Decoder{MaxDepth: cfg.MaxDecodeDepth}
}

func loadSource(ctx *cli.Context, src string) (*source, error) {
	if src == "" {
		return nil, fmt.Errorf("a metainfo file path or magnet link is required")
	}

	if strings.HasPrefix(src, "magnet:") {
		magnet, err := torrent.ParseMagnet(src)

		if err != nil {
			return nil, err
		}

		return &source{infoHash: magnet.InfoHash, magnet: magnet}, nil
	}

	if !utils.FileExists(src) {
		return nil, fmt.Errorf("metainfo file \"%s\" does not exist", src)
	}

	metainfo, err := torrent.MetainfoDecoder{Decoder: bencodeDecoder(configFrom(ctx))}.ReadFile(src)

	if err != nil {
		return nil, err
	}

	return &source{infoHash: metainfo.InfoHash, metainfo: metainfo}, nil
}

func newPeerId(cfg *config.Config) ([20]byte, error) {
	return peer.NewPeerId(cfg.PeerIdPrefix, rand.Reader)
}

// newSession builds a session from the configuration. The returned cleanup
// closes the peer cache; a cache that cannot be opened is logged and skipped.
func newSession(ctx *cli.Context) (*session.Session, func(), error) {
	cfg := configFrom(ctx)
	logger := loggerFrom(ctx)

	peerId, err := newPeerId(cfg)

	if err != nil {
		return nil, nil, err
	}

	opts := session.SessionOpts{
		Logger:           logger,
		PeerId:           peerId,
		Port:             uint16(cfg.Port),
		MaxPeers:         cfg.MaxPeers,
		DialTimeout:      cfg.DialTimeout,
		HandshakeTimeout: cfg.HandshakeTimeout,
		ReadTimeout:      cfg.ReadTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		MaxMessageLength: cfg.MaxMessageLength,
		AnnounceRetries:  cfg.AnnounceRetries,
		Tracker:          &torrent.TrackerClient{Logger: logger, Decoder: bencodeDecoder(cfg)},
	}

	cleanup := func() {}

	if cfg.PeerCachePath != "" {
		store, err := peerstore.Open(cfg.PeerCachePath)

		if err != nil {
			logger.Warn("peer cache disabled", "path", cfg.PeerCachePath, "error", err)
		} else {
			opts.PeerCache = store
			cleanup = func() { store.Close() }
		}
	}

	return session.NewSession(opts), cleanup, nil
}
