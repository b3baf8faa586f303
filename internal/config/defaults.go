package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

const (
	appName        = "peerwire"
	configFileName = "config.yaml"
)

const (
	peerIdPrefix     = "-PW0001-"
	port             = 6881
	maxPeers         = 30
	dialTimeout      = 5 * time.Second
	handshakeTimeout = 10 * time.Second
	readTimeout      = 3 * time.Minute
	writeTimeout     = 30 * time.Second
	maxMessageLength = 1 << 17
	maxDecodeDepth   = 256
	announceRetries  = 3
)

// DefaultPath is where Load looks when no explicit path is given.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, appName, configFileName)
}

func defaultPeerCachePath() string {
	return filepath.Join(xdg.DataHome, appName, "peers.db")
}

func defaults() map[string]any {
	return map[string]any{
		"peer_id_prefix":     peerIdPrefix,
		"port":               port,
		"max_peers":          maxPeers,
		"dial_timeout":       dialTimeout,
		"handshake_timeout":  handshakeTimeout,
		"read_timeout":       readTimeout,
		"write_timeout":      writeTimeout,
		"max_message_length": maxMessageLength,
		"max_decode_depth":   maxDecodeDepth,
		"peer_cache_path":    defaultPeerCachePath(),
		"announce_retries":   announceRetries,
	}
}
