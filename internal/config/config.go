// Package config loads process-wide defaults from the environment (and
// an optional .env file), the knobs that aren't specific to any one
// torrent: peer dial timeouts, the tracker announce port, concurrency
// caps.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the tunables a download run pulls from the environment.
type Config struct {
	PeerDialTimeout time.Duration
	PeerIOTimeout   time.Duration
	AnnouncePort    uint16
	MaxPeers        int
	OutputDir       string
}

// defaults mirrors what a fresh checkout behaves like with no .env and no
// environment overrides present.
func defaults() Config {
	return Config{
		PeerDialTimeout: 5 * time.Second,
		PeerIOTimeout:   30 * time.Second,
		AnnouncePort:    6881,
		MaxPeers:        50,
		OutputDir:       ".",
	}
}

// Load reads a .env file if present (a missing file is not an error) and
// then applies GOTORRENT_*-prefixed environment variable overrides on top
// of Load's built-in defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	cfg := defaults()

	if v := os.Getenv("GOTORRENT_PEER_DIAL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, err
		}
		cfg.PeerDialTimeout = d
	}
	if v := os.Getenv("GOTORRENT_PEER_IO_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, err
		}
		cfg.PeerIOTimeout = d
	}
	if v := os.Getenv("GOTORRENT_ANNOUNCE_PORT"); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return nil, err
		}
		cfg.AnnouncePort = uint16(n)
	}
	if v := os.Getenv("GOTORRENT_MAX_PEERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		cfg.MaxPeers = n
	}
	if v := os.Getenv("GOTORRENT_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}

	return &cfg, nil
}
