package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("GOTORRENT_PEER_DIAL_TIMEOUT")
	os.Unsetenv("GOTORRENT_PEER_IO_TIMEOUT")
	os.Unsetenv("GOTORRENT_ANNOUNCE_PORT")
	os.Unsetenv("GOTORRENT_MAX_PEERS")
	os.Unsetenv("GOTORRENT_OUTPUT_DIR")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, defaults(), *cfg)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("GOTORRENT_ANNOUNCE_PORT", "7000")
	t.Setenv("GOTORRENT_MAX_PEERS", "10")
	t.Setenv("GOTORRENT_OUTPUT_DIR", "/tmp/gotorrent-downloads")

	cfg, err := Load()
	require.NoError(t, err)
	assert.EqualValues(t, 7000, cfg.AnnouncePort)
	assert.Equal(t, 10, cfg.MaxPeers)
	assert.Equal(t, "/tmp/gotorrent-downloads", cfg.OutputDir)
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	t.Setenv("GOTORRENT_PEER_DIAL_TIMEOUT", "not-a-duration")
	_, err := Load()
	assert.Error(t, err)
}
