package magnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMagnetHex(t *testing.T) {
	const raw = "magnet:?xt=urn:btih:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa&dn=test.bin&tr=http://tracker.local/announce"
	l, err := ParseMagnet(raw)
	require.NoError(t, err)

	assert.Equal(t, "test.bin", l.DisplayName)
	assert.Equal(t, "http://tracker.local/announce", l.Tracker)
	assert.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", l.InfoHashHex())
}

func TestParseMagnetBase32(t *testing.T) {
	// 32-char base32 encoding of 20 zero bytes.
	const raw = "magnet:?xt=urn:btih:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	l, err := ParseMagnet(raw)
	require.NoError(t, err)
	assert.Equal(t, [20]byte{}, l.InfoHash)
}

func TestParseMagnetFirstWinsOnDuplicateKeys(t *testing.T) {
	const raw = "magnet:?xt=urn:btih:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa&tr=http://first&tr=http://second"
	l, err := ParseMagnet(raw)
	require.NoError(t, err)
	assert.Equal(t, "http://first", l.Tracker)
}

func TestParseMagnetRejectsWrongScheme(t *testing.T) {
	_, err := ParseMagnet("http://example.com")
	assert.Error(t, err)
}

func TestParseMagnetRejectsMissingXT(t *testing.T) {
	_, err := ParseMagnet("magnet:?dn=foo")
	assert.Error(t, err)
}

func TestParseMagnetRejectsBadHashLength(t *testing.T) {
	_, err := ParseMagnet("magnet:?xt=urn:btih:deadbeef")
	assert.Error(t, err)
}
