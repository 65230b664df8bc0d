package handshake

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndParseRoundTrip(t *testing.T) {
	var infoHash, peerID [20]byte
	copy(infoHash[:], "aaaaaaaaaaaaaaaaaaaa")
	copy(peerID[:], "bbbbbbbbbbbbbbbbbbbb")

	raw := Build(infoHash, peerID, true)
	assert.Len(t, raw, Size)

	h, err := Parse(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, infoHash, h.InfoHash)
	assert.Equal(t, peerID, h.PeerID)
	assert.True(t, h.Extensions)
}

func TestBuildWithoutExtensions(t *testing.T) {
	var infoHash, peerID [20]byte
	raw := Build(infoHash, peerID, false)
	h, err := Parse(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.False(t, h.Extensions)
}

func TestParseRejectsWrongProtocol(t *testing.T) {
	raw := Build([20]byte{}, [20]byte{}, false)
	raw[0] = 4 // claim a 4-byte protocol string instead
	_, err := Parse(bytes.NewReader(raw))
	assert.Error(t, err)
}

func TestValidateRejectsMismatchedInfoHash(t *testing.T) {
	var a, b [20]byte
	copy(a[:], "aaaaaaaaaaaaaaaaaaaa")
	copy(b[:], "bbbbbbbbbbbbbbbbbbbb")
	h := &Handshake{InfoHash: a}
	assert.Error(t, Validate(h, b))
	assert.NoError(t, Validate(h, a))
}

func TestDHTBitIsNeverSet(t *testing.T) {
	raw := Build([20]byte{}, [20]byte{}, true)
	reserved := raw[1+len(Protocol) : 1+len(Protocol)+8]
	assert.Zero(t, reserved[7], "DHT support bit must never be advertised")
}
