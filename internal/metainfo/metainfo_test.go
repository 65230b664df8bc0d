package metainfo

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTorrent(extra string) string {
	// 2 pieces worth of placeholder SHA-1 hashes (20 bytes each, 40 total).
	pieces := strings.Repeat("a", 40)
	info := "d6:lengthi40e4:name8:test.bin12:piece lengthi20e6:pieces40:" + pieces + extra + "e"
	return "d8:announce20:http://tracker.local4:info" + info + "e"
}

func TestParseMetainfoBasic(t *testing.T) {
	raw := sampleTorrent("")
	tf, err := ParseMetainfo([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "http://tracker.local", tf.Announce)
	assert.Equal(t, "test.bin", tf.Info.Name)
	assert.EqualValues(t, 40, tf.Info.Length)
	assert.EqualValues(t, 20, tf.Info.PieceLength)
	assert.Equal(t, 2, tf.Info.PieceCount())
	assert.EqualValues(t, 20, tf.Info.PieceSize(0))
	assert.EqualValues(t, 20, tf.Info.PieceSize(1))
}

func TestInfoHashCoversUnknownKeys(t *testing.T) {
	plain, err := ParseMetainfo([]byte(sampleTorrent("")))
	require.NoError(t, err)

	withExtra, err := ParseMetainfo([]byte(sampleTorrent("7:privatei1e")))
	require.NoError(t, err)

	plainHash := plain.InfoHash()
	extraHash := withExtra.InfoHash()
	assert.NotEqual(t, hex.EncodeToString(plainHash[:]), hex.EncodeToString(extraHash[:]),
		"an unmodeled key must still affect the info hash since it changes the encoded bytes")
}

func TestInfoHashIsDeterministic(t *testing.T) {
	raw := sampleTorrent("")
	a, err := ParseMetainfo([]byte(raw))
	require.NoError(t, err)
	b, err := ParseMetainfo([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, a.InfoHash(), b.InfoHash())
}

func TestParseMetainfoRejectsMultiFile(t *testing.T) {
	raw := "d8:announce20:http://tracker.local4:infod5:filesle4:name1:x12:piece lengthi16eee"
	_, err := ParseMetainfo([]byte(raw))
	assert.Error(t, err)
}

func TestParseMetainfoRejectsBadPiecesLength(t *testing.T) {
	raw := "d8:announce20:http://tracker.local4:infod6:lengthi1e4:name1:x12:piece lengthi1e6:pieces3:abcee"
	_, err := ParseMetainfo([]byte(raw))
	assert.Error(t, err)
}

func TestPieceSizeWithRemainder(t *testing.T) {
	// Length/piece length pair that doesn't divide evenly: 92063 bytes at
	// a piece length of 32768 yields two full pieces and a 26527-byte tail.
	pieces := strings.Repeat("a", 60) // 3 pieces worth of placeholder hashes
	info := "d6:lengthi92063e4:name8:test.bin12:piece lengthi32768e6:pieces60:" + pieces + "e"
	raw := "d8:announce20:http://tracker.local4:info" + info + "e"

	tf, err := ParseMetainfo([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, 3, tf.Info.PieceCount())
	assert.EqualValues(t, 32768, tf.Info.PieceSize(0))
	assert.EqualValues(t, 32768, tf.Info.PieceSize(1))
	assert.EqualValues(t, 26527, tf.Info.PieceSize(2))
}

func TestPieceHash(t *testing.T) {
	tf, err := ParseMetainfo([]byte(sampleTorrent("")))
	require.NoError(t, err)
	h := tf.Info.PieceHash(0)
	assert.Equal(t, strings.Repeat("a", 20), string(h[:]))
}
