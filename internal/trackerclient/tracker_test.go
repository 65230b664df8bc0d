package trackerclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCompactPeers(t *testing.T) {
	raw := []byte{127, 0, 0, 1, 0x1A, 0xE1, 192, 168, 1, 1, 0x1A, 0xE2}
	peers, err := ParseCompactPeers(raw)
	require.NoError(t, err)
	require.Len(t, peers, 2)
	assert.Equal(t, "127.0.0.1:6881", peers[0].String())
	assert.Equal(t, "192.168.1.1:6882", peers[1].String())
}

func TestParseCompactPeersRejectsBadLength(t *testing.T) {
	_, err := ParseCompactPeers([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestPercentEncode(t *testing.T) {
	assert.Equal(t, "%00%01abc", percentEncode([]byte{0, 1, 'a', 'b', 'c'}))
}

func TestAnnounceParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "info_hash=")
		assert.Contains(t, r.URL.RawQuery, "compact=1")
		w.Write([]byte("d8:intervali1800e5:peers12:" + string([]byte{127, 0, 0, 1, 0x1A, 0xE1, 10, 0, 0, 1, 0x1A, 0xE2}) + "e"))
	}))
	defer server.Close()

	c := NewClient(2 * time.Second)
	var infoHash, peerID [20]byte
	resp, err := c.Announce(context.Background(), server.URL, infoHash, peerID, 6881, 0)
	require.NoError(t, err)
	assert.Equal(t, 1800*time.Second, resp.Interval)
	require.Len(t, resp.Peers, 2)
	assert.Equal(t, "127.0.0.1:6881", resp.Peers[0].String())
}

func TestAnnounceReportsTrackerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("d14:failure reason12:bad infohashe"))
	}))
	defer server.Close()

	c := NewClient(2 * time.Second)
	var infoHash, peerID [20]byte
	_, err := c.Announce(context.Background(), server.URL, infoHash, peerID, 6881, 0)
	assert.Error(t, err)
}
