package peerconn

import (
	"context"
	"crypto/sha1"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotorrent/gotorrent/internal/bencode"
	"github.com/gotorrent/gotorrent/internal/wire"
)

func pipedSessionForExt(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	client, remote := net.Pipe()
	s := &Session{conn: client, log: zerolog.Nop(), ioTimeout: time.Second}
	t.Cleanup(func() { client.Close(); remote.Close() })
	return s, remote
}

func TestExtensionHandshakeParsesReply(t *testing.T) {
	s, remote := pipedSessionForExt(t)

	go func() {
		m, err := wire.ReadMessage(remote)
		require.NoError(t, err)
		require.Equal(t, wire.Extended, m.ID)

		replyBody, err := bencode.Marshal(extendedHandshakePayload{
			M:            map[string]int64{"ut_metadata": 7},
			MetadataSize: 1234,
		})
		require.NoError(t, err)
		remote.Write(wire.FormatExtended(0, bencode.Encode(replyBody)).Serialize())
	}()

	ok, size, err := s.ExtensionHandshake(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1234, size)
	assert.EqualValues(t, 7, s.remoteUtMetadataID)
}

func TestFetchMetadataAssemblesAndVerifies(t *testing.T) {
	s, remote := pipedSessionForExt(t)
	s.remoteUtMetadataID = 7
	s.metadataSize = 20
	metadata := []byte("01234567890123456789")[:20]
	expectedHash := sha1.Sum(metadata)

	go func() {
		m, err := wire.ReadMessage(remote)
		require.NoError(t, err)
		require.Equal(t, wire.Extended, m.ID)

		replyDict, _ := bencode.Marshal(metadataReply{MsgType: metadataMsgData, Piece: 0, TotalSize: int64(len(metadata))})
		body := append(bencode.Encode(replyDict), metadata...)
		remote.Write(wire.FormatExtended(localUtMetadataID, body).Serialize())
	}()

	got, err := s.FetchMetadata(context.Background(), expectedHash)
	require.NoError(t, err)
	assert.Equal(t, metadata, got)
}

func TestFetchMetadataRejectsMismatchedHash(t *testing.T) {
	s, remote := pipedSessionForExt(t)
	s.remoteUtMetadataID = 7
	s.metadataSize = 8
	var wrongHash [20]byte

	go func() {
		m, err := wire.ReadMessage(remote)
		require.NoError(t, err)
		require.Equal(t, wire.Extended, m.ID)

		replyDict, _ := bencode.Marshal(metadataReply{MsgType: metadataMsgData, Piece: 0})
		body := append(bencode.Encode(replyDict), []byte("deadbeef")...)
		remote.Write(wire.FormatExtended(localUtMetadataID, body).Serialize())
	}()

	_, err := s.FetchMetadata(context.Background(), wrongHash)
	assert.Error(t, err)
}
