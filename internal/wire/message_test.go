package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeAndReadMessage(t *testing.T) {
	m := FormatRequest(1, 16384, 16384)
	var buf bytes.Buffer
	buf.Write(m.Serialize())

	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, Request, got.ID)
	assert.Equal(t, m.Payload, got.Payload)
}

func TestReadMessageKeepalive(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Keepalive())
	m, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestReadSkipsKeepalives(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Keepalive())
	buf.Write(Keepalive())
	buf.Write(UnchokeMsg().Serialize())

	m, err := Read(&buf)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, Unchoke, m.ID)
}

func TestParsePiece(t *testing.T) {
	payload := make([]byte, 0, 8+3)
	payload = append(payload, 0, 0, 0, 5)
	payload = append(payload, 0, 0, 0x40, 0)
	payload = append(payload, 'a', 'b', 'c')
	m := &Message{ID: Piece, Payload: payload}

	index, begin, block, err := ParsePiece(m)
	require.NoError(t, err)
	assert.EqualValues(t, 5, index)
	assert.EqualValues(t, 0x4000, begin)
	assert.Equal(t, []byte("abc"), block)
}

func TestParseHaveRejectsWrongID(t *testing.T) {
	_, err := ParseHave(&Message{ID: Choke})
	assert.Error(t, err)
}

func TestFormatExtended(t *testing.T) {
	m := FormatExtended(3, []byte("d1:ai1ee"))
	id, body, err := ParseExtended(m)
	require.NoError(t, err)
	assert.EqualValues(t, 3, id)
	assert.Equal(t, "d1:ai1ee", string(body))
}
