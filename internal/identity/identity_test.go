package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPeerIDHasExpectedPrefix(t *testing.T) {
	id, err := NewPeerID()
	require.NoError(t, err)
	assert.Equal(t, clientPrefix, string(id[:len(clientPrefix)]))
}

func TestNewPeerIDIsRandomized(t *testing.T) {
	a, err := NewPeerID()
	require.NoError(t, err)
	b, err := NewPeerID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestNewSessionIDIsUnique(t *testing.T) {
	a := NewSessionID()
	b := NewSessionID()
	assert.NotEqual(t, a, b)
}
