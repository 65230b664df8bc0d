// Package identity mints the two distinct identifiers a download uses:
// the 20-byte peer ID sent on the wire, and a per-session UUID used only
// to correlate log lines and metrics.
package identity

import (
	"crypto/rand"

	"github.com/google/uuid"

	"github.com/gotorrent/gotorrent/internal/errs"
)

// clientPrefix identifies this implementation in the Azureus-style peer ID
// convention: a dash, two letters, four digits, a dash.
const clientPrefix = "-GT0100-"

// NewPeerID mints a 20-byte peer ID: clientPrefix followed by random
// bytes. This is the identifier sent in the handshake and tracker
// announce, never the session ID below.
func NewPeerID() ([20]byte, error) {
	var id [20]byte
	copy(id[:], clientPrefix)
	if _, err := rand.Read(id[len(clientPrefix):]); err != nil {
		return id, errs.Wrap(errs.IO, err)
	}
	return id, nil
}

// NewSessionID mints a UUID used only to correlate log lines and metrics
// for a single peer connection or download run; it never appears on the
// wire.
func NewSessionID() uuid.UUID {
	return uuid.New()
}
