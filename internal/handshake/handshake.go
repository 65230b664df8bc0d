// Package handshake implements the 68-byte BitTorrent peer handshake,
// including the BEP-10 extension-protocol reserved bit. DHT (BEP-5) is
// out of scope, so the DHT reserved bit is never set or inspected.
package handshake

import (
	"io"

	"github.com/gotorrent/gotorrent/internal/errs"
)

// Protocol is the fixed protocol identifier string sent in every
// handshake.
const Protocol = "BitTorrent protocol"

// Size is the total length in bytes of a handshake message.
const Size = 49 + len(Protocol)

// extensionBit marks support for BEP-10 extended messaging, the 20th bit
// from the right of the 8-byte reserved field (reserved[5] & 0x10).
const extensionBit = 0x10

// Handshake is a parsed peer handshake.
type Handshake struct {
	Extensions bool
	InfoHash   [20]byte
	PeerID     [20]byte
}

// Build renders a handshake message. extensions controls whether the
// BEP-10 reserved bit is set.
func Build(infoHash, peerID [20]byte, extensions bool) []byte {
	buf := make([]byte, Size)
	buf[0] = byte(len(Protocol))
	copy(buf[1:], Protocol)
	reserved := buf[1+len(Protocol) : 1+len(Protocol)+8]
	if extensions {
		reserved[5] = extensionBit
	}
	copy(buf[1+len(Protocol)+8:], infoHash[:])
	copy(buf[1+len(Protocol)+8+20:], peerID[:])
	return buf
}

// Parse reads and decodes a handshake message from r.
func Parse(r io.Reader) (*Handshake, error) {
	buf := make([]byte, Size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errs.Wrap(errs.IO, err)
	}

	plen := int(buf[0])
	if plen != len(Protocol) || string(buf[1:1+plen]) != Protocol {
		return nil, errs.Newf(errs.Protocol, "unrecognized protocol identifier (length %d)", plen)
	}

	reserved := buf[1+plen : 1+plen+8]
	h := &Handshake{Extensions: reserved[5]&extensionBit != 0}
	copy(h.InfoHash[:], buf[1+plen+8:1+plen+8+20])
	copy(h.PeerID[:], buf[1+plen+8+20:])
	return h, nil
}

// Validate checks that a received handshake advertises the expected
// info-hash, rejecting connections to the wrong swarm.
func Validate(h *Handshake, expectedInfoHash [20]byte) error {
	if h.InfoHash != expectedInfoHash {
		return errs.New(errs.Protocol, "peer handshake info-hash does not match requested torrent")
	}
	return nil
}
