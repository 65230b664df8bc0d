// Package wire implements the length-prefixed peer message framing used
// after the handshake: choke/unchoke/interested, bitfield/have, piece
// request/transfer, and the BEP-10 extended message.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/gotorrent/gotorrent/internal/errs"
)

// ID identifies a peer wire message's type.
type ID byte

const (
	Choke         ID = 0
	Unchoke       ID = 1
	Interested    ID = 2
	NotInterested ID = 3
	Have          ID = 4
	Bitfield      ID = 5
	Request       ID = 6
	Piece         ID = 7
	Cancel        ID = 8
	Extended      ID = 20
)

// Message is a single framed peer message: a 1-byte ID and its payload.
// A keepalive (zero-length frame with no ID) is represented as a nil
// *Message.
type Message struct {
	ID      ID
	Payload []byte
}

// Serialize renders m to its wire form: a 4-byte big-endian length prefix
// covering the ID byte and payload, followed by the ID and payload
// themselves.
func (m *Message) Serialize() []byte {
	if m == nil {
		return []byte{0, 0, 0, 0}
	}
	length := uint32(len(m.Payload) + 1)
	buf := make([]byte, 4+length)
	binary.BigEndian.PutUint32(buf[0:4], length)
	buf[4] = byte(m.ID)
	copy(buf[5:], m.Payload)
	return buf
}

// Read reads frames from r until it encounters a non-keepalive message,
// returning that message. Keepalives are consumed silently.
func Read(r io.Reader) (*Message, error) {
	for {
		m, err := ReadMessage(r)
		if err != nil {
			return nil, err
		}
		if m != nil {
			return m, nil
		}
	}
}

// ReadMessage reads a single frame from r. A zero-length frame (keepalive)
// is reported as a nil *Message and a nil error.
func ReadMessage(r io.Reader) (*Message, error) {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return nil, errs.Wrap(errs.IO, err)
	}
	length := binary.BigEndian.Uint32(lengthBuf[:])
	if length == 0 {
		return nil, nil
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errs.Wrap(errs.IO, err)
	}
	return &Message{ID: ID(body[0]), Payload: body[1:]}, nil
}

// Keepalive returns the wire bytes for a keepalive message.
func Keepalive() []byte { return (*Message)(nil).Serialize() }

func simple(id ID) *Message { return &Message{ID: id} }

// ChokeMsg, UnchokeMsg, InterestedMsg and NotInterestedMsg build the four
// payload-less state-change messages.
func ChokeMsg() *Message         { return simple(Choke) }
func UnchokeMsg() *Message       { return simple(Unchoke) }
func InterestedMsg() *Message    { return simple(Interested) }
func NotInterestedMsg() *Message { return simple(NotInterested) }

// FormatHave builds a have message announcing piece index.
func FormatHave(index uint32) *Message {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, index)
	return &Message{ID: Have, Payload: payload}
}

// FormatRequest builds a request message for the block at [begin,
// begin+length) within piece index.
func FormatRequest(index, begin, length uint32) *Message {
	payload := make([]byte, 12)
	binary.BigEndian.PutUint32(payload[0:4], index)
	binary.BigEndian.PutUint32(payload[4:8], begin)
	binary.BigEndian.PutUint32(payload[8:12], length)
	return &Message{ID: Request, Payload: payload}
}

// FormatExtended builds a BEP-10 extended message with the given extension
// message ID (0 for the extended handshake, otherwise the ID the receiving
// peer advertised for that extension) and bencoded body.
func FormatExtended(extendedID byte, body []byte) *Message {
	payload := make([]byte, 1+len(body))
	payload[0] = extendedID
	copy(payload[1:], body)
	return &Message{ID: Extended, Payload: payload}
}

// ParseHave extracts the piece index from a have message.
func ParseHave(m *Message) (uint32, error) {
	if m.ID != Have || len(m.Payload) != 4 {
		return 0, errs.New(errs.Protocol, "malformed have message")
	}
	return binary.BigEndian.Uint32(m.Payload), nil
}

// ParsePiece splits a piece message's payload into its piece index, block
// offset and block data.
func ParsePiece(m *Message) (index, begin uint32, block []byte, err error) {
	if m.ID != Piece || len(m.Payload) < 8 {
		return 0, 0, nil, errs.New(errs.Protocol, "malformed piece message")
	}
	index = binary.BigEndian.Uint32(m.Payload[0:4])
	begin = binary.BigEndian.Uint32(m.Payload[4:8])
	block = m.Payload[8:]
	return index, begin, block, nil
}

// ParseExtended splits an extended message's payload into its extension
// message ID and bencoded-plus-trailer body.
func ParseExtended(m *Message) (extendedID byte, body []byte, err error) {
	if m.ID != Extended || len(m.Payload) < 1 {
		return 0, nil, errs.New(errs.Protocol, "malformed extended message")
	}
	return m.Payload[0], m.Payload[1:], nil
}
