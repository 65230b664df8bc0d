// Package peerconn drives a single peer wire connection: handshake,
// bitfield exchange, choke/unchoke negotiation and pipelined block
// downloads for one piece at a time.
package peerconn

import (
	"context"
	"crypto/sha1"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gotorrent/gotorrent/internal/bitfield"
	"github.com/gotorrent/gotorrent/internal/errs"
	"github.com/gotorrent/gotorrent/internal/handshake"
	"github.com/gotorrent/gotorrent/internal/telemetry"
	"github.com/gotorrent/gotorrent/internal/wire"
)

const (
	blockSize    = 16384
	maxBacklog   = 5
	defaultTimeo = 30 * time.Second
)

// Session is one established, handshaken connection to a peer.
type Session struct {
	conn net.Conn
	id   uuid.UUID
	log  zerolog.Logger

	addr     string
	peerID   [20]byte
	infoHash [20]byte

	bitfield      bitfield.Bitfield
	bitfieldKnown bool
	choked        bool

	ioTimeout time.Duration
	metrics   *telemetry.Metrics

	// BEP-10 extension state; zero values until ExtensionHandshake runs.
	remoteUtMetadataID byte
	metadataSize       int
}

// Dial connects to addr and performs the handshake. It reads nothing past
// the handshake reply; the peer's bitfield is recorded later, by
// AwaitUnchoke.
func Dial(ctx context.Context, addr string, infoHash, clientID [20]byte, dialTimeout, ioTimeout time.Duration, log zerolog.Logger, metrics *telemetry.Metrics) (*Session, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errs.Wrap(errs.IO, err)
	}

	sessionID := uuid.New()
	sessLog := log.With().Str("session", sessionID.String()).Str("peer", addr).Logger()

	s := &Session{
		conn:      conn,
		id:        sessionID,
		log:       sessLog,
		addr:      addr,
		infoHash:  infoHash,
		choked:    true,
		ioTimeout: ioTimeout,
		metrics:   metrics,
	}

	if err := s.handshake(clientID); err != nil {
		conn.Close()
		return nil, err
	}

	s.log.Debug().Msg("handshake complete")
	return s, nil
}

func (s *Session) handshake(clientID [20]byte) error {
	s.conn.SetDeadline(time.Now().Add(s.ioTimeout))
	defer s.conn.SetDeadline(time.Time{})

	if _, err := s.conn.Write(handshake.Build(s.infoHash, clientID, true)); err != nil {
		return errs.Wrap(errs.IO, err)
	}
	reply, err := handshake.Parse(s.conn)
	if err != nil {
		return err
	}
	if err := handshake.Validate(reply, s.infoHash); err != nil {
		return err
	}
	s.peerID = reply.PeerID
	return nil
}

// Close closes the underlying connection.
func (s *Session) Close() error { return s.conn.Close() }

// PeerID returns the 20-byte peer ID the remote side presented in its
// handshake reply.
func (s *Session) PeerID() [20]byte { return s.peerID }

// SendInterested announces interest in the peer's pieces.
func (s *Session) SendInterested() error {
	return s.write(wire.InterestedMsg())
}

// AwaitUnchoke blocks, applying any bitfield/have updates it sees along
// the way, until the peer unchokes us or ctx is cancelled.
func (s *Session) AwaitUnchoke(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m, err := s.readMessage()
		if err != nil {
			return err
		}
		if m == nil {
			continue
		}
		switch m.ID {
		case wire.Unchoke:
			s.choked = false
			return nil
		case wire.Choke:
			s.choked = true
		case wire.Have:
			index, err := wire.ParseHave(m)
			if err != nil {
				return err
			}
			s.ensureBitfield(int(index) + 1)
			s.bitfield.Set(int(index))
		case wire.Bitfield:
			s.bitfield = append(bitfield.Bitfield(nil), m.Payload...)
			s.bitfieldKnown = true
		}
	}
}

// HasPiece reports whether the peer is known to have piece index. Until the
// peer has sent a bitfield message, availability is unknown and HasPiece
// reports true, even if have messages have already arrived -- have
// messages alone never establish a baseline, so a peer that sends no
// bitfield is assumed to have everything until a request proves otherwise.
func (s *Session) HasPiece(index int) bool {
	if !s.bitfieldKnown {
		return true
	}
	return s.bitfield.Has(index)
}

func (s *Session) ensureBitfield(minLen int) {
	if len(s.bitfield)*8 >= minLen {
		return
	}
	grown := bitfield.New(minLen)
	copy(grown, s.bitfield)
	s.bitfield = grown
}

// DownloadPiece fetches and verifies one whole piece of the given length,
// pipelining up to maxBacklog outstanding 16 KiB block requests.
func (s *Session) DownloadPiece(ctx context.Context, index int, length uint32, expectedHash [20]byte) ([]byte, error) {
	buf := make([]byte, length)
	filled := make([]bool, length)

	var requested, received uint32
	backlog := 0

	for received < length {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		for backlog < maxBacklog && requested < length {
			blockLen := uint32(blockSize)
			if requested+blockLen > length {
				blockLen = length - requested
			}
			if err := s.write(wire.FormatRequest(uint32(index), requested, blockLen)); err != nil {
				return nil, err
			}
			requested += blockLen
			backlog++
			if s.metrics != nil {
				s.metrics.InFlightRequests.Inc()
			}
		}

		m, err := s.readMessage()
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		switch m.ID {
		case wire.Choke:
			s.choked = true
			return nil, errs.New(errs.Protocol, "peer choked mid-download")
		case wire.Have:
			index, err := wire.ParseHave(m)
			if err == nil {
				s.ensureBitfield(int(index) + 1)
				s.bitfield.Set(int(index))
			}
		case wire.Piece:
			pieceIndex, begin, block, err := wire.ParsePiece(m)
			if err != nil {
				return nil, err
			}
			if pieceIndex != uint32(index) {
				continue
			}
			if err := placeBlock(buf, filled, begin, block); err != nil {
				return nil, err
			}
			received += uint32(len(block))
			backlog--
			if s.metrics != nil {
				s.metrics.BlocksReceived.Inc()
				s.metrics.InFlightRequests.Dec()
			}
		}
	}

	got := sha1.Sum(buf)
	if got != expectedHash {
		if s.metrics != nil {
			s.metrics.PiecesFailed.Inc()
		}
		return nil, errs.Newf(errs.Validation, "piece %d failed SHA-1 verification", index)
	}
	if s.metrics != nil {
		s.metrics.PiecesVerified.Inc()
	}
	return buf, nil
}

// placeBlock copies block into buf at begin, rejecting blocks that fall
// outside buf's bounds or overlap a region already filled -- a
// misbehaving or malicious peer must not be able to write past the piece
// boundary or silently overwrite data already verified-in-progress.
func placeBlock(buf []byte, filled []bool, begin uint32, block []byte) error {
	start := int(begin)
	end := start + len(block)
	if start < 0 || end > len(buf) || end < start {
		return errs.Newf(errs.Protocol, "block [%d,%d) is out of bounds for piece of length %d", start, end, len(buf))
	}
	for i := start; i < end; i++ {
		if filled[i] {
			return errs.Newf(errs.Protocol, "block [%d,%d) overlaps a region already received", start, end)
		}
	}
	copy(buf[start:end], block)
	for i := start; i < end; i++ {
		filled[i] = true
	}
	return nil
}

func (s *Session) write(m *wire.Message) error {
	s.conn.SetWriteDeadline(time.Now().Add(s.ioTimeout))
	_, err := s.conn.Write(m.Serialize())
	if err != nil {
		return errs.Wrap(errs.IO, err)
	}
	return nil
}

func (s *Session) readMessage() (*wire.Message, error) {
	s.conn.SetReadDeadline(time.Now().Add(s.ioTimeout))
	return wire.ReadMessage(s.conn)
}
