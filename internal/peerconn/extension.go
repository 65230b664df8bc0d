package peerconn

import (
	"context"
	"crypto/sha1"

	"github.com/gotorrent/gotorrent/internal/bencode"
	"github.com/gotorrent/gotorrent/internal/errs"
	"github.com/gotorrent/gotorrent/internal/wire"
)

// localUtMetadataID is the extension message ID this client assigns to
// ut_metadata in its own extended handshake. 0 is reserved for the
// handshake message itself.
const localUtMetadataID = 1

const metadataPieceSize = 16384

type extendedHandshakePayload struct {
	M            map[string]int64 `bencode:"m"`
	MetadataSize int64             `bencode:"metadata_size"`
}

// ExtensionHandshake performs the BEP-10 extended handshake, advertising
// support for ut_metadata and learning whether the peer does too. When it
// does, metadataSize reports the torrent's info dictionary size in bytes
// as advertised by the peer.
func (s *Session) ExtensionHandshake(ctx context.Context) (supportsUtMetadata bool, metadataSize int, err error) {
	outgoing := extendedHandshakePayload{M: map[string]int64{"ut_metadata": localUtMetadataID}}
	body, err := bencode.Marshal(outgoing)
	if err != nil {
		return false, 0, errs.Wrap(errs.Codec, err)
	}
	if err := s.write(wire.FormatExtended(0, bencode.Encode(body))); err != nil {
		return false, 0, err
	}

	for {
		if ctx.Err() != nil {
			return false, 0, ctx.Err()
		}
		m, err := s.readMessage()
		if err != nil {
			return false, 0, err
		}
		if m == nil || m.ID != wire.Extended {
			continue
		}
		extID, payload, err := wire.ParseExtended(m)
		if err != nil {
			return false, 0, err
		}
		if extID != 0 {
			continue // not the extended handshake itself
		}

		v, err := bencode.Decode(payload)
		if err != nil {
			return false, 0, errs.Wrap(errs.Codec, err)
		}
		var reply extendedHandshakePayload
		if err := bencode.Bind(v, &reply); err != nil {
			return false, 0, errs.Wrap(errs.Codec, err)
		}
		remoteID, ok := reply.M["ut_metadata"]
		if !ok {
			return false, 0, nil
		}
		s.remoteUtMetadataID = byte(remoteID)
		s.metadataSize = int(reply.MetadataSize)
		return true, s.metadataSize, nil
	}
}

type metadataRequest struct {
	MsgType int64 `bencode:"msg_type"`
	Piece   int64 `bencode:"piece"`
}

type metadataReply struct {
	MsgType   int64 `bencode:"msg_type"`
	Piece     int64 `bencode:"piece"`
	TotalSize int64 `bencode:"total_size"`
}

const (
	metadataMsgRequest = 0
	metadataMsgData    = 1
	metadataMsgReject  = 2
)

// FetchMetadata downloads the torrent's info dictionary over the
// ut_metadata extension, a chunked transfer used when only a magnet link
// (no .torrent file) is available. ExtensionHandshake must have been
// called first and reported support. The assembled bytes are verified
// against expectedInfoHash before being returned.
func (s *Session) FetchMetadata(ctx context.Context, expectedInfoHash [20]byte) ([]byte, error) {
	if s.metadataSize <= 0 {
		return nil, errs.New(errs.Protocol, "peer did not advertise a metadata size")
	}

	buf := make([]byte, s.metadataSize)
	pieceCount := (s.metadataSize + metadataPieceSize - 1) / metadataPieceSize

	for piece := 0; piece < pieceCount; piece++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		reqBody, err := bencode.Marshal(metadataRequest{MsgType: metadataMsgRequest, Piece: int64(piece)})
		if err != nil {
			return nil, errs.Wrap(errs.Codec, err)
		}
		if err := s.write(wire.FormatExtended(s.remoteUtMetadataID, bencode.Encode(reqBody))); err != nil {
			return nil, err
		}

		data, err := s.awaitMetadataPiece(ctx, piece)
		if err != nil {
			return nil, err
		}

		start := piece * metadataPieceSize
		if start+len(data) > len(buf) {
			return nil, errs.New(errs.Protocol, "metadata piece overruns advertised metadata size")
		}
		copy(buf[start:], data)
	}

	if sha1.Sum(buf) != expectedInfoHash {
		return nil, errs.New(errs.Validation, "fetched metadata does not match the magnet link's info-hash")
	}
	return buf, nil
}

func (s *Session) awaitMetadataPiece(ctx context.Context, wantPiece int) ([]byte, error) {
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m, err := s.readMessage()
		if err != nil {
			return nil, err
		}
		if m == nil || m.ID != wire.Extended {
			continue
		}
		extID, payload, err := wire.ParseExtended(m)
		if err != nil {
			return nil, err
		}
		if extID != localUtMetadataID {
			continue
		}

		v, consumed, err := bencode.DecodePrefix(payload)
		if err != nil {
			return nil, errs.Wrap(errs.Codec, err)
		}
		var reply metadataReply
		if err := bencode.Bind(v, &reply); err != nil {
			return nil, errs.Wrap(errs.Codec, err)
		}
		if int(reply.Piece) != wantPiece {
			continue
		}
		switch reply.MsgType {
		case metadataMsgData:
			return payload[consumed:], nil
		case metadataMsgReject:
			return nil, errs.Newf(errs.Protocol, "peer rejected metadata piece %d", wantPiece)
		default:
			continue
		}
	}
}
