// Package metainfo parses .torrent files into TorrentFile values and
// derives the info-hash and per-piece SHA-1 checksums a download needs.
package metainfo

import (
	"crypto/sha1"

	"github.com/gotorrent/gotorrent/internal/bencode"
	"github.com/gotorrent/gotorrent/internal/errs"
)

const hashLen = 20

// TorrentInfo mirrors the required fields of a torrent's info dictionary.
// Single-file torrents only: a "files" list marks a multi-file torrent,
// which is rejected by ParseMetainfo.
type TorrentInfo struct {
	Name        string `bencode:"name"`
	Length      uint64 `bencode:"length"`
	PieceLength uint32 `bencode:"piece length"`
	Pieces      []byte `bencode:"pieces,bytes"`
}

// TorrentFile is a parsed .torrent file. infoValue retains the raw decoded
// info dictionary so InfoHash can re-encode exactly the bytes the torrent
// was published with, including any keys TorrentInfo doesn't model.
type TorrentFile struct {
	Announce string
	Info     TorrentInfo

	infoValue *bencode.Value
}

// ParseMetainfo decodes a .torrent file's bytes.
func ParseMetainfo(data []byte) (*TorrentFile, error) {
	v, err := bencode.Decode(data)
	if err != nil {
		return nil, errs.Wrap(errs.Codec, err)
	}
	if v.Kind != bencode.KindDict {
		return nil, errs.New(errs.Codec, "torrent file is not a bencoded dictionary")
	}

	announceVal, ok := v.Get("announce")
	if !ok {
		return nil, errs.New(errs.Validation, "torrent file has no announce key")
	}
	if announceVal.Kind != bencode.KindBytes {
		return nil, errs.New(errs.Validation, "announce is not a byte string")
	}

	infoVal, ok := v.Get("info")
	if !ok {
		return nil, errs.New(errs.Validation, "torrent file has no info dictionary")
	}
	if infoVal.Kind != bencode.KindDict {
		return nil, errs.New(errs.Validation, "info is not a dictionary")
	}
	if _, isMultiFile := infoVal.Get("files"); isMultiFile {
		return nil, errs.New(errs.Validation, "multi-file torrents are not supported")
	}

	var info TorrentInfo
	if err := bencode.Bind(infoVal, &info); err != nil {
		return nil, errs.Wrap(errs.Validation, err)
	}
	if len(info.Pieces)%hashLen != 0 {
		return nil, errs.Newf(errs.Validation, "pieces field length %d is not a multiple of %d", len(info.Pieces), hashLen)
	}
	if info.PieceLength == 0 {
		return nil, errs.New(errs.Validation, "piece length must be non-zero")
	}

	return &TorrentFile{
		Announce:  string(announceVal.Bytes),
		Info:      info,
		infoValue: infoVal,
	}, nil
}

// InfoHash returns the SHA-1 of the canonical bencoding of the raw info
// dictionary, computed from the dictionary as originally decoded rather
// than re-derived from TorrentInfo, so keys TorrentInfo doesn't model are
// still part of the hashed bytes.
func (t *TorrentFile) InfoHash() [hashLen]byte {
	return sha1.Sum(bencode.Encode(t.infoValue))
}

// PieceCount returns the number of pieces described by the pieces field.
func (i *TorrentInfo) PieceCount() int {
	return len(i.Pieces) / hashLen
}

// PieceHash returns the expected SHA-1 digest of piece index.
func (i *TorrentInfo) PieceHash(index int) [hashLen]byte {
	var h [hashLen]byte
	copy(h[:], i.Pieces[index*hashLen:(index+1)*hashLen])
	return h
}

// PieceSize returns the real length of piece index in bytes: PieceLength
// for every piece but the last, which is truncated to whatever remains of
// Length.
func (i *TorrentInfo) PieceSize(index int) uint32 {
	if index != i.PieceCount()-1 {
		return i.PieceLength
	}
	remainder := i.Length % uint64(i.PieceLength)
	if remainder == 0 {
		return i.PieceLength
	}
	return uint32(remainder)
}
