// Package download orchestrates fetching every piece of a torrent across
// a set of peers. Pieces are partitioned into contiguous, disjoint ranges
// up front -- one per peer -- so each peer goroutine writes to its own
// region of the output file with no shared state and no coordination
// beyond that initial split.
package download

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gotorrent/gotorrent/internal/errs"
	"github.com/gotorrent/gotorrent/internal/metainfo"
	"github.com/gotorrent/gotorrent/internal/peerconn"
	"github.com/gotorrent/gotorrent/internal/telemetry"
)

// Result reports the outcome of downloading a single piece.
type Result struct {
	Piece int
	OK    bool
	Err   error
}

// Options bundles the timeouts and telemetry a download run needs,
// separate from the torrent- and peer-specific arguments to Download.
type Options struct {
	DialTimeout time.Duration
	IOTimeout   time.Duration
	Log         zerolog.Logger
	Metrics     *telemetry.Metrics

	// MaxPeers caps how many of the tracker's peers Download fans out
	// across. Zero or negative means no cap.
	MaxPeers int
}

// pieceRange is a contiguous, half-open span of piece indices assigned to
// one peer.
type pieceRange struct {
	start, end int // [start, end)
}

// partition splits [0, pieceCount) into at most peerCount contiguous
// ranges of ceil(pieceCount/peerCount) pieces each, the last one possibly
// shorter. Fewer ranges than peers are returned when the pieces run out
// first, e.g. when pieceCount < peerCount.
func partition(pieceCount, peerCount int) []pieceRange {
	if peerCount == 0 {
		return nil
	}
	perPeer := (pieceCount + peerCount - 1) / peerCount
	if perPeer == 0 {
		perPeer = 1
	}
	var ranges []pieceRange
	for start := 0; start < pieceCount; start += perPeer {
		end := start + perPeer
		if end > pieceCount {
			end = pieceCount
		}
		ranges = append(ranges, pieceRange{start: start, end: end})
	}
	return ranges
}

// Download fetches every piece of info from peers and writes them into
// outPath, preallocated to info.Length bytes. Each peer is assigned a
// disjoint contiguous range of pieces and downloads it through its own
// Session and its own *os.File handle at that range's byte offsets. A
// failure on one peer's range does not abort the others; it is reported
// in that range's Results.
func Download(ctx context.Context, info *metainfo.TorrentInfo, peers []string, clientID, infoHash [20]byte, outPath string, opts Options) ([]Result, error) {
	if len(peers) == 0 {
		return nil, errs.New(errs.Validation, "no peers available to download from")
	}
	if opts.MaxPeers > 0 && len(peers) > opts.MaxPeers {
		peers = peers[:opts.MaxPeers]
	}

	f, err := os.Create(outPath)
	if err != nil {
		return nil, errs.Wrap(errs.IO, err)
	}
	if err := f.Truncate(int64(info.Length)); err != nil {
		f.Close()
		return nil, errs.Wrap(errs.IO, err)
	}
	f.Close()

	ranges := partition(info.PieceCount(), len(peers))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []Result
	)

	for i, r := range ranges {
		wg.Add(1)
		go func(peerAddr string, r pieceRange) {
			defer wg.Done()
			local := downloadRange(ctx, info, peerAddr, r, clientID, infoHash, outPath, opts)
			mu.Lock()
			results = append(results, local...)
			mu.Unlock()
		}(peers[i], r)
	}
	wg.Wait()

	return results, nil
}

func downloadRange(ctx context.Context, info *metainfo.TorrentInfo, peerAddr string, r pieceRange, clientID, infoHash [20]byte, outPath string, opts Options) []Result {
	results := make([]Result, 0, r.end-r.start)

	log := opts.Log.With().Str("peer", peerAddr).Logger()
	sess, err := peerconn.Dial(ctx, peerAddr, infoHash, clientID, opts.DialTimeout, opts.IOTimeout, log, opts.Metrics)
	if err != nil {
		return failAll(r, err)
	}
	defer sess.Close()

	if err := sess.SendInterested(); err != nil {
		return failAll(r, err)
	}
	if err := sess.AwaitUnchoke(ctx); err != nil {
		return failAll(r, err)
	}

	f, err := os.OpenFile(outPath, os.O_WRONLY, 0o644)
	if err != nil {
		return failAll(r, err)
	}
	defer f.Close()

	for index := r.start; index < r.end; index++ {
		if !sess.HasPiece(index) {
			err := errs.Newf(errs.Protocol, "peer %s does not advertise piece %d", peerAddr, index)
			log.Warn().Int("piece", index).Msg("peer does not have piece")
			results = append(results, Result{Piece: index, OK: false, Err: err})
			continue
		}
		length := info.PieceSize(index)
		data, err := sess.DownloadPiece(ctx, index, length, info.PieceHash(index))
		if err != nil {
			log.Warn().Int("piece", index).Err(err).Msg("piece download failed")
			results = append(results, Result{Piece: index, OK: false, Err: err})
			continue
		}
		offset := int64(index) * int64(info.PieceLength)
		if _, err := f.WriteAt(data, offset); err != nil {
			results = append(results, Result{Piece: index, OK: false, Err: errs.Wrap(errs.IO, err)})
			continue
		}
		log.Debug().Int("piece", index).Int("bytes", len(data)).Msg("piece verified and written")
		results = append(results, Result{Piece: index, OK: true})
	}
	return results
}

func failAll(r pieceRange, err error) []Result {
	results := make([]Result, 0, r.end-r.start)
	for index := r.start; index < r.end; index++ {
		results = append(results, Result{Piece: index, OK: false, Err: err})
	}
	return results
}

// DownloadSinglePiece fetches exactly one piece from exactly one peer,
// the behavior the download-piece CLI command exposes: no partitioning,
// no fan-out, just the one (peer, piece) pair the caller named.
func DownloadSinglePiece(ctx context.Context, info *metainfo.TorrentInfo, peerAddr string, index int, clientID, infoHash [20]byte, opts Options) ([]byte, error) {
	sess, err := peerconn.Dial(ctx, peerAddr, infoHash, clientID, opts.DialTimeout, opts.IOTimeout, opts.Log, opts.Metrics)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	if err := sess.SendInterested(); err != nil {
		return nil, err
	}
	if err := sess.AwaitUnchoke(ctx); err != nil {
		return nil, err
	}
	return sess.DownloadPiece(ctx, index, info.PieceSize(index), info.PieceHash(index))
}
