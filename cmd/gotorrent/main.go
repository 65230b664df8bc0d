// Command gotorrent is a BitTorrent client core exposed as a set of
// single-purpose subcommands: decode bencoded literals, inspect .torrent
// files and magnet links, handshake a single peer, and download either a
// single piece or a whole torrent.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/gotorrent/gotorrent/internal/bencode"
	"github.com/gotorrent/gotorrent/internal/config"
	"github.com/gotorrent/gotorrent/internal/download"
	"github.com/gotorrent/gotorrent/internal/errs"
	"github.com/gotorrent/gotorrent/internal/identity"
	"github.com/gotorrent/gotorrent/internal/magnet"
	"github.com/gotorrent/gotorrent/internal/metainfo"
	"github.com/gotorrent/gotorrent/internal/peerconn"
	"github.com/gotorrent/gotorrent/internal/telemetry"
	"github.com/gotorrent/gotorrent/internal/trackerclient"
)

// runContext bundles what every subcommand needs: config, logger and
// metrics, built once in main and threaded through kong.
type runContext struct {
	cfg     *config.Config
	log     zerolog.Logger
	metrics *telemetry.Metrics
}

type cli struct {
	Verbose bool `help:"Enable debug logging." short:"v"`

	Decode          decodeCmd          `cmd:"" help:"Decode a bencoded literal and print its structure."`
	Info            infoCmd            `cmd:"" help:"Print a .torrent file's metadata and info-hash."`
	Peers           peersCmd           `cmd:"" help:"Announce to a torrent's tracker and list peers."`
	Handshake       handshakeCmd       `cmd:"" help:"Perform a peer handshake and print the result."`
	DownloadPiece   downloadPieceCmd   `cmd:"download-piece" help:"Download and verify a single piece from one peer."`
	Download        downloadCmd        `cmd:"" help:"Download a whole torrent across its peer list."`
	MagnetHandshake magnetHandshakeCmd `cmd:"magnet-handshake" help:"Handshake a peer found via a magnet link."`
	MagnetInfo      magnetInfoCmd      `cmd:"magnet-info" help:"Fetch and print a magnet link's metadata."`
	MagnetDownload  magnetDownloadCmd  `cmd:"magnet-download" help:"Download a whole torrent starting from a magnet link."`
}

func main() {
	var c cli
	kctx := kong.Parse(&c, kong.Description("A BitTorrent client core: bencode, peer wire protocol and piece download."))

	cfg, err := config.Load()
	kctx.FatalIfErrorf(err)

	rc := &runContext{
		cfg:     cfg,
		log:     telemetry.NewLogger(c.Verbose),
		metrics: telemetry.NewMetrics(prometheus.DefaultRegisterer),
	}

	err = kctx.Run(rc)
	kctx.FatalIfErrorf(err)
}

type decodeCmd struct {
	Literal string `arg:"" help:"A bencoded literal, e.g. d3:cow3:mooe"`
}

func (c *decodeCmd) Run(rc *runContext) error {
	v, err := bencode.Decode([]byte(c.Literal))
	if err != nil {
		return err
	}
	fmt.Println(v.String())
	return nil
}

type infoCmd struct {
	TorrentFile string `arg:"" type:"existingfile"`
}

func (c *infoCmd) Run(rc *runContext) error {
	tf, err := loadTorrentFile(c.TorrentFile)
	if err != nil {
		return err
	}
	hash := tf.InfoHash()
	fmt.Printf("Tracker URL: %s\n", tf.Announce)
	fmt.Printf("Length: %d\n", tf.Info.Length)
	fmt.Printf("Info Hash: %s\n", hex.EncodeToString(hash[:]))
	fmt.Printf("Piece Length: %d\n", tf.Info.PieceLength)
	fmt.Println("Piece Hashes:")
	for i := 0; i < tf.Info.PieceCount(); i++ {
		h := tf.Info.PieceHash(i)
		fmt.Printf("  %s\n", hex.EncodeToString(h[:]))
	}
	return nil
}

type peersCmd struct {
	TorrentFile string `arg:"" type:"existingfile"`
}

func (c *peersCmd) Run(rc *runContext) error {
	tf, err := loadTorrentFile(c.TorrentFile)
	if err != nil {
		return err
	}
	clientID, err := identity.NewPeerID()
	if err != nil {
		return err
	}
	resp, err := announce(rc, tf.Announce, tf.InfoHash(), clientID, tf.Info.Length)
	if err != nil {
		return err
	}
	for _, p := range resp.Peers {
		fmt.Println(p.String())
	}
	return nil
}

type handshakeCmd struct {
	TorrentFile string `arg:""`
	PeerAddr    string `arg:""`
}

func (c *handshakeCmd) Run(rc *runContext) error {
	tf, err := loadTorrentFile(c.TorrentFile)
	if err != nil {
		return err
	}
	return doHandshake(rc, tf.InfoHash(), c.PeerAddr)
}

type downloadPieceCmd struct {
	Out         string `short:"o" help:"Output file path. Defaults to <output-dir>/<name>.part<index>, output-dir from config."`
	TorrentFile string `arg:""`
	Index       int    `arg:""`
}

func (c *downloadPieceCmd) Run(rc *runContext) error {
	tf, err := loadTorrentFile(c.TorrentFile)
	if err != nil {
		return err
	}
	clientID, err := identity.NewPeerID()
	if err != nil {
		return err
	}
	resp, err := announce(rc, tf.Announce, tf.InfoHash(), clientID, tf.Info.Length)
	if err != nil {
		return err
	}
	if len(resp.Peers) == 0 {
		return errs.New(errs.Tracker, "tracker returned no peers")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	data, err := download.DownloadSinglePiece(ctx, &tf.Info, resp.Peers[0].String(), c.Index, clientID, tf.InfoHash(), downloadOpts(rc))
	if err != nil {
		return err
	}
	if c.Out == "" {
		c.Out = filepath.Join(rc.cfg.OutputDir, fmt.Sprintf("%s.part%d", tf.Info.Name, c.Index))
	}
	return os.WriteFile(c.Out, data, 0o644)
}

type downloadCmd struct {
	Out         string `short:"o" help:"Output file path. Defaults to <output-dir>/<name>, output-dir from config."`
	TorrentFile string `arg:""`
}

func (c *downloadCmd) Run(rc *runContext) error {
	tf, err := loadTorrentFile(c.TorrentFile)
	if err != nil {
		return err
	}
	clientID, err := identity.NewPeerID()
	if err != nil {
		return err
	}
	resp, err := announce(rc, tf.Announce, tf.InfoHash(), clientID, tf.Info.Length)
	if err != nil {
		return err
	}
	if len(resp.Peers) == 0 {
		return errs.New(errs.Tracker, "tracker returned no peers")
	}

	peerAddrs := make([]string, len(resp.Peers))
	for i, p := range resp.Peers {
		peerAddrs[i] = p.String()
	}

	if c.Out == "" {
		c.Out = filepath.Join(rc.cfg.OutputDir, tf.Info.Name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	results, err := download.Download(ctx, &tf.Info, peerAddrs, clientID, tf.InfoHash(), c.Out, downloadOpts(rc))
	if err != nil {
		return err
	}
	return reportResults(rc, results)
}

type magnetHandshakeCmd struct {
	Magnet   string `arg:""`
	PeerAddr string `arg:""`
}

func (c *magnetHandshakeCmd) Run(rc *runContext) error {
	link, err := magnet.ParseMagnet(c.Magnet)
	if err != nil {
		return err
	}
	return doHandshake(rc, link.InfoHash, c.PeerAddr)
}

type magnetInfoCmd struct {
	Magnet string `arg:""`
}

func (c *magnetInfoCmd) Run(rc *runContext) error {
	link, err := magnet.ParseMagnet(c.Magnet)
	if err != nil {
		return err
	}
	if link.Tracker == "" {
		return errs.New(errs.Validation, "magnet link has no tracker to announce to")
	}

	clientID, err := identity.NewPeerID()
	if err != nil {
		return err
	}

	// BEP-9: left is unknown before metadata is fetched; trackers expect a
	// non-zero placeholder in that case.
	resp, err := announce(rc, link.Tracker, link.InfoHash, clientID, 1)
	if err != nil {
		return err
	}
	if len(resp.Peers) == 0 {
		return errs.New(errs.Tracker, "tracker returned no peers")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	data, err := fetchMetadataFromAny(ctx, rc, resp.Peers, clientID, link.InfoHash)
	if err != nil {
		return err
	}

	v, err := bencode.Decode(data)
	if err != nil {
		return err
	}
	var info metainfo.TorrentInfo
	if err := bencode.Bind(v, &info); err != nil {
		return err
	}

	fmt.Printf("Name: %s\n", info.Name)
	fmt.Printf("Length: %d\n", info.Length)
	fmt.Printf("Piece Length: %d\n", info.PieceLength)
	fmt.Printf("Info Hash: %s\n", link.InfoHashHex())
	return nil
}

type magnetDownloadCmd struct {
	Out    string `short:"o" help:"Output file path. Defaults to <output-dir>/<name>, output-dir from config."`
	Magnet string `arg:""`
}

func (c *magnetDownloadCmd) Run(rc *runContext) error {
	link, err := magnet.ParseMagnet(c.Magnet)
	if err != nil {
		return err
	}
	if link.Tracker == "" {
		return errs.New(errs.Validation, "magnet link has no tracker to announce to")
	}

	clientID, err := identity.NewPeerID()
	if err != nil {
		return err
	}

	resp, err := announce(rc, link.Tracker, link.InfoHash, clientID, 1)
	if err != nil {
		return err
	}
	if len(resp.Peers) == 0 {
		return errs.New(errs.Tracker, "tracker returned no peers")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	metadataBytes, err := fetchMetadataFromAny(ctx, rc, resp.Peers, clientID, link.InfoHash)
	if err != nil {
		return err
	}
	v, err := bencode.Decode(metadataBytes)
	if err != nil {
		return err
	}
	var info metainfo.TorrentInfo
	if err := bencode.Bind(v, &info); err != nil {
		return err
	}

	peerAddrs := make([]string, len(resp.Peers))
	for i, p := range resp.Peers {
		peerAddrs[i] = p.String()
	}

	if c.Out == "" {
		c.Out = filepath.Join(rc.cfg.OutputDir, info.Name)
	}

	results, err := download.Download(ctx, &info, peerAddrs, clientID, link.InfoHash, c.Out, downloadOpts(rc))
	if err != nil {
		return err
	}
	return reportResults(rc, results)
}

func loadTorrentFile(path string) (*metainfo.TorrentFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.IO, err)
	}
	return metainfo.ParseMetainfo(data)
}

func announce(rc *runContext, announceURL string, infoHash, clientID [20]byte, length uint64) (*trackerclient.Response, error) {
	client := trackerclient.NewClient(rc.cfg.PeerDialTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), rc.cfg.PeerDialTimeout)
	defer cancel()
	return client.Announce(ctx, announceURL, infoHash, clientID, rc.cfg.AnnouncePort, length)
}

func doHandshake(rc *runContext, infoHash [20]byte, peerAddr string) error {
	clientID, err := identity.NewPeerID()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), rc.cfg.PeerDialTimeout)
	defer cancel()

	sess, err := peerconn.Dial(ctx, peerAddr, infoHash, clientID, rc.cfg.PeerDialTimeout, rc.cfg.PeerIOTimeout, rc.log, rc.metrics)
	if err != nil {
		return err
	}
	defer sess.Close()

	peerID := sess.PeerID()
	fmt.Printf("Peer ID: %s\n", hex.EncodeToString(peerID[:]))
	fmt.Println("Handshake succeeded.")
	return nil
}

func fetchMetadataFromAny(ctx context.Context, rc *runContext, peers []trackerclient.PeerAddress, clientID, infoHash [20]byte) ([]byte, error) {
	var lastErr error
	for _, p := range peers {
		sess, err := peerconn.Dial(ctx, p.String(), infoHash, clientID, rc.cfg.PeerDialTimeout, rc.cfg.PeerIOTimeout, rc.log, rc.metrics)
		if err != nil {
			lastErr = err
			continue
		}
		ok, _, err := sess.ExtensionHandshake(ctx)
		if err != nil || !ok {
			sess.Close()
			lastErr = err
			continue
		}
		data, err := sess.FetchMetadata(ctx, infoHash)
		sess.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return data, nil
	}
	if lastErr == nil {
		lastErr = errs.New(errs.Protocol, "no peer supports the metadata extension")
	}
	return nil, lastErr
}

func downloadOpts(rc *runContext) download.Options {
	return download.Options{
		DialTimeout: rc.cfg.PeerDialTimeout,
		IOTimeout:   rc.cfg.PeerIOTimeout,
		Log:         rc.log,
		Metrics:     rc.metrics,
		MaxPeers:    rc.cfg.MaxPeers,
	}
}

func reportResults(rc *runContext, results []download.Result) error {
	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
			rc.log.Error().Int("piece", r.Piece).Err(r.Err).Msg("piece failed")
		}
	}
	fmt.Printf("%d/%d pieces verified\n", len(results)-failed, len(results))
	if failed > 0 {
		return errs.Newf(errs.Validation, "%d piece(s) failed verification", failed)
	}
	return nil
}
