// Package trackerclient announces a download to an HTTP tracker and
// parses the compact peer list it returns.
package trackerclient

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gotorrent/gotorrent/internal/bencode"
	"github.com/gotorrent/gotorrent/internal/errs"
)

const peerAddrLen = 6 // 4-byte IPv4 address + 2-byte big-endian port

// Client announces torrents to HTTP trackers over resty.
type Client struct {
	http *resty.Client
}

// NewClient builds a tracker Client with a bounded per-request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{http: resty.New().SetTimeout(timeout)}
}

// Response is a tracker's decoded announce reply.
type Response struct {
	Interval time.Duration
	Peers    []PeerAddress
}

// PeerAddress is one compact peer entry: an IPv4 address and port.
type PeerAddress struct {
	IP   net.IP
	Port uint16
}

func (p PeerAddress) String() string {
	return net.JoinHostPort(p.IP.String(), strconv.Itoa(int(p.Port)))
}

// Announce performs a tracker GET announce for the given torrent and
// peer identity, requesting a compact peer list.
func (c *Client) Announce(ctx context.Context, announceURL string, infoHash, peerID [20]byte, port uint16, left uint64) (*Response, error) {
	query := fmt.Sprintf(
		"info_hash=%s&peer_id=%s&port=%d&uploaded=0&downloaded=0&left=%d&compact=1",
		percentEncode(infoHash[:]), percentEncode(peerID[:]), port, left,
	)
	sep := "?"
	if strings.Contains(announceURL, "?") {
		sep = "&"
	}
	fullURL := announceURL + sep + query

	resp, err := c.http.R().SetContext(ctx).Get(fullURL)
	if err != nil {
		return nil, errs.Wrap(errs.Tracker, err)
	}
	if resp.IsError() {
		return nil, errs.Newf(errs.Tracker, "tracker returned status %d", resp.StatusCode())
	}

	v, err := bencode.Decode(resp.Body())
	if err != nil {
		return nil, errs.Wrap(errs.Tracker, err)
	}
	if failure, ok := v.Get("failure reason"); ok {
		return nil, errs.Newf(errs.Tracker, "tracker failure: %s", failure.Bytes)
	}

	intervalVal, ok := v.Get("interval")
	if !ok || intervalVal.Kind != bencode.KindInt {
		return nil, errs.New(errs.Tracker, "tracker response has no interval")
	}

	peersVal, ok := v.Get("peers")
	if !ok || peersVal.Kind != bencode.KindBytes {
		return nil, errs.New(errs.Tracker, "tracker response has no compact peers field")
	}
	peers, err := ParseCompactPeers(peersVal.Bytes)
	if err != nil {
		return nil, err
	}

	return &Response{
		Interval: time.Duration(intervalVal.Int) * time.Second,
		Peers:    peers,
	}, nil
}

// ParseCompactPeers decodes a tracker's compact peer list: each peer is 6
// bytes, a 4-byte IPv4 address followed by a 2-byte big-endian port.
func ParseCompactPeers(b []byte) ([]PeerAddress, error) {
	if len(b)%peerAddrLen != 0 {
		return nil, errs.Newf(errs.Tracker, "compact peers field length %d is not a multiple of %d", len(b), peerAddrLen)
	}
	count := len(b) / peerAddrLen
	peers := make([]PeerAddress, count)
	for i := 0; i < count; i++ {
		entry := b[i*peerAddrLen : (i+1)*peerAddrLen]
		ip := net.IPv4(entry[0], entry[1], entry[2], entry[3])
		port := uint16(entry[4])<<8 | uint16(entry[5])
		peers[i] = PeerAddress{IP: ip, Port: port}
	}
	return peers, nil
}

// percentEncode renders raw bytes as a query-string value, percent-
// escaping everything outside the small unreserved set. resty's own
// query builder assumes UTF-8 text and mangles arbitrary binary, so
// info_hash and peer_id are encoded by hand and spliced directly into
// the URL.
func percentEncode(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if isUnreserved(c) {
			sb.WriteByte(c)
		} else {
			fmt.Fprintf(&sb, "%%%02X", c)
		}
	}
	return sb.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_' || c == '.' || c == '~':
		return true
	default:
		return false
	}
}
