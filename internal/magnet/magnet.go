// Package magnet parses magnet links into the minimal fields a download
// needs: the info-hash, a display name and a tracker URL.
package magnet

import (
	"encoding/base32"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/gotorrent/gotorrent/internal/errs"
)

const hashLen = 20

// Link is a parsed magnet URI. Duplicate query parameters resolve
// first-wins, matching how url.Values.Get behaves for repeated keys.
type Link struct {
	InfoHash    [hashLen]byte
	DisplayName string
	Tracker     string
}

// ParseMagnet parses a magnet: URI. Only the xt (exact topic, a btih
// info-hash), dn (display name) and tr (tracker) parameters are
// recognized; any others are ignored.
func ParseMagnet(raw string) (*Link, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errs.Wrap(errs.Validation, err)
	}
	if u.Scheme != "magnet" {
		return nil, errs.Newf(errs.Validation, "not a magnet link: scheme %q", u.Scheme)
	}

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, errs.Wrap(errs.Validation, err)
	}

	xt := query.Get("xt")
	if xt == "" {
		return nil, errs.New(errs.Validation, "magnet link has no xt parameter")
	}
	infoHash, err := parseExactTopic(xt)
	if err != nil {
		return nil, err
	}

	return &Link{
		InfoHash:    infoHash,
		DisplayName: query.Get("dn"),
		Tracker:     query.Get("tr"),
	}, nil
}

// parseExactTopic accepts the two encodings BEP-9 allows for a BitTorrent
// info-hash: "urn:btih:" followed by either 40 hex digits or 32 base32
// digits.
func parseExactTopic(xt string) ([hashLen]byte, error) {
	var out [hashLen]byte

	const prefix = "urn:btih:"
	if !strings.HasPrefix(strings.ToLower(xt), prefix) {
		return out, errs.Newf(errs.Validation, "unsupported xt parameter %q", xt)
	}
	topic := xt[len(prefix):]

	switch len(topic) {
	case 40:
		b, err := hex.DecodeString(topic)
		if err != nil {
			return out, errs.Wrapf(errs.Validation, err, "decoding hex info-hash")
		}
		copy(out[:], b)
		return out, nil
	case 32:
		b, err := base32.StdEncoding.DecodeString(strings.ToUpper(topic))
		if err != nil {
			return out, errs.Wrapf(errs.Validation, err, "decoding base32 info-hash")
		}
		copy(out[:], b)
		return out, nil
	default:
		return out, errs.Newf(errs.Validation, "xt info-hash has unexpected length %d", len(topic))
	}
}

// InfoHashHex returns the lowercase hex form of the info-hash.
func (l *Link) InfoHashHex() string {
	return hex.EncodeToString(l.InfoHash[:])
}
