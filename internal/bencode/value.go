// Package bencode implements the bencode serialization format: a
// self-describing encoding of signed integers, byte strings, lists and
// dictionaries. The encoder is canonical (sorted dictionary keys, minimal
// integer form, raw byte strings) so that re-encoding a decoded value
// reproduces the same bytes the wire identity of a torrent's info-hash
// depends on.
package bencode

import "fmt"

// Kind identifies which of the four bencode variants a Value holds.
type Kind int

const (
	KindInt Kind = iota
	KindBytes
	KindList
	KindDict
)

// Value is a tagged union over the four bencode variants. Exactly one of
// Int, Bytes, List or Dict is meaningful, selected by Kind.
type Value struct {
	Kind Kind
	Int  int64
	Bytes []byte
	List  []*Value
	Dict  map[string]*Value
}

// NewInt wraps an integer as a Value.
func NewInt(n int64) *Value { return &Value{Kind: KindInt, Int: n} }

// NewBytes wraps a byte string as a Value. The slice is not copied.
func NewBytes(b []byte) *Value { return &Value{Kind: KindBytes, Bytes: b} }

// NewString wraps a string as a byte-string Value.
func NewString(s string) *Value { return &Value{Kind: KindBytes, Bytes: []byte(s)} }

// NewList wraps a slice of values as a Value.
func NewList(items []*Value) *Value { return &Value{Kind: KindList, List: items} }

// NewDict wraps a string-keyed map as a Value.
func NewDict(d map[string]*Value) *Value { return &Value{Kind: KindDict, Dict: d} }

// Get looks up a key in a dictionary Value. Returns nil, false if v is not
// a dictionary or the key is absent.
func (v *Value) Get(key string) (*Value, bool) {
	if v == nil || v.Kind != KindDict {
		return nil, false
	}
	val, ok := v.Dict[key]
	return val, ok
}

func (v *Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindBytes:
		return fmt.Sprintf("%q", v.Bytes)
	case KindList:
		return fmt.Sprintf("%v", v.List)
	case KindDict:
		return fmt.Sprintf("%v", v.Dict)
	default:
		return "<invalid bencode value>"
	}
}
