package bencode

import "fmt"

// MalformedError reports a structural decode failure: an input that does
// not follow the bencode grammar (bad length prefix, unterminated
// integer, non-string dictionary key, leading zero, and so on).
type MalformedError struct {
	Msg string
}

func (e *MalformedError) Error() string { return fmt.Sprintf("bencode: malformed input: %s", e.Msg) }

// UnexpectedError reports a type mismatch between a decoded Value and the
// target record field it is being bound to (e.g. an integer bound to a
// string field).
type UnexpectedError struct {
	Msg string
}

func (e *UnexpectedError) Error() string { return fmt.Sprintf("bencode: unexpected type: %s", e.Msg) }

// TrailingBytesError reports that a top-level Decode call left unconsumed
// bytes after parsing a single value.
type TrailingBytesError struct {
	N int
}

func (e *TrailingBytesError) Error() string {
	return fmt.Sprintf("bencode: %d trailing byte(s) after top-level value", e.N)
}

func malformed(format string, args ...any) error {
	return &MalformedError{Msg: fmt.Sprintf(format, args...)}
}

func unexpected(format string, args ...any) error {
	return &UnexpectedError{Msg: fmt.Sprintf(format, args...)}
}
