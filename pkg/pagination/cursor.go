/**
 * @description
 * Opaque cursor codec for keyset pagination over a monotonically increasing
 * integer primary key. A cursor is a comparator plus a key, serialized as
 * URL-safe base64 without padding, e.g. "<=100" -> "PD0xMDA".
 *
 * The comparator states which side of the key the page lies on:
 *   "<", "<="  older records, scanned newest-first
 *   ">", ">="  newer records, scanned oldest-first and reversed for display
 *
 * Decoding is strict: anything that is not base64url over the exact payload
 * shape `^([><]=?)([0-9]+)$` is rejected with ErrInvalidCursor. Tokens are
 * opaque to clients; a tampered token must fail, never misdirect.
 */

package pagination

import (
	"encoding/base64"
	"errors"
	"regexp"
	"strconv"
)

// Comparator values a cursor can carry.
const (
	CmpLT  = "<"
	CmpLTE = "<="
	CmpGT  = ">"
	CmpGTE = ">="
)

// ErrInvalidCursor is returned for any token that does not decode to a
// well-formed comparator and key.
var ErrInvalidCursor = errors.New("invalid cursor")

var cursorPattern = regexp.MustCompile(`^([><]=?)([0-9]+)$`)

// Cursor is a decoded pagination position.
type Cursor struct {
	Cmp string
	Key int64
}

// Encode serializes the cursor into its opaque token form.
func (c Cursor) Encode() string {
	return base64.RawURLEncoding.EncodeToString([]byte(c.Cmp + strconv.FormatInt(c.Key, 10)))
}

// Decode parses an opaque token back into a cursor. The empty token is not a
// cursor; callers decide whether absence is allowed.
func Decode(token string) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	m := cursorPattern.FindSubmatch(raw)
	if m == nil {
		return nil, ErrInvalidCursor
	}
	key, err := strconv.ParseInt(string(m[2]), 10, 64)
	if err != nil {
		// Digits that overflow int64 cannot name a real record.
		return nil, ErrInvalidCursor
	}
	return &Cursor{Cmp: string(m[1]), Key: key}, nil
}

var limitPattern = regexp.MustCompile(`^\d+$`)

// ParseLimit interprets a raw page-size query value. Non-numeric or
// non-positive input silently falls back to def; numeric input clamps to max.
// Digit strings too large for an int are clamped to max as well.
func ParseLimit(raw string, def, max int) int {
	if !limitPattern.MatchString(raw) {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return max
	}
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
