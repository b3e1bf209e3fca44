/**
 * @description
 * Page resolution for cursor pagination. A Window describes what to fetch for
 * one page request; Resolve turns the fetched keys back into navigation
 * cursors. The storage layer stays dumb: it only needs to honor the scan
 * direction, the comparator predicate and the fetch limit.
 *
 * Fetch contract:
 *   - Descending windows (no cursor, "<", "<=") scan newest-first and fetch
 *     limit+1 rows; the extra row only proves more records exist and is
 *     trimmed from the page.
 *   - Ascending windows (">", ">=") scan oldest-first, fetch exactly limit
 *     rows, and the caller reverses them into display order before Resolve.
 *     Ascending pages never produce a next cursor.
 *
 * Resolve expects keys in display order (newest first).
 */

package pagination

// Window describes the record window one page request covers.
type Window struct {
	Cursor *Cursor // nil means the latest page
	Limit  int     // page size after clamping
}

// Descending reports whether the window scans newest-first.
func (w Window) Descending() bool {
	return w.Cursor == nil || w.Cursor.Cmp == CmpLT || w.Cursor.Cmp == CmpLTE
}

// FetchLimit is the number of rows the storage layer should fetch: one extra
// probe row on descending scans, exactly the page size on ascending ones.
func (w Window) FetchLimit() int {
	if w.Descending() {
		return w.Limit + 1
	}
	return w.Limit
}

// Page carries the navigation cursors of a resolved page and the number of
// fetched rows that belong on it (the probe row, if fetched, is excluded).
type Page struct {
	This *Cursor
	Next *Cursor
	Prev *Cursor
	Size int
}

// Resolve computes the page cursors from the fetched keys, in display order.
//
//   - next points at older records and exists only when the descending probe
//     proved there are any: it pins the page boundary with "<=" on the probe
//     key so the link stays stable under concurrent inserts.
//   - prev points at newer records than the first one displayed. An empty page
//     reached through a cursor anchors prev on the cursor's own key, so
//     navigating back from an exhausted or vanished window still returns to
//     known territory.
//   - this re-fetches the same page: the input cursor when one was given,
//     otherwise "<=" on the first displayed key.
func Resolve(w Window, keys []int64) Page {
	p := Page{Size: len(keys)}

	if len(keys) > w.Limit {
		p.Next = &Cursor{Cmp: CmpLTE, Key: keys[w.Limit]}
		p.Size = w.Limit
		keys = keys[:w.Limit]
	}

	if len(keys) > 0 {
		p.Prev = &Cursor{Cmp: CmpGT, Key: keys[0]}
	} else if w.Cursor != nil {
		p.Prev = &Cursor{Cmp: CmpGT, Key: w.Cursor.Key}
	}

	switch {
	case w.Cursor != nil:
		p.This = w.Cursor
	case len(keys) > 0:
		p.This = &Cursor{Cmp: CmpLTE, Key: keys[0]}
	}

	return p
}
