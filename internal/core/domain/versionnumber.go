package domain

import (
	"strconv"
	"strings"
	"unicode"
)

// versionItem is one segment of a version number.
type versionItem struct {
	numeric bool
	number  uint64
	text    string
}

func (i versionItem) isZero() bool { return i.numeric && i.number == 0 }

// parseVersionItems splits on separators and on digit/letter boundaries.
func parseVersionItems(s string) []versionItem {
	var (
		items []versionItem
		cur   strings.Builder
		digit bool
	)
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		text := cur.String()
		cur.Reset()
		if digit {
			if n, err := strconv.ParseUint(text, 10, 64); err == nil {
				items = append(items, versionItem{numeric: true, number: n, text: text})
				return
			}
		}
		items = append(items, versionItem{text: strings.ToLower(text)})
	}

	for _, r := range s {
		switch {
		case r == '.' || r == '-' || r == '_' || r == '+' || r == ' ':
			flush()
		case unicode.IsDigit(r):
			if cur.Len() > 0 && !digit {
				flush()
			}
			digit = true
			cur.WriteRune(r)
		default:
			if cur.Len() > 0 && digit {
				flush()
			}
			digit = false
			cur.WriteRune(r)
		}
	}
	flush()

	for len(items) > 0 && items[len(items)-1].isZero() {
		items = items[:len(items)-1]
	}
	return items
}

func compareVersionItems(a, b versionItem) int {
	switch {
	case a.numeric && b.numeric:
		switch {
		case a.number < b.number:
			return -1
		case a.number > b.number:
			return 1
		}
		return 0
	case a.numeric:
		return 1
	case b.numeric:
		return -1
	}
	return strings.Compare(a.text, b.text)
}

// CompareVersions orders loosely formatted version strings such as 1.12.2, 2.0-beta3 or 31.1.0.
// Numeric segments compare numerically and sort after textual ones, trailing zero segments are
// ignored, and a textual qualifier where the other version has ended marks a pre-release.
func CompareVersions(a, b string) int {
	ia, ib := parseVersionItems(a), parseVersionItems(b)
	pad := versionItem{numeric: true}
	for i := 0; i < len(ia) || i < len(ib); i++ {
		x, y := pad, pad
		if i < len(ia) {
			x = ia[i]
		}
		if i < len(ib) {
			y = ib[i]
		}
		if c := compareVersionItems(x, y); c != 0 {
			return c
		}
	}
	return 0
}
