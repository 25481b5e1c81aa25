package toolset

import "github.com/mattn/go-runewidth"

// TruncateForDisplay shortens s to at most width terminal columns, counting
// wide (e.g. CJK) runes as two columns, the way a fixed-width approval prompt
// must to avoid wrapping mid-line. Short strings pass through unchanged.
func TruncateForDisplay(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width > 3 {
		return runewidth.Truncate(s, width-3, "...")
	}
	return runewidth.Truncate(s, width, "")
}
