package toolset

import (
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestTruncateForDisplayLeavesShortStringsAlone(t *testing.T) {
	if got := TruncateForDisplay("short", 80); got != "short" {
		t.Fatalf("got %q, want unchanged", got)
	}
}

func TestTruncateForDisplayShortensLongASCII(t *testing.T) {
	long := "this command line is long enough that it should not fit in a narrow terminal column"
	got := TruncateForDisplay(long, 20)
	if len(got) > 20 {
		t.Fatalf("got %q (width %d), want <= 20 columns", got, len(got))
	}
}

func TestTruncateForDisplayCountsWideRunesAsTwoColumns(t *testing.T) {
	wide := "你好你好你好你好" // 8 CJK chars, 16 columns
	got := TruncateForDisplay(wide, 10)
	if runewidth.StringWidth(got) > 10 {
		t.Fatalf("got %q, want at most 10 display columns", got)
	}
}
