package observability

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jonathan/tubedigest/internal/gateway"
	"github.com/jonathan/tubedigest/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertBoxAligned(t *testing.T, out string) {
	t.Helper()
	for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
		assert.Equal(t, boxWidth, utf8.RuneCountInString(line), "line %q", line)
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintSummary(&gateway.SummaryResult{
		Title:     "Go Concurrency Patterns",
		Summary:   strings.Repeat("Goroutines are cheap and channels connect them. ", 4) + "\n\nSecond paragraph.",
		WatchLink: "https://youtu.be/f6kdp27TYZs",
	})

	out := buf.String()
	assert.Contains(t, out, "Go Concurrency Patterns")
	assert.Contains(t, out, "Second paragraph.")
	assert.Contains(t, out, "Watch: https://youtu.be/f6kdp27TYZs")
	assert.NotContains(t, out, "...", "summary text wraps instead of truncating")
	assertBoxAligned(t, out)
}

func TestPrintSummary_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintSummary(nil)
	assert.Empty(t, buf.String())
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	now := time.UnixMilli(10_000_000)
	p.now = func() time.Time { return now }

	p.PrintHistory([]history.Item{
		{URL: "https://youtu.be/b", Title: "Ünïcode title", Timestamp: now.Add(-3 * time.Minute).UnixMilli()},
		{URL: "https://youtu.be/a", Title: "First", Timestamp: now.Add(-2 * time.Hour).UnixMilli()},
	})

	out := buf.String()
	assert.Contains(t, out, "HISTORY (2)")
	assert.Contains(t, out, "1. Ünïcode title")
	assert.Contains(t, out, "https://youtu.be/b · 3 minutes ago")
	assert.Contains(t, out, "https://youtu.be/a · 2 hours ago")
	assert.Less(t, strings.Index(out, "youtu.be/b"), strings.Index(out, "youtu.be/a"))
	assertBoxAligned(t, out)
}

func TestPrintHistory_EmptyAndOverflow(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.PrintHistory(nil)
	assert.Contains(t, buf.String(), "No summaries yet.")

	buf.Reset()
	items := make([]history.Item, 15)
	for i := range items {
		items[i] = history.Item{URL: fmt.Sprintf("https://youtu.be/v%d", i), Title: "T", Timestamp: 1}
	}
	p.PrintHistory(items)
	assert.Contains(t, buf.String(), "... and 5 more")
}

func TestWrap(t *testing.T) {
	lines := wrap("aaa bbb ccc ddd", 7)
	require.Equal(t, []string{"aaa bbb", "ccc ddd"}, lines)
	assert.Empty(t, wrap("   ", 10))
	assert.Equal(t, []string{"averyveryverylongword"}, wrap("averyveryverylongword", 5))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ééé...", truncate("éééééééé", 6))
}
