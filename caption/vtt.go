package caption

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const header = "WEBVTT"

// FormatTimestamp renders seconds as HH:MM:SS.mmm, truncating to the
// millisecond.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(seconds*1000 + 1e-6)
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}

// WriteVTT writes the header line followed by one numbered cue per entry,
// each followed by a blank line.
func WriteVTT(dst io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(dst)
	fmt.Fprintf(bw, "%s\n\n", header)
	for _, e := range entries {
		text := strings.Join(strings.Fields(e.Text), " ")
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s: %s\n\n",
			e.Index, FormatTimestamp(e.Start), FormatTimestamp(e.End), e.Speaker, text)
	}
	return bw.Flush()
}
