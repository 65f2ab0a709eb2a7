package cmdutil

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// Stamp is the time layout used in CLI output and accepted by time flags.
const Stamp = "2006-01-02 15:04"

// Table writes rows under a header, aligned in columns.
func Table(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

// Fields writes label/value pairs, one per line.
func Fields(w io.Writer, pairs ...[2]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, p := range pairs {
		fmt.Fprintf(tw, "%s:\t%s\n", p[0], p[1])
	}
	return tw.Flush()
}

// When formats t in local time; the zero time is "-".
func When(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(Stamp)
}

func YesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Truncate shortens s to n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
