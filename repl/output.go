package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/term"

	"github.com/vocaresume/vocaresume/router"
)

// termWriter wraps a file and converts \n to \r\n when the file is a terminal
// (needed because raw mode disables the kernel's NL→CRNL translation).
// When the file is redirected, \n passes through unchanged.
func termWriter(f *os.File) io.Writer {
	if term.IsTerminal(int(f.Fd())) {
		return &crlfWriter{w: f}
	}
	return f
}

type crlfWriter struct {
	w io.Writer
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	replaced := bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))
	_, err := c.w.Write(replaced)
	return len(p), err // report original length to caller
}

// entry is one routed query as written to the TOML log.
type entry struct {
	Request requestRecord `toml:"request"`
	Result  resultRecord  `toml:"result"`
}

type requestRecord struct {
	ID        int       `toml:"id"`
	Timestamp time.Time `toml:"timestamp"`
	Query     string    `toml:"query"`
	K         int       `toml:"k"`
}

type resultRecord struct {
	TaskIndex    int                 `toml:"task_index"`
	Label        string              `toml:"label"`
	Score        float64             `toml:"score"`
	Backend      string              `toml:"backend"`
	Alternatives []alternativeRecord `toml:"alternatives"`
}

type alternativeRecord struct {
	Label string  `toml:"label"`
	Score float64 `toml:"score"`
}

// writeEntry writes a single TOML-formatted entry to w.
func writeEntry(w io.Writer, id int, query string, k int, res router.Result, backend router.Backend, now time.Time) error {
	e := entry{
		Request: requestRecord{ID: id, Timestamp: now.UTC().Truncate(time.Second), Query: query, K: k},
		Result: resultRecord{
			TaskIndex: res.TaskIndex,
			Label:     res.Label,
			Score:     res.Score,
			Backend:   string(backend),
		},
	}
	for _, alt := range res.Alternatives {
		e.Result.Alternatives = append(e.Result.Alternatives, alternativeRecord{Label: alt.Label, Score: alt.Score})
	}

	fmt.Fprintf(w, "# %s\n\n", strings.Repeat("═", 60))
	if err := toml.NewEncoder(w).Encode(e); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

// writeSummary shows a brief result on the terminal.
func writeSummary(w io.Writer, res router.Result, backend router.Backend) {
	fmt.Fprintf(w, "  -> %d %s [%.2f] (%s)\r\n", res.TaskIndex, res.Label, res.Score, backend)
	for _, alt := range res.Alternatives {
		fmt.Fprintf(w, "     %s [%.2f]\r\n", alt.Label, alt.Score)
	}
	fmt.Fprintf(w, "\r\n")
}

// writeStats prints route counts in task order, then any other labels sorted.
func writeStats(w io.Writer, counts map[string]int, backend router.Backend) {
	fmt.Fprintf(w, "backend: %s\r\n", backend)
	seen := make(map[string]bool)
	for _, t := range router.Tasks {
		seen[t.Label] = true
		fmt.Fprintf(w, "  %-12s %d\r\n", t.Label, counts[t.Label])
	}
	var extra []string
	for label := range counts {
		if !seen[label] {
			extra = append(extra, label)
		}
	}
	sort.Strings(extra)
	for _, label := range extra {
		fmt.Fprintf(w, "  %-12s %d\r\n", label, counts[label])
	}
	fmt.Fprintf(w, "\r\n")
}
