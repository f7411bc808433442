package batch

import (
	"fmt"
	"io"
)

// ProgressFunc is called once per finished image. Calls are serialized.
type ProgressFunc func(done, total int, path string, err error)

// ConsoleProgress prints one status line per image to w.
func ConsoleProgress(w io.Writer, prefix string) ProgressFunc {
	return func(done, total int, path string, err error) {
		status := "ok"
		if err != nil {
			status = "failed"
		}
		pct := 100 * float64(done) / float64(max(total, 1))
		_, _ = fmt.Fprintf(w, "%s[%d/%d %5.1f%%] %s %s\n", prefix, done, total, pct, path, status)
	}
}
