package executor

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

const maxExcerpt = 512

// shellQuote quotes s for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// parseRuntime extracts the trailing integer line a timing wrapper appends to
// stderr and returns it with the remaining stderr.
func parseRuntime(stderr []byte) (int64, []byte, error) {
	trimmed := bytes.TrimRight(stderr, " \t\r\n")
	if len(trimmed) == 0 {
		return 0, stderr, fmt.Errorf("empty stderr")
	}

	rest, last := []byte(nil), trimmed
	if i := bytes.LastIndexByte(trimmed, '\n'); i >= 0 {
		rest, last = trimmed[:i+1], trimmed[i+1:]
	}

	ms, err := strconv.ParseInt(string(bytes.TrimSpace(last)), 10, 64)
	if err != nil {
		return 0, stderr, fmt.Errorf("unexpected timing line %q", excerpt(last))
	}
	if ms < 0 {
		return 0, stderr, fmt.Errorf("negative runtime %d", ms)
	}
	return ms, rest, nil
}

// excerpt returns at most maxExcerpt bytes of b, trimmed.
func excerpt(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > maxExcerpt {
		return string(b[:maxExcerpt]) + "..."
	}
	return string(b)
}
