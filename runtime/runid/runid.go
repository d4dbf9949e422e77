// Package runid generates and parses sortable, prefix-tagged run
// identifiers: run_<ms-since-epoch>_<8-char-random>. IDs are monotonically
// non-decreasing within a process because the timestamp component always
// reflects wall-clock time at generation.
package runid

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	prefix     = "run"
	randomLen  = 8
	randomBase = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// ID is the parsed form of a generated identifier.
type ID struct {
	Timestamp time.Time
	Random    string
}

// New generates a new run identifier using the current wall-clock time.
func New() string {
	return newAt(time.Now())
}

func newAt(t time.Time) string {
	return fmt.Sprintf("%s_%d_%s", prefix, t.UnixMilli(), randomSuffix())
}

func randomSuffix() string {
	buf := make([]byte, randomLen)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read on a correctly configured system does not fail;
		// fall back to a fixed-zero suffix rather than panicking.
		for i := range buf {
			buf[i] = 0
		}
	}
	out := make([]byte, randomLen)
	for i, b := range buf {
		out[i] = randomBase[int(b)%len(randomBase)]
	}
	return string(out)
}

// Parse recovers the timestamp and random suffix from a generated run ID.
// It rejects malformed input.
func Parse(s string) (ID, error) {
	parts := strings.SplitN(s, "_", 3)
	if len(parts) != 3 || parts[0] != prefix {
		return ID{}, fmt.Errorf("runid: malformed id %q", s)
	}
	ms, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("runid: malformed timestamp in %q: %w", s, err)
	}
	if len(parts[2]) != randomLen {
		return ID{}, fmt.Errorf("runid: malformed random suffix in %q", s)
	}
	for _, c := range parts[2] {
		if !strings.ContainsRune(randomBase, c) {
			return ID{}, fmt.Errorf("runid: malformed random suffix in %q", s)
		}
	}
	return ID{Timestamp: time.UnixMilli(ms), Random: parts[2]}, nil
}
