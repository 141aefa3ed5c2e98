// Package idgen generates collision-resistant task identifiers.
//
// Hash-based IDs replace auto-incrementing keys so that multiple
// uncoordinated writers (agents, possibly offline) can create tasks without
// a central sequence. The generator does not guarantee uniqueness by
// construction; the store verifies at insert time and regenerates on the
// rare collision.
package idgen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SuffixLen is the number of lowercase hex characters after the prefix.
const SuffixLen = 6

// MaxAttempts bounds insert-time regeneration. More than this many
// consecutive collisions indicates entropy-source failure, not contention,
// and is treated as an integrity-fatal condition by the store.
const MaxAttempts = 5

// NewTaskID produces a short, human-typeable identifier of the form
// "<prefix>-<6 hex chars>". The suffix is derived from a SHA-256 hash of a
// high-resolution timestamp, 8 fresh random bytes, and the project
// identifier.
func NewTaskID(prefix, projectID string) string {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(time.Now().UnixNano()))
	if _, err := rand.Read(buf[8:]); err != nil {
		// crypto/rand never fails on supported platforms; if it somehow
		// does, the timestamp alone still feeds the hash and the store's
		// uniqueness check catches any repeat.
		binary.BigEndian.PutUint64(buf[8:], uint64(time.Now().UnixNano()))
	}

	h := sha256.New()
	h.Write(buf[:])
	h.Write([]byte(projectID))
	sum := h.Sum(nil)

	return fmt.Sprintf("%s-%x", prefix, sum[:SuffixLen/2])
}

// ChildID deterministically derives the nth hierarchical child identifier:
// ChildID("gb-a1b2c3", 2) == "gb-a1b2c3.2". No randomness is involved; the
// store is responsible for choosing the next unused n for a given parent.
func ChildID(parentID string, n int) string {
	return fmt.Sprintf("%s.%d", parentID, n)
}

// ParseChildSuffix returns the trailing child ordinal of id relative to
// parentID, or 0 if id is not a direct child of parentID.
func ParseChildSuffix(parentID, id string) int {
	rest, ok := strings.CutPrefix(id, parentID+".")
	if !ok || rest == "" || strings.Contains(rest, ".") {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
