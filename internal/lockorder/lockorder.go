// Package lockorder fixes the order in which an operation acquires account row locks.
//
// Two operations that touch the same accounts always request the locks in the
// same sequence, so a transfer A->B running next to B->A cannot deadlock. The
// order depends only on the identifiers and is therefore stable across restarts.
package lockorder

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
)

// Order returns ids without duplicates, ascending by their byte representation.
// The input slice is not modified.
func Order(ids ...uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return Less(out[i], out[j])
	})
	return out
}

// Less is the total order used by Order.
func Less(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}
