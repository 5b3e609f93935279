package resource

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// FilterID computes the deterministic identity of a single resource's own
// filter stack: the active filter ids, sorted, joined with ", ", mirroring
// one term of the original's _make_filter_id.
func FilterID(stack FilterStack) string {
	ids := stack.activeIDs()
	sort.Strings(ids)
	return strings.Join(ids, ", ")
}

// CompositeFilterID combines the per-resource filter ids of every resource
// that feeds one fan-out combination into a single stable id: sorted,
// joined with " & ", reproducing _make_filter_id's cross-resource join rule
// exactly (see DESIGN.md "Composite filter id join rule").
func CompositeFilterID(perResourceIDs []string) string {
	nonEmpty := make([]string, 0, len(perResourceIDs))
	for _, id := range perResourceIDs {
		if id != "" {
			nonEmpty = append(nonEmpty, id)
		}
	}
	sort.Strings(nonEmpty)
	return strings.Join(nonEmpty, " & ")
}

// Hash returns a short, stable digest of stack, suitable as a map key or
// correlation id when the full composite string is too verbose to log
// repeatedly. It canonically encodes the stack via msgpack (deterministic
// once activeIDs() is pre-sorted) and hashes with sha256.
func (fs FilterStack) Hash() string {
	ids := fs.activeIDs()
	sort.Strings(ids)
	encoded, err := msgpack.Marshal(ids)
	if err != nil {
		// Marshalling a []string cannot fail; this branch exists only to
		// satisfy the error-return contract of msgpack.Marshal.
		encoded = []byte(strings.Join(ids, "\x1f"))
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])[:16]
}
