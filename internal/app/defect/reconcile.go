package defect

import (
	"github.com/ahrav/defect-armada/internal/domain/defect"
)

// ReconcileKeys drops every requested key that has no entry in found, which
// happens when a defect was deleted after the client loaded it. Results follow
// the caller's key order; duplicate keys are kept once.
//
// The store returns results indexed by key rather than aligned by position, so
// a store that reorders or deduplicates cannot attribute existence to the
// wrong key.
func ReconcileKeys(keys []string, found map[string]*defect.Defect) []*defect.Defect {
	defects := make([]*defect.Defect, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))

	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		d, ok := found[k]
		if !ok || d == nil {
			continue
		}
		defects = append(defects, d)
	}

	return defects
}
