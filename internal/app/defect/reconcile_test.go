package defect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ahrav/defect-armada/internal/domain/defect"
)

func TestReconcileKeys(t *testing.T) {
	a := newTestDefect("a", defect.StatusNew)
	c := newTestDefect("c", defect.StatusNew)

	tests := []struct {
		name     string
		keys     []string
		found    map[string]*defect.Defect
		wantKeys []string
		wantDefs []*defect.Defect
	}{
		{
			name:     "middle key missing",
			keys:     []string{"a", "b", "c"},
			found:    map[string]*defect.Defect{"a": a, "c": c},
			wantKeys: []string{"a", "c"},
			wantDefs: []*defect.Defect{a, c},
		},
		{
			name:     "nil placeholder treated as missing",
			keys:     []string{"a", "b", "c"},
			found:    map[string]*defect.Defect{"a": a, "b": nil, "c": c},
			wantKeys: []string{"a", "c"},
			wantDefs: []*defect.Defect{a, c},
		},
		{
			name:     "caller order kept regardless of store",
			keys:     []string{"c", "a"},
			found:    map[string]*defect.Defect{"a": a, "c": c},
			wantKeys: []string{"c", "a"},
			wantDefs: []*defect.Defect{c, a},
		},
		{
			name:     "duplicates collapse",
			keys:     []string{"a", "a", "c", "a"},
			found:    map[string]*defect.Defect{"a": a, "c": c},
			wantKeys: []string{"a", "c"},
			wantDefs: []*defect.Defect{a, c},
		},
		{
			name:     "nothing exists",
			keys:     []string{"x", "y"},
			found:    map[string]*defect.Defect{},
			wantKeys: []string{},
			wantDefs: []*defect.Defect{},
		},
		{
			name:     "nil result map",
			keys:     []string{"x"},
			found:    nil,
			wantKeys: []string{},
			wantDefs: []*defect.Defect{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defs := ReconcileKeys(tt.keys, tt.found)
			assert.Equal(t, tt.wantDefs, defs)

			keys := make([]string, 0, len(defs))
			for _, d := range defs {
				keys = append(keys, d.Key())
			}
			assert.Equal(t, tt.wantKeys, keys)
		})
	}
}
