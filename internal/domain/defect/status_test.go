package defect

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Status
		wantErr bool
	}{
		{name: "numeric new", input: "1", want: StatusNew},
		{name: "numeric ignored", input: "4", want: StatusIgnored},
		{name: "name", input: "fixed", want: StatusFixed},
		{name: "legacy name", input: "IGNORE", want: StatusIgnored},
		{name: "padded", input: "  16 ", want: StatusCheckerMasked},
		{name: "unknown code", input: "3", wantErr: true},
		{name: "unknown name", input: "CLOSED", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatus(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatus_JSON(t *testing.T) {
	var got []Status
	require.NoError(t, json.Unmarshal([]byte(`[1, "4", "FIXED"]`), &got))
	assert.Equal(t, []Status{StatusNew, StatusIgnored, StatusFixed}, got)

	data, err := json.Marshal([]Status{StatusIgnored})
	require.NoError(t, err)
	assert.JSONEq(t, `[4]`, string(data))

	var bad Status
	assert.Error(t, json.Unmarshal([]byte(`7`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`{}`), &bad))
}

func TestParseOperationKind(t *testing.T) {
	kind, err := ParseOperationKind(" Restore ")
	require.NoError(t, err)
	assert.Equal(t, OperationRestore, kind)

	_, err = ParseOperationKind("delete")
	assert.ErrorIs(t, err, ErrUnknownOperation)
}
