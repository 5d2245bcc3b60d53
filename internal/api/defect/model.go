package defect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ahrav/defect-armada/internal/domain/defect"
)

// selectAll accepts a JSON boolean or the "Y"/"N" flag strings older
// clients send. null and "" mean false.
type selectAll bool

func (s *selectAll) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = false
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*s = selectAll(b)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("is_select_all must be a boolean or Y/N")
	}
	switch strings.ToUpper(strings.TrimSpace(str)) {
	case "Y", "TRUE":
		*s = true
	case "N", "FALSE", "":
		*s = false
	default:
		return fmt.Errorf("is_select_all must be a boolean or Y/N, got %q", str)
	}
	return nil
}

// filterCondition holds the serialized query filter. Clients may send it
// either as a JSON object or as a string containing JSON.
type filterCondition string

func (f *filterCondition) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = filterCondition(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	*f = filterCondition(data)
	return nil
}

// batchRequest is the body of a batch defect operation.
type batchRequest struct {
	IsSelectAll          selectAll       `json:"is_select_all"`
	QueryDefectCondition filterCondition `json:"query_defect_condition"`
	DefectKeys           []string        `json:"defect_keys" validate:"omitempty,dive,required,max=256"`
	IgnoreReasonType     int32           `json:"ignore_reason_type" validate:"omitempty,oneof=1 2 4 8"`
	IgnoreReason         string          `json:"ignore_reason" validate:"max=1024"`
	Authors              []string        `json:"authors" validate:"omitempty,dive,max=128"`
	Mark                 int32           `json:"mark" validate:"oneof=0 1"`
	RequestedBy          string          `json:"requested_by" validate:"max=128"`
}

func (r batchRequest) toDomain(taskID int64) *defect.BatchRequest {
	return &defect.BatchRequest{
		TaskID:          taskID,
		SelectAll:       bool(r.IsSelectAll),
		QueryFilterJSON: string(r.QueryDefectCondition),
		DefectKeys:      r.DefectKeys,
		Params: defect.BatchParams{
			IgnoreReasonType: defect.IgnoreReasonType(r.IgnoreReasonType),
			IgnoreReason:     r.IgnoreReason,
			Authors:          r.Authors,
			Mark:             defect.Mark(r.Mark),
		},
		RequestedBy: r.RequestedBy,
	}
}

// batchResponse is returned when a batch operation succeeds.
type batchResponse struct {
	Message string `json:"message"`
}

// Encode implements the web.Encoder interface.
func (br batchResponse) Encode() ([]byte, string, error) {
	data, err := json.Marshal(br)
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}
