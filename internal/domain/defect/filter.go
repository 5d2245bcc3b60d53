package defect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// QueryFilter selects defects within a task. Empty fields do not constrain
// the result. The Status field is owned by the batch core: it is always
// replaced with the operation's status condition before the filter is used.
type QueryFilter struct {
	Status          []Status   `json:"status,omitempty"`
	Checkers        []string   `json:"checkers,omitempty"`
	Authors         []string   `json:"authors,omitempty"`
	Severities      []int32    `json:"severities,omitempty"`
	FilePaths       []string   `json:"file_paths,omitempty"`
	Tool            string     `json:"tool,omitempty"`
	Mark            *Mark      `json:"mark,omitempty"`
	CreateTimeStart *time.Time `json:"create_time_start,omitempty"`
	CreateTimeEnd   *time.Time `json:"create_time_end,omitempty"`
}

// ParseQueryFilter decodes a serialized filter. Missing, blank, null, and
// malformed payloads all yield ErrInvalidQueryFilter.
func ParseQueryFilter(raw string) (*QueryFilter, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: filter payload is empty", ErrInvalidQueryFilter)
	}

	var f QueryFilter
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQueryFilter, err)
	}

	return &f, nil
}

// UnmarshalJSON decodes the filter. The status predicate never fails
// decoding: entries that are not known statuses are kept as values no defect
// carries, since the batch core replaces the predicate anyway.
func (f *QueryFilter) UnmarshalJSON(data []byte) error {
	type plain QueryFilter
	aux := struct {
		*plain
		Status json.RawMessage `json:"status,omitempty"`
	}{plain: (*plain)(f)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	f.Status = lenientStatuses(aux.Status)

	return nil
}

// lenientStatuses reads a status list that may hold codes, names, or junk.
// A scalar is treated as a one-element list.
func lenientStatuses(raw json.RawMessage) []Status {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		entries = []json.RawMessage{raw}
	}

	out := make([]Status, 0, len(entries))
	for _, e := range entries {
		var st Status
		if err := json.Unmarshal(e, &st); err == nil {
			out = append(out, st)
			continue
		}
		var n int32
		if err := json.Unmarshal(e, &n); err == nil {
			out = append(out, Status(n))
			continue
		}
		out = append(out, StatusUnspecified)
	}

	return out
}

// ReplaceStatus overwrites the status predicate with exactly {s}. Any status
// the client supplied is discarded.
func (f *QueryFilter) ReplaceStatus(s Status) {
	f.Status = []Status{s}
}

// Matches reports whether d satisfies every populated predicate of the filter.
func (f *QueryFilter) Matches(d *Defect) bool {
	if len(f.Status) > 0 && !slices.Contains(f.Status, d.Status()) {
		return false
	}
	if len(f.Checkers) > 0 && !slices.Contains(f.Checkers, d.Checker()) {
		return false
	}
	if len(f.Authors) > 0 && !slices.ContainsFunc(d.authors, func(a string) bool {
		return slices.Contains(f.Authors, a)
	}) {
		return false
	}
	if len(f.Severities) > 0 && !slices.Contains(f.Severities, d.Severity()) {
		return false
	}
	if len(f.FilePaths) > 0 && !slices.ContainsFunc(f.FilePaths, func(p string) bool {
		return strings.HasPrefix(d.FilePath(), p)
	}) {
		return false
	}
	if f.Tool != "" && !strings.EqualFold(f.Tool, d.ToolName()) {
		return false
	}
	if f.Mark != nil && *f.Mark != d.Mark() {
		return false
	}
	if f.CreateTimeStart != nil && d.CreatedAt().Before(*f.CreateTimeStart) {
		return false
	}
	if f.CreateTimeEnd != nil && d.CreatedAt().After(*f.CreateTimeEnd) {
		return false
	}

	return true
}
