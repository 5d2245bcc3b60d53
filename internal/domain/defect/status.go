package defect

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Status represents the lifecycle state of a defect. The numeric values match
// the codes persisted by the defect store and sent by the UI.
type Status int32

const (
	// StatusUnspecified is the zero value and never stored.
	StatusUnspecified Status = 0

	// StatusNew marks a newly found, unresolved defect. Most batch operations
	// only apply to defects in this state.
	StatusNew Status = 1

	// StatusFixed marks a defect that no longer reproduces in the latest scan.
	StatusFixed Status = 2

	// StatusIgnored marks a defect a user chose to ignore.
	StatusIgnored Status = 4

	// StatusPathMasked marks a defect hidden by a path filter.
	StatusPathMasked Status = 8

	// StatusCheckerMasked marks a defect hidden because its checker is disabled.
	StatusCheckerMasked Status = 16
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusFixed:
		return "FIXED"
	case StatusIgnored:
		return "IGNORED"
	case StatusPathMasked:
		return "PATH_MASKED"
	case StatusCheckerMasked:
		return "CHECKER_MASKED"
	default:
		return "UNSPECIFIED"
	}
}

// Int32 returns the stored representation of the status.
func (s Status) Int32() int32 { return int32(s) }

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusFixed, StatusIgnored, StatusPathMasked, StatusCheckerMasked:
		return true
	default:
		return false
	}
}

// ParseStatus converts either a numeric code ("4") or a status name
// ("IGNORED", case-insensitive) into a Status.
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		st := Status(n)
		if !st.IsValid() {
			return StatusUnspecified, fmt.Errorf("unknown defect status code %d", n)
		}
		return st, nil
	}

	switch strings.ToUpper(s) {
	case "NEW":
		return StatusNew, nil
	case "FIXED":
		return StatusFixed, nil
	case "IGNORED", "IGNORE":
		return StatusIgnored, nil
	case "PATH_MASKED", "PATH_MASK":
		return StatusPathMasked, nil
	case "CHECKER_MASKED", "CHECKER_MASK":
		return StatusCheckerMasked, nil
	default:
		return StatusUnspecified, fmt.Errorf("unknown defect status %q", s)
	}
}

// MarshalJSON encodes the status as its numeric code.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(s))), nil
}

// UnmarshalJSON accepts a number, a numeric string, or a status name.
func (s *Status) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		st := Status(n)
		if !st.IsValid() {
			return fmt.Errorf("unknown defect status code %d", n)
		}
		*s = st
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("defect status must be a number or string: %w", err)
	}

	st, err := ParseStatus(str)
	if err != nil {
		return err
	}
	*s = st

	return nil
}

// Mark is the user-set flag on a defect.
type Mark int32

const (
	// MarkNone means the defect is not flagged.
	MarkNone Mark = 0
	// MarkFlagged means a user flagged the defect for follow-up.
	MarkFlagged Mark = 1
)

// IsValid reports whether m is a known mark value.
func (m Mark) IsValid() bool { return m == MarkNone || m == MarkFlagged }
