// Package defect provides domain types and interfaces for tracking static-analysis
// findings ("defects") and for resolving and mutating them in batches.
package defect

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var (
	// ErrEmptyDefectKey is returned when a defect is created without a key.
	ErrEmptyDefectKey = errors.New("defect key is required")

	// ErrNoAuthors is returned when an assignment names no handler.
	ErrNoAuthors = errors.New("at least one author is required")

	// ErrInvalidMark is returned when a mark value is not recognized.
	ErrInvalidMark = errors.New("invalid defect mark")
)

// IgnoreReasonType categorizes why a defect was ignored.
type IgnoreReasonType int32

const (
	IgnoreReasonUnspecified   IgnoreReasonType = 0
	IgnoreReasonFalsePositive IgnoreReasonType = 1
	IgnoreReasonIntended      IgnoreReasonType = 2
	IgnoreReasonHistorical    IgnoreReasonType = 4
	IgnoreReasonOther         IgnoreReasonType = 8
)

// IsValid reports whether t is a known, non-zero reason type.
func (t IgnoreReasonType) IsValid() bool {
	switch t {
	case IgnoreReasonFalsePositive, IgnoreReasonIntended, IgnoreReasonHistorical, IgnoreReasonOther:
		return true
	default:
		return false
	}
}

// Defect is a single static-analysis finding tracked by key within a scan task.
// It is the aggregate root that batch operations mutate.
type Defect struct {
	key      string
	taskID   int64
	toolName string
	checker  string
	filePath string
	line     int32
	severity int32
	authors  []string
	status   Status
	mark     Mark

	ignoreReasonType IgnoreReasonType
	ignoreReason     string
	ignoreAuthor     string
	ignoreTime       time.Time

	createdAt time.Time
	updatedAt time.Time
}

// NewDefect creates a newly found defect.
func NewDefect(key string, taskID int64, toolName, checker, filePath string, line, severity int32, authors []string) (*Defect, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrEmptyDefectKey
	}

	now := time.Now().UTC()
	return &Defect{
		key:       key,
		taskID:    taskID,
		toolName:  toolName,
		checker:   checker,
		filePath:  filePath,
		line:      line,
		severity:  severity,
		authors:   dedupeAuthors(authors),
		status:    StatusNew,
		mark:      MarkNone,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Snapshot carries every persisted field of a defect. Storage adapters use it
// to rebuild a Defect and to read one back out.
type Snapshot struct {
	Key              string
	TaskID           int64
	ToolName         string
	Checker          string
	FilePath         string
	Line             int32
	Severity         int32
	Authors          []string
	Status           Status
	Mark             Mark
	IgnoreReasonType IgnoreReasonType
	IgnoreReason     string
	IgnoreAuthor     string
	IgnoreTime       time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ReconstructDefect rebuilds a defect from persisted state without validation.
func ReconstructDefect(s Snapshot) *Defect {
	return &Defect{
		key:              s.Key,
		taskID:           s.TaskID,
		toolName:         s.ToolName,
		checker:          s.Checker,
		filePath:         s.FilePath,
		line:             s.Line,
		severity:         s.Severity,
		authors:          slices.Clone(s.Authors),
		status:           s.Status,
		mark:             s.Mark,
		ignoreReasonType: s.IgnoreReasonType,
		ignoreReason:     s.IgnoreReason,
		ignoreAuthor:     s.IgnoreAuthor,
		ignoreTime:       s.IgnoreTime,
		createdAt:        s.CreatedAt,
		updatedAt:        s.UpdatedAt,
	}
}

// Snapshot returns a copy of the defect's persisted state.
func (d *Defect) Snapshot() Snapshot {
	return Snapshot{
		Key:              d.key,
		TaskID:           d.taskID,
		ToolName:         d.toolName,
		Checker:          d.checker,
		FilePath:         d.filePath,
		Line:             d.line,
		Severity:         d.severity,
		Authors:          slices.Clone(d.authors),
		Status:           d.status,
		Mark:             d.mark,
		IgnoreReasonType: d.ignoreReasonType,
		IgnoreReason:     d.ignoreReason,
		IgnoreAuthor:     d.ignoreAuthor,
		IgnoreTime:       d.ignoreTime,
		CreatedAt:        d.createdAt,
		UpdatedAt:        d.updatedAt,
	}
}

func (d *Defect) Key() string                        { return d.key }
func (d *Defect) TaskID() int64                      { return d.taskID }
func (d *Defect) ToolName() string                   { return d.toolName }
func (d *Defect) Checker() string                    { return d.checker }
func (d *Defect) FilePath() string                   { return d.filePath }
func (d *Defect) Line() int32                        { return d.line }
func (d *Defect) Severity() int32                    { return d.severity }
func (d *Defect) Authors() []string                  { return slices.Clone(d.authors) }
func (d *Defect) Status() Status                     { return d.status }
func (d *Defect) Mark() Mark                         { return d.mark }
func (d *Defect) IgnoreReasonType() IgnoreReasonType { return d.ignoreReasonType }
func (d *Defect) IgnoreReason() string               { return d.ignoreReason }
func (d *Defect) IgnoreAuthor() string               { return d.ignoreAuthor }
func (d *Defect) IgnoreTime() time.Time              { return d.ignoreTime }
func (d *Defect) CreatedAt() time.Time               { return d.createdAt }
func (d *Defect) UpdatedAt() time.Time               { return d.updatedAt }

// Ignore moves a new defect into the ignored state and records who ignored it
// and why.
func (d *Defect) Ignore(reasonType IgnoreReasonType, reason, by string, at time.Time) error {
	if d.status != StatusNew {
		return fmt.Errorf("%w: cannot ignore defect %s in status %s", ErrInvalidStatusTransition, d.key, d.status)
	}

	d.status = StatusIgnored
	d.ignoreReasonType = reasonType
	d.ignoreReason = reason
	d.ignoreAuthor = by
	d.ignoreTime = at
	d.updatedAt = at

	return nil
}

// Restore returns an ignored defect to the new state and clears its ignore data.
func (d *Defect) Restore(at time.Time) error {
	if d.status != StatusIgnored {
		return fmt.Errorf("%w: cannot restore defect %s in status %s", ErrInvalidStatusTransition, d.key, d.status)
	}

	d.status = StatusNew
	d.ignoreReasonType = IgnoreReasonUnspecified
	d.ignoreReason = ""
	d.ignoreAuthor = ""
	d.ignoreTime = time.Time{}
	d.updatedAt = at

	return nil
}

// AssignTo replaces the defect's handlers.
func (d *Defect) AssignTo(authors []string, at time.Time) error {
	if d.status != StatusNew {
		return fmt.Errorf("%w: cannot assign defect %s in status %s", ErrInvalidStatusTransition, d.key, d.status)
	}

	deduped := dedupeAuthors(authors)
	if len(deduped) == 0 {
		return ErrNoAuthors
	}

	d.authors = deduped
	d.updatedAt = at

	return nil
}

// SetMark flags or unflags the defect.
func (d *Defect) SetMark(mark Mark, at time.Time) error {
	if !mark.IsValid() {
		return ErrInvalidMark
	}
	if d.status != StatusNew {
		return fmt.Errorf("%w: cannot mark defect %s in status %s", ErrInvalidStatusTransition, d.key, d.status)
	}

	d.mark = mark
	d.updatedAt = at

	return nil
}

// dedupeAuthors trims, drops empties, and removes duplicates while keeping
// first-seen order.
func dedupeAuthors(authors []string) []string {
	out := make([]string, 0, len(authors))
	seen := make(map[string]struct{}, len(authors))
	for _, a := range authors {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
