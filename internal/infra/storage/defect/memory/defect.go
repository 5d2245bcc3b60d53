package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ahrav/defect-armada/internal/domain/defect"
)

var _ defect.DefectRepository = (*DefectStore)(nil)

type storeKey struct {
	taskID int64
	key    string
}

// DefectStore is an in-memory defect repository for local runs and tests.
// Stored defects are copied on the way in and out so callers never share
// state with the store.
type DefectStore struct {
	mu      sync.RWMutex
	defects map[storeKey]defect.Snapshot
}

// NewDefectStore creates an empty in-memory defect store.
func NewDefectStore() *DefectStore {
	return &DefectStore{defects: make(map[storeKey]defect.Snapshot)}
}

// CreateDefect stores d. A defect with the same task and key must not exist.
func (s *DefectStore) CreateDefect(ctx context.Context, d *defect.Defect) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := storeKey{taskID: d.TaskID(), key: d.Key()}
	if _, exists := s.defects[k]; exists {
		return fmt.Errorf("defect %s already exists in task %d", d.Key(), d.TaskID())
	}
	s.defects[k] = d.Snapshot()
	return nil
}

// QueryDefects returns the task's defects matching filter, ordered by key.
func (s *DefectStore) QueryDefects(ctx context.Context, taskID int64, filter *defect.QueryFilter) ([]*defect.Defect, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*defect.Defect, 0)
	for k, snap := range s.defects {
		if k.taskID != taskID {
			continue
		}
		d := defect.ReconstructDefect(snap)
		if filter != nil && !filter.Matches(d) {
			continue
		}
		result = append(result, d)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Key() < result[j].Key() })
	return result, nil
}

// LookupDefectsByKeys returns the task's defects for keys. Unknown keys have
// no entry.
func (s *DefectStore) LookupDefectsByKeys(ctx context.Context, taskID int64, keys []string) (map[string]*defect.Defect, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]*defect.Defect, len(keys))
	for _, key := range keys {
		if snap, ok := s.defects[storeKey{taskID: taskID, key: key}]; ok {
			found[key] = defect.ReconstructDefect(snap)
		}
	}
	return found, nil
}

// UpdateDefects replaces the stored state of every defect. Either all
// defects are written or, if one is missing, none are.
func (s *DefectStore) UpdateDefects(ctx context.Context, defects []*defect.Defect) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range defects {
		if _, ok := s.defects[storeKey{taskID: d.TaskID(), key: d.Key()}]; !ok {
			return fmt.Errorf("%w: task %d key %s", defect.ErrDefectNotFound, d.TaskID(), d.Key())
		}
	}
	for _, d := range defects {
		s.defects[storeKey{taskID: d.TaskID(), key: d.Key()}] = d.Snapshot()
	}
	return nil
}
