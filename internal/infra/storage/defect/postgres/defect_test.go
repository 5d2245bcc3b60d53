package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/defect-armada/internal/domain/defect"
	"github.com/ahrav/defect-armada/internal/infra/storage"
)

func setupDefectTest(t *testing.T) (context.Context, *pgxpool.Pool, *defectStore, func()) {
	t.Helper()

	db, cleanup := storage.SetupTestContainer(t)
	store := NewDefectStore(db, storage.NoOpTracer())
	ctx := context.Background()

	return ctx, db, store, cleanup
}

var baseTime = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func seedDefect(t *testing.T, ctx context.Context, store *defectStore, snap defect.Snapshot) *defect.Defect {
	t.Helper()

	if snap.TaskID == 0 {
		snap.TaskID = 7
	}
	if snap.ToolName == "" {
		snap.ToolName = "COVERITY"
	}
	if snap.Checker == "" {
		snap.Checker = "NULL_RETURNS"
	}
	if snap.FilePath == "" {
		snap.FilePath = "src/main.c"
	}
	if snap.Status == 0 {
		snap.Status = defect.StatusNew
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = baseTime
	}
	snap.UpdatedAt = snap.CreatedAt

	d := defect.ReconstructDefect(snap)
	require.NoError(t, store.CreateDefect(ctx, d))
	return d
}

func TestDefectStore_QueryDefects(t *testing.T) {
	t.Parallel()
	ctx, _, store, cleanup := setupDefectTest(t)
	defer cleanup()

	flagged := defect.MarkFlagged
	seedDefect(t, ctx, store, defect.Snapshot{Key: "k1", Authors: []string{"alice"}, Severity: 1})
	seedDefect(t, ctx, store, defect.Snapshot{Key: "k2", Authors: []string{"bob"}, Status: defect.StatusIgnored})
	seedDefect(t, ctx, store, defect.Snapshot{Key: "k3", Checker: "RESOURCE_LEAK", FilePath: "lib/util.c", Mark: defect.MarkFlagged})
	seedDefect(t, ctx, store, defect.Snapshot{Key: "k4", ToolName: "pylint", FilePath: "src_100%/a.py", CreatedAt: baseTime.Add(48 * time.Hour)})
	seedDefect(t, ctx, store, defect.Snapshot{Key: "other-task", TaskID: 8})

	start := baseTime.Add(24 * time.Hour)

	tests := []struct {
		name   string
		filter *defect.QueryFilter
		want   []string
	}{
		{name: "empty filter", filter: &defect.QueryFilter{}, want: []string{"k1", "k2", "k3", "k4"}},
		{name: "nil filter", filter: nil, want: []string{"k1", "k2", "k3", "k4"}},
		{name: "status", filter: &defect.QueryFilter{Status: []defect.Status{defect.StatusIgnored}}, want: []string{"k2"}},
		{name: "checker", filter: &defect.QueryFilter{Checkers: []string{"RESOURCE_LEAK"}}, want: []string{"k3"}},
		{name: "author overlap", filter: &defect.QueryFilter{Authors: []string{"bob", "zed"}}, want: []string{"k2"}},
		{name: "severity", filter: &defect.QueryFilter{Severities: []int32{1}}, want: []string{"k1"}},
		{name: "path prefix", filter: &defect.QueryFilter{FilePaths: []string{"lib/"}}, want: []string{"k3"}},
		{name: "path prefix is literal", filter: &defect.QueryFilter{FilePaths: []string{"src_100%"}}, want: []string{"k4"}},
		{name: "tool case insensitive", filter: &defect.QueryFilter{Tool: "PYLINT"}, want: []string{"k4"}},
		{name: "mark", filter: &defect.QueryFilter{Mark: &flagged}, want: []string{"k3"}},
		{name: "created after", filter: &defect.QueryFilter{CreateTimeStart: &start}, want: []string{"k4"}},
		{
			name: "combined",
			filter: &defect.QueryFilter{
				Status:    []defect.Status{defect.StatusNew},
				FilePaths: []string{"src/"},
			},
			want: []string{"k1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.QueryDefects(ctx, 7, tt.filter)
			require.NoError(t, err)

			keys := make([]string, len(got))
			for i, d := range got {
				keys[i] = d.Key()
			}
			assert.Equal(t, tt.want, keys)
		})
	}
}

func TestDefectStore_LookupDefectsByKeys(t *testing.T) {
	t.Parallel()
	ctx, _, store, cleanup := setupDefectTest(t)
	defer cleanup()

	seeded := seedDefect(t, ctx, store, defect.Snapshot{Key: "a", Authors: []string{"alice", "bob"}, Line: 12, Severity: 2})
	seedDefect(t, ctx, store, defect.Snapshot{Key: "c"})
	seedDefect(t, ctx, store, defect.Snapshot{Key: "a", TaskID: 99})

	found, err := store.LookupDefectsByKeys(ctx, 7, []string{"a", "b", "c"})
	require.NoError(t, err)

	require.Len(t, found, 2)
	assert.NotContains(t, found, "b")

	got := found["a"]
	require.NotNil(t, got)
	assert.Equal(t, seeded.Authors(), got.Authors())
	assert.Equal(t, int32(12), got.Line())
	assert.Equal(t, int32(2), got.Severity())
	assert.Equal(t, int64(7), got.TaskID())
	assert.True(t, got.IgnoreTime().IsZero())
}

func TestDefectStore_LookupDefectsByKeys_Chunked(t *testing.T) {
	t.Parallel()
	ctx, _, store, cleanup := setupDefectTest(t)
	defer cleanup()

	const n = lookupChunkSize*2 + 17
	keys := make([]string, 0, n+1)
	for i := range n {
		key := fmt.Sprintf("key-%04d", i)
		seedDefect(t, ctx, store, defect.Snapshot{Key: key})
		keys = append(keys, key)
	}
	keys = append(keys, "missing")

	found, err := store.LookupDefectsByKeys(ctx, 7, keys)
	require.NoError(t, err)
	assert.Len(t, found, n)
}

func TestDefectStore_LookupDefectsByKeys_Empty(t *testing.T) {
	t.Parallel()
	ctx, _, store, cleanup := setupDefectTest(t)
	defer cleanup()

	found, err := store.LookupDefectsByKeys(ctx, 7, nil)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestDefectStore_UpdateDefects(t *testing.T) {
	t.Parallel()
	ctx, _, store, cleanup := setupDefectTest(t)
	defer cleanup()

	seedDefect(t, ctx, store, defect.Snapshot{Key: "a"})
	seedDefect(t, ctx, store, defect.Snapshot{Key: "b"})

	found, err := store.LookupDefectsByKeys(ctx, 7, []string{"a", "b"})
	require.NoError(t, err)

	at := baseTime.Add(time.Hour)
	require.NoError(t, found["a"].Ignore(defect.IgnoreReasonIntended, "by design", "carol", at))
	require.NoError(t, found["b"].AssignTo([]string{"dave"}, at))

	require.NoError(t, store.UpdateDefects(ctx, []*defect.Defect{found["a"], found["b"]}))

	reloaded, err := store.LookupDefectsByKeys(ctx, 7, []string{"a", "b"})
	require.NoError(t, err)

	a := reloaded["a"]
	assert.Equal(t, defect.StatusIgnored, a.Status())
	assert.Equal(t, defect.IgnoreReasonIntended, a.IgnoreReasonType())
	assert.Equal(t, "by design", a.IgnoreReason())
	assert.Equal(t, "carol", a.IgnoreAuthor())
	assert.True(t, at.Equal(a.IgnoreTime()))
	assert.True(t, at.Equal(a.UpdatedAt()))

	assert.Equal(t, []string{"dave"}, reloaded["b"].Authors())
}

func TestDefectStore_UpdateDefects_MissingRollsBack(t *testing.T) {
	t.Parallel()
	ctx, _, store, cleanup := setupDefectTest(t)
	defer cleanup()

	seedDefect(t, ctx, store, defect.Snapshot{Key: "a"})
	found, err := store.LookupDefectsByKeys(ctx, 7, []string{"a"})
	require.NoError(t, err)

	require.NoError(t, found["a"].SetMark(defect.MarkFlagged, baseTime.Add(time.Hour)))
	ghost := defect.ReconstructDefect(defect.Snapshot{Key: "ghost", TaskID: 7, Status: defect.StatusNew})

	err = store.UpdateDefects(ctx, []*defect.Defect{found["a"], ghost})
	require.ErrorIs(t, err, defect.ErrDefectNotFound)

	reloaded, err := store.LookupDefectsByKeys(ctx, 7, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, defect.MarkNone, reloaded["a"].Mark(), "transaction must be rolled back")
}

func TestChunkKeys(t *testing.T) {
	tests := []struct {
		name string
		n    int
		size int
		want []int
	}{
		{name: "empty", n: 0, size: 3, want: []int{}},
		{name: "exact", n: 6, size: 3, want: []int{3, 3}},
		{name: "remainder", n: 7, size: 3, want: []int{3, 3, 1}},
		{name: "single", n: 2, size: 3, want: []int{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := make([]string, tt.n)
			for i := range keys {
				keys[i] = fmt.Sprint(i)
			}

			chunks := chunkKeys(keys, tt.size)
			sizes := make([]int, len(chunks))
			for i, c := range chunks {
				sizes[i] = len(c)
			}
			assert.Equal(t, tt.want, sizes)
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `src\_100\%\\`, escapeLike(`src_100%\`))
}
