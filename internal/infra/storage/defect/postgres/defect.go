package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/defect-armada/internal/db"
	"github.com/ahrav/defect-armada/internal/domain/defect"
	"github.com/ahrav/defect-armada/internal/infra/storage"
)

// defectStore implements defect.DefectRepository using PostgreSQL as the
// backing store.
var _ defect.DefectRepository = (*defectStore)(nil)

type defectStore struct {
	q      *db.Queries
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewDefectStore creates a PostgreSQL-backed defect repository with tracing.
func NewDefectStore(pool *pgxpool.Pool, tracer trace.Tracer) *defectStore {
	return &defectStore{
		q:      db.New(pool),
		db:     pool,
		tracer: tracer,
	}
}

// defaultDBAttributes defines standard OpenTelemetry attributes for database operations.
var defaultDBAttributes = []attribute.KeyValue{
	attribute.String("db.system", "postgresql"),
}

const (
	// lookupChunkSize bounds the size of the key array sent in one query.
	lookupChunkSize = 500
	// lookupConcurrency bounds the chunk queries in flight at once.
	lookupConcurrency = 4

	updateTimeout = 10 * time.Second
)

// CreateDefect inserts a new defect.
func (s *defectStore) CreateDefect(ctx context.Context, d *defect.Defect) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.Int64("task_id", d.TaskID()),
		attribute.String("defect_key", d.Key()),
	)

	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.create_defect", dbAttrs, func(ctx context.Context) error {
		snap := d.Snapshot()
		err := s.q.CreateDefect(ctx, db.CreateDefectParams{
			TaskID:           snap.TaskID,
			DefectKey:        snap.Key,
			ToolName:         snap.ToolName,
			Checker:          snap.Checker,
			FilePath:         snap.FilePath,
			LineNum:          snap.Line,
			Severity:         snap.Severity,
			Authors:          nonNil(snap.Authors),
			Status:           snap.Status.Int32(),
			Mark:             int32(snap.Mark),
			IgnoreReasonType: int32(snap.IgnoreReasonType),
			IgnoreReason:     snap.IgnoreReason,
			IgnoreAuthor:     snap.IgnoreAuthor,
			IgnoreTime:       timestamptz(snap.IgnoreTime),
			CreatedAt:        pgtype.Timestamptz{Time: snap.CreatedAt, Valid: true},
			UpdatedAt:        pgtype.Timestamptz{Time: snap.UpdatedAt, Valid: true},
		})
		if err != nil {
			return fmt.Errorf("CreateDefect insert error: %w", err)
		}
		return nil
	})
}

// QueryDefects returns every defect of the task matching filter, ordered by key.
func (s *defectStore) QueryDefects(ctx context.Context, taskID int64, filter *defect.QueryFilter) ([]*defect.Defect, error) {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.Int64("task_id", taskID),
	)

	var defects []*defect.Defect
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.query_defects", dbAttrs, func(ctx context.Context) error {
		rows, err := s.q.ListDefectsByFilter(ctx, listParams(taskID, filter))
		if err != nil {
			return fmt.Errorf("ListDefectsByFilter query error: %w", err)
		}

		defects = make([]*defect.Defect, 0, len(rows))
		for _, row := range rows {
			defects = append(defects, defect.ReconstructDefect(snapshotFromRow(db.GetDefectsByKeysRow(row))))
		}
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("num_defects", len(defects)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return defects, nil
}

func listParams(taskID int64, f *defect.QueryFilter) db.ListDefectsByFilterParams {
	p := db.ListDefectsByFilterParams{
		TaskID:       taskID,
		Statuses:     []int32{},
		Checkers:     []string{},
		Authors:      []string{},
		Severities:   []int32{},
		PathPatterns: []string{},
	}
	if f == nil {
		return p
	}

	for _, st := range f.Status {
		p.Statuses = append(p.Statuses, st.Int32())
	}
	p.Checkers = append(p.Checkers, f.Checkers...)
	p.Authors = append(p.Authors, f.Authors...)
	p.Severities = append(p.Severities, f.Severities...)
	for _, prefix := range f.FilePaths {
		p.PathPatterns = append(p.PathPatterns, escapeLike(prefix)+"%")
	}
	if f.Tool != "" {
		p.Tool = pgtype.Text{String: f.Tool, Valid: true}
	}
	if f.Mark != nil {
		p.Mark = pgtype.Int4{Int32: int32(*f.Mark), Valid: true}
	}
	if f.CreateTimeStart != nil {
		p.CreatedFrom = pgtype.Timestamptz{Time: *f.CreateTimeStart, Valid: true}
	}
	if f.CreateTimeEnd != nil {
		p.CreatedTo = pgtype.Timestamptz{Time: *f.CreateTimeEnd, Valid: true}
	}

	return p
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// LookupDefectsByKeys fetches the task's defects for keys. Keys with no stored
// defect have no entry in the result. Large key sets are split into chunks
// that are queried concurrently.
func (s *defectStore) LookupDefectsByKeys(ctx context.Context, taskID int64, keys []string) (map[string]*defect.Defect, error) {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.Int64("task_id", taskID),
		attribute.Int("num_keys", len(keys)),
	)

	found := make(map[string]*defect.Defect, len(keys))
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.lookup_defects_by_keys", dbAttrs, func(ctx context.Context) error {
		if len(keys) == 0 {
			return nil
		}

		chunks := chunkKeys(keys, lookupChunkSize)
		results := make([][]db.GetDefectsByKeysRow, len(chunks))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(lookupConcurrency)
		for i, chunk := range chunks {
			g.Go(func() error {
				rows, err := s.q.GetDefectsByKeys(gctx, db.GetDefectsByKeysParams{
					TaskID:  taskID,
					Column2: chunk,
				})
				if err != nil {
					return fmt.Errorf("GetDefectsByKeys query error: %w", err)
				}
				results[i] = rows
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, rows := range results {
			for _, row := range rows {
				found[row.DefectKey] = defect.ReconstructDefect(snapshotFromRow(row))
			}
		}
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.Int("num_chunks", len(chunks)),
			attribute.Int("num_found", len(found)),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return found, nil
}

func chunkKeys(keys []string, size int) [][]string {
	chunks := make([][]string, 0, (len(keys)+size-1)/size)
	for start := 0; start < len(keys); start += size {
		end := min(start+size, len(keys))
		chunks = append(chunks, keys[start:end])
	}
	return chunks
}

// UpdateDefects writes the mutable state of every defect in one transaction.
// If any defect no longer exists nothing is written and ErrDefectNotFound is
// returned.
func (s *defectStore) UpdateDefects(ctx context.Context, defects []*defect.Defect) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.Int("num_defects", len(defects)),
	)

	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.update_defects", dbAttrs, func(ctx context.Context) error {
		if len(defects) == 0 {
			return nil
		}

		ctx, cancel := context.WithTimeout(ctx, updateTimeout)
		defer cancel()

		tx, err := s.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction error: %w", err)
		}
		defer tx.Rollback(ctx)

		qtx := s.q.WithTx(tx)
		for _, d := range defects {
			snap := d.Snapshot()
			rowsAffected, err := qtx.UpdateDefect(ctx, db.UpdateDefectParams{
				TaskID:           snap.TaskID,
				DefectKey:        snap.Key,
				Authors:          nonNil(snap.Authors),
				Status:           snap.Status.Int32(),
				Mark:             int32(snap.Mark),
				IgnoreReasonType: int32(snap.IgnoreReasonType),
				IgnoreReason:     snap.IgnoreReason,
				IgnoreAuthor:     snap.IgnoreAuthor,
				IgnoreTime:       timestamptz(snap.IgnoreTime),
				UpdatedAt:        pgtype.Timestamptz{Time: snap.UpdatedAt, Valid: true},
			})
			if err != nil {
				return fmt.Errorf("UpdateDefect query error: %w", err)
			}
			if rowsAffected == 0 {
				trace.SpanFromContext(ctx).SetAttributes(attribute.String("missing_defect_key", snap.Key))
				return fmt.Errorf("%w: task %d key %s", defect.ErrDefectNotFound, snap.TaskID, snap.Key)
			}
		}

		return tx.Commit(ctx)
	})
}

func snapshotFromRow(row db.GetDefectsByKeysRow) defect.Snapshot {
	return defect.Snapshot{
		Key:              row.DefectKey,
		TaskID:           row.TaskID,
		ToolName:         row.ToolName,
		Checker:          row.Checker,
		FilePath:         row.FilePath,
		Line:             row.LineNum,
		Severity:         row.Severity,
		Authors:          row.Authors,
		Status:           defect.Status(row.Status),
		Mark:             defect.Mark(row.Mark),
		IgnoreReasonType: defect.IgnoreReasonType(row.IgnoreReasonType),
		IgnoreReason:     row.IgnoreReason,
		IgnoreAuthor:     row.IgnoreAuthor,
		IgnoreTime:       row.IgnoreTime.Time,
		CreatedAt:        row.CreatedAt.Time,
		UpdatedAt:        row.UpdatedAt.Time,
	}
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
