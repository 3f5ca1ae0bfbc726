package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/claude/formcoach/internal/models"
)

// HistoryFilter narrows QueryAnalysisLogs. Zero fields match everything.
type HistoryFilter struct {
	Kind     models.AnalysisKind
	Exercise models.ExerciseType
	Limit    int
}

// InsertAnalysisLog creates a journal entry and returns its ID.
func (db *DB) InsertAnalysisLog(ctx context.Context, entry models.AnalysisLog) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO analysis_logs (source, kind, exercise, mode, status, feedback_count,
		 original, processed, duration_ms, error_message)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 RETURNING id`,
		entry.Source, string(entry.Kind), string(entry.Exercise), entry.Mode, entry.Status, entry.FeedbackCount,
		entry.Original, entry.Processed, entry.DurationMs, entry.ErrorMessage,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting analysis log: %w", err)
	}
	return id, nil
}

// QueryAnalysisLogs returns the most recent journal entries, newest first.
func (db *DB) QueryAnalysisLogs(ctx context.Context, f HistoryFilter) ([]models.AnalysisLog, error) {
	query, args := historyQuery(f)
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying analysis logs: %w", err)
	}
	defer rows.Close()

	result := []models.AnalysisLog{}
	for rows.Next() {
		var l models.AnalysisLog
		var kind, exercise string
		if err := rows.Scan(&l.ID, &l.CreatedAt, &l.Source, &kind, &exercise, &l.Mode, &l.Status,
			&l.FeedbackCount, &l.Original, &l.Processed, &l.DurationMs, &l.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scanning analysis log: %w", err)
		}
		l.Kind = models.AnalysisKind(kind)
		l.Exercise = models.ExerciseType(exercise)
		result = append(result, l)
	}
	return result, rows.Err()
}

func historyQuery(f HistoryFilter) (string, []any) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var where []string
	var args []any
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if f.Exercise != "" {
		args = append(args, string(f.Exercise))
		where = append(where, fmt.Sprintf("exercise = $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT id, created_at, source, kind, exercise, mode, status, feedback_count,
		 original, processed, duration_ms, error_message
		 FROM analysis_logs`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	args = append(args, limit)
	fmt.Fprintf(&b, " ORDER BY created_at DESC LIMIT $%d", len(args))
	return b.String(), args
}
