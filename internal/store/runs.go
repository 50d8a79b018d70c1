package store

import (
	"context"
	"fmt"
	"time"
)

// 运行状态
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// RunLog 流水线阶段运行记录
type RunLog struct {
	ID        int64         `json:"id"`
	SessionID string        `json:"sessionId"`
	DatasetID string        `json:"datasetId,omitempty"`
	Stage     string        `json:"stage"`
	Status    string        `json:"status"`
	ErrorKind string        `json:"errorKind,omitempty"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"createdAt"`
}

// CreateRun 写入运行记录，返回记录 id
func (s *Store) CreateRun(ctx context.Context, run RunLog) (int64, error) {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (session_id, dataset_id, stage, status, error_kind, message, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.SessionID, run.DatasetID, run.Stage, run.Status, run.ErrorKind, run.Message,
		run.Duration.Milliseconds(), run.CreatedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to create run log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run log id: %w", err)
	}
	return id, nil
}

// ListRuns 最近的运行记录（新→旧），sessionID 为空时返回全部会话
func (s *Store) ListRuns(ctx context.Context, sessionID string, limit int) ([]RunLog, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, session_id, dataset_id, stage, status, error_kind, message, duration_ms, created_at
		FROM runs`
	args := []interface{}{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	defer rows.Close()

	var out []RunLog
	for rows.Next() {
		var r RunLog
		var durationMS, created int64
		if err := rows.Scan(&r.ID, &r.SessionID, &r.DatasetID, &r.Stage, &r.Status, &r.ErrorKind, &r.Message, &durationMS, &created); err != nil {
			return nil, fmt.Errorf("failed to scan run log: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
