package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"exam-app/internal/quiz"
)

var _ quiz.ResultRepository = (*SQLiteStore)(nil)

// SaveResult writes the exam and its items in one transaction. A session
// already on record is left untouched, so a retried submit cannot
// duplicate or overwrite history.
func (s *SQLiteStore) SaveResult(ctx context.Context, result quiz.ExamResult) error {
	if result.SessionID == "" {
		return errors.New("session id is required")
	}
	if result.SubmittedAt.IsZero() {
		result.SubmittedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	inserted, err := tx.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO exam_results (session_id, topic_path, score, total, reason, started_at_unix, submitted_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.SessionID,
		result.TopicPath,
		result.Score,
		result.Total,
		string(result.Reason),
		result.StartedAt.UnixNano(),
		result.SubmittedAt.UnixNano(),
	)
	if err != nil {
		return err
	}
	affected, err := inserted.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return tx.Commit()
	}

	for _, item := range result.Items {
		var choice sql.NullInt64
		if item.UserChoice != nil {
			choice = sql.NullInt64{Int64: int64(*item.UserChoice), Valid: true}
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO exam_result_items (session_id, position, question_id, source, user_choice, is_correct)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			result.SessionID,
			item.Position,
			item.QuestionID,
			item.Source,
			choice,
			boolToInt(item.IsCorrect),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListResults returns the most recent results first, optionally filtered by
// topic. Items are not loaded.
func (s *SQLiteStore) ListResults(ctx context.Context, topicPath string, limit int) ([]quiz.ExamResult, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT session_id, topic_path, score, total, reason, started_at_unix, submitted_at_unix
		 FROM exam_results`
	args := []interface{}{}
	if topicPath != "" {
		query += ` WHERE topic_path = ?`
		args = append(args, topicPath)
	}
	query += ` ORDER BY submitted_at_unix DESC, session_id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]quiz.ExamResult, 0)
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) GetResult(ctx context.Context, sessionID string) (quiz.ExamResult, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT session_id, topic_path, score, total, reason, started_at_unix, submitted_at_unix
		 FROM exam_results WHERE session_id = ?`,
		sessionID,
	)
	result, err := scanResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quiz.ExamResult{}, quiz.ErrResultNotFound
		}
		return quiz.ExamResult{}, err
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT position, question_id, source, user_choice, is_correct
		 FROM exam_result_items
		 WHERE session_id = ?
		 ORDER BY position ASC`,
		sessionID,
	)
	if err != nil {
		return quiz.ExamResult{}, err
	}
	defer rows.Close()

	result.Items = make([]quiz.ResultItem, 0, result.Total)
	for rows.Next() {
		var (
			item      quiz.ResultItem
			choice    sql.NullInt64
			isCorrect int
		)
		if err := rows.Scan(&item.Position, &item.QuestionID, &item.Source, &choice, &isCorrect); err != nil {
			return quiz.ExamResult{}, err
		}
		if choice.Valid {
			value := int(choice.Int64)
			item.UserChoice = &value
		}
		item.IsCorrect = isCorrect == 1
		result.Items = append(result.Items, item)
	}
	if err := rows.Err(); err != nil {
		return quiz.ExamResult{}, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResult(row rowScanner) (quiz.ExamResult, error) {
	var (
		result          quiz.ExamResult
		reason          string
		startedAtUnix   int64
		submittedAtUnix int64
	)
	if err := row.Scan(
		&result.SessionID,
		&result.TopicPath,
		&result.Score,
		&result.Total,
		&reason,
		&startedAtUnix,
		&submittedAtUnix,
	); err != nil {
		return quiz.ExamResult{}, err
	}
	result.Reason = quiz.SubmitReason(reason)
	result.StartedAt = time.Unix(0, startedAtUnix).UTC()
	result.SubmittedAt = time.Unix(0, submittedAtUnix).UTC()
	return result, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
