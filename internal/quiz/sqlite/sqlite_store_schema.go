package sqlite

import (
	"context"
)

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS exam_results (
			session_id TEXT PRIMARY KEY,
			topic_path TEXT NOT NULL,
			score INTEGER NOT NULL,
			total INTEGER NOT NULL,
			reason TEXT NOT NULL,
			started_at_unix INTEGER NOT NULL,
			submitted_at_unix INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS exam_result_items (
			session_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			question_id TEXT NOT NULL,
			source TEXT NOT NULL,
			-- NULL when the question was left unanswered.
			user_choice INTEGER,
			is_correct INTEGER NOT NULL,
			PRIMARY KEY (session_id, position),
			FOREIGN KEY (session_id) REFERENCES exam_results(session_id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_exam_results_submitted_at ON exam_results(submitted_at_unix DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_exam_results_topic ON exam_results(topic_path, submitted_at_unix DESC);`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
