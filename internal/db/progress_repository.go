package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ad/go-rescue-academy/internal/models"
)

var ErrProgressNotFound = models.ErrProgressNotFound

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// ProgressRepository is the SQLite progress store. Aggregate fields are
// always recomputed here from the submitted intents, never taken from the caller.
type ProgressRepository struct {
	queue *DBQueue
}

func NewProgressRepository(queue *DBQueue) *ProgressRepository {
	return &ProgressRepository{queue: queue}
}

const progressColumns = `user_id, module_id, status, completion_percentage, attempts_count,
	best_score, latest_score, time_spent_minutes, last_attempt_at, updated_at`

func (r *ProgressRepository) GetProgress(ctx context.Context, userID int64, moduleID string) (models.ProgressRecord, error) {
	return Execute(ctx, r.queue, func(ctx context.Context, db *sql.DB) (models.ProgressRecord, error) {
		return loadProgress(ctx, db, userID, moduleID)
	})
}

func (r *ProgressRepository) ListProgress(ctx context.Context, userID int64) ([]models.ProgressRecord, error) {
	return Execute(ctx, r.queue, func(ctx context.Context, db *sql.DB) ([]models.ProgressRecord, error) {
		rows, err := db.QueryContext(ctx, `SELECT `+progressColumns+`
			FROM progress_records WHERE user_id = ? ORDER BY module_id`, userID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var records []models.ProgressRecord
		for rows.Next() {
			record, err := scanProgress(rows)
			if err != nil {
				return nil, err
			}
			records = append(records, record)
		}
		return records, rows.Err()
	})
}

func (r *ProgressRepository) UpsertProgress(ctx context.Context, userID int64, moduleID string, patch models.ProgressPatch) (models.ProgressRecord, error) {
	return Execute(ctx, r.queue, func(ctx context.Context, db *sql.DB) (models.ProgressRecord, error) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return models.ProgressRecord{}, err
		}
		defer tx.Rollback()

		record, err := loadOrNewProgress(ctx, tx, userID, moduleID)
		if err != nil {
			return models.ProgressRecord{}, err
		}

		if patch.ContentRead {
			record = record.WithContentRead()
		}

		if mark := patch.Checklist; mark != nil {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO checklist_marks (user_id, module_id, item_id, checked, seq)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(user_id, module_id, item_id) DO UPDATE SET
					checked = excluded.checked,
					seq = excluded.seq
				WHERE excluded.seq >= checklist_marks.seq
			`, userID, moduleID, mark.ItemID, mark.Checked, patch.Seq)
			if err != nil {
				return models.ProgressRecord{}, fmt.Errorf("failed to save checklist mark: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				log.Printf("[DB] Dropped stale checklist mark user=%d module=%s item=%s seq=%d", userID, moduleID, mark.ItemID, patch.Seq)
			}

			var checked int
			err = tx.QueryRowContext(ctx, `
				SELECT COUNT(*) FROM checklist_marks
				WHERE user_id = ? AND module_id = ? AND checked = TRUE
			`, userID, moduleID).Scan(&checked)
			if err != nil {
				return models.ProgressRecord{}, err
			}
			record = record.WithChecklist(checked, mark.Total)
		}

		record, err = saveProgress(ctx, tx, record)
		if err != nil {
			return models.ProgressRecord{}, err
		}
		return record, tx.Commit()
	})
}

// AppendAttempt is idempotent on the attempt id: replaying a stored attempt
// returns the current record without folding it twice.
func (r *ProgressRepository) AppendAttempt(ctx context.Context, userID int64, moduleID string, attempt models.Attempt) (models.ProgressRecord, error) {
	return Execute(ctx, r.queue, func(ctx context.Context, db *sql.DB) (models.ProgressRecord, error) {
		answers, err := json.Marshal(attempt.Answers)
		if err != nil {
			return models.ProgressRecord{}, fmt.Errorf("failed to encode answers: %w", err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return models.ProgressRecord{}, err
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO attempts (
				id, user_id, module_id, started_at, submitted_at, answers,
				score_percentage, correct_count, total_questions, passed, time_spent_minutes
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, attempt.ID, userID, moduleID, attempt.StartedAt.UTC(), attempt.SubmittedAt.UTC(), string(answers),
			attempt.ScorePercentage, attempt.CorrectCount, attempt.TotalQuestions, attempt.Passed, attempt.TimeSpentMinutes)
		if err != nil {
			return models.ProgressRecord{}, fmt.Errorf("failed to insert attempt: %w", err)
		}

		record, err := loadOrNewProgress(ctx, tx, userID, moduleID)
		if err != nil {
			return models.ProgressRecord{}, err
		}

		if n, _ := res.RowsAffected(); n == 0 {
			log.Printf("[DB] Attempt %s already recorded for user=%d module=%s", attempt.ID, userID, moduleID)
			return record, nil
		}

		record, err = saveProgress(ctx, tx, record.WithAttempt(attempt))
		if err != nil {
			return models.ProgressRecord{}, err
		}
		return record, tx.Commit()
	})
}

func (r *ProgressRepository) ListAttempts(ctx context.Context, userID int64, moduleID string) ([]models.Attempt, error) {
	return Execute(ctx, r.queue, func(ctx context.Context, db *sql.DB) ([]models.Attempt, error) {
		rows, err := db.QueryContext(ctx, `
			SELECT id, user_id, module_id, started_at, submitted_at, answers,
				score_percentage, correct_count, total_questions, passed, time_spent_minutes
			FROM attempts WHERE user_id = ? AND module_id = ?
			ORDER BY submitted_at
		`, userID, moduleID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var attempts []models.Attempt
		for rows.Next() {
			var a models.Attempt
			var answers string
			if err := rows.Scan(&a.ID, &a.UserID, &a.ModuleID, &a.StartedAt, &a.SubmittedAt, &answers,
				&a.ScorePercentage, &a.CorrectCount, &a.TotalQuestions, &a.Passed, &a.TimeSpentMinutes); err != nil {
				return nil, err
			}
			if err := json.Unmarshal([]byte(answers), &a.Answers); err != nil {
				return nil, fmt.Errorf("failed to decode answers of attempt %s: %w", a.ID, err)
			}
			attempts = append(attempts, a)
		}
		return attempts, rows.Err()
	})
}

func (r *ProgressRepository) ListChecklistMarks(ctx context.Context, userID int64, moduleID string) (map[string]bool, error) {
	return Execute(ctx, r.queue, func(ctx context.Context, db *sql.DB) (map[string]bool, error) {
		rows, err := db.QueryContext(ctx, `
			SELECT item_id, checked FROM checklist_marks
			WHERE user_id = ? AND module_id = ?
		`, userID, moduleID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		marks := make(map[string]bool)
		for rows.Next() {
			var itemID string
			var checked bool
			if err := rows.Scan(&itemID, &checked); err != nil {
				return nil, err
			}
			marks[itemID] = checked
		}
		return marks, rows.Err()
	})
}

func loadProgress(ctx context.Context, q querier, userID int64, moduleID string) (models.ProgressRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+progressColumns+`
		FROM progress_records WHERE user_id = ? AND module_id = ?`, userID, moduleID)
	record, err := scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProgressRecord{}, fmt.Errorf("%w: user=%d module=%s", ErrProgressNotFound, userID, moduleID)
	}
	return record, err
}

func loadOrNewProgress(ctx context.Context, q querier, userID int64, moduleID string) (models.ProgressRecord, error) {
	record, err := loadProgress(ctx, q, userID, moduleID)
	if errors.Is(err, ErrProgressNotFound) {
		return models.NewProgressRecord(userID, moduleID), nil
	}
	return record, err
}

func saveProgress(ctx context.Context, q querier, record models.ProgressRecord) (models.ProgressRecord, error) {
	record.UpdatedAt = time.Now().UTC()
	var lastAttemptAt interface{}
	if record.LastAttemptAt != nil {
		lastAttemptAt = record.LastAttemptAt.UTC()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO progress_records (`+progressColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, module_id) DO UPDATE SET
			status = excluded.status,
			completion_percentage = excluded.completion_percentage,
			attempts_count = excluded.attempts_count,
			best_score = excluded.best_score,
			latest_score = excluded.latest_score,
			time_spent_minutes = excluded.time_spent_minutes,
			last_attempt_at = excluded.last_attempt_at,
			updated_at = excluded.updated_at
	`, record.UserID, record.ModuleID, record.Status, record.CompletionPercentage, record.AttemptsCount,
		record.BestScore, record.LatestScore, record.TimeSpentMinutes, lastAttemptAt, record.UpdatedAt)
	if err != nil {
		return models.ProgressRecord{}, fmt.Errorf("failed to save progress: %w", err)
	}
	return record, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProgress(s scanner) (models.ProgressRecord, error) {
	var record models.ProgressRecord
	var lastAttemptAt, updatedAt sql.NullTime
	err := s.Scan(&record.UserID, &record.ModuleID, &record.Status, &record.CompletionPercentage,
		&record.AttemptsCount, &record.BestScore, &record.LatestScore, &record.TimeSpentMinutes,
		&lastAttemptAt, &updatedAt)
	if err != nil {
		return models.ProgressRecord{}, err
	}
	if lastAttemptAt.Valid {
		t := lastAttemptAt.Time
		record.LastAttemptAt = &t
	}
	if updatedAt.Valid {
		record.UpdatedAt = updatedAt.Time
	}
	return record, nil
}
