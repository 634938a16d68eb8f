package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ad/go-rescue-academy/internal/models"
)

type pendingPayload struct {
	Patch   *models.ProgressPatch `json:"patch,omitempty"`
	Attempt *models.Attempt       `json:"attempt,omitempty"`
}

// PendingWriteRepository parks best-effort progress writes that failed so
// they can be replayed later.
type PendingWriteRepository struct {
	queue *DBQueue
}

func NewPendingWriteRepository(queue *DBQueue) *PendingWriteRepository {
	return &PendingWriteRepository{queue: queue}
}

func (r *PendingWriteRepository) Park(ctx context.Context, w models.PendingWrite) (int64, error) {
	payload, err := json.Marshal(pendingPayload{Patch: w.Patch, Attempt: w.Attempt})
	if err != nil {
		return 0, fmt.Errorf("failed to encode pending write: %w", err)
	}

	return Execute(ctx, r.queue, func(ctx context.Context, db *sql.DB) (int64, error) {
		res, err := db.ExecContext(ctx, `
			INSERT INTO pending_writes (user_id, module_id, kind, seq, payload, tries)
			VALUES (?, ?, ?, ?, ?, ?)
		`, w.UserID, w.ModuleID, w.Kind, w.Seq, string(payload), w.Tries)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	})
}

// ListPending returns parked writes in issue order; userID 0 lists every learner.
func (r *PendingWriteRepository) ListPending(ctx context.Context, userID int64) ([]models.PendingWrite, error) {
	return Execute(ctx, r.queue, func(ctx context.Context, db *sql.DB) ([]models.PendingWrite, error) {
		rows, err := db.QueryContext(ctx, `
			SELECT id, user_id, module_id, kind, seq, payload, tries, created_at
			FROM pending_writes
			WHERE ? = 0 OR user_id = ?
			ORDER BY seq, id
		`, userID, userID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var writes []models.PendingWrite
		for rows.Next() {
			var w models.PendingWrite
			var payload string
			if err := rows.Scan(&w.ID, &w.UserID, &w.ModuleID, &w.Kind, &w.Seq, &payload, &w.Tries, &w.CreatedAt); err != nil {
				return nil, err
			}
			var p pendingPayload
			if err := json.Unmarshal([]byte(payload), &p); err != nil {
				return nil, fmt.Errorf("failed to decode pending write %d: %w", w.ID, err)
			}
			w.Patch = p.Patch
			w.Attempt = p.Attempt
			writes = append(writes, w)
		}
		return writes, rows.Err()
	})
}

func (r *PendingWriteRepository) Delete(ctx context.Context, id int64) error {
	_, err := Execute(ctx, r.queue, func(ctx context.Context, db *sql.DB) (struct{}, error) {
		_, err := db.ExecContext(ctx, `DELETE FROM pending_writes WHERE id = ?`, id)
		return struct{}{}, err
	})
	return err
}

func (r *PendingWriteRepository) MarkFailed(ctx context.Context, id int64) error {
	_, err := Execute(ctx, r.queue, func(ctx context.Context, db *sql.DB) (struct{}, error) {
		_, err := db.ExecContext(ctx, `UPDATE pending_writes SET tries = tries + 1 WHERE id = ?`, id)
		return struct{}{}, err
	})
	return err
}
