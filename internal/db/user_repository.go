package db

import (
	"context"
	"database/sql"

	"github.com/ad/go-rescue-academy/internal/models"
)

type UserRepository struct {
	queue *DBQueue
}

func NewUserRepository(queue *DBQueue) *UserRepository {
	return &UserRepository{queue: queue}
}

// CreateOrUpdate registers a learner or refreshes their names and last-seen time.
func (r *UserRepository) CreateOrUpdate(ctx context.Context, user *models.User) error {
	_, err := Execute(ctx, r.queue, func(ctx context.Context, db *sql.DB) (struct{}, error) {
		_, err := db.ExecContext(ctx, `
			INSERT INTO users (id, first_name, last_name, username)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				first_name = excluded.first_name,
				last_name = excluded.last_name,
				username = excluded.username,
				last_seen_at = CURRENT_TIMESTAMP
		`, user.ID, user.FirstName, user.LastName, user.Username)
		return struct{}{}, err
	})
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return Execute(ctx, r.queue, func(ctx context.Context, db *sql.DB) (*models.User, error) {
		row := db.QueryRowContext(ctx, `
			SELECT id, first_name, last_name, username, created_at, last_seen_at
			FROM users WHERE id = ?
		`, id)

		var user models.User
		var firstName, lastName, username sql.NullString
		err := row.Scan(&user.ID, &firstName, &lastName, &username, &user.CreatedAt, &user.LastSeenAt)
		if err != nil {
			return nil, err
		}
		user.FirstName = firstName.String
		user.LastName = lastName.String
		user.Username = username.String
		return &user, nil
	})
}
