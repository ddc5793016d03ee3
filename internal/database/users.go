package database

import (
	"context"
	"fmt"

	"carshare/internal/domain"
	"carshare/internal/models"
)

// UpsertUsers inserts or refreshes users in one transaction. created_at of
// existing rows is preserved.
func (db *DB) UpsertUsers(ctx context.Context, users []models.User) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT INTO users (id, name, email, role, telegram_chat_id, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				email = excluded.email,
				role = excluded.role,
				telegram_chat_id = excluded.telegram_chat_id`
	now := db.now().UTC()
	for i := range users {
		u := &users[i]
		if _, err := tx.ExecContext(ctx, query, u.ID, u.Name, u.Email, u.Role, u.TelegramChatID, now); err != nil {
			return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
		}
	}

	return tx.Commit()
}

func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, name, email, role, telegram_chat_id, created_at FROM users WHERE id = ?`
	var u models.User
	err := db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.TelegramChatID, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound)
	}
	return &u, nil
}
