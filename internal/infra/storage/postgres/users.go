package postgres

import (
	"context"
	"fmt"

	"agentchat/internal/domain/chat"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UserStore implements chat.UserStore on the user_data table.
type UserStore struct {
	pool *pgxpool.Pool
}

var _ chat.UserStore = (*UserStore)(nil)

// NewUserStore creates a user store.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) Get(ctx context.Context, uid string) (chat.UserData, error) {
	var user chat.UserData
	var settings []byte
	err := s.pool.QueryRow(ctx,
		`SELECT uid, user_role, user_settings FROM `+usersTable+` WHERE uid = $1`, uid,
	).Scan(&user.UID, &user.Role, &settings)
	if err != nil {
		return chat.UserData{}, mapNoRows(err, "user "+uid)
	}
	if len(settings) > 0 {
		user.Settings = settings
	}
	return user, nil
}

// Upsert stores or replaces a user_data row.
func (s *UserStore) Upsert(ctx context.Context, user chat.UserData) error {
	var settings any
	if len(user.Settings) > 0 {
		settings = []byte(user.Settings)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+usersTable+` (uid, user_role, user_settings)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (uid) DO UPDATE SET user_role = EXCLUDED.user_role, user_settings = EXCLUDED.user_settings`,
		user.UID, user.Role, settings,
	)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", user.UID, err)
	}
	return nil
}
