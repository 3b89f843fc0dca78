package repository

import (
	"context"
	"signing-web-server/config"
	"signing-web-server/internal/model"
	"signing-web-server/internal/util"
)

type UserRepository struct {
	*config.Database
}

func NewUserRepository(database *config.Database) *UserRepository {
	return &UserRepository{database}
}

// Create : сохраняет нового владельца
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (uuid, email, password_hash, created_at)
		VALUES ($1, $2, $3, NOW())
	`
	_, err := r.DB.ExecContext(ctx, query, user.UUID, user.Email, user.PasswordHash)
	if err != nil {
		return util.LogError("[UserRepo] ошибка вставки данных в БД", err)
	}
	return nil
}

// FindByEmail : ищет владельца по email
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT uuid, email, password_hash, created_at FROM users WHERE email = $1`

	var user model.User
	if err := r.DB.GetContext(ctx, &user, query, email); err != nil {
		return nil, util.LogError("[UserRepo] не удалось найти пользователя по email", err)
	}
	return &user, nil
}

// Exists : проверка существования владельца
func (r *UserRepository) Exists(ctx context.Context, userUUID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE uuid = $1)`

	var exists bool
	if err := r.DB.GetContext(ctx, &exists, query, userUUID); err != nil {
		return false, util.LogError("[UserRepo] ошибка проверки пользователя", err)
	}
	return exists, nil
}
