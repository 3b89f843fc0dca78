package ports

import (
	"context"
	"signing-web-server/internal/model"
)

// UserRepository : SQL слой владельцев документов
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Exists(ctx context.Context, userUUID string) (bool, error)
}

// AuthenticationService : регистрация и аутентификация владельцев
type AuthenticationService interface {
	Register(ctx context.Context, adminToken string, email string, password string) (*model.User, error)
	Login(ctx context.Context, email string, password string, userAgent string, ipAddress string) (*model.TokensPair, error)
	RefreshToken(ctx context.Context, userAgent string, ipAddress string, accessToken string, refreshToken string) (*model.TokensPair, error)
	Logout(ctx context.Context, refreshTokenUUID string) error
}
