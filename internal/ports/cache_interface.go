package ports

import (
	"context"
	"signing-web-server/internal/model"
)

// CacheRepository : Redis слой, кэширует сессию подписания по токену доступа
type CacheRepository interface {
	GetSession(ctx context.Context, accessToken string) (*model.SigningSession, error)
	SetSession(ctx context.Context, accessToken string, session *model.SigningSession) error
	DeleteSession(ctx context.Context, accessToken string) error
}
