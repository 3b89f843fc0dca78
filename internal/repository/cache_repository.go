package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"signing-web-server/config"
	"signing-web-server/internal/model"
	"signing-web-server/internal/util"
	"time"

	"github.com/redis/go-redis/v9"
)

type CacheRepository struct {
	client *config.RedisClient
	ttl    time.Duration
}

func NewCacheRepository(rdb *config.RedisClient, ttl time.Duration) *CacheRepository {
	return &CacheRepository{rdb, ttl}
}

func (r *CacheRepository) SetSession(ctx context.Context, accessToken string, session *model.SigningSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return util.LogError("ошибка сериализации сессии подписания", err)
	}

	cmd := r.client.Client.Set(ctx, r.key(accessToken), data, r.ttl)
	if err = cmd.Err(); err != nil {
		return util.LogError("ошибка сохранения в Redis", err)
	}
	if cmd.Val() != "OK" {
		return fmt.Errorf("неожиданный ответ Redis: %s", cmd.Val())
	}

	return nil
}

func (r *CacheRepository) GetSession(ctx context.Context, accessToken string) (*model.SigningSession, error) {
	val, err := r.client.Client.Get(ctx, r.key(accessToken)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil // нет в кэше
	} else if err != nil {
		return nil, util.LogError("ошибка получения сессии из Redis", err)
	}

	var session model.SigningSession
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, util.LogError("ошибка десериализации сессии из кэша", err)
	}
	return &session, nil
}

func (r *CacheRepository) DeleteSession(ctx context.Context, accessToken string) error {
	if err := r.client.Client.Del(ctx, r.key(accessToken)).Err(); err != nil {
		return util.LogError("ошибка удаления сессии из Redis", err)
	}
	return nil
}

func (r *CacheRepository) key(accessToken string) string {
	return "signing-session:" + accessToken
}
