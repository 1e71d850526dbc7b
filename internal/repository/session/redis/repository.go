package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vidroom/server/internal/repository/session"
)

const sessionPrefix = "session"

// Bindings expire on their own as a safety net; the service unbinds eagerly
// on disconnect.
const sessionExpire = 24 * time.Hour

type repo struct {
	rc *redis.Client
}

func NewRepo(rc *redis.Client) *repo {
	return &repo{rc: rc}
}

func (r *repo) getSessionKey(sessionId string) string {
	return sessionPrefix + ":" + sessionId
}

func (r *repo) Bind(ctx context.Context, sessionId, connectionId string) error {
	return r.rc.Set(ctx, r.getSessionKey(sessionId), connectionId, sessionExpire).Err()
}

func (r *repo) Resolve(ctx context.Context, sessionId string) (string, error) {
	connectionId, err := r.rc.Get(ctx, r.getSessionKey(sessionId)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", session.ErrSessionNotFound
		}

		return "", err
	}

	return connectionId, nil
}

func (r *repo) Unbind(ctx context.Context, sessionId string) error {
	return r.rc.Del(ctx, r.getSessionKey(sessionId)).Err()
}
