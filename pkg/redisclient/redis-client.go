package redisclient

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
}

func NewRedisClient(cfg *Config) (*redis.Client, error) {
	r := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	})

	if err := r.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return r, nil
}
