package repository

import (
	"context"
	"errors"
	"fmt"

	"TradeOrdu/internal/domain/models"
	domrepo "TradeOrdu/internal/domain/repository"
	"TradeOrdu/pkg/cache"
)

// RedisStateStore keeps feedback documents under state:{name} without
// expiry.
type RedisStateStore struct {
	cache cache.Service
}

func NewRedisStateStore(c cache.Service) *RedisStateStore {
	return &RedisStateStore{cache: c}
}

func stateKey(name string) string { return cache.GenerateKeyWithParams("state", name) }

func (s *RedisStateStore) Load(ctx context.Context, name string, dest any) error {
	err := s.cache.Get(ctx, stateKey(name), dest)
	if errors.Is(err, cache.ErrCacheMiss) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}
	return nil
}

func (s *RedisStateStore) Save(ctx context.Context, name string, v any) error {
	if err := s.cache.Set(ctx, stateKey(name), v, 0); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

var _ domrepo.StateStore = (*RedisStateStore)(nil)
