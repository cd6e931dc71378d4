package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss возвращается, когда ключа нет в кэше.
var ErrCacheMiss = errors.New("cache miss")

// Cache — узкий интерфейс кэша для схемы cache-aside. Кэш — оптимизация,
// а не источник истины: его ошибки логируются и глотаются вызывающим.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPrefix удаляет все ключи с данным префиксом (инвалидация list-кэшей).
	DeleteByPrefix(ctx context.Context, prefix string) error
}
