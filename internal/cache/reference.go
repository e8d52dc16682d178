package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"akinmueble/internal/middleware"
	"akinmueble/internal/repository"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// ReferenceTTL bounds how long a cached reference list may be stale.
const ReferenceTTL = 10 * time.Minute

// ReferenceKey is the cache key of one page of a reference table.
func ReferenceKey(table string, limit, offset int) string {
	return fmt.Sprintf("ref:%s:%d:%d", table, limit, offset)
}

// Aside returns the cached value at key into dest, or calls fetch to fill
// dest and caches the result. Redis errors fall through to fetch.
func Aside(ctx context.Context, rdb *redis.Client, key string, dest any, ttl time.Duration, fetch func() error) error {
	if rdb == nil {
		return fetch()
	}

	raw, err := rdb.Get(ctx, key).Bytes()
	if err == nil {
		if json.Unmarshal(raw, dest) == nil {
			return nil
		}
	} else if !errors.Is(err, redis.Nil) {
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	if err := fetch(); err != nil {
		return err
	}
	payload, err := json.Marshal(dest)
	if err != nil {
		return nil
	}
	if err := rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}

// InvalidatePrefix deletes every key starting with prefix.
func InvalidatePrefix(ctx context.Context, rdb *redis.Client, prefix string) {
	if rdb == nil {
		return
	}
	iter := rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache scan failed", slog.String("prefix", prefix), slog.String("error", err.Error()))
		return
	}
	if len(keys) > 0 {
		rdb.Del(ctx, keys...)
	}
}

type listPage[T any] struct {
	Records []T   `json:"records"`
	Total   int64 `json:"total"`
}

// referenceRepository caches unfiltered list pages of a small reference
// table and drops them on any write.
type referenceRepository[T any] struct {
	repository.CRUDRepository[T]
	rdb   *redis.Client
	table string
}

// NewReferenceRepository wraps repo with the reference-list cache. A nil rdb
// disables caching.
func NewReferenceRepository[T any](repo repository.CRUDRepository[T], rdb *redis.Client, table string) repository.CRUDRepository[T] {
	return &referenceRepository[T]{CRUDRepository: repo, rdb: rdb, table: table}
}

func (r *referenceRepository[T]) List(ctx context.Context, opts repository.ListOptions) ([]T, int64, error) {
	if len(opts.Where) > 0 || opts.Order != "" {
		return r.CRUDRepository.List(ctx, opts)
	}
	var page listPage[T]
	err := Aside(ctx, r.rdb, ReferenceKey(r.table, opts.Limit, opts.Offset), &page, ReferenceTTL, func() error {
		records, total, err := r.CRUDRepository.List(ctx, opts)
		if err != nil {
			return err
		}
		page = listPage[T]{Records: records, Total: total}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return page.Records, page.Total, nil
}

func (r *referenceRepository[T]) Create(ctx context.Context, entity *T) error {
	if err := r.CRUDRepository.Create(ctx, entity); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *referenceRepository[T]) Update(ctx context.Context, id uint, fields map[string]any) (*T, error) {
	entity, err := r.CRUDRepository.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx)
	return entity, nil
}

func (r *referenceRepository[T]) Replace(ctx context.Context, id uint, entity *T, keep ...string) error {
	if err := r.CRUDRepository.Replace(ctx, id, entity, keep...); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *referenceRepository[T]) Delete(ctx context.Context, id uint) error {
	if err := r.CRUDRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *referenceRepository[T]) invalidate(ctx context.Context) {
	InvalidatePrefix(ctx, r.rdb, fmt.Sprintf("ref:%s:", r.table))
}
