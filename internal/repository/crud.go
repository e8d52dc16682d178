// Package repository provides data access for the brokerage entities.
package repository

import (
	"context"
	"errors"

	"akinmueble/internal/models"

	"gorm.io/gorm"
)

// ListOptions narrows and pages a list query. Where keys are column names.
type ListOptions struct {
	Limit  int
	Offset int
	Order  string
	Where  map[string]any
}

// CRUDRepository is the data access every entity gets.
type CRUDRepository[T any] interface {
	Create(ctx context.Context, entity *T) error
	GetByID(ctx context.Context, id uint) (*T, error)
	GetByIDs(ctx context.Context, ids []uint) ([]T, error)
	List(ctx context.Context, opts ListOptions) ([]T, int64, error)
	Count(ctx context.Context, where map[string]any) (int64, error)
	Update(ctx context.Context, id uint, fields map[string]any) (*T, error)
	Replace(ctx context.Context, id uint, entity *T, keep ...string) error
	Delete(ctx context.Context, id uint) error
	FindInBatches(ctx context.Context, size int, fn func(batch []T) error) error
}

type crudRepository[T any] struct {
	db       *gorm.DB
	resource string
}

// NewCRUDRepository creates a CRUDRepository for T. resource names the entity
// in not-found errors.
func NewCRUDRepository[T any](db *gorm.DB, resource string) CRUDRepository[T] {
	return &crudRepository[T]{db: db, resource: resource}
}

func (r *crudRepository[T]) Create(ctx context.Context, entity *T) error {
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *crudRepository[T]) GetByID(ctx context.Context, id uint) (*T, error) {
	var entity T
	if err := r.db.WithContext(ctx).First(&entity, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError(r.resource, id)
		}
		return nil, models.NewInternalError(err)
	}
	return &entity, nil
}

func (r *crudRepository[T]) GetByIDs(ctx context.Context, ids []uint) ([]T, error) {
	var entities []T
	if len(ids) == 0 {
		return entities, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&entities).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return entities, nil
}

func (r *crudRepository[T]) List(ctx context.Context, opts ListOptions) ([]T, int64, error) {
	var (
		entities []T
		total    int64
	)
	query := r.db.WithContext(ctx).Model(new(T))
	if len(opts.Where) > 0 {
		query = query.Where(opts.Where)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	order := opts.Order
	if order == "" {
		order = "id ASC"
	}
	query = query.Order(order).Offset(opts.Offset)
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if err := query.Find(&entities).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return entities, total, nil
}

func (r *crudRepository[T]) Count(ctx context.Context, where map[string]any) (int64, error) {
	var total int64
	query := r.db.WithContext(ctx).Model(new(T))
	if len(where) > 0 {
		query = query.Where(where)
	}
	if err := query.Count(&total).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return total, nil
}

// Update applies a partial update and returns the stored row.
func (r *crudRepository[T]) Update(ctx context.Context, id uint, fields map[string]any) (*T, error) {
	entity, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := r.db.WithContext(ctx).Model(entity).Updates(fields).Error; err != nil {
			return nil, models.NewInternalError(err)
		}
	}
	return r.GetByID(ctx, id)
}

// Replace overwrites every column of the row with entity, except the
// columns named in keep, which retain their stored values.
func (r *crudRepository[T]) Replace(ctx context.Context, id uint, entity *T, keep ...string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	omit := append([]string{"id", "created_at"}, keep...)
	if err := r.db.WithContext(ctx).Model(entity).Where("id = ?", id).Select("*").Omit(omit...).Updates(entity).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *crudRepository[T]) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(new(T), id)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError(r.resource, id)
	}
	return nil
}

func (r *crudRepository[T]) FindInBatches(ctx context.Context, size int, fn func(batch []T) error) error {
	var batch []T
	result := r.db.WithContext(ctx).Order("id ASC").FindInBatches(&batch, size, func(_ *gorm.DB, _ int) error {
		return fn(batch)
	})
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	return nil
}
