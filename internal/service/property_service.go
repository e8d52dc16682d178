package service

import (
	"context"
	"errors"
	"log/slog"

	"akinmueble/internal/middleware"
	"akinmueble/internal/models"
	"akinmueble/internal/repository"
	"akinmueble/internal/search"
)

// ErrSearchDisabled is returned by Search when no index is configured.
var ErrSearchDisabled = errors.New("property search is not configured")

// Indexer keeps a search index of properties.
type Indexer interface {
	Upsert(ctx context.Context, properties ...models.Property) error
	Delete(ctx context.Context, id uint) error
	Search(ctx context.Context, q search.Query) (*search.Result, error)
}

// PropertyService is property CRUD that keeps the search index in step.
// Index failures are logged and never fail the write.
type PropertyService struct {
	repository.CRUDRepository[models.Property]
	index Indexer
}

// NewPropertyService returns a new PropertyService. index may be nil.
func NewPropertyService(store *repository.Store, index Indexer) *PropertyService {
	return &PropertyService{CRUDRepository: store.Properties, index: index}
}

func (s *PropertyService) Create(ctx context.Context, p *models.Property) error {
	if err := s.CRUDRepository.Create(ctx, p); err != nil {
		return err
	}
	s.upsert(ctx, *p)
	return nil
}

func (s *PropertyService) Update(ctx context.Context, id uint, fields map[string]any) (*models.Property, error) {
	p, err := s.CRUDRepository.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	s.upsert(ctx, *p)
	return p, nil
}

func (s *PropertyService) Replace(ctx context.Context, id uint, p *models.Property, keep ...string) error {
	if err := s.CRUDRepository.Replace(ctx, id, p, keep...); err != nil {
		return err
	}
	if stored, err := s.CRUDRepository.GetByID(ctx, id); err == nil {
		s.upsert(ctx, *stored)
	}
	return nil
}

func (s *PropertyService) Delete(ctx context.Context, id uint) error {
	if err := s.CRUDRepository.Delete(ctx, id); err != nil {
		return err
	}
	if s.index == nil {
		return nil
	}
	if err := s.index.Delete(ctx, id); err != nil {
		middleware.Logger.WarnContext(ctx, "search index delete failed",
			slog.Uint64("property_id", uint64(id)),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// Search queries the index and loads the matching rows in rank order.
func (s *PropertyService) Search(ctx context.Context, q search.Query) ([]models.Property, int64, error) {
	if s.index == nil {
		return nil, 0, ErrSearchDisabled
	}
	res, err := s.index.Search(ctx, q)
	if err != nil {
		return nil, 0, models.NewUpstreamError("meilisearch", err)
	}
	rows, err := s.CRUDRepository.GetByIDs(ctx, res.IDs)
	if err != nil {
		return nil, 0, err
	}

	byID := make(map[uint]models.Property, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}
	ordered := make([]models.Property, 0, len(res.IDs))
	for _, id := range res.IDs {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, res.Total, nil
}

// Reindex pushes every property to the index and returns how many were sent.
func (s *PropertyService) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, ErrSearchDisabled
	}
	total := 0
	err := s.CRUDRepository.FindInBatches(ctx, 200, func(batch []models.Property) error {
		if err := s.index.Upsert(ctx, batch...); err != nil {
			return err
		}
		total += len(batch)
		return nil
	})
	return total, err
}

func (s *PropertyService) upsert(ctx context.Context, p models.Property) {
	if s.index == nil {
		return
	}
	if err := s.index.Upsert(ctx, p); err != nil {
		middleware.Logger.WarnContext(ctx, "search index upsert failed",
			slog.Uint64("property_id", uint64(p.ID)),
			slog.String("error", err.Error()),
		)
	}
}
