package repository

import (
	"context"
	"errors"
	"time"

	"akinmueble/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestRepository adds the workflow queries on top of request CRUD.
type RequestRepository interface {
	CRUDRepository[models.Request]
	GetForUpdate(ctx context.Context, id uint) (*models.Request, error)
	Save(ctx context.Context, request *models.Request) error
	FindAcceptedOnProperty(ctx context.Context, propertyID, excludeID uint) (*models.Request, error)
	FindPendingOnProperty(ctx context.Context, propertyID, excludeID uint) ([]models.Request, error)
	RejectPending(ctx context.Context, ids []uint, comment string) (int64, error)
	ListByProperty(ctx context.Context, propertyID uint) ([]models.Request, error)
	AcceptedByAdviserBetween(ctx context.Context, adviserID uint, start, end time.Time) ([]models.Request, error)
	ByAdviserAndStatus(ctx context.Context, adviserID uint, status models.RequestStatus) ([]models.Request, error)
	SentBefore(ctx context.Context, cutoff time.Time) ([]models.Request, error)
}

type requestRepository struct {
	CRUDRepository[models.Request]
	db *gorm.DB
}

// NewRequestRepository creates a new RequestRepository instance.
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{
		CRUDRepository: NewCRUDRepository[models.Request](db, "Request"),
		db:             db,
	}
}

// GetForUpdate loads a request and locks its row until the transaction ends.
func (r *requestRepository) GetForUpdate(ctx context.Context, id uint) (*models.Request, error) {
	var request models.Request
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&request, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Request", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &request, nil
}

func (r *requestRepository) Save(ctx context.Context, request *models.Request) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(request).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// FindAcceptedOnProperty returns the accepted request on the property other
// than excludeID, or nil when there is none.
func (r *requestRepository) FindAcceptedOnProperty(ctx context.Context, propertyID, excludeID uint) (*models.Request, error) {
	var request models.Request
	err := r.db.WithContext(ctx).
		Where("property_id = ? AND id <> ? AND request_status_id IN ?", propertyID, excludeID,
			[]models.RequestStatus{models.StatusAccepted, models.StatusAcceptedWithGuarantor}).
		First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &request, nil
}

// FindPendingOnProperty returns the Sent and InStudy requests on the property
// other than excludeID.
func (r *requestRepository) FindPendingOnProperty(ctx context.Context, propertyID, excludeID uint) ([]models.Request, error) {
	var requests []models.Request
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("property_id = ? AND id <> ? AND request_status_id IN ?", propertyID, excludeID,
			[]models.RequestStatus{models.StatusSent, models.StatusInStudy}).
		Order("id ASC").
		Find(&requests).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return requests, nil
}

// RejectPending moves the given requests to Rejected with comment.
func (r *requestRepository) RejectPending(ctx context.Context, ids []uint, comment string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&models.Request{}).
		Where("id IN ? AND request_status_id IN ?", ids, []models.RequestStatus{models.StatusSent, models.StatusInStudy}).
		Updates(map[string]any{
			"request_status_id": models.StatusRejected,
			"comment":           comment,
		})
	if result.Error != nil {
		return 0, models.NewInternalError(result.Error)
	}
	return result.RowsAffected, nil
}

func (r *requestRepository) ListByProperty(ctx context.Context, propertyID uint) ([]models.Request, error) {
	var requests []models.Request
	if err := r.db.WithContext(ctx).Where("property_id = ?", propertyID).Order("id ASC").Find(&requests).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return requests, nil
}

// AcceptedByAdviserBetween lists the adviser's accepted requests dated within
// [start, end], with their property.
func (r *requestRepository) AcceptedByAdviserBetween(ctx context.Context, adviserID uint, start, end time.Time) ([]models.Request, error) {
	var requests []models.Request
	err := r.db.WithContext(ctx).
		Preload("Property").
		Where("adviser_id = ? AND request_status_id = ? AND date BETWEEN ? AND ?", adviserID, models.StatusAccepted, start, end).
		Order("date ASC").
		Find(&requests).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return requests, nil
}

func (r *requestRepository) ByAdviserAndStatus(ctx context.Context, adviserID uint, status models.RequestStatus) ([]models.Request, error) {
	var requests []models.Request
	err := r.db.WithContext(ctx).
		Where("adviser_id = ? AND request_status_id = ?", adviserID, status).
		Order("id ASC").
		Find(&requests).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return requests, nil
}

// SentBefore lists requests still Sent and dated before cutoff, grouped by adviser.
func (r *requestRepository) SentBefore(ctx context.Context, cutoff time.Time) ([]models.Request, error) {
	var requests []models.Request
	err := r.db.WithContext(ctx).
		Where("request_status_id = ? AND date < ?", models.StatusSent, cutoff).
		Order("adviser_id ASC, date ASC").
		Find(&requests).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return requests, nil
}
