package repository

import (
	"context"
	"errors"

	"akinmueble/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store groups the repositories so a workflow step can run them all against
// one transaction.
type Store struct {
	db              *gorm.DB
	Requests        RequestRepository
	Properties      CRUDRepository[models.Property]
	Photos          CRUDRepository[models.Photo]
	Advisers        CRUDRepository[models.Adviser]
	Clients         CRUDRepository[models.Client]
	Guarantors      CRUDRepository[models.Guarantor]
	Contracts       CRUDRepository[models.Contract]
	Departments     CRUDRepository[models.Department]
	Cities          CRUDRepository[models.City]
	PropertyTypes   CRUDRepository[models.PropertyType]
	RequestTypes    CRUDRepository[models.RequestTypeRecord]
	RequestStatuses CRUDRepository[models.RequestStatusRecord]
	SystemVariables CRUDRepository[models.GeneralSystemVariables]
}

// NewStore creates a Store over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:              db,
		Requests:        NewRequestRepository(db),
		Properties:      NewCRUDRepository[models.Property](db, "Property"),
		Photos:          NewCRUDRepository[models.Photo](db, "Photo"),
		Advisers:        NewCRUDRepository[models.Adviser](db, "Adviser"),
		Clients:         NewCRUDRepository[models.Client](db, "Client"),
		Guarantors:      NewCRUDRepository[models.Guarantor](db, "Guarantor"),
		Contracts:       NewCRUDRepository[models.Contract](db, "Contract"),
		Departments:     NewCRUDRepository[models.Department](db, "Department"),
		Cities:          NewCRUDRepository[models.City](db, "City"),
		PropertyTypes:   NewCRUDRepository[models.PropertyType](db, "PropertyType"),
		RequestTypes:    NewCRUDRepository[models.RequestTypeRecord](db, "RequestType"),
		RequestStatuses: NewCRUDRepository[models.RequestStatusRecord](db, "RequestStatus"),
		SystemVariables: NewCRUDRepository[models.GeneralSystemVariables](db, "GeneralSystemVariables"),
	}
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn with a Store bound to a single database transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// LockProperty loads the property and holds a row lock on it until the
// transaction ends. Every write touching several requests of one property
// takes this lock first.
func (s *Store) LockProperty(ctx context.Context, id uint) (*models.Property, error) {
	var property models.Property
	err := s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&property, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Property", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &property, nil
}

// CurrentSystemVariables returns the configuration row, or nil when none exists.
func (s *Store) CurrentSystemVariables(ctx context.Context) (*models.GeneralSystemVariables, error) {
	rows, _, err := s.SystemVariables.List(ctx, ListOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
