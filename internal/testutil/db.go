// Package testutil provides shared test databases and fixtures.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"akinmueble/internal/database"
	"akinmueble/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB opens an isolated in-memory database with the full schema.
// The shared-cache name keeps every pooled connection on the same database.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewMockDB creates a GORM *gorm.DB on the MySQL dialect backed by sqlmock.
func NewMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gormDB, mock
}

// Fixture holds the rows most workflow tests need.
type Fixture struct {
	Department models.Department
	City       models.City
	Type       models.PropertyType
	Adviser    models.Adviser
	Adviser2   models.Adviser
	Client     models.Client
	Client2    models.Client
	Guarantor  models.Guarantor
	Property   models.Property
	Property2  models.Property
	Vars       models.GeneralSystemVariables
}

// Seed inserts a Fixture: two advisers, two clients, a guarantor and two
// properties owned by the first adviser.
func Seed(t *testing.T, db *gorm.DB) *Fixture {
	t.Helper()
	f := &Fixture{
		Department: models.Department{Name: "Caldas"},
		Type:       models.PropertyType{Name: "House"},
		Adviser:    models.Adviser{Person: models.Person{Document: "A1", FirstName: "Luis", FirstLastname: "Perez", Email: "luis@example.com", Phone: "3001"}, Accepted: true},
		Adviser2:   models.Adviser{Person: models.Person{Document: "A2", FirstName: "Marta", FirstLastname: "Lopez", Email: "marta@example.com", Phone: "3002"}, Accepted: true},
		Client:     models.Client{Person: models.Person{Document: "C1", FirstName: "Ana", FirstLastname: "Diaz", Email: "ana@example.com", Phone: "3101"}},
		Client2:    models.Client{Person: models.Person{Document: "C2", FirstName: "Juan", FirstLastname: "Ruiz", Email: "juan@example.com", Phone: "3102"}},
		Guarantor:  models.Guarantor{Person: models.Person{Document: "G1", FirstName: "Rosa", FirstLastname: "Mora", Email: "rosa@example.com"}, WorkingLetter: "letter.pdf"},
		Vars:       models.GeneralSystemVariables{RealEstateName: "Akinmueble", AdministratorEmailContact: "admin@example.com", AdministratorNameContact: "Admin"},
	}
	require.NoError(t, db.Create(&f.Department).Error)
	f.City = models.City{Name: "Manizales", DepartmentID: f.Department.ID}
	require.NoError(t, db.Create(&f.City).Error)
	require.NoError(t, db.Create(&f.Type).Error)
	require.NoError(t, db.Create(&f.Adviser).Error)
	require.NoError(t, db.Create(&f.Adviser2).Error)
	require.NoError(t, db.Create(&f.Client).Error)
	require.NoError(t, db.Create(&f.Client2).Error)
	require.NoError(t, db.Create(&f.Guarantor).Error)

	f.Property = models.Property{Address: "Calle 10 # 5-20", SalePrice: 300000, RentalPrice: 1500, Sell: true, Rent: true,
		PropertyTypeID: f.Type.ID, CityID: f.City.ID, AdviserID: f.Adviser.ID}
	f.Property2 = models.Property{Address: "Carrera 23 # 60-11", SalePrice: 180000, RentalPrice: 900, Sell: true,
		PropertyTypeID: f.Type.ID, CityID: f.City.ID, AdviserID: f.Adviser.ID}
	require.NoError(t, db.Create(&f.Property).Error)
	require.NoError(t, db.Create(&f.Property2).Error)
	return f
}

// SeedSystemVariables stores the fixture's administrator contact.
func (f *Fixture) SeedSystemVariables(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&f.Vars).Error)
}

// Request inserts a request on property for client with the given status.
func Request(t *testing.T, db *gorm.DB, property *models.Property, clientID uint, status models.RequestStatus) *models.Request {
	t.Helper()
	r := &models.Request{
		Date:            time.Now().UTC(),
		AdviserID:       property.AdviserID,
		ClientID:        clientID,
		PropertyID:      property.ID,
		RequestTypeID:   models.RequestTypeSale,
		RequestStatusID: status,
	}
	require.NoError(t, db.Create(r).Error)
	return r
}
