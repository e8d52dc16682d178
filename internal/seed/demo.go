package seed

import (
	"fmt"
	"math/rand"
	"time"

	"akinmueble/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// DemoOptions sizes the generated demo data.
type DemoOptions struct {
	Advisers             int
	Clients              int
	PropertiesPerAdviser int
	RequestsPerProperty  int
	// Seed makes the output repeatable when non-zero.
	Seed int64
}

// DemoResult counts what Demo inserted.
type DemoResult struct {
	Advisers   int
	Clients    int
	Properties int
	Requests   int
}

// Factory builds brokerage entities with plausible fake content.
type Factory struct {
	faker *gofakeit.Faker
	rng   *rand.Rand
}

// NewFactory creates a Factory. A zero seed uses the clock.
func NewFactory(seed int64) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{faker: gofakeit.New(seed), rng: rand.New(rand.NewSource(seed))}
}

// Person returns a filled identity record.
func (f *Factory) Person() models.Person {
	return models.Person{
		Document:       f.faker.Numerify("##########"),
		FirstName:      f.faker.FirstName(),
		SecondName:     f.faker.MiddleName(),
		FirstLastname:  f.faker.LastName(),
		SecondLastname: f.faker.LastName(),
		Email:          f.faker.Email(),
		Phone:          f.faker.Numerify("3#########"),
	}
}

// Adviser returns an accepted adviser.
func (f *Factory) Adviser() models.Adviser {
	return models.Adviser{Person: f.Person(), Accepted: true}
}

// Client returns a client.
func (f *Factory) Client() models.Client {
	return models.Client{Person: f.Person()}
}

// Property returns a listing owned by adviserID.
func (f *Factory) Property(adviserID, cityID, propertyTypeID uint) models.Property {
	sell := f.faker.Bool()
	return models.Property{
		Address:                 fmt.Sprintf("Calle %d # %d-%d", f.rng.Intn(120)+1, f.rng.Intn(90)+1, f.rng.Intn(99)+1),
		Description:             f.faker.Sentence(14),
		SalePrice:               float64(f.rng.Intn(900)+100) * 1000,
		RentalPrice:             float64(f.rng.Intn(40)+5) * 100,
		ParticipationPercentage: float64(f.rng.Intn(8) + 2),
		Sell:                    sell,
		Rent:                    !sell || f.faker.Bool(),
		PropertyTypeID:          propertyTypeID,
		CityID:                  cityID,
		AdviserID:               adviserID,
	}
}

// Request returns a pending request for client on property.
func (f *Factory) Request(property models.Property, clientID uint) models.Request {
	kind := models.RequestTypeRent
	if property.Sell && (!property.Rent || f.faker.Bool()) {
		kind = models.RequestTypeSale
	}
	status := models.StatusSent
	if f.faker.Bool() {
		status = models.StatusInStudy
	}
	return models.Request{
		Date:            time.Now().UTC().Add(-time.Duration(f.rng.Intn(240)) * time.Hour),
		Comment:         f.faker.Sentence(8),
		AdviserID:       property.AdviserID,
		ClientID:        clientID,
		PropertyID:      property.ID,
		RequestTypeID:   kind,
		RequestStatusID: status,
	}
}

// Demo inserts reference data plus generated advisers, clients, properties
// and pending requests.
func Demo(db *gorm.DB, opts DemoOptions) (*DemoResult, error) {
	if err := Reference(db); err != nil {
		return nil, err
	}

	var (
		cities []models.City
		types  []models.PropertyType
	)
	if err := db.Find(&cities).Error; err != nil {
		return nil, err
	}
	if err := db.Find(&types).Error; err != nil {
		return nil, err
	}
	if len(cities) == 0 || len(types) == 0 {
		return nil, fmt.Errorf("reference data missing cities or property types")
	}

	f := NewFactory(opts.Seed)
	res := &DemoResult{}
	err := db.Transaction(func(tx *gorm.DB) error {
		clients := make([]models.Client, 0, opts.Clients)
		for i := 0; i < opts.Clients; i++ {
			clients = append(clients, f.Client())
		}
		if len(clients) > 0 {
			if err := tx.CreateInBatches(&clients, 100).Error; err != nil {
				return fmt.Errorf("create clients: %w", err)
			}
		}
		res.Clients = len(clients)

		for i := 0; i < opts.Advisers; i++ {
			adviser := f.Adviser()
			if err := tx.Create(&adviser).Error; err != nil {
				return fmt.Errorf("create adviser: %w", err)
			}
			res.Advisers++

			for j := 0; j < opts.PropertiesPerAdviser; j++ {
				city := cities[f.rng.Intn(len(cities))]
				pt := types[f.rng.Intn(len(types))]
				property := f.Property(adviser.ID, city.ID, pt.ID)
				if err := tx.Create(&property).Error; err != nil {
					return fmt.Errorf("create property: %w", err)
				}
				res.Properties++

				for k := 0; k < opts.RequestsPerProperty && len(clients) > 0; k++ {
					client := clients[f.rng.Intn(len(clients))]
					request := f.Request(property, client.ID)
					if err := tx.Create(&request).Error; err != nil {
						return fmt.Errorf("create request: %w", err)
					}
					res.Requests++
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
