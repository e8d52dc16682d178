// Package seed loads reference data and generates demo data for development
// and tests.
package seed

import (
	_ "embed"
	"errors"
	"fmt"

	"akinmueble/internal/models"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed reference.yaml
var referenceYAML []byte

// ReferenceData is the lookup content every installation needs.
type ReferenceData struct {
	RequestTypes    []models.RequestTypeRecord   `yaml:"requestTypes"`
	RequestStatuses []models.RequestStatusRecord `yaml:"requestStatuses"`
	PropertyTypes   []string                     `yaml:"propertyTypes"`
	Departments     []DepartmentSeed             `yaml:"departments"`
}

// DepartmentSeed is a department and its cities.
type DepartmentSeed struct {
	Name   string   `yaml:"name"`
	Cities []string `yaml:"cities"`
}

// LoadReference parses the embedded reference data.
func LoadReference() (*ReferenceData, error) {
	var data ReferenceData
	if err := yaml.Unmarshal(referenceYAML, &data); err != nil {
		return nil, fmt.Errorf("parse reference data: %w", err)
	}
	return &data, nil
}

// Reference upserts the reference data. Running it twice leaves one copy of
// every row.
func Reference(db *gorm.DB) error {
	data, err := LoadReference()
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&data.RequestTypes).Error; err != nil {
			return fmt.Errorf("seed request types: %w", err)
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&data.RequestStatuses).Error; err != nil {
			return fmt.Errorf("seed request statuses: %w", err)
		}

		for _, name := range data.PropertyTypes {
			var pt models.PropertyType
			if err := tx.Where(models.PropertyType{Name: name}).FirstOrCreate(&pt).Error; err != nil {
				return fmt.Errorf("seed property type %s: %w", name, err)
			}
		}

		for _, d := range data.Departments {
			var dept models.Department
			if err := tx.Where(models.Department{Name: d.Name}).FirstOrCreate(&dept).Error; err != nil {
				return fmt.Errorf("seed department %s: %w", d.Name, err)
			}
			for _, cityName := range d.Cities {
				var city models.City
				err := tx.Where("name = ? AND department_id = ?", cityName, dept.ID).First(&city).Error
				switch {
				case err == nil:
					continue
				case !errors.Is(err, gorm.ErrRecordNotFound):
					return err
				}
				city = models.City{Name: cityName, DepartmentID: dept.ID}
				if err := tx.Create(&city).Error; err != nil {
					return fmt.Errorf("seed city %s: %w", cityName, err)
				}
			}
		}
		return nil
	})
}
