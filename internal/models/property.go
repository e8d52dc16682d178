package models

import "time"

// Property is a listing owned by an adviser.
type Property struct {
	ID                      uint      `gorm:"primaryKey" json:"id"`
	Address                 string    `gorm:"size:255;not null" json:"address"`
	Description             string    `gorm:"type:text" json:"description"`
	SalePrice               float64   `json:"salePrice"`
	RentalPrice             float64   `json:"rentalPrice"`
	ParticipationPercentage float64   `json:"participationPercentage"`
	Sell                    bool      `gorm:"not null;default:false" json:"sell"`
	Rent                    bool      `gorm:"not null;default:false" json:"rent"`
	Video                   string    `gorm:"size:255" json:"video"`
	PropertyTypeID          uint      `gorm:"not null;index" json:"propertyTypeId"`
	CityID                  uint      `gorm:"not null;index" json:"cityId"`
	AdviserID               uint      `gorm:"not null;index" json:"adviserId"`
	CreatedAt               time.Time `json:"createdAt"`
	UpdatedAt               time.Time `json:"updatedAt"`
}

// PriceFor returns the sale or rental price matching the request type.
func (p Property) PriceFor(t RequestType) float64 {
	if t == RequestTypeSale {
		return p.SalePrice
	}
	return p.RentalPrice
}

// Photo is an image route attached to a property.
type Photo struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Route      string `gorm:"size:255;not null" json:"route"`
	PropertyID uint   `gorm:"not null;index" json:"propertyId"`
}

// PropertyType classifies properties (house, apartment, ...).
type PropertyType struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:60;not null" json:"name"`
}

// Department is a top-level administrative region.
type Department struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:80;not null" json:"name"`
}

// City belongs to a department.
type City struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"size:80;not null" json:"name"`
	DepartmentID uint   `gorm:"not null;index" json:"departmentId"`
}
