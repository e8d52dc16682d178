package models

import (
	"strings"
	"time"
)

// Person holds the identity fields shared by advisers, clients and guarantors.
type Person struct {
	Document       string `gorm:"size:30;not null;index" json:"document"`
	FirstName      string `gorm:"size:60;not null" json:"firstName"`
	SecondName     string `gorm:"size:60" json:"secondName,omitempty"`
	FirstLastname  string `gorm:"size:60;not null" json:"firstLastname"`
	SecondLastname string `gorm:"size:60" json:"secondLastname,omitempty"`
	Email          string `gorm:"size:120;not null" json:"email"`
	Phone          string `gorm:"size:30" json:"phone"`
}

// FullName joins the non-empty name parts.
func (p Person) FullName() string {
	parts := make([]string, 0, 4)
	for _, part := range []string{p.FirstName, p.SecondName, p.FirstLastname, p.SecondLastname} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

// Adviser is a real-estate agent who owns properties and handles requests.
type Adviser struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Person    `gorm:"embedded"`
	Accepted  bool      `gorm:"not null;default:false" json:"accepted"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Client is a person submitting requests.
type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Person    `gorm:"embedded"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Guarantor backs a rental request.
type Guarantor struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Person        `gorm:"embedded"`
	WorkingLetter string    `gorm:"size:255" json:"workingLetter"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
