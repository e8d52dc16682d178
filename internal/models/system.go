package models

// GeneralSystemVariables holds the brokerage's administrative contact.
type GeneralSystemVariables struct {
	ID                        uint   `gorm:"primaryKey" json:"id"`
	RealEstateName            string `gorm:"size:120" json:"realEstateName"`
	AdministratorEmailContact string `gorm:"size:120;not null" json:"administratorEmailContact"`
	AdministratorNameContact  string `gorm:"size:120" json:"administratorNameContact"`
}

// TableName returns the database table name for GeneralSystemVariables.
func (GeneralSystemVariables) TableName() string {
	return "general_system_variables"
}

// ContactForm is a message from the public website. It is not persisted.
type ContactForm struct {
	Message     string `json:"message"`
	MessageType string `json:"messageType"`
	FullName    string `json:"fullName"`
	Document    string `json:"document"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
}

// AdviserForm is an application to join as an adviser.
type AdviserForm ContactForm
