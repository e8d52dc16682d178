package database

import "akinmueble/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models,
// parents before children.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Department{},
		&models.City{},
		&models.PropertyType{},
		&models.RequestTypeRecord{},
		&models.RequestStatusRecord{},
		&models.Adviser{},
		&models.Client{},
		&models.Guarantor{},
		&models.Contract{},
		&models.Property{},
		&models.Photo{},
		&models.Request{},
		&models.GeneralSystemVariables{},
	}
}

// TableNames lists the tables created for PersistentModels, children first so
// they can be dropped in order.
func TableNames() []string {
	return []string{
		"requests",
		"photos",
		"properties",
		"contracts",
		"guarantors",
		"clients",
		"advisers",
		"request_statuses",
		"request_types",
		"property_types",
		"cities",
		"departments",
		"general_system_variables",
	}
}
