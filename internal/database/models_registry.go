package database

import "monolith/internal/models"

// PersistentModels lists the GORM models automigrate manages, parents first
// so foreign keys resolve.
func PersistentModels() []any {
	return []any{
		&models.User{},
		&models.Follow{},
		&models.Connection{},
		&models.Post{},
		&models.Like{},
		&models.Comment{},
		&models.Story{},
		&models.Message{},
	}
}
