// Package repository provides data access layer implementations for the application.
package repository

import (
	"errors"
	"strings"

	"monolith/internal/database"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func readDB(primary *gorm.DB) *gorm.DB {
	return database.GetReadDB(primary)
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	// PostgreSQL unique violation SQLSTATE 23505
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}

// lockForUpdate adds SELECT ... FOR UPDATE on dialects that support row locks.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// likePattern builds a case-insensitive substring pattern, escaping LIKE wildcards.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(q)) + "%"
}
