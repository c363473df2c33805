package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"monolith/internal/middleware"

	"gorm.io/gorm"
)

// MigrationLog records one applied migration.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime;index"`
}

// TableName returns the database table name for MigrationLog.
func (MigrationLog) TableName() string {
	return "migration_logs"
}

// Migrator applies a fixed set of migrations and tracks them in migration_logs.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

// NewMigrator returns a Migrator for the embedded migrations.
func NewMigrator(db *gorm.DB) (*Migrator, error) {
	all, err := Migrations()
	if err != nil {
		return nil, err
	}
	return NewMigratorWith(db, all), nil
}

// NewMigratorWith returns a Migrator for an explicit migration set.
func NewMigratorWith(db *gorm.DB, migrations []Migration) *Migrator {
	return &Migrator{db: db, migrations: migrations}
}

func (m *Migrator) ensureLogTable(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(&MigrationLog{}); err != nil {
		return fmt.Errorf("ensure migration_logs table: %w", err)
	}
	return nil
}

// Applied returns the applied versions in ascending order. A missing log
// table means nothing has been applied yet.
func (m *Migrator) Applied(ctx context.Context) ([]int, error) {
	if !m.db.Migrator().HasTable(&MigrationLog{}) {
		return []int{}, nil
	}
	var versions []int
	if err := m.db.WithContext(ctx).Model(&MigrationLog{}).Order("version ASC").Pluck("version", &versions).Error; err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	return versions, nil
}

// Pending returns the known migrations that have not been applied.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, mig := range m.migrations {
		if !slices.Contains(applied, mig.Version) {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Up applies every pending migration. Each script and its log row commit in
// one transaction so a failed script leaves no record behind.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureLogTable(ctx); err != nil {
		return 0, err
	}
	applied, err := m.Applied(ctx)
	if err != nil {
		return 0, err
	}
	if err := validateAppliedVersions(applied, m.migrations); err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range m.migrations {
		if slices.Contains(applied, mig.Version) {
			continue
		}
		middleware.Logger.Info("Applying migration", slog.String("migration", mig.String()))
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mig.UpScript).Error; err != nil {
				return err
			}
			return tx.Create(&MigrationLog{Version: mig.Version, Name: mig.Name}).Error
		})
		if err != nil {
			return count, fmt.Errorf("apply migration %s: %w", mig, err)
		}
		count++
	}
	return count, nil
}

// Down reverts one applied migration by version.
func (m *Migrator) Down(ctx context.Context, version int) error {
	mig := findMigration(m.migrations, version)
	if mig == nil {
		return fmt.Errorf("migration version %d not found", version)
	}
	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(applied, version) {
		return fmt.Errorf("migration %d has not been applied", version)
	}

	middleware.Logger.Info("Rolling back migration", slog.String("migration", mig.String()))
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(mig.DownScript).Error; err != nil {
			return fmt.Errorf("rollback %s: %w", mig, err)
		}
		return tx.Where("version = ?", version).Delete(&MigrationLog{}).Error
	})
}

// RunMigrations applies all pending embedded migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	mig, err := NewMigrator(db)
	if err != nil {
		return err
	}
	n, err := mig.Up(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		middleware.Logger.Info("Migrations applied", slog.Int("count", n))
	}
	return nil
}

// RollbackMigration reverts one embedded migration by version.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	mig, err := NewMigrator(db)
	if err != nil {
		return err
	}
	return mig.Down(ctx, version)
}

// validateAppliedVersions rejects a log that names versions this binary does
// not know, which happens when a newer build migrated the same database.
func validateAppliedVersions(applied []int, known []Migration) error {
	var unknown []string
	for _, version := range applied {
		if findMigration(known, version) == nil {
			unknown = append(unknown, fmt.Sprintf("%06d", version))
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	return fmt.Errorf(
		"migration_logs contains versions unknown to this build: %s (roll back with `admin migrate down` or rebuild the development database)",
		strings.Join(unknown, ", "),
	)
}
