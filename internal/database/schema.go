package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"monolith/internal/config"
	"monolith/internal/middleware"

	"gorm.io/gorm"
)

// Schema modes accepted by DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaPolicy is what ApplySchema will do for a configuration.
type SchemaPolicy struct {
	Mode    string
	RunSQL  bool
	RunAuto bool
}

// SchemaStatus reports the schema policy and migration progress.
type SchemaStatus struct {
	SchemaPolicy
	Environment       string
	AppliedVersions   []int
	PendingMigrations []Migration
}

func isProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// ResolveSchemaPolicy maps DB_SCHEMA_MODE and APP_ENV onto a policy. SQL
// migrations own the schema in every mode but auto; automigrate is refused in
// production-like environments unless explicitly allowed.
func ResolveSchemaPolicy(cfg *config.Config) (SchemaPolicy, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))
	if mode == "" {
		mode = SchemaModeHybrid
	}
	prodLike := isProdLikeEnv(cfg.Env)

	p := SchemaPolicy{Mode: mode}
	switch mode {
	case SchemaModeSQL:
		p.RunSQL = true
	case SchemaModeAuto:
		if prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return p, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		p.RunAuto = true
	case SchemaModeHybrid:
		p.RunSQL = true
		p.RunAuto = !prodLike
	default:
		return p, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}
	return p, nil
}

// ApplySchema brings the database schema up to date under the configured policy.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	p, err := ResolveSchemaPolicy(cfg)
	if err != nil {
		return err
	}

	if p.RunSQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if p.RunAuto {
		if p.Mode == SchemaModeAuto && cfg.DBAutoMigrateAllowDestructive {
			middleware.Logger.Warn("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true set for DB_SCHEMA_MODE=auto; review schema diffs before production deployment")
		}
		middleware.Logger.Info("Running GORM AutoMigrate", slog.String("mode", p.Mode), slog.String("env", cfg.Env))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// GetSchemaStatus reports the policy and, when SQL migrations run, which
// versions are applied and pending.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	p, err := ResolveSchemaPolicy(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{SchemaPolicy: p, Environment: cfg.Env}
	if !p.RunSQL {
		return status, nil
	}

	mig, err := NewMigrator(db)
	if err != nil {
		return nil, err
	}
	if status.AppliedVersions, err = mig.Applied(ctx); err != nil {
		return nil, err
	}
	if status.PendingMigrations, err = mig.Pending(ctx); err != nil {
		return nil, err
	}
	return status, nil
}
