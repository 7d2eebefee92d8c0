package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed mysql/*.sql postgres/*.sql
var embedded embed.FS

// Files returns the migration set for driver (mysql or postgres).
func Files(driver string) (fs.FS, goose.Dialect, error) {
	var dialect goose.Dialect
	switch driver {
	case "mysql":
		dialect = goose.DialectMySQL
	case "postgres":
		dialect = goose.DialectPostgres
	default:
		return nil, "", fmt.Errorf("migrations: unsupported driver %q", driver)
	}
	sub, err := fs.Sub(embedded, driver)
	if err != nil {
		return nil, "", err
	}
	return sub, dialect, nil
}

// Up applies pending migrations and logs each applied version.
func Up(ctx context.Context, db *sql.DB, driver string, log *zap.SugaredLogger) error {
	fsys, dialect, err := Files(driver)
	if err != nil {
		return err
	}
	p, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrations up: %w", err)
	}
	for _, r := range results {
		log.Infow("migration applied", "version", r.Source.Version, "path", r.Source.Path, "duration", r.Duration)
	}
	return nil
}
