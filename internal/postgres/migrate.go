package postgres

import (
	"embed"
	"errors"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies every pending migration. The migrator is not closed
// because that would close the shared connection pool.
func (db *DB) RunMigrations() error {
	source, err := iofs.New(embeddedMigrations, "migrations")
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to open embedded migrations").
			Mark(ierr.ErrSystem)
	}

	driver, err := migratepg.WithInstance(db.DB.DB, &migratepg.Config{})
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create migration driver").
			Mark(ierr.ErrDatabase)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create migrator").
			Mark(ierr.ErrDatabase)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return ierr.WithError(err).
			WithHint("Failed to apply migrations").
			Mark(ierr.ErrDatabase)
	}

	version, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return ierr.WithError(err).
			WithHint("Failed to read migration version").
			Mark(ierr.ErrDatabase)
	}
	db.logger.Infow("migrations applied", "version", version, "dirty", dirty)
	return nil
}
