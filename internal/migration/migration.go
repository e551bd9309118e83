package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// ErrDirtySchema means a previous run stopped half way through a version.
// It needs an operator; startup does not force it.
var ErrDirtySchema = errors.New("schema is dirty")

// Result reports the schema version before and after a run. Zero means empty.
type Result struct {
	From uint
	To   uint
}

func (r Result) Changed() bool { return r.From != r.To }

func openSource() (source.Driver, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	return src, nil
}

// Versions lists the embedded schema versions in order.
func Versions() ([]uint, error) {
	src, err := openSource()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	v, err := src.First()
	var out []uint
	for err == nil {
		out = append(out, v)
		v, err = src.Next(v)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return out, nil
}

// RunMigrations brings a postgres schema up to the newest embedded version.
func RunMigrations(db *sql.DB, log *zap.Logger) (Result, error) {
	if db == nil {
		return Result{}, errors.New("migration database handle is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	src, err := openSource()
	if err != nil {
		return Result{}, err
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return Result{}, fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return Result{}, fmt.Errorf("create migrator: %w", err)
	}
	// m.Close would also close the shared *sql.DB, so it is never called.

	var res Result
	if res.From, err = currentVersion(m); err != nil {
		return res, err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return res, fmt.Errorf("apply migrations from version %d: %w", res.From, err)
	}
	if res.To, err = currentVersion(m); err != nil {
		return res, err
	}

	if res.Changed() {
		log.Info("schema migrated", zap.Uint("from_version", res.From), zap.Uint("to_version", res.To))
	} else {
		log.Debug("schema up to date", zap.Uint("version", res.To))
	}
	return res, nil
}

func currentVersion(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return v, fmt.Errorf("%w at version %d", ErrDirtySchema, v)
	}
	return v, nil
}
