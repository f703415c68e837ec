package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed sql/*.sql
var embedMigrations embed.FS

// goose keeps its dialect and filesystem in package globals
var gooseMu sync.Mutex

// MigrateStore brings the schema up to the latest embedded migration.
func MigrateStore(db *gorm.DB) error {
	return run(db, func(sqlDB *sql.DB) error {
		return goose.Up(sqlDB, "sql")
	})
}

// Rollback reverts the most recent migration.
func Rollback(db *gorm.DB) error {
	return run(db, func(sqlDB *sql.DB) error {
		return goose.Down(sqlDB, "sql")
	})
}

// Version returns the current schema version.
func Version(db *gorm.DB) (int64, error) {
	var version int64
	err := run(db, func(sqlDB *sql.DB) error {
		v, err := goose.GetDBVersion(sqlDB)
		version = v
		return err
	})
	return version, err
}

func run(db *gorm.DB, fn func(sqlDB *sql.DB) error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetLogger(&logger{})
	goose.SetBaseFS(embedMigrations)

	dialect, err := dialectOf(db)
	if err != nil {
		return err
	}
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	return fn(sqlDB)
}

func dialectOf(db *gorm.DB) (string, error) {
	switch name := db.Dialector.Name(); name {
	case "postgres":
		return "postgres", nil
	case "sqlite":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported database dialect %q", name)
	}
}

/*
logger implements goose.Logger interface

	type Logger interface {
		Fatalf(format string, v ...interface{})
		Printf(format string, v ...interface{})
	}
*/
type logger struct{}

func (m *logger) Printf(format string, v ...interface{}) { zap.S().Named("migrations").Infof(format, v...) }
func (m *logger) Fatalf(format string, v ...interface{}) { zap.S().Named("migrations").Fatalf(format, v...) }
