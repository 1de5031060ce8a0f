package database

import (
	"fmt"
	"os"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

// MigrationLogger adapts the application logger to migrate's interface.
type MigrationLogger struct {
	ectologger.Logger
}

func (l MigrationLogger) Verbose() bool {
	return true
}

func (l MigrationLogger) Printf(format string, v ...any) {
	l.Infof(format, v...)
}

// MigrationConfig controls schema migrations applied on startup.
type MigrationConfig struct {
	MigrationFolderPath string
	Version             uint
}

// Migrate applies pending migrations from the configured folder. When
// Version is zero the database migrates to the latest version.
func Migrate(db *DatabaseInstance, databaseName string, cfg MigrationConfig, logger ectologger.Logger) error {
	folder := resolveMigrationFolder(cfg.MigrationFolderPath)
	if _, err := os.Stat(folder); err != nil {
		return errors.Wrap(err, fmt.Sprintf("migration folder %s does not exist", folder))
	}

	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		return errors.Wrap(err, "failed to create migration driver")
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+folder, databaseName, driver)
	if err != nil {
		logger.WithError(err).Error("Failed to create migrate instance")
		return err
	}

	m.Log = MigrationLogger{Logger: logger}

	if cfg.Version != 0 {
		err = m.Migrate(cfg.Version)
	} else {
		err = m.Up()
	}

	if err == migrate.ErrNoChange {
		logger.Info("No new migrations to apply")
		return nil
	}
	if err != nil {
		logger.WithError(err).Error("Migration failed")
		return err
	}

	logger.Info("Successfully applied migrations")
	return nil
}

func resolveMigrationFolder(folder string) string {
	if _, err := os.Stat(folder); err == nil {
		return folder
	}
	workingDirectory, _ := os.Getwd()
	separator := ""
	if workingDirectory != "/" {
		separator = "/"
	}
	return workingDirectory + separator + folder
}
