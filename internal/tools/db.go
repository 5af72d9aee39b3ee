package tools

import (
	"database/sql"
	"embed"
	"errors"
	"io/fs"
	"path"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

//go:embed migration/*
var migrationFiles embed.FS

// ConnectSqlite opens the settings database and applies the embedded migrations.
func ConnectSqlite(filePath string, l logrus.FieldLogger) (*sql.DB, error) {
	db, err := connectWithBackoff("sqlite3", filePath, 3, l)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrations run in file name order and must be idempotent.
func RunMigrations(db *sql.DB) error {
	dirEntries, err := fs.ReadDir(migrationFiles, "migration")
	if err != nil {
		return err
	}
	for _, entry := range dirEntries {
		fileData, err := fs.ReadFile(migrationFiles, path.Join("migration", entry.Name()))
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(fileData)); err != nil {
			return err
		}
	}
	return nil
}

func connectWithBackoff(driver string, connStr string, maxRetries int, l logrus.FieldLogger) (*sql.DB, error) {
	var err error
	for i := 0; i < maxRetries; i++ {
		var db *sql.DB
		db, err = sql.Open(driver, connStr)
		if err == nil {
			if err = db.Ping(); err == nil {
				return db, nil
			}
			db.Close()
		}
		l.WithError(err).Warnf("Failed attempt to connect to %s", driver)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	return nil, err
}

// Settings is the sensor configuration restored at startup.
type Settings struct {
	Model           string    `json:"model"`
	Gain            int       `json:"gain"`
	IntegrationTime int       `json:"integrationTime"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// SettingsStore keeps the last applied sensor configuration. Readings are never stored.
type SettingsStore struct {
	DB *sql.DB
}

// Load returns the saved settings, and false if none were saved yet.
func (s *SettingsStore) Load() (Settings, bool, error) {
	var settings Settings
	row := s.DB.QueryRow("SELECT model, gain, integration_time, updated_at FROM sensor_settings WHERE id = 1")
	err := row.Scan(&settings.Model, &settings.Gain, &settings.IntegrationTime, &settings.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Settings{}, false, nil
	} else if err != nil {
		return Settings{}, false, err
	}
	return settings, true, nil
}

func (s *SettingsStore) Save(settings Settings) error {
	_, err := s.DB.Exec(`
    INSERT INTO sensor_settings (id, model, gain, integration_time, updated_at)
    VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)
    ON CONFLICT(id) DO UPDATE SET
        model = excluded.model,
        gain = excluded.gain,
        integration_time = excluded.integration_time,
        updated_at = excluded.updated_at`,
		settings.Model, settings.Gain, settings.IntegrationTime)
	return err
}
