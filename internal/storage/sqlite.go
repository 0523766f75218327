// Package storage provides the SQLite archive used by the data logger.
package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/user/gridpulse/internal/model"
)

// DB wraps the SQLite database connection.
type DB struct {
	*sql.DB
}

// Open creates and initializes the archive database under dataDir.
func Open(dataDir string) (*DB, error) {
	dbPath := filepath.Join(dataDir, "gridpulse.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{DB: db}
	if err := d.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return d, nil
}

func (db *DB) createTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS measurements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			outstation_id INTEGER NOT NULL,
			timestamp DATETIME NOT NULL,
			voltage REAL,
			current REAL,
			frequency REAL,
			temperature REAL,
			real_power_kw REAL,
			reactive_power_kvar REAL,
			apparent_power_kva REAL,
			power_factor REAL,
			load_percentage REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_outstation ON measurements(outstation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_timestamp ON measurements(timestamp)`,

		`CREATE TABLE IF NOT EXISTS status_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			outstation_id INTEGER NOT NULL,
			timestamp DATETIME NOT NULL,
			connection_status TEXT NOT NULL,
			failure_count INTEGER DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_status_outstation ON status_snapshots(outstation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_status_timestamp ON status_snapshots(timestamp)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to execute: %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

// SaveMeasurement archives one measurement row.
func (db *DB) SaveMeasurement(m model.Measurement) error {
	_, err := db.Exec(`INSERT INTO measurements
		(outstation_id, timestamp, voltage, current, frequency, temperature,
		 real_power_kw, reactive_power_kvar, apparent_power_kva, power_factor, load_percentage)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.OutstationID, m.Timestamp, m.Voltage, m.Current, m.Frequency, m.Temperature,
		m.RealPowerKW, m.ReactivePowerKVAR, m.ApparentPowerKVA, m.PowerFactor, m.LoadPercentage)
	return err
}

// SaveStatus archives one connection-status observation.
func (db *DB) SaveStatus(s model.OutstationStatus, at time.Time) error {
	_, err := db.Exec(`INSERT INTO status_snapshots
		(outstation_id, timestamp, connection_status, failure_count)
		VALUES (?, ?, ?, ?)`,
		s.ID, at, string(s.ConnectionStatus), s.FailureCount)
	return err
}

// CountMeasurements returns the number of archived rows for one outstation.
func (db *DB) CountMeasurements(outstationID int) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM measurements WHERE outstation_id = ?`,
		outstationID).Scan(&count)
	return count, err
}

// LatestMeasurementTime returns the timestamp of the newest archived row for
// one outstation, or the zero time when none exist.
func (db *DB) LatestMeasurementTime(outstationID int) (time.Time, error) {
	var ts sql.NullTime
	err := db.QueryRow(`SELECT MAX(timestamp) FROM measurements WHERE outstation_id = ?`,
		outstationID).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return ts.Time, nil
}
