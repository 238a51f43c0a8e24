package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"velowind/internal/metrics"
	"velowind/internal/models"

	_ "github.com/go-sql-driver/mysql"
)

// DB archives issued wind warnings in MySQL
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema
// dsn format: "username:password@tcp(host:port)/dbname?parseTime=true"
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	stmt := `CREATE TABLE IF NOT EXISTS wind_warnings (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		col_id VARCHAR(100) NOT NULL DEFAULT '',
		location_name VARCHAR(255) NOT NULL DEFAULT '',
		latitude DOUBLE NOT NULL,
		longitude DOUBLE NOT NULL,
		level VARCHAR(20) NOT NULL,
		message TEXT NOT NULL,
		speed DOUBLE NOT NULL,
		gust DOUBLE NOT NULL,
		issued_at DATETIME(3) NOT NULL,
		expires_at DATETIME(3) NOT NULL,
		INDEX idx_wind_warnings_col (col_id),
		INDEX idx_wind_warnings_issued (issued_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

	if _, err := db.conn.Exec(stmt); err != nil {
		return fmt.Errorf("failed to execute schema statement: %w", err)
	}
	return nil
}

// StoreWarning archives an issued warning
func (db *DB) StoreWarning(ctx context.Context, w models.WindWarning) error {
	queryStart := time.Now()
	defer func() {
		metrics.UpdateArchivePoolStats(db.conn.Stats().OpenConnections)
	}()

	query := `INSERT INTO wind_warnings (col_id, location_name, latitude, longitude, level, message, speed, gust, issued_at, expires_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.conn.ExecContext(ctx, query, w.ColID, w.Location.Name, w.Location.Lat, w.Location.Lon,
		string(w.Level), w.Message, w.Speed, w.Gust,
		time.UnixMilli(w.Timestamp).UTC(), time.UnixMilli(w.ExpiresAt).UTC())
	metrics.RecordArchiveOperation(metrics.OpStoreWarning, time.Since(queryStart), err)
	if err != nil {
		return fmt.Errorf("failed to store warning for %q: %w", w.ColID, err)
	}
	metrics.RecordWarningArchived(w.Level)
	return nil
}

// GetWarnings retrieves recent warnings, optionally filtered by col, newest first.
// Expired warnings are included; callers check WindWarning.Expired.
func (db *DB) GetWarnings(ctx context.Context, colID string, limit int) ([]models.WindWarning, error) {
	query := `SELECT col_id, location_name, latitude, longitude, level, message, speed, gust, issued_at, expires_at
	          FROM wind_warnings WHERE (? = '' OR col_id = ?) ORDER BY issued_at DESC LIMIT ?`

	queryStart := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, colID, colID, limit)
	metrics.RecordArchiveOperation(metrics.OpListWarnings, time.Since(queryStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query warnings: %w", err)
	}
	defer rows.Close()

	var warnings []models.WindWarning
	for rows.Next() {
		var (
			w                  models.WindWarning
			level              string
			issued, expiration time.Time
		)
		if err := rows.Scan(&w.ColID, &w.Location.Name, &w.Location.Lat, &w.Location.Lon,
			&level, &w.Message, &w.Speed, &w.Gust, &issued, &expiration); err != nil {
			return nil, fmt.Errorf("failed to scan warning: %w", err)
		}
		w.Level = models.WarningLevel(level)
		w.Timestamp = issued.UnixMilli()
		w.ExpiresAt = expiration.UnixMilli()
		warnings = append(warnings, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating warnings: %w", err)
	}
	return warnings, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
