package db

import (
	"database/sql"
	"fmt"

	"fmsync/config"
	"fmsync/logger"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Successfully connected to the database")
	return nil
}

// CloseDB closes the raw database connection.
func CloseDB() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// InitDB initializes the schema owned by the raw-SQL side: the
// fetch_states table. Catalog tables are migrated through GORM.
func InitDB() error {
	if err := createFetchStatesTable(); err != nil {
		return err
	}
	logger.Info("Database initialization completed")
	return nil
}

func createFetchStatesTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS fetch_states (
		item_id VARCHAR(64) NOT NULL,
		item_type VARCHAR(16) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'idle',
		last_attempt_at TIMESTAMP NULL DEFAULT NULL,
		try_next_at TIMESTAMP NULL DEFAULT NULL,
		error_reason VARCHAR(16),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (item_id, item_type),
		INDEX idx_status_try_next (status, try_next_at)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create fetch_states table: %w", err)
	}
	return nil
}
