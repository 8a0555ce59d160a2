package db

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/avosseler/costmanager/internal/models"
)

// DefaultSQLitePath is used when no DSN is configured. The app is local-first:
// a single on-disk sqlite file is the normal deployment.
const DefaultSQLitePath = "costmanager.db"

var postgresDSNKeys = []string{"host=", "user=", "password=", "dbname=", "port=", "sslmode="}

// DialectorFor picks the gorm driver from the DSN shape: postgres for URL or
// key=value DSNs, sqlite for everything else (file paths, file: URIs, empty).
func DialectorFor(dsn string) gorm.Dialector {
	s := strings.TrimSpace(dsn)
	if s == "" {
		return sqlite.Open(DefaultSQLitePath)
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return postgres.Open(s)
	}
	for _, k := range postgresDSNKeys {
		if strings.Contains(lower, k) {
			return postgres.Open(s)
		}
	}
	return sqlite.Open(s)
}

// Connect opens the store, retrying briefly so a slow-starting database server
// does not kill the process, and applies migrations. The returned handle is
// constructed once at startup and passed by reference everywhere else.
func Connect(dsn string) (*gorm.DB, error) {
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var conn *gorm.DB
	var err error
	for i := 0; i < 5; i++ {
		conn, err = gorm.Open(DialectorFor(dsn), cfg)
		if err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := Migrate(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// Migrate applies the schema.
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(&models.Purchase{}, &models.Position{}); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	return nil
}
