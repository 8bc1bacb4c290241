package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"github.com/Arijit65/marriage-app-sub001/internal/config"
	"github.com/Arijit65/marriage-app-sub001/internal/store"
)

var (
	_ store.ProposalStore = (*DB)(nil)
	_ store.PaymentStore  = (*DB)(nil)
	_ store.OutboxStore   = (*DB)(nil)
)

// DB wraps the Postgres connection pool. All store implementations hang
// off this type.
type DB struct {
	*sql.DB
}

// New opens the connection pool and verifies it with a ping.
func New(cfg config.Config) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations executes every .sql file in dir in lexical order.
// Statements are idempotent (IF NOT EXISTS), so rerunning is safe.
func (db *DB) RunMigrations(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
		log.Printf("Applied migration %s", name)
	}
	return nil
}
