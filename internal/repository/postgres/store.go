// Package postgres implements the ledger interfaces against PostgreSQL.
//
// The engagement updates here are the load-bearing part: open/click/bounce
// recording is a single conditional UPDATE per event, so concurrent and
// repeated events stay idempotent without application-side locking.
package postgres

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/ignite/campaign-dispatch/internal/ledger"
)

// Store bundles the Postgres-backed ledger repositories over one pool.
type Store struct {
	db         *sql.DB
	campaigns  *CampaignRepo
	recipients *RecipientRepo
}

// NewStore wraps an existing pool.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:         db,
		campaigns:  NewCampaignRepo(db),
		recipients: NewRecipientRepo(db),
	}
}

// Open connects, tunes the pool, and verifies the connection.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewStore(db), nil
}

// Campaigns returns the campaign repository.
func (s *Store) Campaigns() ledger.Campaigns { return s.campaigns }

// Recipients returns the recipient repository.
func (s *Store) Recipients() ledger.Recipients { return s.recipients }

// DB exposes the underlying pool for collaborators outside the ledger.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the pool.
func (s *Store) Close() error { return s.db.Close() }
