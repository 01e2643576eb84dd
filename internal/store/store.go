// Package store keeps working proxies in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/August26/proxyscout/internal/model"
)

const schema = `CREATE TABLE IF NOT EXISTS proxies (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ip_port    TEXT NOT NULL,
	country    TEXT NOT NULL,
	protocol   TEXT NOT NULL,
	checked_at TIMESTAMP NOT NULL
)`

// Record is one saved row.
type Record struct {
	ID        int64
	Candidate string
	Country   string
	Protocol  model.Protocol
	CheckedAt time.Time
}

// Store saves working proxies of one protocol.
type Store struct {
	db       *sql.DB
	protocol model.Protocol
	now      func() time.Time
}

// Open opens (creating if needed) the database at path. Rows saved through
// the returned store are tagged with protocol.
func Open(ctx context.Context, path string, protocol model.Protocol) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer; the engine saves from a single goroutine anyway
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, protocol: protocol, now: time.Now}, nil
}

// Save inserts one working proxy.
func (s *Store) Save(ctx context.Context, candidate, country string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO proxies (ip_port, country, protocol, checked_at) VALUES (?, ?, ?, ?)",
		candidate, country, string(s.protocol), s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", candidate, err)
	}
	return nil
}

// List returns every row in insertion order.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, ip_port, country, protocol, checked_at FROM proxies ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list proxies: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r     Record
			proto string
		)
		if err := rows.Scan(&r.ID, &r.Candidate, &r.Country, &proto, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan proxy: %w", err)
		}
		r.Protocol = model.Protocol(proto)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
