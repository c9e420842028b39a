package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLite persists the store in a single database file. Each save rewrites
// the corresponding tables inside one transaction.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dbPath.
// Uses WAL mode for file-based databases.
func OpenSQLite(dbPath string) (*SQLite, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &SQLite{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *SQLite) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		identity TEXT PRIMARY KEY,
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		identity TEXT NOT NULL,
		seq INTEGER NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (identity, seq)
	);

	CREATE TABLE IF NOT EXISTS watched (
		identity TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		data TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_position ON items(position);
	CREATE INDEX IF NOT EXISTS idx_watched_position ON watched(position);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Load reads items in stored order, each history oldest first.
func (s *SQLite) Load() (*Histories, *WatchSet, error) {
	items := NewHistories()

	rows, err := s.db.Query(`
		SELECT i.identity, sn.data
		FROM items i
		JOIN snapshots sn ON sn.identity = i.identity
		ORDER BY i.position, sn.seq
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("query snapshots: %w", err)
	}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("scan snapshot: %w", err)
		}
		var snap Snapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("decode snapshot %s: %w", id, err)
		}
		history, _ := items.Get(id)
		items.Set(id, append(history, snap))
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, nil, err
	}
	rows.Close()

	watched := NewWatchSet()
	wrows, err := s.db.Query(`SELECT identity, data FROM watched ORDER BY position`)
	if err != nil {
		return nil, nil, fmt.Errorf("query watched: %w", err)
	}
	defer wrows.Close()
	for wrows.Next() {
		var id, data string
		if err := wrows.Scan(&id, &data); err != nil {
			return nil, nil, fmt.Errorf("scan watched: %w", err)
		}
		var snap Snapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			return nil, nil, fmt.Errorf("decode watched %s: %w", id, err)
		}
		watched.Set(id, snap)
	}
	if err := wrows.Err(); err != nil {
		return nil, nil, err
	}
	return items, watched, nil
}

// SaveItems replaces all item histories in one transaction.
func (s *SQLite) SaveItems(items *Histories) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM items`); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}

	itemStmt, err := tx.Prepare(`INSERT INTO items (identity, position) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer itemStmt.Close()
	snapStmt, err := tx.Prepare(`INSERT INTO snapshots (identity, seq, data) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer snapStmt.Close()

	position := 0
	for pair := items.Oldest(); pair != nil; pair = pair.Next() {
		if _, err := itemStmt.Exec(pair.Key, position); err != nil {
			return fmt.Errorf("insert item %s: %w", pair.Key, err)
		}
		position++
		for seq, snap := range pair.Value {
			data, err := json.Marshal(snap)
			if err != nil {
				return fmt.Errorf("encode snapshot %s: %w", pair.Key, err)
			}
			if _, err := snapStmt.Exec(pair.Key, seq, string(data)); err != nil {
				return fmt.Errorf("insert snapshot %s: %w", pair.Key, err)
			}
		}
	}
	return tx.Commit()
}

// SaveWatched replaces the watch set in one transaction.
func (s *SQLite) SaveWatched(watched *WatchSet) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM watched`); err != nil {
		return fmt.Errorf("clear watched: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO watched (identity, position, data) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	position := 0
	for pair := watched.Oldest(); pair != nil; pair = pair.Next() {
		data, err := json.Marshal(pair.Value)
		if err != nil {
			return fmt.Errorf("encode watched %s: %w", pair.Key, err)
		}
		if _, err := stmt.Exec(pair.Key, position, string(data)); err != nil {
			return fmt.Errorf("insert watched %s: %w", pair.Key, err)
		}
		position++
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}
