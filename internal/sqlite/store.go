package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"trip-planner/internal/database"

	_ "modernc.org/sqlite"
)

const (
	DefaultDBFileName = "trip-planner.db"
	MemoryPath        = ":memory:"
	schemaVersion     = 2
)

// graphVersionSchema tracks edge-set changes so every process sharing the
// file can tell when its routing projection is out of date.
const graphVersionSchema = `
	CREATE TABLE IF NOT EXISTS graph_version (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL
	);
	INSERT OR IGNORE INTO graph_version (id, version) VALUES (1, 0);
`

// Store is a SQLite-based data store implementing database.DataStore
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex

	placeRepo   database.PlaceRepository
	hotelRepo   database.HotelRepository
	eventRepo   database.EventRepository
	edgeRepo    database.EdgeRepository
	historyRepo database.HistoryRepository
}

// New creates a new SQLite store at the specified path
func New(dbPath string) (*Store, error) {
	if dbPath != MemoryPath {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	log.Printf("[DB] Opening SQLite database: path=%s", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases alive and serialises writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.placeRepo = &placeRepository{store: store}
	store.hotelRepo = &hotelRepository{store: store}
	store.eventRepo = &eventRepository{store: store}
	store.edgeRepo = &edgeRepository{store: store}
	store.historyRepo = &historyRepository{store: store}

	return store, nil
}

// GetDBPath returns the current database file path
func (s *Store) GetDBPath() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		// Table doesn't exist, create everything
		return s.createSchema()
	}

	if version < schemaVersion {
		if err := s.runMigrations(version); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	INSERT INTO schema_version (version) VALUES (2);

	CREATE TABLE IF NOT EXISTS places (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		address_line TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		average_rating REAL NOT NULL DEFAULT 0,
		popularity REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS hotels (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		image TEXT NOT NULL DEFAULT '',
		address_line TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		average_rating REAL NOT NULL DEFAULT 0,
		price_per_night REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '',
		address_line TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		starts_at INTEGER NOT NULL,
		ends_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS route_nodes (
		id TEXT PRIMARY KEY,
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS route_edges (
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		mode TEXT NOT NULL DEFAULT '',
		distance REAL NOT NULL CHECK (distance >= 0),
		road_ref TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (from_id, to_id),
		FOREIGN KEY (from_id) REFERENCES route_nodes(id),
		FOREIGN KEY (to_id) REFERENCES route_nodes(id)
	);

	CREATE TABLE IF NOT EXISTS plan_history (
		request_id TEXT PRIMARY KEY,
		requester_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		inputs TEXT NOT NULL,
		days TEXT NOT NULL DEFAULT '[]',
		error TEXT NOT NULL DEFAULT '',
		submitted_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_places_coords ON places(lat, lng);
	CREATE INDEX IF NOT EXISTS idx_hotels_coords ON hotels(lat, lng);
	CREATE INDEX IF NOT EXISTS idx_events_coords ON events(lat, lng);
	CREATE INDEX IF NOT EXISTS idx_plan_history_requester ON plan_history(requester_id, submitted_at DESC);
	`

	if _, err := s.db.Exec(schema + graphVersionSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Printf("[DB] SQLite schema initialized: version=%d", schemaVersion)
	return nil
}

func (s *Store) runMigrations(fromVersion int) error {
	log.Printf("[DB] Migrating schema: from=%d to=%d", fromVersion, schemaVersion)
	if fromVersion < 2 {
		if _, err := s.db.Exec(graphVersionSchema); err != nil {
			return fmt.Errorf("failed to add graph version: %w", err)
		}
	}
	_, err := s.db.Exec("UPDATE schema_version SET version = ?", schemaVersion)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		// Checkpoint WAL before closing
		s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies the database connection
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Repository accessors
func (s *Store) Places() database.PlaceRepository     { return s.placeRepo }
func (s *Store) Hotels() database.HotelRepository     { return s.hotelRepo }
func (s *Store) Events() database.EventRepository     { return s.eventRepo }
func (s *Store) Edges() database.EdgeRepository       { return s.edgeRepo }
func (s *Store) History() database.HistoryRepository  { return s.historyRepo }

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	b := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
