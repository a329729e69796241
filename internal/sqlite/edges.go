package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trip-planner/internal/database"
	"trip-planner/internal/models"
)

type edgeRepository struct {
	store *Store
}

// UpsertNode inserts the node if absent. Nodes are immutable, so an existing
// node is returned unchanged.
func (r *edgeRepository) UpsertNode(ctx context.Context, n models.LocationNode) (*models.LocationNode, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `INSERT INTO route_nodes (id, lat, lng, created_at) VALUES (?, ?, ?, ?)
	          ON CONFLICT(id) DO NOTHING`
	if _, err := r.store.db.ExecContext(ctx, query, n.ID, n.Lat, n.Lng, toMillis(time.Now())); err != nil {
		return nil, &database.PersistenceError{Op: "upsert node", Err: err}
	}

	var stored models.LocationNode
	err := r.store.db.QueryRowContext(ctx, `SELECT id, lat, lng FROM route_nodes WHERE id = ?`, n.ID).
		Scan(&stored.ID, &stored.Lat, &stored.Lng)
	if err != nil {
		return nil, fmt.Errorf("failed to read node: %w", err)
	}

	return &stored, nil
}

func (r *edgeRepository) GetNode(ctx context.Context, id string) (*models.LocationNode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var n models.LocationNode
	err := r.store.db.QueryRowContext(ctx, `SELECT id, lat, lng FROM route_nodes WHERE id = ?`, id).
		Scan(&n.ID, &n.Lat, &n.Lng)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("node %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	return &n, nil
}

// UpsertEdge creates the directed edge or replaces its attributes
func (r *edgeRepository) UpsertEdge(ctx context.Context, e models.RouteEdge) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `INSERT INTO route_edges (from_id, to_id, mode, distance, road_ref, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?)
	          ON CONFLICT(from_id, to_id) DO UPDATE SET
	              mode = excluded.mode,
	              distance = excluded.distance,
	              road_ref = excluded.road_ref,
	              updated_at = excluded.updated_at`

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return &database.PersistenceError{Op: "upsert edge", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query, e.From, e.To, e.Mode, e.Distance, e.RoadRef, toMillis(time.Now())); err != nil {
		return &database.PersistenceError{Op: "upsert edge", Err: err}
	}
	if err := bumpGraphVersion(ctx, tx); err != nil {
		return &database.PersistenceError{Op: "upsert edge", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &database.PersistenceError{Op: "upsert edge", Err: err}
	}
	return nil
}

func bumpGraphVersion(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `UPDATE graph_version SET version = version + 1 WHERE id = 1`)
	return err
}

// DeleteEdge removes the directed edge from→to and reports how many rows went away
func (r *edgeRepository) DeleteEdge(ctx context.Context, from, to string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &database.PersistenceError{Op: "delete edge", Err: err}
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM route_edges WHERE from_id = ? AND to_id = ?`, from, to)
	if err != nil {
		return 0, &database.PersistenceError{Op: "delete edge", Err: err}
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return 0, nil
	}

	if err := bumpGraphVersion(ctx, tx); err != nil {
		return 0, &database.PersistenceError{Op: "delete edge", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return 0, &database.PersistenceError{Op: "delete edge", Err: err}
	}

	return int(rows), nil
}

// GraphVersion returns the counter advanced by every committed edge change
func (r *edgeRepository) GraphVersion(ctx context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var version int64
	err := r.store.db.QueryRowContext(ctx, `SELECT version FROM graph_version WHERE id = 1`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read graph version: %w", err)
	}
	return version, nil
}

func (r *edgeRepository) ListNodes(ctx context.Context) ([]models.LocationNode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rows, err := r.store.db.QueryContext(ctx, `SELECT id, lat, lng FROM route_nodes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []models.LocationNode
	for rows.Next() {
		var n models.LocationNode
		if err := rows.Scan(&n.ID, &n.Lat, &n.Lng); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, n)
	}

	return nodes, rows.Err()
}

func (r *edgeRepository) ListEdges(ctx context.Context) ([]models.RouteEdge, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rows, err := r.store.db.QueryContext(ctx,
		`SELECT from_id, to_id, mode, distance, road_ref FROM route_edges ORDER BY from_id, to_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var edges []models.RouteEdge
	for rows.Next() {
		var e models.RouteEdge
		if err := rows.Scan(&e.From, &e.To, &e.Mode, &e.Distance, &e.RoadRef); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, e)
	}

	return edges, rows.Err()
}
