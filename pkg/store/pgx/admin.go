package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pharmakg/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const defaultNodeSearchLimit = 50

// ListLabels returns every distinct node label in the graph.
func (s *GraphDBStorage) ListLabels(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT DISTINCT unnest(labels) FROM nodes ORDER BY 1`)
}

// ListRelationshipTypes returns every distinct relationship type in the graph.
func (s *GraphDBStorage) ListRelationshipTypes(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT DISTINCT type FROM relationships ORDER BY 1`)
}

func (s *GraphDBStorage) queryStrings(ctx context.Context, query string) ([]string, error) {
	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CountByLabel returns the number of nodes carrying the given label.
func (s *GraphDBStorage) CountByLabel(ctx context.Context, label string) (int64, error) {
	var count int64
	err := s.conn.QueryRow(ctx,
		`SELECT count(*) FROM nodes WHERE $1 = ANY(labels)`, label,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return count, nil
}

// GetNode fetches a single node by its internal id.
func (s *GraphDBStorage) GetNode(ctx context.Context, id int64) (*store.NodeRecord, error) {
	row := s.conn.QueryRow(ctx,
		`SELECT id, labels, properties FROM nodes WHERE id = $1`, id)
	return scanNode(row)
}

// SearchNodes lists nodes filtered by label and a substring match on the
// name property. Empty filters are ignored.
func (s *GraphDBStorage) SearchNodes(ctx context.Context, label string, nameContains string, limit int) ([]store.NodeRecord, error) {
	if limit <= 0 {
		limit = defaultNodeSearchLimit
	}

	query := `SELECT id, labels, properties FROM nodes WHERE true`
	args := []any{}
	if label != "" {
		args = append(args, label)
		query += fmt.Sprintf(" AND $%d = ANY(labels)", len(args))
	}
	if nameContains != "" {
		args = append(args, "%"+nameContains+"%")
		query += fmt.Sprintf(" AND properties->>'name' ILIKE $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d", len(args))

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search nodes: %w", err)
	}
	defer rows.Close()

	nodes := []store.NodeRecord{}
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *node)
	}
	return nodes, rows.Err()
}

// CreateNode inserts a node with the given labels and properties.
func (s *GraphDBStorage) CreateNode(ctx context.Context, labels []string, properties map[string]any) (*store.NodeRecord, error) {
	props, err := json.Marshal(properties)
	if err != nil {
		return nil, fmt.Errorf("encode properties: %w", err)
	}
	row := s.conn.QueryRow(ctx,
		`INSERT INTO nodes (labels, properties) VALUES ($1, $2) RETURNING id, labels, properties`,
		labels, props)
	return scanNode(row)
}

// UpdateNode merges the given properties into an existing node.
func (s *GraphDBStorage) UpdateNode(ctx context.Context, id int64, properties map[string]any) (*store.NodeRecord, error) {
	props, err := json.Marshal(properties)
	if err != nil {
		return nil, fmt.Errorf("encode properties: %w", err)
	}
	row := s.conn.QueryRow(ctx,
		`UPDATE nodes SET properties = properties || $2::jsonb WHERE id = $1 RETURNING id, labels, properties`,
		id, props)
	return scanNode(row)
}

// DeleteNode removes a node and all relationships touching it.
func (s *GraphDBStorage) DeleteNode(ctx context.Context, id int64) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM relationships WHERE start_id = $1 OR end_id = $1`, id); err != nil {
		return fmt.Errorf("delete relationships: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM nodes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgxv5.ErrNoRows
	}
	return tx.Commit(ctx)
}

// ListRelationships returns every relationship starting or ending at the node.
func (s *GraphDBStorage) ListRelationships(ctx context.Context, nodeID int64) ([]store.RelationshipRecord, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT id, type, start_id, end_id, properties FROM relationships
		 WHERE start_id = $1 OR end_id = $1 ORDER BY id`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()

	rels := []store.RelationshipRecord{}
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, *rel)
	}
	return rels, rows.Err()
}

// CreateRelationship inserts a typed edge between two nodes.
func (s *GraphDBStorage) CreateRelationship(ctx context.Context, relType string, startID, endID int64, properties map[string]any) (*store.RelationshipRecord, error) {
	if properties == nil {
		properties = map[string]any{}
	}
	props, err := json.Marshal(properties)
	if err != nil {
		return nil, fmt.Errorf("encode properties: %w", err)
	}
	row := s.conn.QueryRow(ctx,
		`INSERT INTO relationships (type, start_id, end_id, properties)
		 VALUES ($1, $2, $3, $4) RETURNING id, type, start_id, end_id, properties`,
		relType, startID, endID, props)
	return scanRelationship(row)
}

// DeleteRelationship removes a single edge by id.
func (s *GraphDBStorage) DeleteRelationship(ctx context.Context, id int64) error {
	tag, err := s.conn.Exec(ctx, `DELETE FROM relationships WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete relationship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgxv5.ErrNoRows
	}
	return nil
}

func scanNode(row pgxv5.Row) (*store.NodeRecord, error) {
	var node store.NodeRecord
	var props []byte
	if err := row.Scan(&node.ID, &node.Labels, &props); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(props, &node.Properties); err != nil {
		return nil, fmt.Errorf("decode node properties: %w", err)
	}
	return &node, nil
}

func scanRelationship(row pgxv5.Row) (*store.RelationshipRecord, error) {
	var rel store.RelationshipRecord
	var props []byte
	if err := row.Scan(&rel.ID, &rel.Type, &rel.StartID, &rel.EndID, &props); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(props, &rel.Properties); err != nil {
		return nil, fmt.Errorf("decode relationship properties: %w", err)
	}
	return &rel, nil
}
