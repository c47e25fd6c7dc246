package pgx

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pharmakg/backend/pkg/logger"
	"github.com/pharmakg/backend/pkg/store"

	"github.com/pgvector/pgvector-go"
)

const (
	defaultSearchLimit = 20
	relatedLimit       = 5
)

// SearchMedicines finds medicine entries matching the given filters.
// Name and category match as substrings, edition matches exactly.
// When a name search yields no rows and an embedding client is configured,
// it falls back to vector similarity over node embeddings.
func (s *GraphDBStorage) SearchMedicines(ctx context.Context, params store.SearchMedicinesParams) ([]store.Medicine, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	query := `SELECT id, properties FROM nodes WHERE 'Medicine' = ANY(labels)`
	args := []any{}
	if params.Name != "" {
		args = append(args, "%"+params.Name+"%")
		query += fmt.Sprintf(" AND properties->>'name' ILIKE $%d", len(args))
	}
	if params.Category != "" {
		args = append(args, "%"+params.Category+"%")
		query += fmt.Sprintf(" AND properties->>'category' ILIKE $%d", len(args))
	}
	if params.Edition != "" {
		args = append(args, params.Edition)
		query += fmt.Sprintf(" AND properties->>'edition' = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY properties->>'doc_id' LIMIT $%d", len(args))

	ids, medicines, err := s.queryMedicines(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	if len(medicines) == 0 && params.Name != "" && s.aiClient != nil {
		ids, medicines, err = s.searchMedicinesSemantic(ctx, params.Name, limit)
		if err != nil {
			logger.Warn("semantic fallback search failed", "name", params.Name, "err", err)
			return []store.Medicine{}, nil
		}
	}

	if len(medicines) == 0 {
		return []store.Medicine{}, nil
	}

	if err := s.attachPharmacopoeia(ctx, ids, medicines); err != nil {
		return nil, err
	}
	if params.IncludeRefersTo {
		if err := s.attachRefersTo(ctx, ids, medicines); err != nil {
			return nil, err
		}
	}
	if params.IncludeRelated {
		if err := s.attachRelatedByCategory(ctx, ids, medicines); err != nil {
			return nil, err
		}
	}

	return medicines, nil
}

func (s *GraphDBStorage) searchMedicinesSemantic(ctx context.Context, name string, limit int) ([]int64, []store.Medicine, error) {
	embedding, err := s.aiClient.GenerateEmbedding(ctx, []byte(name))
	if err != nil {
		return nil, nil, fmt.Errorf("embed search term: %w", err)
	}

	query := `SELECT id, properties FROM nodes
		WHERE 'Medicine' = ANY(labels) AND embedding IS NOT NULL
		ORDER BY embedding <=> $1 LIMIT $2`
	return s.queryMedicines(ctx, query, pgvector.NewVector(embedding), limit)
}

func (s *GraphDBStorage) queryMedicines(ctx context.Context, query string, args ...any) ([]int64, []store.Medicine, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query medicines: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	medicines := []store.Medicine{}
	for rows.Next() {
		var id int64
		var props []byte
		if err := rows.Scan(&id, &props); err != nil {
			return nil, nil, err
		}
		m, err := medicineFromProperties(props)
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		medicines = append(medicines, m)
	}
	return ids, medicines, rows.Err()
}

func (s *GraphDBStorage) attachPharmacopoeia(ctx context.Context, ids []int64, medicines []store.Medicine) error {
	query := `SELECT r.start_id, p.id, p.properties FROM relationships r
		JOIN nodes p ON p.id = r.end_id
		WHERE r.type = 'BELONGS_TO' AND r.start_id = ANY($1)`
	rows, err := s.conn.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("query pharmacopoeia: %w", err)
	}
	defer rows.Close()

	byID := indexByID(ids)
	for rows.Next() {
		var startID, nodeID int64
		var props []byte
		if err := rows.Scan(&startID, &nodeID, &props); err != nil {
			return err
		}
		var p map[string]any
		if err := json.Unmarshal(props, &p); err != nil {
			return err
		}
		idx, ok := byID[startID]
		if !ok {
			continue
		}
		medicines[idx].Pharmacopoeia = &store.Pharmacopoeia{
			ID:   propString(p, "id", strconv.FormatInt(nodeID, 10)),
			Name: propString(p, "name", ""),
		}
	}
	return rows.Err()
}

func (s *GraphDBStorage) attachRefersTo(ctx context.Context, ids []int64, medicines []store.Medicine) error {
	query := `SELECT r.start_id, ref.properties FROM relationships r
		JOIN nodes ref ON ref.id = r.end_id
		WHERE r.type = 'REFER_TO' AND r.start_id = ANY($1)
		ORDER BY ref.properties->>'doc_id'`
	rows, err := s.conn.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("query refersTo: %w", err)
	}
	defer rows.Close()

	byID := indexByID(ids)
	for rows.Next() {
		var startID int64
		var props []byte
		if err := rows.Scan(&startID, &props); err != nil {
			return err
		}
		m, err := medicineFromProperties(props)
		if err != nil {
			return err
		}
		idx, ok := byID[startID]
		if !ok {
			continue
		}
		medicines[idx].RefersTo = append(medicines[idx].RefersTo, m)
	}
	return rows.Err()
}

func (s *GraphDBStorage) attachRelatedByCategory(ctx context.Context, ids []int64, medicines []store.Medicine) error {
	query := `SELECT m.id, rel.properties FROM nodes m
		JOIN LATERAL (
			SELECT n.properties FROM nodes n
			WHERE 'Medicine' = ANY(n.labels)
				AND n.properties->>'category' = m.properties->>'category'
				AND n.properties->>'doc_id' <> m.properties->>'doc_id'
			ORDER BY n.properties->>'doc_id'
			LIMIT $2
		) rel ON true
		WHERE m.id = ANY($1)`
	rows, err := s.conn.Query(ctx, query, ids, relatedLimit)
	if err != nil {
		return fmt.Errorf("query relatedByCategory: %w", err)
	}
	defer rows.Close()

	byID := indexByID(ids)
	for rows.Next() {
		var nodeID int64
		var props []byte
		if err := rows.Scan(&nodeID, &props); err != nil {
			return err
		}
		m, err := medicineFromProperties(props)
		if err != nil {
			return err
		}
		idx, ok := byID[nodeID]
		if !ok {
			continue
		}
		medicines[idx].RelatedByCategory = append(medicines[idx].RelatedByCategory, m)
	}
	return rows.Err()
}

// ListVolumes returns all pharmacopoeia volumes ordered by name.
func (s *GraphDBStorage) ListVolumes(ctx context.Context) ([]store.Volume, error) {
	query := `SELECT properties->>'name' FROM nodes WHERE 'Volume' = ANY(labels) ORDER BY 1`
	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query volumes: %w", err)
	}
	defer rows.Close()

	volumes := []store.Volume{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		volumes = append(volumes, store.Volume{Name: name})
	}
	return volumes, rows.Err()
}

var volumeNames = map[string]int{
	"第一部": 1,
	"第二部": 2,
	"第三部": 3,
	"第四部": 4,
}

// ListCategories returns categories, optionally filtered by volume.
// The volume argument accepts a Chinese volume name or a number.
func (s *GraphDBStorage) ListCategories(ctx context.Context, volume string) ([]store.Category, error) {
	query := `SELECT properties FROM nodes WHERE 'Category' = ANY(labels)`
	args := []any{}
	if volume != "" {
		num, ok := volumeNames[volume]
		if !ok {
			parsed, err := strconv.Atoi(volume)
			if err != nil {
				parsed = 1
			}
			num = parsed
		}
		args = append(args, num)
		query += fmt.Sprintf(" AND (properties->>'volume')::int = $%d", len(args))
	}
	query += ` ORDER BY (properties->>'volume')::int, properties->>'name'`

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := []store.Category{}
	for rows.Next() {
		var props []byte
		if err := rows.Scan(&props); err != nil {
			return nil, err
		}
		var p map[string]any
		if err := json.Unmarshal(props, &p); err != nil {
			return nil, err
		}
		categories = append(categories, store.Category{
			Name:       propString(p, "name", ""),
			Volume:     propInt(p, "volume"),
			RangeStart: propInt(p, "range_start"),
			RangeEnd:   propInt(p, "range_end"),
		})
	}
	return categories, rows.Err()
}

func medicineFromProperties(props []byte) (store.Medicine, error) {
	var p map[string]any
	if err := json.Unmarshal(props, &p); err != nil {
		return store.Medicine{}, fmt.Errorf("decode node properties: %w", err)
	}
	return store.Medicine{
		DocID:      propString(p, "doc_id", ""),
		Name:       propString(p, "name", ""),
		Edition:    propString(p, "edition", ""),
		Category:   propString(p, "category", ""),
		NamePinyin: propString(p, "name_pinyin", ""),
		NameEn:     propString(p, "name_en", ""),
		Content:    propString(p, "content", ""),
	}, nil
}

func indexByID(ids []int64) map[int64]int {
	byID := make(map[int64]int, len(ids))
	for i, id := range ids {
		byID[id] = i
	}
	return byID
}

func propString(p map[string]any, key, fallback string) string {
	if v, ok := p[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func propInt(p map[string]any, key string) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
