package store

import (
	"context"
)

// Pharmacopoeia identifies the edition a medicine entry belongs to.
type Pharmacopoeia struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Medicine is a single pharmacopoeia entry. RefersTo and RelatedByCategory
// are only populated when the caller asks for them.
type Medicine struct {
	DocID             string         `json:"doc_id"`
	Name              string         `json:"name"`
	Edition           string         `json:"edition,omitempty"`
	Category          string         `json:"category,omitempty"`
	NamePinyin        string         `json:"name_pinyin,omitempty"`
	NameEn            string         `json:"name_en,omitempty"`
	Content           string         `json:"content,omitempty"`
	Pharmacopoeia     *Pharmacopoeia `json:"pharmacopoeia,omitempty"`
	RefersTo          []Medicine     `json:"refersTo,omitempty"`
	RelatedByCategory []Medicine     `json:"relatedByCategory,omitempty"`
}

// Volume is a top-level division of the pharmacopoeia.
type Volume struct {
	Name string `json:"name"`
}

// Category groups medicines inside a volume.
type Category struct {
	Name       string `json:"name"`
	Volume     int    `json:"volume,omitempty"`
	RangeStart int    `json:"range_start,omitempty"`
	RangeEnd   int    `json:"range_end,omitempty"`
}

// SearchMedicinesParams filters medicine lookups. Empty string fields are
// ignored. Limit <= 0 falls back to the storage default.
type SearchMedicinesParams struct {
	Name            string
	Category        string
	Edition         string
	IncludeRefersTo bool
	IncludeRelated  bool
	Limit           int
}

// NodeRecord is a raw graph node as stored, used by the admin surface.
type NodeRecord struct {
	ID         int64          `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// RelationshipRecord is a raw graph edge as stored, used by the admin surface.
type RelationshipRecord struct {
	ID         int64          `json:"id"`
	Type       string         `json:"type"`
	StartID    int64          `json:"start_id"`
	EndID      int64          `json:"end_id"`
	Properties map[string]any `json:"properties"`
}

// GraphStorage defines the interface for querying and maintaining the
// pharmacopoeia knowledge graph. Domain queries serve the GraphQL layer;
// the raw node and relationship operations serve the admin surface.
type GraphStorage interface {
	SearchMedicines(ctx context.Context, params SearchMedicinesParams) ([]Medicine, error)
	ListVolumes(ctx context.Context) ([]Volume, error)
	ListCategories(ctx context.Context, volume string) ([]Category, error)

	ListLabels(ctx context.Context) ([]string, error)
	ListRelationshipTypes(ctx context.Context) ([]string, error)
	CountByLabel(ctx context.Context, label string) (int64, error)

	GetNode(ctx context.Context, id int64) (*NodeRecord, error)
	SearchNodes(ctx context.Context, label string, nameContains string, limit int) ([]NodeRecord, error)
	CreateNode(ctx context.Context, labels []string, properties map[string]any) (*NodeRecord, error)
	UpdateNode(ctx context.Context, id int64, properties map[string]any) (*NodeRecord, error)
	DeleteNode(ctx context.Context, id int64) error

	ListRelationships(ctx context.Context, nodeID int64) ([]RelationshipRecord, error)
	CreateRelationship(ctx context.Context, relType string, startID, endID int64, properties map[string]any) (*RelationshipRecord, error)
	DeleteRelationship(ctx context.Context, id int64) error
}
