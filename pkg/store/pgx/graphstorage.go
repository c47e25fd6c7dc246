package pgx

import (
	"context"

	"github.com/pharmakg/backend/pkg/ai"
	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStorage implements the GraphStorage interface using PostgreSQL with
// pgvector for semantic fallback search. Medicines, volumes and categories
// are stored as labeled nodes with jsonb properties; edges live in the
// relationships table.
type GraphDBStorage struct {
	conn     pgxIConn
	aiClient ai.GraphAIClient
}

type GraphDBStorageOption func(*GraphDBStorage)

// WithEmbeddingClient enables semantic fallback search using the given
// client to embed query terms.
func WithEmbeddingClient(client ai.GraphAIClient) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.aiClient = client
	}
}

// NewGraphDBStorageWithConnection creates a new GraphDBStorage using an
// existing database connection or pool.
func NewGraphDBStorageWithConnection(
	conn pgxIConn,
	opts ...GraphDBStorageOption,
) *GraphDBStorage {
	s := &GraphDBStorage{
		conn: conn,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}
