package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pharmakg/backend/pkg/logger"
	"github.com/pharmakg/backend/pkg/store"

	"github.com/graphql-go/graphql"
)

// Executor runs GraphQL queries against the pharmacopoeia schema and
// normalizes results into plain maps for downstream processing.
type Executor struct {
	schema graphql.Schema
}

// NewExecutor builds an Executor backed by the given storage.
func NewExecutor(storage store.GraphStorage) (*Executor, error) {
	schema, err := NewSchema(storage)
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	return &Executor{schema: schema}, nil
}

// Execute runs a single query with the given variables. The result data is
// normalized through JSON so nested values come back as map[string]any and
// []any regardless of the resolver types.
func (e *Executor) Execute(ctx context.Context, query string, variables map[string]any) (map[string]any, error) {
	result := graphql.Do(graphql.Params{
		Schema:         e.schema,
		RequestString:  query,
		VariableValues: variables,
		Context:        ctx,
	})

	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, gqlErr := range result.Errors {
			msgs = append(msgs, gqlErr.Message)
		}
		logger.Warn("graphql execution failed", "errors", strings.Join(msgs, "; "))
		return nil, fmt.Errorf("graphql: %s", strings.Join(msgs, "; "))
	}

	normalized, err := normalizeData(result.Data)
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

func normalizeData(data any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}
