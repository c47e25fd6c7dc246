package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/pharmakg/backend/pkg/ai"

	"github.com/ollama/ollama/api"
)

// GenerateEmbedding creates a vector embedding for the given input text
// using the configured embedding model on Ollama.
//
// The input is provided as a byte slice and converted to a string before
// being sent to the embedding model.
func (c *GraphOllamaClient) GenerateEmbedding(
	ctx context.Context,
	input []byte,
) ([]float32, error) {
	if c.embeddingModel == "" {
		return nil, fmt.Errorf("embedding model not configured")
	}
	text := strings.TrimSpace(string(input))
	if text == "" {
		return nil, fmt.Errorf("empty embedding input")
	}

	rCtx, cancel := context.WithTimeout(ctx, c.defaultTimeout)
	defer cancel()

	req := &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: text,
	}

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	res, err := c.Client.Embed(rCtx, req)
	if err != nil {
		return nil, err
	}

	metrics := ai.ModelMetrics{
		InputTokens: res.PromptEvalCount,
		TotalTokens: res.PromptEvalCount,
		DurationMs:  res.TotalDuration.Milliseconds(),
	}
	c.modifyMetrics(metrics)

	if len(res.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	out := make([]float32, 0, len(res.Embeddings[0]))
	for _, v := range res.Embeddings[0] {
		out = append(out, float32(v))
	}
	return out, nil
}
