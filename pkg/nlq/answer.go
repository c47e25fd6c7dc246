package nlq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pharmakg/backend/pkg/ai"
	"github.com/pharmakg/backend/pkg/logger"

	"github.com/pkoukk/tiktoken-go"
)

const (
	answerTemperature = 0.3
	answerMaxTokens   = 4000
	answerMaxTries    = 2
	answerRetryDelay  = 500 * time.Millisecond

	// token budget for the serialized query result inside the prompt
	resultTokenBudget = 8000

	fallbackAnswer = "抱歉，在生成答案时遇到了问题。不过我已成功查询到相关数据，请查看下方的证据列表。"
	emptyAnswer    = "未能生成答案"

	tokenEncoding = "o200k_base"
)

// Answerer produces the final natural language answer with the smart
// model profile. It degrades instead of failing: the worst case is a
// fixed apology with empty evidence.
type Answerer struct {
	aiClient    ai.GraphAIClient
	answerModel string
	timeout     time.Duration
}

// NewAnswererParams configures an Answerer.
type NewAnswererParams struct {
	AIClient    ai.GraphAIClient
	AnswerModel string
	Timeout     time.Duration
}

// NewAnswerer creates an Answerer.
func NewAnswerer(params NewAnswererParams) *Answerer {
	return &Answerer{
		aiClient:    params.AIClient,
		answerModel: params.AnswerModel,
		timeout:     params.Timeout,
	}
}

type answerPayload struct {
	Answer   string         `json:"answer"`
	Evidence []EvidenceItem `json:"evidence"`
	Warnings []string       `json:"warnings,omitempty"`
}

// GenerateAnswer asks the model to answer the question from the trimmed
// query result. It never returns an error; any failure yields a degraded
// but usable answer.
func (a *Answerer) GenerateAnswer(ctx context.Context, question string, plan QueryPlan, trimmedResult map[string]any) (string, []EvidenceItem) {
	serialized := a.serializeResult(trimmedResult)
	prompt := AnswerPrompt(question, plan, serialized)

	logger.Info("[Answerer] generating answer", "model", a.answerModel, "promptBytes", len(prompt))

	response, err := a.completeWithRetry(ctx, prompt)
	if err != nil {
		logger.Error("[Answerer] answer generation failed, degrading", "err", err)
		return fallbackAnswer, []EvidenceItem{}
	}

	var payload answerPayload
	if err := ai.UnmarshalFlexible(ai.ExtractJSON(response), &payload); err != nil {
		logger.Warn("[Answerer] answer output is not valid JSON, using raw text")
		return response, []EvidenceItem{}
	}

	answer := payload.Answer
	if answer == "" {
		answer = emptyAnswer
	}
	evidence := payload.Evidence
	if evidence == nil {
		evidence = []EvidenceItem{}
	}
	return answer, evidence
}

// serializeResult encodes the trimmed result for prompting, cutting it at
// the token budget so oversized result sets cannot blow the context window.
func (a *Answerer) serializeResult(trimmedResult map[string]any) string {
	raw, err := json.MarshalIndent(trimmedResult, "", "  ")
	if err != nil {
		return "{}"
	}
	serialized := string(raw)

	enc, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		logger.Warn("[Answerer] token encoding unavailable", "err", err)
		return serialized
	}

	tokens := enc.Encode(serialized, nil, nil)
	if len(tokens) <= resultTokenBudget {
		return serialized
	}

	logger.Warn("[Answerer] query result over token budget, truncating",
		"tokens", len(tokens), "budget", resultTokenBudget)
	return enc.Decode(tokens[:resultTokenBudget]) + "\n...（结果已截断）"
}

func (a *Answerer) completeWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < answerMaxTries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * answerRetryDelay):
			}
		}

		response, err := a.aiClient.GenerateCompletion(ctx, prompt,
			ai.WithModel(a.answerModel),
			ai.WithTemperature(answerTemperature),
			ai.WithMaxTokens(answerMaxTokens),
			ai.WithTimeout(a.timeout),
		)
		if err == nil {
			return response, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", lastErr
}
