package nlq

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pharmakg/backend/pkg/ai"
	"github.com/pharmakg/backend/pkg/logger"
)

const (
	planTemperature = 0.1
	planMaxTokens   = 2000
	planMaxTries    = 2
	planRetryDelay  = 500 * time.Millisecond
)

// Planner turns a user question into a validated, sanitized QueryPlan
// using the fast model profile. A failed round gets exactly one repair
// attempt before giving up with a PlanningError.
type Planner struct {
	aiClient       ai.GraphAIClient
	digest         *DigestProvider
	planModel      string
	fixModel       string
	maxRowsCeiling int
	timeout        time.Duration
}

// NewPlannerParams configures a Planner.
type NewPlannerParams struct {
	AIClient       ai.GraphAIClient
	Digest         *DigestProvider
	PlanModel      string
	FixModel       string
	MaxRowsCeiling int
	Timeout        time.Duration
}

// NewPlanner creates a Planner.
func NewPlanner(params NewPlannerParams) *Planner {
	return &Planner{
		aiClient:       params.AIClient,
		digest:         params.Digest,
		planModel:      params.PlanModel,
		fixModel:       params.FixModel,
		maxRowsCeiling: params.MaxRowsCeiling,
		timeout:        params.Timeout,
	}
}

// GeneratePlan produces a canonical query plan for the question, together
// with accumulated warnings. Unparseable or invalid model output triggers
// one repair round; if that fails too, a PlanningError is returned.
func (p *Planner) GeneratePlan(ctx context.Context, question string, mode QueryIntent) (*QueryPlan, []string, error) {
	schemaDigest := p.digest.Digest(ctx)
	prompt := PlanPrompt(schemaDigest, question, mode)

	logger.Info("[Planner] generating query plan", "model", p.planModel, "mode", mode)

	response, err := p.completeWithRetry(ctx, prompt, p.planModel)
	if err != nil {
		return nil, nil, &PlanningError{
			Reason: "LLM 调用失败 (" + p.planModel + ")",
			Cause:  err,
		}
	}

	warnings := []string{}

	var rawPlan map[string]any
	if err := ai.UnmarshalFlexible(ai.ExtractJSON(response), &rawPlan); err != nil {
		logger.Warn("[Planner] plan output is not valid JSON, attempting repair")
		plan, fixErr := p.fixPlan(ctx, response, "返回的不是有效的 JSON", schemaDigest)
		if fixErr != nil {
			return nil, nil, &PlanningError{Reason: "查询计划无法解析且修复失败", Cause: fixErr}
		}
		return plan, []string{"LLM 返回格式不正确，已自动修复"}, nil
	}

	validation := ValidateQueryPlan(rawPlan, p.maxRowsCeiling)
	if !validation.Valid {
		logger.Warn("[Planner] plan validation failed", "errors", strings.Join(validation.Errors, "; "))

		original, _ := json.MarshalIndent(rawPlan, "", "  ")
		plan, fixErr := p.fixPlan(ctx, string(original), strings.Join(validation.Errors, "; "), schemaDigest)
		if fixErr != nil {
			return nil, nil, &PlanningError{
				Reason: "查询计划验证失败且无法修复: " + strings.Join(validation.Errors, ", "),
				Cause:  fixErr,
			}
		}
		warnings = append(warnings, "查询计划已自动修复")
		return plan, warnings, nil
	}

	warnings = append(warnings, validation.Warnings...)

	plan := SanitizeQueryPlan(rawPlan, p.maxRowsCeiling)
	return &plan, warnings, nil
}

// fixPlan runs the single repair round. The repaired plan must parse and
// validate; there is no second repair.
func (p *Planner) fixPlan(ctx context.Context, originalPlan, errorMessage, schemaDigest string) (*QueryPlan, error) {
	prompt := FixPrompt(originalPlan, errorMessage, schemaDigest)

	response, err := p.aiClient.GenerateCompletion(ctx, prompt,
		ai.WithModel(p.fixModel),
		ai.WithTemperature(planTemperature),
		ai.WithMaxTokens(planMaxTokens),
		ai.WithTimeout(p.timeout),
	)
	if err != nil {
		return nil, err
	}

	var rawPlan map[string]any
	if err := ai.UnmarshalFlexible(ai.ExtractJSON(response), &rawPlan); err != nil {
		return nil, &PlanningError{Reason: "修复后的查询计划仍然不是有效的 JSON", Cause: err}
	}

	validation := ValidateQueryPlan(rawPlan, p.maxRowsCeiling)
	if !validation.Valid {
		return nil, &PlanningError{Reason: "修复失败: " + strings.Join(validation.Errors, ", ")}
	}

	plan := SanitizeQueryPlan(rawPlan, p.maxRowsCeiling)
	return &plan, nil
}

func (p *Planner) completeWithRetry(ctx context.Context, prompt, model string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < planMaxTries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * planRetryDelay):
			}
		}

		response, err := p.aiClient.GenerateCompletion(ctx, prompt,
			ai.WithModel(model),
			ai.WithTemperature(planTemperature),
			ai.WithMaxTokens(planMaxTokens),
			ai.WithTimeout(p.timeout),
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
