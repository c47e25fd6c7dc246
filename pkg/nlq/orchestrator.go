package nlq

import (
	"context"

	"github.com/pharmakg/backend/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// QueryExecutor runs a validated GraphQL query and returns its data.
type QueryExecutor interface {
	Execute(ctx context.Context, query string, variables map[string]any) (map[string]any, error)
}

// Limits holds the post-processing ceilings applied to every request.
type Limits struct {
	MaxRows  int
	MaxNodes int
	MaxEdges int
	MaxDepth int
}

// Orchestrator drives the NLQ pipeline: validate, plan, execute,
// post-process, answer. It is stateless across requests; stage 2 takes
// the stage 1 outputs back as arguments.
type Orchestrator struct {
	planner  *Planner
	answerer *Answerer
	executor QueryExecutor
	limits   Limits
}

// NewOrchestratorParams configures an Orchestrator.
type NewOrchestratorParams struct {
	Planner  *Planner
	Answerer *Answerer
	Executor QueryExecutor
	Limits   Limits
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(params NewOrchestratorParams) *Orchestrator {
	return &Orchestrator{
		planner:  params.Planner,
		answerer: params.Answerer,
		executor: params.Executor,
		limits:   params.Limits,
	}
}

// Process runs the full single-shot pipeline.
func (o *Orchestrator) Process(ctx context.Context, req NLQRequest) (*NLQResponse, error) {
	trace := traceID()
	logger.Info("[NLQ] processing request", "trace", trace, "mode", req.Mode)

	warnings := []string{}

	inputValidation := ValidateUserInput(req.Question)
	if !inputValidation.Valid {
		return nil, &InputValidationError{Errors: inputValidation.Errors}
	}
	warnings = append(warnings, inputValidation.Warnings...)

	plan, planWarnings, err := o.planner.GeneratePlan(ctx, req.Question, req.Mode)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, planWarnings...)

	queryResult, err := o.executor.Execute(ctx, plan.Query, plan.Variables)
	if err != nil {
		logger.Error("[NLQ] query execution failed", "trace", trace, "err", err)
		return nil, &ExecutionError{Cause: err}
	}

	trimmed := TrimQueryResult(queryResult, o.limits.MaxDepth, o.limits.MaxRows)
	rawGraph := ExtractGraph(trimmed)
	graph := TrimGraph(rawGraph, o.limits.MaxNodes, o.limits.MaxEdges)
	localEvidence := GenerateEvidence(trimmed)

	answer, evidence := o.answerer.GenerateAnswer(ctx, req.Question, *plan, trimmed)
	if len(evidence) == 0 {
		evidence = localEvidence
	}

	logger.Info("[NLQ] request complete", "trace", trace,
		"nodes", len(graph.Nodes), "edges", len(graph.Edges), "evidence", len(evidence))

	return &NLQResponse{
		Plan:        *plan,
		Answer:      answer,
		Evidence:    evidence,
		Graph:       &graph,
		Warnings:    emptyToNil(warnings),
		QueryResult: queryResult,
	}, nil
}

// ProcessStage1 plans and executes the query without generating an answer,
// so the client can render results while stage 2 is still running.
func (o *Orchestrator) ProcessStage1(ctx context.Context, req NLQRequest) (*Stage1Response, error) {
	trace := traceID()
	logger.Info("[NLQ] stage 1 start", "trace", trace, "mode", req.Mode)

	warnings := []string{}

	inputValidation := ValidateUserInput(req.Question)
	if !inputValidation.Valid {
		return nil, &InputValidationError{Errors: inputValidation.Errors}
	}
	warnings = append(warnings, inputValidation.Warnings...)

	plan, planWarnings, err := o.planner.GeneratePlan(ctx, req.Question, req.Mode)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, planWarnings...)

	queryResult, err := o.executor.Execute(ctx, plan.Query, plan.Variables)
	if err != nil {
		logger.Error("[NLQ] stage 1 execution failed", "trace", trace, "err", err)
		return nil, &ExecutionError{Cause: err}
	}

	trimmed := TrimQueryResult(queryResult, o.limits.MaxDepth, o.limits.MaxRows)
	graph := ExtractGraph(trimmed)
	evidence := GenerateEvidence(trimmed)

	if len(graph.Nodes) > o.limits.MaxNodes || len(graph.Edges) > o.limits.MaxEdges {
		graph = TrimGraph(graph, o.limits.MaxNodes, o.limits.MaxEdges)
	}

	logger.Info("[NLQ] stage 1 complete", "trace", trace,
		"nodes", len(graph.Nodes), "edges", len(graph.Edges))

	return &Stage1Response{
		Plan:        *plan,
		QueryResult: queryResult,
		Graph:       &graph,
		Evidence:    evidence,
		Warnings:    emptyToNil(warnings),
	}, nil
}

// ProcessStage2 generates the answer for a stage 1 result. The trim is
// idempotent, so re-trimming client-supplied data is harmless.
func (o *Orchestrator) ProcessStage2(ctx context.Context, question string, plan QueryPlan, queryResult map[string]any) (string, []EvidenceItem, error) {
	trace := traceID()
	logger.Info("[NLQ] stage 2 start", "trace", trace)

	trimmed := TrimQueryResult(queryResult, o.limits.MaxDepth, o.limits.MaxRows)
	answer, evidence := o.answerer.GenerateAnswer(ctx, question, plan, trimmed)

	logger.Info("[NLQ] stage 2 complete", "trace", trace, "evidence", len(evidence))
	return answer, evidence, nil
}

func traceID() string {
	id, err := gonanoid.New(10)
	if err != nil {
		return "unknown"
	}
	return id
}

func emptyToNil(warnings []string) []string {
	if len(warnings) == 0 {
		return nil
	}
	return warnings
}
