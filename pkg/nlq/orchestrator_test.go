package nlq

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockExecutor struct {
	result map[string]any
	err    error
	calls  int
	query  string
	vars   map[string]any
}

func (m *mockExecutor) Execute(ctx context.Context, query string, variables map[string]any) (map[string]any, error) {
	m.calls++
	m.query = query
	m.vars = variables
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func newTestOrchestrator(client *mockAIClient, executor *mockExecutor) *Orchestrator {
	return NewOrchestrator(NewOrchestratorParams{
		Planner: NewPlanner(NewPlannerParams{
			AIClient:       client,
			Digest:         NewDigestProvider(nil),
			PlanModel:      "qwen-flash",
			FixModel:       "qwen-turbo",
			MaxRowsCeiling: 50,
			Timeout:        time.Second,
		}),
		Answerer: NewAnswerer(NewAnswererParams{
			AIClient:    client,
			AnswerModel: "qwen-plus",
			Timeout:     time.Second,
		}),
		Executor: executor,
		Limits:   Limits{MaxRows: 50, MaxNodes: 80, MaxEdges: 120, MaxDepth: 5},
	})
}

func TestProcessHappyPath(t *testing.T) {
	client := &mockAIClient{responses: []string{
		validPlanJSON,
		`{"answer": "阿司匹林收载于药典第二部。", "evidence": [{"text": "【阿司匹林】", "nodeIds": ["51440"], "edgeIds": []}]}`,
	}}
	executor := &mockExecutor{result: sampleResult()}
	orch := newTestOrchestrator(client, executor)

	resp, err := orch.Process(context.Background(), NLQRequest{Question: "阿司匹林的含量测定方法", Mode: IntentQA})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if executor.calls != 1 {
		t.Fatalf("executor calls = %d, want 1", executor.calls)
	}
	if executor.vars["name"] != "阿司匹林" {
		t.Fatalf("executor variables = %v", executor.vars)
	}
	if resp.Answer == "" {
		t.Fatal("empty answer")
	}
	if resp.Graph == nil || len(resp.Graph.Nodes) == 0 {
		t.Fatal("graph missing from response")
	}
	if len(resp.Evidence) == 0 {
		t.Fatal("evidence missing from response")
	}
	if resp.QueryResult == nil {
		t.Fatal("raw query result missing from response")
	}
}

func TestProcessRejectsEmptyQuestionBeforeAnyCalls(t *testing.T) {
	client := &mockAIClient{}
	executor := &mockExecutor{}
	orch := newTestOrchestrator(client, executor)

	_, err := orch.Process(context.Background(), NLQRequest{Question: "   ", Mode: IntentQA})
	var inputErr *InputValidationError
	if !errors.As(err, &inputErr) {
		t.Fatalf("error = %v, want *InputValidationError", err)
	}
	if client.calls != 0 {
		t.Fatalf("LLM called %d times for invalid input, want 0", client.calls)
	}
	if executor.calls != 0 {
		t.Fatalf("executor called %d times for invalid input, want 0", executor.calls)
	}
}

func TestProcessExecutionFailureIsTypedAndNotRetried(t *testing.T) {
	client := &mockAIClient{responses: []string{validPlanJSON}}
	executor := &mockExecutor{err: errors.New("unknown field")}
	orch := newTestOrchestrator(client, executor)

	_, err := orch.Process(context.Background(), NLQRequest{Question: "阿司匹林", Mode: IntentQA})
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("error = %v, want *ExecutionError", err)
	}
	if executor.calls != 1 {
		t.Fatalf("executor calls = %d, want 1 (no retry)", executor.calls)
	}
}

func TestProcessSubstitutesLocalEvidence(t *testing.T) {
	client := &mockAIClient{responses: []string{
		validPlanJSON,
		`{"answer": "找到了相关条目。", "evidence": []}`,
	}}
	executor := &mockExecutor{result: sampleResult()}
	orch := newTestOrchestrator(client, executor)

	resp, err := orch.Process(context.Background(), NLQRequest{Question: "阿司匹林", Mode: IntentQA})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Evidence) == 0 {
		t.Fatal("expected locally generated evidence when the model returns none")
	}
}

func TestProcessAnswerTimeoutDegradesTo200(t *testing.T) {
	client := &mockAIClient{
		responses: []string{validPlanJSON},
		errs:      []error{nil, errors.New("timeout"), errors.New("timeout")},
	}
	executor := &mockExecutor{result: sampleResult()}
	orch := newTestOrchestrator(client, executor)

	resp, err := orch.Process(context.Background(), NLQRequest{Question: "阿司匹林", Mode: IntentQA})
	if err != nil {
		t.Fatalf("answer failure must not fail the pipeline: %v", err)
	}
	if resp.Answer != fallbackAnswer {
		t.Fatalf("answer = %q, want fallback", resp.Answer)
	}
	if len(resp.Evidence) == 0 {
		t.Fatal("expected local evidence alongside the fallback answer")
	}
}

func TestProcessStage1SkipsAnswerModel(t *testing.T) {
	client := &mockAIClient{responses: []string{validPlanJSON}}
	executor := &mockExecutor{result: sampleResult()}
	orch := newTestOrchestrator(client, executor)

	resp, err := orch.ProcessStage1(context.Background(), NLQRequest{Question: "阿司匹林", Mode: IntentQA})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("LLM calls = %d, want 1 (plan only)", client.calls)
	}
	if resp.Graph == nil || len(resp.Graph.Nodes) == 0 {
		t.Fatal("stage 1 graph missing")
	}
	if len(resp.Evidence) == 0 {
		t.Fatal("stage 1 evidence missing")
	}
	if resp.QueryResult == nil {
		t.Fatal("stage 1 must return the raw query result for stage 2")
	}
}

func TestProcessStage2AnswersFromClientState(t *testing.T) {
	client := &mockAIClient{responses: []string{
		`{"answer": "阿司匹林属于解热镇痛药。", "evidence": [{"text": "【阿司匹林】", "nodeIds": ["51440"], "edgeIds": []}]}`,
	}}
	orch := newTestOrchestrator(client, &mockExecutor{})

	answer, evidence, err := orch.ProcessStage2(context.Background(), "阿司匹林是什么药", testPlan(), sampleResult())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("LLM calls = %d, want 1 (answer only)", client.calls)
	}
	if answer == "" || len(evidence) == 0 {
		t.Fatalf("answer = %q, evidence = %v", answer, evidence)
	}
}
