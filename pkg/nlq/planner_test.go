package nlq

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pharmakg/backend/pkg/ai"
)

// mockAIClient returns canned responses in order and counts calls.
type mockAIClient struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (m *mockAIClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	idx := m.calls
	m.calls++
	m.prompts = append(m.prompts, prompt)

	if idx < len(m.errs) && m.errs[idx] != nil {
		return "", m.errs[idx]
	}
	if idx < len(m.responses) {
		return m.responses[idx], nil
	}
	return "", errors.New("no response configured")
}

func (m *mockAIClient) GenerateChat(ctx context.Context, messages []ai.ChatMessage, opts ...ai.GenerateOption) (string, error) {
	return m.GenerateCompletion(ctx, "", nil)
}

func (m *mockAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return nil, errors.New("not configured")
}

func (m *mockAIClient) ResetMetrics()               {}
func (m *mockAIClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

const validPlanJSON = `{
	"intent": "qa",
	"query_language": "graphql",
	"query": "query SearchMedicine($name: String) { medicines(name: $name) { doc_id name content } }",
	"variables": {"name": "阿司匹林"},
	"safety": {"maxRows": 20},
	"answer_style": {"tone": "normal", "includeEvidence": true}
}`

func newTestPlanner(client *mockAIClient) *Planner {
	return NewPlanner(NewPlannerParams{
		AIClient:       client,
		Digest:         NewDigestProvider(nil),
		PlanModel:      "qwen-flash",
		FixModel:       "qwen-turbo",
		MaxRowsCeiling: 50,
		Timeout:        time.Second,
	})
}

func TestGeneratePlanHappyPath(t *testing.T) {
	client := &mockAIClient{responses: []string{validPlanJSON}}
	planner := newTestPlanner(client)

	plan, warnings, err := planner.GeneratePlan(context.Background(), "阿司匹林的含量测定", IntentQA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("got %d LLM calls, want 1", client.calls)
	}
	if plan.Variables["name"] != "阿司匹林" {
		t.Fatalf("variables = %v, want extracted keyword", plan.Variables)
	}
	if plan.Safety.MaxRows != 20 {
		t.Fatalf("maxRows = %d, want 20", plan.Safety.MaxRows)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
}

func TestGeneratePlanFencedOutput(t *testing.T) {
	client := &mockAIClient{responses: []string{"```json\n" + validPlanJSON + "\n```"}}
	planner := newTestPlanner(client)

	plan, _, err := planner.GeneratePlan(context.Background(), "阿司匹林", IntentQA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Intent != IntentQA {
		t.Fatalf("intent = %q", plan.Intent)
	}
}

func TestGeneratePlanRepairsInvalidPlan(t *testing.T) {
	invalid := `{"intent": "qa", "query_language": "cypher", "query": "MATCH (n) RETURN n", "safety": {"maxRows": 20}}`
	client := &mockAIClient{responses: []string{invalid, validPlanJSON}}
	planner := newTestPlanner(client)

	plan, warnings, err := planner.GeneratePlan(context.Background(), "阿司匹林", IntentQA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("got %d LLM calls, want 2 (plan + one repair)", client.calls)
	}
	if plan.QueryLanguage != "graphql" {
		t.Fatalf("query_language = %q", plan.QueryLanguage)
	}
	if !containsSubstring(warnings, "已自动修复") {
		t.Fatalf("warnings = %v, want repair notice", warnings)
	}
}

func TestGeneratePlanNoSecondRepair(t *testing.T) {
	prose := "无法生成查询计划，请提供更多信息。这不是一个JSON对象，也无法修复成JSON。"
	client := &mockAIClient{responses: []string{prose, prose, validPlanJSON}}
	planner := newTestPlanner(client)

	_, _, err := planner.GeneratePlan(context.Background(), "阿司匹林", IntentQA)
	if err == nil {
		t.Fatal("expected PlanningError")
	}
	var planErr *PlanningError
	if !errors.As(err, &planErr) {
		t.Fatalf("error type = %T, want *PlanningError", err)
	}
	if client.calls != 2 {
		t.Fatalf("got %d LLM calls, want exactly 2 (no second repair)", client.calls)
	}
}

func TestGeneratePlanRepairedPlanMustValidate(t *testing.T) {
	invalid := `{"intent": "qa", "query_language": "cypher", "query": "query { medicines { name } }", "safety": {"maxRows": 20}}`
	stillInvalid := `{"intent": "qa", "query_language": "sql", "query": "query { medicines { name } }", "safety": {"maxRows": 20}}`
	client := &mockAIClient{responses: []string{invalid, stillInvalid}}
	planner := newTestPlanner(client)

	_, _, err := planner.GeneratePlan(context.Background(), "阿司匹林", IntentQA)
	var planErr *PlanningError
	if !errors.As(err, &planErr) {
		t.Fatalf("error = %v, want *PlanningError", err)
	}
	if client.calls != 2 {
		t.Fatalf("got %d LLM calls, want 2", client.calls)
	}
}

func TestGeneratePlanRetriesTransportErrorOnce(t *testing.T) {
	client := &mockAIClient{
		errs:      []error{errors.New("connection reset")},
		responses: []string{"", validPlanJSON},
	}
	planner := newTestPlanner(client)

	_, _, err := planner.GeneratePlan(context.Background(), "阿司匹林", IntentQA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("got %d LLM calls, want 2 (one retry)", client.calls)
	}
}

func TestGeneratePlanPromptContainsDigest(t *testing.T) {
	client := &mockAIClient{responses: []string{validPlanJSON}}
	planner := newTestPlanner(client)

	if _, _, err := planner.GeneratePlan(context.Background(), "阿司匹林", IntentBrowse); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prompt := client.prompts[0]
	if !strings.Contains(prompt, "Medicine") || !strings.Contains(prompt, "REFER_TO") {
		t.Fatal("plan prompt missing schema digest")
	}
	if !strings.Contains(prompt, "浏览模式") {
		t.Fatal("plan prompt missing browse mode marker")
	}
}
