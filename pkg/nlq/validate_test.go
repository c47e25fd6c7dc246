package nlq

import (
	"reflect"
	"strings"
	"testing"
)

func TestValidateUserInput(t *testing.T) {
	tests := []struct {
		name         string
		question     string
		wantValid    bool
		wantWarnings int
	}{
		{name: "normal question", question: "阿司匹林的含量测定方法是什么", wantValid: true},
		{name: "empty question", question: "", wantValid: false, wantWarnings: 1},
		{name: "whitespace only", question: "   ", wantValid: false},
		{name: "too long", question: strings.Repeat("药", 1001), wantValid: false},
		{name: "short question warns", question: "药", wantValid: true, wantWarnings: 1},
		{name: "suspicious token warns but passes", question: "如何 DELETE 一个节点的数据记录", wantValid: true, wantWarnings: 1},
		{name: "script tag warns but passes", question: "<script>alert(1)</script> 是什么", wantValid: true, wantWarnings: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateUserInput(tt.question)
			if result.Valid != tt.wantValid {
				t.Fatalf("Valid = %v, want %v (errors: %v)", result.Valid, tt.wantValid, result.Errors)
			}
			if len(result.Warnings) != tt.wantWarnings {
				t.Fatalf("got %d warnings %v, want %d", len(result.Warnings), result.Warnings, tt.wantWarnings)
			}
		})
	}
}

func validPlanMap() map[string]any {
	return map[string]any{
		"intent":         "qa",
		"query_language": "graphql",
		"query":          "query SearchMedicine($name: String) { medicines(name: $name) { doc_id name } }",
		"variables":      map[string]any{"name": "阿司匹林"},
		"safety":         map[string]any{"maxRows": float64(20)},
		"answer_style":   map[string]any{"tone": "normal", "includeEvidence": true},
	}
}

func TestValidateQueryPlan(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(map[string]any)
		wantValid bool
		wantErr   string
	}{
		{name: "valid plan", mutate: func(m map[string]any) {}, wantValid: true},
		{
			name:      "missing intent",
			mutate:    func(m map[string]any) { delete(m, "intent") },
			wantValid: false,
			wantErr:   "intent",
		},
		{
			name:      "bad intent",
			mutate:    func(m map[string]any) { m["intent"] = "chat" },
			wantValid: false,
			wantErr:   "intent",
		},
		{
			name:      "wrong query language",
			mutate:    func(m map[string]any) { m["query_language"] = "cypher" },
			wantValid: false,
			wantErr:   "GraphQL",
		},
		{
			name:      "missing query",
			mutate:    func(m map[string]any) { delete(m, "query") },
			wantValid: false,
			wantErr:   "query",
		},
		{
			name:      "mutation rejected",
			mutate:    func(m map[string]any) { m["query"] = "mutation { createNode }" },
			wantValid: false,
			wantErr:   "mutation",
		},
		{
			name:      "must start with query keyword",
			mutate:    func(m map[string]any) { m["query"] = "{ medicines { name } }" },
			wantValid: false,
			wantErr:   "query",
		},
		{
			name:      "missing maxRows",
			mutate:    func(m map[string]any) { m["safety"] = map[string]any{} },
			wantValid: false,
			wantErr:   "maxRows",
		},
		{
			name:      "maxRows over ceiling is hard error",
			mutate:    func(m map[string]any) { m["safety"] = map[string]any{"maxRows": float64(100)} },
			wantValid: false,
			wantErr:   "超过系统限制",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := validPlanMap()
			tt.mutate(plan)

			result := ValidateQueryPlan(plan, 50)
			if result.Valid != tt.wantValid {
				t.Fatalf("Valid = %v, want %v (errors: %v)", result.Valid, tt.wantValid, result.Errors)
			}
			if !tt.wantValid && !containsSubstring(result.Errors, tt.wantErr) {
				t.Fatalf("errors %v missing %q", result.Errors, tt.wantErr)
			}
		})
	}
}

func TestValidateQueryPlanWarnings(t *testing.T) {
	plan := validPlanMap()
	delete(plan, "variables")
	plan["query"] = "query { medicines { __typename doc_id } }"

	result := ValidateQueryPlan(plan, 50)
	if !result.Valid {
		t.Fatalf("expected valid plan, errors: %v", result.Errors)
	}
	if !containsSubstring(result.Warnings, "variables") {
		t.Fatalf("warnings %v missing variables hint", result.Warnings)
	}
	if !containsSubstring(result.Warnings, "__type") {
		t.Fatalf("warnings %v missing dangerous pattern hint", result.Warnings)
	}
}

func TestSanitizeQueryPlanDefaults(t *testing.T) {
	plan := SanitizeQueryPlan(map[string]any{}, 50)

	if plan.Intent != IntentQA {
		t.Fatalf("intent = %q, want qa", plan.Intent)
	}
	if plan.QueryLanguage != "graphql" {
		t.Fatalf("query_language = %q, want graphql", plan.QueryLanguage)
	}
	if plan.Variables == nil || len(plan.Variables) != 0 {
		t.Fatalf("variables = %v, want empty map", plan.Variables)
	}
	if plan.Safety.MaxRows != 20 {
		t.Fatalf("maxRows = %d, want 20", plan.Safety.MaxRows)
	}
	if plan.AnswerStyle.Tone != "normal" {
		t.Fatalf("tone = %q, want normal", plan.AnswerStyle.Tone)
	}
	if !plan.AnswerStyle.IncludeEvidence {
		t.Fatal("includeEvidence = false, want true")
	}
}

func TestSanitizeQueryPlanClampsMaxRows(t *testing.T) {
	plan := SanitizeQueryPlan(map[string]any{
		"safety": map[string]any{"maxRows": float64(999)},
	}, 50)
	if plan.Safety.MaxRows != 50 {
		t.Fatalf("maxRows = %d, want 50", plan.Safety.MaxRows)
	}
}

func TestSanitizeQueryPlanExplicitNoEvidence(t *testing.T) {
	plan := SanitizeQueryPlan(map[string]any{
		"answer_style": map[string]any{"includeEvidence": false},
	}, 50)
	if plan.AnswerStyle.IncludeEvidence {
		t.Fatal("includeEvidence = true, want false when explicitly disabled")
	}
}

func TestSanitizeQueryPlanIdempotent(t *testing.T) {
	first := SanitizeQueryPlan(validPlanMap(), 50)

	roundTrip := map[string]any{
		"intent":         string(first.Intent),
		"query_language": first.QueryLanguage,
		"query":          first.Query,
		"variables":      first.Variables,
		"safety":         map[string]any{"maxRows": float64(first.Safety.MaxRows)},
		"answer_style": map[string]any{
			"tone":            first.AnswerStyle.Tone,
			"includeEvidence": first.AnswerStyle.IncludeEvidence,
		},
	}
	second := SanitizeQueryPlan(roundTrip, 50)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("sanitize not idempotent:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}

func containsSubstring(items []string, sub string) bool {
	for _, item := range items {
		if strings.Contains(item, sub) {
			return true
		}
	}
	return false
}
