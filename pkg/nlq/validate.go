package nlq

import (
	"fmt"
	"strings"
)

// ValidationResult collects hard errors and advisory warnings from a
// validation pass. Valid is true when there are no errors; warnings
// never block.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

const (
	maxQuestionLength = 1000
	minQuestionLength = 3
)

var suspiciousInputTokens = []string{"drop", "delete", "remove", "<script", "javascript:"}

// ValidateUserInput checks a raw question before any model call.
// Suspicious tokens are flagged as warnings, never rejected.
func ValidateUserInput(question string) ValidationResult {
	errors := []string{}
	warnings := []string{}

	if strings.TrimSpace(question) == "" {
		errors = append(errors, "问题不能为空")
	}
	if len([]rune(question)) > maxQuestionLength {
		errors = append(errors, fmt.Sprintf("问题长度不能超过 %d 个字符", maxQuestionLength))
	}
	if len([]rune(question)) < minQuestionLength {
		warnings = append(warnings, "问题过短，建议提供更详细的描述")
	}

	lower := strings.ToLower(question)
	for _, token := range suspiciousInputTokens {
		if strings.Contains(lower, token) {
			warnings = append(warnings, "检测到可疑输入模式，已标记")
			break
		}
	}

	return ValidationResult{
		Valid:    len(errors) == 0,
		Errors:   errors,
		Warnings: warnings,
	}
}

var dangerousQueryPatterns = []string{"__schema", "__type", "delete", "drop", "remove"}

// ValidateQueryPlan checks an untrusted plan decoded from LLM output.
// maxRows over the ceiling is a hard error so the model gets corrected
// instead of silently clamped.
func ValidateQueryPlan(plan map[string]any, maxRowsCeiling int) ValidationResult {
	errors := []string{}
	warnings := []string{}

	intent, _ := plan["intent"].(string)
	if intent == "" {
		errors = append(errors, "缺少 intent 字段")
	} else if intent != string(IntentQA) && intent != string(IntentBrowse) {
		errors = append(errors, fmt.Sprintf(`无效的 intent: %s，必须是 "qa" 或 "browse"`, intent))
	}

	queryLanguage, _ := plan["query_language"].(string)
	if queryLanguage == "" {
		errors = append(errors, "缺少 query_language 字段")
	} else if queryLanguage != "graphql" {
		errors = append(errors, fmt.Sprintf("当前只支持 GraphQL，不支持: %s", queryLanguage))
	}

	query, _ := plan["query"].(string)
	if query == "" {
		errors = append(errors, "缺少 query 字段")
	}

	if _, ok := plan["variables"]; !ok {
		warnings = append(warnings, "缺少 variables 字段（建议使用变量化查询）")
	}

	maxRows, hasMaxRows := planMaxRows(plan)
	if !hasMaxRows {
		errors = append(errors, "缺少或无效的 safety.maxRows 字段")
	}

	if query != "" {
		queryLower := strings.ToLower(query)

		if strings.Contains(queryLower, "mutation") {
			errors = append(errors, "查询中不允许包含 mutation 操作")
		}
		if !strings.HasPrefix(strings.TrimSpace(queryLower), "query") {
			errors = append(errors, "GraphQL 查询必须以 'query' 关键字开头")
		}
		for _, pattern := range dangerousQueryPatterns {
			if strings.Contains(queryLower, pattern) {
				warnings = append(warnings, fmt.Sprintf("查询中包含可能的危险模式: %s", pattern))
			}
		}
	}

	if hasMaxRows && maxRows > maxRowsCeiling {
		errors = append(errors, fmt.Sprintf("maxRows (%d) 超过系统限制 (%d)", maxRows, maxRowsCeiling))
	}

	return ValidationResult{
		Valid:    len(errors) == 0,
		Errors:   errors,
		Warnings: warnings,
	}
}

// SanitizeQueryPlan normalizes an untrusted plan into canonical form.
// Total over any input map, and idempotent.
func SanitizeQueryPlan(plan map[string]any, maxRowsCeiling int) QueryPlan {
	intent := IntentQA
	if raw, ok := plan["intent"].(string); ok && QueryIntent(raw) == IntentBrowse {
		intent = IntentBrowse
	}

	query, _ := plan["query"].(string)

	variables := map[string]any{}
	if raw, ok := plan["variables"].(map[string]any); ok && raw != nil {
		variables = raw
	}

	maxRows, ok := planMaxRows(plan)
	if !ok || maxRows <= 0 {
		maxRows = 20
	}
	if maxRows > maxRowsCeiling {
		maxRows = maxRowsCeiling
	}

	tone := "normal"
	includeEvidence := true
	if style, ok := plan["answer_style"].(map[string]any); ok {
		if raw, ok := style["tone"].(string); ok && raw != "" {
			tone = raw
		}
		if raw, ok := style["includeEvidence"].(bool); ok && !raw {
			includeEvidence = false
		}
	}

	return QueryPlan{
		Intent:        intent,
		QueryLanguage: "graphql",
		Query:         query,
		Variables:     variables,
		Safety:        Safety{MaxRows: maxRows},
		AnswerStyle:   AnswerStyle{Tone: tone, IncludeEvidence: includeEvidence},
	}
}

func planMaxRows(plan map[string]any) (int, bool) {
	safety, ok := plan["safety"].(map[string]any)
	if !ok {
		return 0, false
	}
	switch v := safety["maxRows"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}
