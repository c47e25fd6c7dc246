package nlq

import (
	"fmt"
	"strings"
)

// InputValidationError reports a question that was rejected before any
// model or database work happened. Maps to HTTP 400.
type InputValidationError struct {
	Errors []string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("输入验证失败: %s", strings.Join(e.Errors, ", "))
}

// PlanningError reports that no valid query plan could be produced,
// including the failed repair round.
type PlanningError struct {
	Reason string
	Cause  error
}

func (e *PlanningError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("查询计划生成失败: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("查询计划生成失败: %s", e.Reason)
}

func (e *PlanningError) Unwrap() error {
	return e.Cause
}

// ExecutionError reports a failed GraphQL execution. Never retried.
type ExecutionError struct {
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("查询执行失败: %v", e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}
