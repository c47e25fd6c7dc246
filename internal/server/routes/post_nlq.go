package routes

import (
	"errors"
	"net/http"

	"github.com/pharmakg/backend/internal/server/middleware"
	"github.com/pharmakg/backend/pkg/nlq"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// nlqError maps pipeline errors onto the HTTP envelope. Details carry the
// diagnostic cause and are only exposed in development.
func nlqError(c echo.Context, err error) error {
	development := c.(*middleware.AppContext).App.Config.IsDevelopment()

	var inputErr *nlq.InputValidationError
	if errors.As(err, &inputErr) {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "invalid_input",
			Message: inputErr.Error(),
		})
	}

	var planErr *nlq.PlanningError
	if errors.As(err, &planErr) {
		resp := errorResponse{
			Error:   "planning_failed",
			Message: "生成查询计划失败，请稍后重试。",
		}
		if development {
			resp.Details = planErr.Error()
		}
		return c.JSON(http.StatusInternalServerError, resp)
	}

	var execErr *nlq.ExecutionError
	if errors.As(err, &execErr) {
		resp := errorResponse{
			Error:   "execution_failed",
			Message: "查询执行失败，请调整问题后重试。",
		}
		if development {
			resp.Details = execErr.Error()
		}
		return c.JSON(http.StatusInternalServerError, resp)
	}

	resp := errorResponse{
		Error:   "internal_error",
		Message: "服务器内部错误，请稍后重试。",
	}
	if development {
		resp.Details = err.Error()
	}
	return c.JSON(http.StatusInternalServerError, resp)
}

func bindNLQRequest(c echo.Context) (*nlq.NLQRequest, error) {
	data := new(nlq.NLQRequest)
	if err := c.Bind(data); err != nil {
		return nil, c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "invalid_request",
			Message: "请求体格式不正确",
		})
	}
	if err := c.Validate(data); err != nil {
		return nil, c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "invalid_request",
			Message: "缺少必填字段 question",
		})
	}

	switch data.Mode {
	case "":
		data.Mode = nlq.IntentQA
	case nlq.IntentQA, nlq.IntentBrowse:
	default:
		return nil, c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "invalid_request",
			Message: "mode 必须是 qa 或 browse",
		})
	}
	return data, nil
}

// PostNLQHandler runs the full single-shot pipeline.
func PostNLQHandler(c echo.Context) error {
	data, handled := bindNLQRequest(c)
	if data == nil {
		return handled
	}

	orch := c.(*middleware.AppContext).App.Orchestrator
	resp, err := orch.Process(c.Request().Context(), *data)
	if err != nil {
		return nlqError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// PostNLQStage1Handler plans, executes and post-processes without
// generating an answer. The client holds the outputs for stage 2.
func PostNLQStage1Handler(c echo.Context) error {
	type stage1ResponseBody struct {
		Stage int `json:"stage"`
		*nlq.Stage1Response
	}

	data, handled := bindNLQRequest(c)
	if data == nil {
		return handled
	}

	orch := c.(*middleware.AppContext).App.Orchestrator
	resp, err := orch.ProcessStage1(c.Request().Context(), *data)
	if err != nil {
		return nlqError(c, err)
	}
	return c.JSON(http.StatusOK, stage1ResponseBody{
		Stage:          1,
		Stage1Response: resp,
	})
}

// PostNLQStage2Handler answers from client-held stage 1 state.
func PostNLQStage2Handler(c echo.Context) error {
	type stage2Body struct {
		Question    string         `json:"question" validate:"required"`
		Plan        *nlq.QueryPlan `json:"plan" validate:"required"`
		QueryResult map[string]any `json:"queryResult" validate:"required"`
	}

	type stage2ResponseBody struct {
		Stage    int                `json:"stage"`
		Answer   string             `json:"answer"`
		Evidence []nlq.EvidenceItem `json:"evidence"`
	}

	data := new(stage2Body)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "invalid_request",
			Message: "请求体格式不正确",
		})
	}
	if err := c.Validate(data); err != nil || data.Plan == nil || data.QueryResult == nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "invalid_request",
			Message: "question、plan 和 queryResult 都是必填字段",
		})
	}

	orch := c.(*middleware.AppContext).App.Orchestrator
	answer, evidence, err := orch.ProcessStage2(c.Request().Context(), data.Question, *data.Plan, data.QueryResult)
	if err != nil {
		return nlqError(c, err)
	}
	return c.JSON(http.StatusOK, stage2ResponseBody{
		Stage:    2,
		Answer:   answer,
		Evidence: evidence,
	})
}
