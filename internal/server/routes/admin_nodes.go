package routes

import (
	"errors"
	"net/http"

	"github.com/pharmakg/backend/internal/server/middleware"
	"github.com/pharmakg/backend/pkg/store"

	_ "github.com/go-playground/validator"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

// SearchNodesHandler lists raw graph nodes filtered by label and name.
func SearchNodesHandler(c echo.Context) error {
	type searchNodesParams struct {
		Label string `query:"label"`
		Name  string `query:"name"`
		Limit int    `query:"limit"`
	}

	params := new(searchNodesParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	storage := c.(*middleware.AppContext).App.Store
	nodes, err := storage.SearchNodes(c.Request().Context(), params.Label, params.Name, params.Limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	return c.JSON(http.StatusOK, nodes)
}

// GetNodeHandler returns a single raw node by ID.
func GetNodeHandler(c echo.Context) error {
	type getNodeParams struct {
		ID int64 `param:"id" validate:"required,numeric"`
	}

	params := new(getNodeParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	storage := c.(*middleware.AppContext).App.Store
	node, err := storage.GetNode(c.Request().Context(), params.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Node not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	return c.JSON(http.StatusOK, node)
}

// CreateNodeHandler inserts a new raw node.
func CreateNodeHandler(c echo.Context) error {
	type createNodeBody struct {
		Labels     []string       `json:"labels" validate:"required,min=1"`
		Properties map[string]any `json:"properties"`
	}

	type createNodeResponse struct {
		Message string            `json:"message"`
		Node    *store.NodeRecord `json:"node,omitempty"`
	}

	data := new(createNodeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createNodeResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createNodeResponse{
			Message: "Invalid request body",
		})
	}
	if data.Properties == nil {
		data.Properties = map[string]any{}
	}

	storage := c.(*middleware.AppContext).App.Store
	node, err := storage.CreateNode(c.Request().Context(), data.Labels, data.Properties)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, createNodeResponse{
			Message: "Internal server error",
		})
	}

	c.(*middleware.AppContext).App.Digest.ClearCache()

	return c.JSON(http.StatusOK, createNodeResponse{
		Message: "Node created",
		Node:    node,
	})
}

// UpdateNodeHandler merges properties into an existing node.
func UpdateNodeHandler(c echo.Context) error {
	type updateNodeParams struct {
		ID int64 `param:"id" validate:"required,numeric"`
	}

	type updateNodeBody struct {
		Properties map[string]any `json:"properties" validate:"required"`
	}

	type updateNodeResponse struct {
		Message string            `json:"message"`
		Node    *store.NodeRecord `json:"node,omitempty"`
	}

	params := new(updateNodeParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, updateNodeResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, updateNodeResponse{
			Message: "Invalid request params",
		})
	}

	data := new(updateNodeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, updateNodeResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, updateNodeResponse{
			Message: "Invalid request body",
		})
	}

	storage := c.(*middleware.AppContext).App.Store
	node, err := storage.UpdateNode(c.Request().Context(), params.ID, data.Properties)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, updateNodeResponse{
				Message: "Node not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, updateNodeResponse{
			Message: "Internal server error",
		})
	}

	c.(*middleware.AppContext).App.Digest.ClearCache()

	return c.JSON(http.StatusOK, updateNodeResponse{
		Message: "Node updated",
		Node:    node,
	})
}

// DeleteNodeHandler removes a node and every relationship touching it.
func DeleteNodeHandler(c echo.Context) error {
	type deleteNodeParams struct {
		ID int64 `param:"id" validate:"required,numeric"`
	}

	params := new(deleteNodeParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	storage := c.(*middleware.AppContext).App.Store
	if err := storage.DeleteNode(c.Request().Context(), params.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Node not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	c.(*middleware.AppContext).App.Digest.ClearCache()

	return c.JSON(http.StatusOK, map[string]string{"message": "Node deleted"})
}
