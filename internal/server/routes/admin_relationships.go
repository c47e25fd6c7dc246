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

// GetNodeRelationshipsHandler lists every relationship touching a node.
func GetNodeRelationshipsHandler(c echo.Context) error {
	type getRelationshipsParams struct {
		ID int64 `param:"id" validate:"required,numeric"`
	}

	params := new(getRelationshipsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	storage := c.(*middleware.AppContext).App.Store
	relationships, err := storage.ListRelationships(c.Request().Context(), params.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	return c.JSON(http.StatusOK, relationships)
}

// CreateRelationshipHandler inserts a typed edge between two nodes.
func CreateRelationshipHandler(c echo.Context) error {
	type createRelationshipBody struct {
		Type       string         `json:"type" validate:"required"`
		StartID    int64          `json:"start_id" validate:"required,numeric"`
		EndID      int64          `json:"end_id" validate:"required,numeric"`
		Properties map[string]any `json:"properties"`
	}

	type createRelationshipResponse struct {
		Message      string                    `json:"message"`
		Relationship *store.RelationshipRecord `json:"relationship,omitempty"`
	}

	data := new(createRelationshipBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createRelationshipResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createRelationshipResponse{
			Message: "Invalid request body",
		})
	}
	if data.Properties == nil {
		data.Properties = map[string]any{}
	}

	storage := c.(*middleware.AppContext).App.Store
	relationship, err := storage.CreateRelationship(
		c.Request().Context(), data.Type, data.StartID, data.EndID, data.Properties,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, createRelationshipResponse{
			Message: "Internal server error",
		})
	}

	c.(*middleware.AppContext).App.Digest.ClearCache()

	return c.JSON(http.StatusOK, createRelationshipResponse{
		Message: "Relationship created",
		Relationship: relationship,
	})
}

// DeleteRelationshipHandler removes a relationship by ID.
func DeleteRelationshipHandler(c echo.Context) error {
	type deleteRelationshipParams struct {
		ID int64 `param:"id" validate:"required,numeric"`
	}

	params := new(deleteRelationshipParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	storage := c.(*middleware.AppContext).App.Store
	if err := storage.DeleteRelationship(c.Request().Context(), params.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Relationship not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	c.(*middleware.AppContext).App.Digest.ClearCache()

	return c.JSON(http.StatusOK, map[string]string{"message": "Relationship deleted"})
}
