package routes

import (
	"net/http"

	"github.com/pharmakg/backend/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// GetLabelsHandler lists node labels with their counts.
func GetLabelsHandler(c echo.Context) error {
	type labelCount struct {
		Label string `json:"label"`
		Count int64  `json:"count"`
	}

	ctx := c.Request().Context()
	storage := c.(*middleware.AppContext).App.Store

	labels, err := storage.ListLabels(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	counts := make([]labelCount, 0, len(labels))
	for _, label := range labels {
		count, err := storage.CountByLabel(ctx, label)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}
		counts = append(counts, labelCount{Label: label, Count: count})
	}
	return c.JSON(http.StatusOK, counts)
}

// GetRelationshipTypesHandler lists the distinct relationship types.
func GetRelationshipTypesHandler(c echo.Context) error {
	storage := c.(*middleware.AppContext).App.Store
	types, err := storage.ListRelationshipTypes(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	return c.JSON(http.StatusOK, types)
}

// ClearSchemaDigestHandler drops the cached schema digest so the next
// planning request rebuilds it with fresh statistics.
func ClearSchemaDigestHandler(c echo.Context) error {
	c.(*middleware.AppContext).App.Digest.ClearCache()
	return c.JSON(http.StatusOK, map[string]string{"message": "Schema digest cache cleared"})
}
