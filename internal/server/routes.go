package server

import (
	"github.com/pharmakg/backend/internal/server/middleware"
	"github.com/pharmakg/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Natural language query routes
	apiRoutes.POST("/nlq", routes.PostNLQHandler)
	apiRoutes.POST("/nlq/stage1", routes.PostNLQStage1Handler)
	apiRoutes.POST("/nlq/stage2", routes.PostNLQStage2Handler)

	// Admin routes, master API key only
	adminRoutes := apiRoutes.Group("/admin", middleware.AdminAuthMiddleware)

	adminRoutes.GET("/nodes", routes.SearchNodesHandler)
	adminRoutes.POST("/nodes", routes.CreateNodeHandler)
	adminRoutes.GET("/nodes/:id", routes.GetNodeHandler)
	adminRoutes.PATCH("/nodes/:id", routes.UpdateNodeHandler)
	adminRoutes.DELETE("/nodes/:id", routes.DeleteNodeHandler)
	adminRoutes.GET("/nodes/:id/relationships", routes.GetNodeRelationshipsHandler)

	adminRoutes.POST("/relationships", routes.CreateRelationshipHandler)
	adminRoutes.DELETE("/relationships/:id", routes.DeleteRelationshipHandler)

	adminRoutes.GET("/labels", routes.GetLabelsHandler)
	adminRoutes.GET("/relationship-types", routes.GetRelationshipTypesHandler)
	adminRoutes.POST("/schema-digest/clear", routes.ClearSchemaDigestHandler)
}
