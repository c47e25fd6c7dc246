package middleware

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/pharmakg/backend/internal/config"
	"github.com/pharmakg/backend/pkg/nlq"
	"github.com/pharmakg/backend/pkg/store"
)

// App bundles the shared services every handler reaches through the
// request context.
type App struct {
	DBConn       *pgxpool.Pool
	Store        store.GraphStorage
	Orchestrator *nlq.Orchestrator
	Digest       *nlq.DigestProvider
	Config       *config.Config
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
