package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pharmakg/backend/internal/config"
	mid "github.com/pharmakg/backend/internal/server/middleware"
	"github.com/pharmakg/backend/pkg/ai"
	oai "github.com/pharmakg/backend/pkg/ai/ollama"
	gai "github.com/pharmakg/backend/pkg/ai/openai"
	gql "github.com/pharmakg/backend/pkg/graphql"
	"github.com/pharmakg/backend/pkg/logger"
	"github.com/pharmakg/backend/pkg/nlq"
	pgstore "github.com/pharmakg/backend/pkg/store/pgx"

	"github.com/go-playground/validator"
	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init(cfg *config.Config) {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runMigrations(cfg.DatabaseURL); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to parse database URL", "err", err)
	}
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	conn, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	aiClient := newAIClient(cfg)

	var storeOpts []pgstore.GraphDBStorageOption
	if cfg.LLM.EmbedModel != "" {
		storeOpts = append(storeOpts, pgstore.WithEmbeddingClient(aiClient))
	}
	storage := pgstore.NewGraphDBStorageWithConnection(conn, storeOpts...)

	executor, err := gql.NewExecutor(storage)
	if err != nil {
		logger.Fatal("Failed to build GraphQL schema", "err", err)
	}

	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	digest := nlq.NewDigestProvider(storage)
	orchestrator := nlq.NewOrchestrator(nlq.NewOrchestratorParams{
		Planner: nlq.NewPlanner(nlq.NewPlannerParams{
			AIClient:       aiClient,
			Digest:         digest,
			PlanModel:      cfg.LLM.PlanModel,
			FixModel:       cfg.LLM.Model,
			MaxRowsCeiling: cfg.NLQ.MaxRows,
			Timeout:        timeout,
		}),
		Answerer: nlq.NewAnswerer(nlq.NewAnswererParams{
			AIClient:    aiClient,
			AnswerModel: cfg.LLM.AnswerModel,
			Timeout:     timeout,
		}),
		Executor: executor,
		Limits: nlq.Limits{
			MaxRows:  cfg.NLQ.MaxRows,
			MaxNodes: cfg.NLQ.MaxNodes,
			MaxEdges: cfg.NLQ.MaxEdges,
			MaxDepth: cfg.NLQ.MaxDepth,
		},
	})

	app := &mid.App{
		DBConn:       conn,
		Store:        storage,
		Orchestrator: orchestrator,
		Digest:       digest,
		Config:       cfg,
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("Request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("2M"))

	RegisterRoutes(e)

	go func() {
		logger.Info("Starting server", "port", cfg.Port)
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}

func newAIClient(cfg *config.Config) ai.GraphAIClient {
	switch cfg.LLM.Adapter {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			ChatModel:      cfg.LLM.Model,
			EmbeddingModel: cfg.LLM.EmbedModel,

			BaseURL: cfg.LLM.BaseURL,
			ApiKey:  cfg.LLM.APIKey,

			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		})
		if err != nil {
			logger.Fatal("Failed to create Ollama client", "err", err)
		}
		return client
	default:
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			ChatModel:      cfg.LLM.Model,
			EmbeddingModel: cfg.LLM.EmbedModel,

			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,

			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		})
	}
}

func runMigrations(databaseURL string) error {
	m, err := migrate.New("file://migrations", databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
