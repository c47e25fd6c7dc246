package main

import (
	"github.com/pharmakg/backend/internal/config"
	"github.com/pharmakg/backend/internal/server"
	"github.com/pharmakg/backend/internal/util"
	"github.com/pharmakg/backend/pkg/logger"
	"github.com/pharmakg/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleBackend(console.ConsoleBackendParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}

	server.Init(cfg)
}
