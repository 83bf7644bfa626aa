// main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"loungebackend/internal/app"
	"loungebackend/internal/config"
	"loungebackend/internal/logger"
)

func main() {
	// Step 1: Setup configuration first
	config.LoadEnv()

	// Step 2: Setup logging
	if err := logger.SetupLogger(config.LoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.LogInfo("Environment loaded. Logger ready.")
	config.LogCurrentEnvironment()
	config.LoadCORSConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Step 3: Restore state and wire services
	a, err := app.New(ctx, app.FromEnv())
	if err != nil {
		logger.LogFatal("Failed to start: %v", err)
	}

	// Step 4: Run server and background tasks until a signal arrives
	runErr := a.Run(ctx)
	if err := a.Close(); err != nil {
		logger.LogError("Shutdown error: %v", err)
	}
	if runErr != nil {
		logger.LogFatal("Server stopped: %v", runErr)
	}
}
