package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"docsplit/cmd"
	"docsplit/internal/config"
	"docsplit/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load configuration for the startup logger; commands reload it with --config
	cfg, err := config.Load(os.Getenv("DOCSPLIT_CONFIG"))
	if err != nil {
		log.Printf("Warning: Could not load configuration: %v", err)
		// Use default logger config if main config fails
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else {
		// Initialize logger with configuration
		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	}

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting docsplit")

	// Execute CLI commands
	cmd.Execute()

	log.Debug().Msg("docsplit shutdown")
	os.Exit(0)
}
