package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/SitePreview/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/SitePreview/backend/internal/infrastructure/server"
)

func main() {
	// Flags override the environment
	port := flag.String("port", "", "Server port (overrides PORT)")
	dev := flag.Bool("dev", false, "Development mode: debug logs and detailed errors")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
		cfg.Server.Environment = "development"
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutting down gracefully...")
	case err := <-errChan:
		if err != nil {
			log.Printf("Server error: %v", err)
		}
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		log.Printf("Error during shutdown: %v", err)
		os.Exit(1)
	}
}
