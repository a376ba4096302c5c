package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/healthspace/dlt-portal/internal/appointment"
	"github.com/healthspace/dlt-portal/pkg/config"
	"github.com/healthspace/dlt-portal/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	// Initialize Appointment Service
	service, err := appointment.New(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize Appointment Service: %v", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	// Start service in a goroutine
	go func() {
		logger.Infof("Starting Appointment Service on %s", addr)
		if err := service.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start Appointment Service: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Appointment Service...")
	if err := service.Stop(); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
	logger.Info("Appointment Service stopped")
}
