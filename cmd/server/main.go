package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/finsmart/finsmart-server/internal/ai"
	"github.com/finsmart/finsmart-server/internal/api"
	"github.com/finsmart/finsmart-server/internal/config"
	"github.com/finsmart/finsmart-server/internal/logger"
	"github.com/finsmart/finsmart-server/internal/repository"
	"github.com/finsmart/finsmart-server/internal/seed"
	"github.com/finsmart/finsmart-server/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	log := logger.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Set up database connection
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up database")
	}
	defer db.Close()

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Create external categorizer client
	categorizer := ai.NewHTTPClient(cfg.AI.BaseURL, cfg.AI.Timeout)

	// Create service
	svc := service.NewDefaultService(repo, categorizer, cfg.Auth.JWTSecret, log)

	if cfg.SeedDemo {
		if err := seed.Run(context.Background(), repo, log); err != nil {
			log.Fatal().Err(err).Msg("failed to seed demo data")
		}
	}

	// Create API handler
	handler := api.NewHandler(svc)

	// Set up Gin router
	router := gin.Default()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info().Str("addr", serverAddr).Msg("starting server")
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
