package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"funneltrack/api/database"
	"funneltrack/api/handlers"
	"funneltrack/api/middleware"
	"funneltrack/api/store"
)

func main() {
	// Load .env file at the very start
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env: %v", err)
	}

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Initialize PostgreSQL Database (sessions, experiments, users) ---
	dbClient, err := database.NewPostgresDB()
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL database: %v", err)
	}
	defer dbClient.Close()

	// --- Initialize ClickHouse Database (funnel event log) ---
	chClient, err := database.NewClickHouseDB()
	if err != nil {
		log.Fatalf("Failed to initialize ClickHouse database: %v", err)
	}
	defer chClient.Close()

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelSchema()
	if err := dbClient.InitSchema(schemaCtx); err != nil {
		log.Fatalf("Failed to apply PostgreSQL schema: %v", err)
	}
	if err := chClient.InitSchema(schemaCtx); err != nil {
		log.Fatalf("Failed to apply ClickHouse schema: %v", err)
	}

	// --- Initialize Stores ---
	userStore := store.NewUserStore(dbClient.DB)
	sessionStore := store.NewSessionStore(dbClient.DB)
	experimentStore := store.NewExperimentStore(dbClient.DB)
	funnelStore := store.NewFunnelStore(chClient)

	// --- Initialize Handlers ---
	authHandlers := handlers.NewAuthHandlers(userStore)
	sessionHandlers := handlers.NewSessionHandlers(sessionStore, experimentStore, funnelStore)
	trackHandlers := handlers.NewTrackHandlers(funnelStore)
	webhookHandlers := handlers.NewWebhookHandlers(sessionStore, funnelStore)
	statsHandlers := handlers.NewStatsHandlers(sessionStore, experimentStore, funnelStore)

	r := gin.Default()

	allowedOrigins := []string{"http://localhost:3000"}
	if feOrigin := os.Getenv("FE_ORIGIN"); feOrigin != "" {
		allowedOrigins = strings.Split(feOrigin, ",")
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-KEY", "X-Requested-With", "Cache-Control"},
		AllowCredentials: true,
	}))

	api := r.Group("/api")
	{
		// Authentication Endpoints (no authentication required)
		api.POST("/signup", authHandlers.Signup)
		api.POST("/login", authHandlers.Login)
		api.POST("/logout", authHandlers.Logout)

		// Client-facing ingest endpoints
		api.POST("/sessions", sessionHandlers.CreateSession)
		api.POST("/track/pageview", trackHandlers.TrackPageView)
		api.POST("/track/stage", trackHandlers.TrackStage)
		api.POST("/webhooks/identity", webhookHandlers.IdentityWebhook)

		// Protected Routes (require a valid JWT token or API key)
		protected := api.Group("/")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/sessions/:id", sessionHandlers.GetSession)
			protected.GET("/sessions/:id/stages", trackHandlers.SessionStages)
			protected.GET("/sessions/:id/progression", trackHandlers.SessionProgression)
			protected.GET("/users/:id/progression", trackHandlers.UserProgression)

			statsGroup := protected.Group("/stats")
			{
				statsGroup.GET("/dashboard", statsHandlers.GetDashboard)
				statsGroup.GET("/funnel", statsHandlers.GetFunnel)
				statsGroup.GET("/cohorts", statsHandlers.GetCohort)
				statsGroup.GET("/landing-pages", statsHandlers.GetLandingPages)
				statsGroup.GET("/experiments/:id", statsHandlers.GetExperimentResults)
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		log.Printf("Go API server starting on http://localhost:%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Go API server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
