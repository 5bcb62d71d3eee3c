package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/api"
	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/db"
	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/logging"
	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/metrics"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Ensure all log output goes to stdout so the platform captures it
	log.SetOutput(os.Stdout)

	log.Printf("Reporting Service starting (GIT_SHA=%s BUILD_TIME=%s)", os.Getenv("GIT_SHA"), os.Getenv("BUILD_TIME"))

	// Initialize database connection (non-fatal to allow liveness health checks)
	database, err := db.NewDatabase()
	if err != nil {
		log.Printf("[WARN] Database initialization failed at startup: %v", err)
	}
	if database != nil {
		defer database.Close()
	}

	// Initialize handlers
	handler := api.NewHandler(database)

	// Set up Gin router
	router := setupRouter(handler)

	// Get port from environment or use default
	port := os.Getenv("REPORTING_PORT")
	if port == "" {
		port = "8084"
	}

	// Set up graceful shutdown
	go func() {
		log.Printf("Starting reporting service on port %s", port)
		if err := router.Run(":" + port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down reporting service...")
}

func setupRouter(handler *api.Handler) *gin.Engine {
	// Set Gin mode based on environment
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(logging.JSONLogger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Health and readiness endpoints
	router.GET("/live", func(c *gin.Context) { c.Status(200) })
	router.GET("/ready", handler.Health)
	// Keep /health as liveness-only for platform health checks
	router.GET("/health", func(c *gin.Context) { c.Status(200) })
	router.GET("/metrics", metrics.Handler())

	// API routes with JWT protection
	apiGroup := router.Group("/api")
	apiGroup.Use(api.AuthMiddleware())
	{
		// Reporting matrix and value lifecycle
		apiGroup.GET("/values/:org", handler.ListValues)
		apiGroup.GET("/values/:org/cell", handler.GetValueCell)
		apiGroup.PUT("/values/:org", handler.SetValue)
		apiGroup.POST("/values/:org/submit", handler.SubmitValues)
		apiGroup.POST("/values/:org/validate", handler.ValidateValues)
		apiGroup.POST("/values/:org/reject", handler.RejectValues)
		apiGroup.GET("/values/:org/history/:value_id", handler.GetValueHistory)

		// Organization structure
		apiGroup.GET("/hierarchy/:org", handler.GetHierarchy)
		apiGroup.GET("/hierarchy/:org/sites/:site/ancestry", handler.GetAncestry)
		apiGroup.GET("/hierarchy/:org/required", handler.GetRequired)

		// Consolidated reads and completion summaries
		apiGroup.GET("/consolidated/:org", handler.GetConsolidated)
		apiGroup.GET("/completion/:org", handler.GetCompletion)

		// Read-only catalog
		apiGroup.GET("/catalog/processes", handler.GetProcesses)
		apiGroup.GET("/catalog/indicators", handler.GetIndicators)
	}

	// Admin API routes with authentication and admin middleware
	adminGroup := router.Group("/api/admin")
	adminGroup.Use(api.AuthMiddleware())
	adminGroup.Use(api.AdminMiddleware())
	{
		adminGroup.POST("/consolidation/:org/recompute", handler.Recompute)
		adminGroup.GET("/consolidated/:org/preview", handler.GetConsolidatedPreview)
	}

	return router
}

// corsMiddleware adds CORS headers to allow cross-origin requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Admin-Request")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
