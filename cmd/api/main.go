package main

import (
	"fmt"
	"net/http"
	"os"

	"cashlog/internal/config"
	"cashlog/internal/database"
	"cashlog/internal/handlers"
	"cashlog/internal/logger"
	"cashlog/internal/middleware"
	"cashlog/internal/services"
	"cashlog/internal/validator"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "cashlog/internal/docs" // Import swagger docs
)

// @title           Cashlog API
// @version         1.0
// @description     Cashlog tracks personal finances with recurring obligation templates that materialize into scheduled instances and project future card balances.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Register custom binding validators
	validator.Register()

	// Initialize services
	db := dbManager.DB()
	userService := services.NewUserService(db)
	cardService := services.NewCardService(db)
	categoryService := services.NewCategoryService(db)
	transactionService := services.NewTransactionService(db)
	auditService := services.NewAuditService(db)
	recurringService := services.NewRecurringService(db, cardService, categoryService, transactionService)
	instanceService := services.NewRecurringInstanceService(db, cardService, transactionService, recurringService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService)
	recurringHandler := handlers.NewRecurringHandler(recurringService, auditService)
	instanceHandler := handlers.NewRecurringInstanceHandler(instanceService, auditService)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	// User profile
	protected.GET("/profile", authHandler.GetProfile)

	// Recurring template routes
	recurrings := protected.Group("/recurrings")
	recurrings.POST("", recurringHandler.CreateRecurring)
	recurrings.GET("", recurringHandler.GetUserRecurrings)
	recurrings.GET("/:id", recurringHandler.GetRecurringByID)
	recurrings.PUT("/:id", recurringHandler.UpdateRecurring)
	recurrings.DELETE("/:id", recurringHandler.DeleteRecurring)
	recurrings.POST("/:id/pause", recurringHandler.PauseRecurring)
	recurrings.POST("/:id/resume", recurringHandler.ResumeRecurring)

	// Recurring instance routes
	instances := recurrings.Group("/recurring-instances")
	instances.GET("", instanceHandler.GetUserInstances)
	instances.GET("/projected-balance", instanceHandler.GetProjectedBalance)
	instances.PUT("/:id", instanceHandler.ModifyInstance)
	instances.POST("/:id/complete", instanceHandler.CompleteInstance)
	instances.POST("/:id/skip", instanceHandler.SkipInstance)
	instances.POST("/:id/create-transaction", instanceHandler.CreateTransactionFromInstance)

	log.Infof("Starting Cashlog backend server on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
