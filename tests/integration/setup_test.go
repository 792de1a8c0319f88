package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cashlog/internal/handlers"
	"cashlog/internal/logger"
	"cashlog/internal/middleware"
	"cashlog/internal/models"
	"cashlog/internal/services"
	"cashlog/internal/validator"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.User{},
		&models.Card{},
		&models.Category{},
		&models.Transaction{},
		&models.Recurring{},
		&models.RecurringInstance{},
		&models.AuditLog{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)

	// Services
	userService := services.NewUserService(db)
	cardService := services.NewCardService(db)
	categoryService := services.NewCategoryService(db)
	transactionService := services.NewTransactionService(db)
	auditService := services.NewAuditService(db)
	recurringService := services.NewRecurringService(db, cardService, categoryService, transactionService)
	instanceService := services.NewRecurringInstanceService(db, cardService, transactionService, recurringService)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService)
	recurringHandler := handlers.NewRecurringHandler(recurringService, auditService)
	instanceHandler := handlers.NewRecurringInstanceHandler(instanceService, auditService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	// Public auth routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)

	recurrings := protected.Group("/recurrings")
	recurrings.POST("", recurringHandler.CreateRecurring)
	recurrings.GET("", recurringHandler.GetUserRecurrings)
	recurrings.GET("/:id", recurringHandler.GetRecurringByID)
	recurrings.PUT("/:id", recurringHandler.UpdateRecurring)
	recurrings.DELETE("/:id", recurringHandler.DeleteRecurring)
	recurrings.POST("/:id/pause", recurringHandler.PauseRecurring)
	recurrings.POST("/:id/resume", recurringHandler.ResumeRecurring)

	instances := recurrings.Group("/recurring-instances")
	instances.GET("", instanceHandler.GetUserInstances)
	instances.GET("/projected-balance", instanceHandler.GetProjectedBalance)
	instances.PUT("/:id", instanceHandler.ModifyInstance)
	instances.POST("/:id/complete", instanceHandler.CompleteInstance)
	instances.POST("/:id/skip", instanceHandler.SkipInstance)
	instances.POST("/:id/create-transaction", instanceHandler.CreateTransactionFromInstance)

	return &testApp{DB: db, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// registerUser registers a new user and returns the token and user ID.
func (app *testApp) registerUser(t *testing.T, email, password string) (token, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"first_name":"Test","last_name":"User"}`, email, password)
	rec := app.request("POST", "/api/v1/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["token"].(string), user["id"].(string)
}

// loginUser logs in and returns the token.
func (app *testApp) loginUser(t *testing.T, email, password string) string {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := app.request("POST", "/api/v1/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["token"].(string)
}

// cardBalance reads a card's settled balance straight from the database.
func (app *testApp) cardBalance(t *testing.T, cardID string) int64 {
	t.Helper()
	var card models.Card
	if err := app.DB.First(&card, "id = ?", cardID).Error; err != nil {
		t.Fatalf("failed to load card: %v", err)
	}
	return card.Balance
}
