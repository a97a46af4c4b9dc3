package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"companion-api/internal/api/controllers"
	"companion-api/internal/api/handlers"
	"companion-api/internal/config"
	"companion-api/internal/credit"
	"companion-api/internal/database"
	"companion-api/internal/middleware"
	"companion-api/internal/repository"
	"companion-api/internal/services"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/stripe/stripe-go/v72"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	// Initialize database connection
	db, err := database.InitDB()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Get underlying *sql.DB instance for connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to get underlying *sql.DB instance:", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	creditUsageRepo := repository.NewCreditUsageRepository(db)
	requestLogRepo := repository.NewRequestLogRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)
	adminTokenRepo := repository.NewAdminTokenRepository(db)

	// Initialize services
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	policyConfig := config.NewCreditPolicyConfig()
	engine := credit.NewEngine(policyConfig, credit.SystemClock{})

	var cache services.CacheService
	if redisCache, err := services.NewRedisCacheService(config.NewCacheConfig()); err != nil {
		log.Printf("Warning: Redis unavailable, running without cache: %v", err)
	} else {
		cache = redisCache
	}

	authService := services.NewAuthService(userRepo, jwtSecret, policyConfig.FreeRefillCredits)
	emailService := services.NewEmailService()
	creditService := services.NewCreditService(userRepo, creditUsageRepo, engine, credit.SystemClock{}, emailService)
	analysisService := services.NewAnalysisService()
	chatService := services.NewChatService(conversationRepo, creditService, analysisService, cache)
	requestLogService := services.NewRequestLogService(requestLogRepo)
	webhookEventService := services.NewWebhookEventService(webhookEventRepo)
	adminTokenService := services.NewAdminTokenService(adminTokenRepo)

	if _, err := adminTokenService.GetOrCreateAdminToken(); err != nil {
		log.Printf("Warning: failed to provision admin token: %v", err)
	}

	// Initialize handlers
	chatHandler := handlers.NewChatHandler(chatService, creditService)
	analysisHandler := handlers.NewAnalysisHandler(chatService, creditService)
	creditHandler := handlers.NewCreditHandler(creditService)
	stripeHandler := handlers.NewStripeHandler(authService, userRepo, webhookEventService)
	clerkHandler := handlers.NewClerkHandler(authService, webhookEventService)
	adminHandler := handlers.NewAdminHandler(requestLogService, creditUsageRepo, webhookEventService)

	requestLogger := middleware.NewRequestLogger(requestLogService)

	// Initialize router
	router := mux.NewRouter()

	// Public routes
	router.HandleFunc("/health", controllers.HealthCheckHandler(db)).Methods("GET")
	router.HandleFunc("/webhooks/stripe", stripeHandler.HandleStripeWebhook).Methods("POST")
	router.HandleFunc("/webhooks/clerk", clerkHandler.HandleClerkWebhook).Methods("POST")

	// API routes (protected)
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.AuthMiddleware(authService))
	apiRouter.Use(middleware.LoggingMiddleware)
	apiRouter.Use(requestLogger.LogRequest)

	// Conversation routes
	apiRouter.HandleFunc("/conversations", chatHandler.ListConversations).Methods("GET")
	apiRouter.HandleFunc("/conversations", chatHandler.CreateConversation).Methods("POST")
	apiRouter.HandleFunc("/conversations/{id}", chatHandler.RenameConversation).Methods("PATCH")
	apiRouter.HandleFunc("/conversations/{id}", chatHandler.DeleteConversation).Methods("DELETE")
	apiRouter.HandleFunc("/conversations/{id}/messages", chatHandler.ListMessages).Methods("GET")
	apiRouter.HandleFunc("/conversations/{id}/messages", chatHandler.SendMessage).Methods("POST")
	apiRouter.HandleFunc("/conversations/{id}/analyze", analysisHandler.Analyze).Methods("POST")

	// Favorites
	apiRouter.HandleFunc("/favorites", chatHandler.ListFavorites).Methods("GET")
	apiRouter.HandleFunc("/conversations/{id}/favorite", chatHandler.FavoriteConversation).Methods("POST")
	apiRouter.HandleFunc("/conversations/{id}/favorite", chatHandler.UnfavoriteConversation).Methods("DELETE")

	// Credits + billing
	apiRouter.HandleFunc("/credits/status", creditHandler.GetStatus).Methods("GET")
	apiRouter.HandleFunc("/billing/checkout", stripeHandler.HandleCreateCheckout).Methods("POST")

	// Admin routes
	adminRouter := router.PathPrefix("/admin").Subrouter()
	adminRouter.Use(middleware.AdminMiddleware(authService, adminTokenService))
	adminRouter.HandleFunc("/logs/user/{userID}", adminHandler.GetUserLogs).Methods("GET")
	adminRouter.HandleFunc("/logs/endpoint", adminHandler.GetEndpointLogs).Methods("GET")
	adminRouter.HandleFunc("/ledger/user/{userID}", adminHandler.GetUserLedger).Methods("GET")
	adminRouter.HandleFunc("/ledger/recent", adminHandler.GetRecentLedger).Methods("GET")
	adminRouter.HandleFunc("/webhook-events", adminHandler.GetWebhookEvents).Methods("GET")

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"http://localhost:3000"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
			"x-admin-token",
		},
		ExposedHeaders: []string{
			"Link",
		},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})

	// Create server with timeouts
	srv := &http.Server{
		Handler:      corsMiddleware.Handler(router),
		Addr:         ":" + getPort(),
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	// Start server
	log.Printf("Server starting on port %s...", getPort())
	log.Fatal(srv.ListenAndServe())
}

func getPort() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = "5050"
	}
	return port
}
