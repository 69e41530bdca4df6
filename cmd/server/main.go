package main

import (
	"context"
	"fmt"
	"log"
	"manual-approval-workflow/internal/audit"
	"manual-approval-workflow/internal/config"
	"manual-approval-workflow/internal/db"
	"manual-approval-workflow/internal/manual"
	"manual-approval-workflow/internal/middleware"
	"manual-approval-workflow/internal/notify"
	"manual-approval-workflow/internal/revision"
	"manual-approval-workflow/internal/user"
	"manual-approval-workflow/internal/worker"
	"manual-approval-workflow/redis"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Connect to database
	if err := db.ConnectDb(); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.CloseDb()

	// Migrate database schema and install append-only guards
	db.Migrate()

	// Seed database with initial data (for development)
	db.SeedData()

	// Initialize Redis cache
	cache := redis.NewCache(config.AppConfig.RedisAddress)

	// Worker pool for notification dispatch
	pool := worker.NewWorkerPool(4)
	defer pool.Shutdown()

	// Initialize repositories
	userRepo := user.NewRepository(db.AppDb)
	manualRepo := manual.NewRepository(db.AppDb)
	revisionRepo := revision.NewRepository(db.AppDb)
	auditStore := audit.NewStore(db.AppDb)

	// Initialize services
	userService := user.NewService(userRepo)
	manualService := manual.NewService(manualRepo, cache)
	notifyClient := notify.NewClient(config.AppConfig.NotifierAddress, config.AppConfig.NotifierSecret)
	dispatcher := notify.NewDispatcher(notifyClient, pool)
	revisionService := revision.NewService(revisionRepo, dispatcher, cache)

	// Initialize handlers
	userHandler := user.NewHandler(userService)
	manualHandler := manual.NewHandler(manualService)
	revisionHandler := revision.NewHandler(revisionService)
	auditHandler := audit.NewHandler(auditStore)

	authn := &middleware.Auth{
		UserService:    userService,
		InternalSecret: config.AppConfig.InternalSecret,
	}

	// Initialize Gin router
	router := gin.Default()
	router.Use(middleware.ErrorHandler())

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}

	if config.AppConfig.Environment == "development" {
		// Allow all origins in development
		corsConfig.AllowAllOrigins = true
	} else {
		// Restrict origins in production
		corsConfig.AllowOrigins = []string{config.AppConfig.FrontendAddress}
	}
	router.Use(cors.New(corsConfig))

	// User routes
	router.POST("/register", userHandler.Register)
	router.POST("/login", userHandler.Login)
	router.DELETE("/logout", authn.AuthMiddleWare(), userHandler.Logout)
	router.GET("/profile", authn.AuthMiddleWare(), userHandler.GetProfile)
	router.GET("/users", authn.AuthMiddleWare(), userHandler.SearchUsers)

	// Manual and chapter routes
	router.POST("/manuals", authn.AuthMiddleWare(), manualHandler.Create)
	router.GET("/manuals", authn.AuthMiddleWare(), manualHandler.List)
	router.GET("/manuals/:id", authn.AuthMiddleWare(), manualHandler.Show)
	router.PUT("/manuals/:id", authn.AuthMiddleWare(), manualHandler.Update)
	router.DELETE("/manuals/:id", authn.AuthMiddleWare(), manualHandler.Archive)
	router.GET("/manuals/:id/chapters", authn.AuthMiddleWare(), manualHandler.ListChapters)
	router.POST("/manuals/:id/chapters", authn.AuthMiddleWare(), manualHandler.AddChapter)
	router.PUT("/manuals/:id/chapters/:chapterId", authn.AuthMiddleWare(), manualHandler.UpdateChapter)
	router.DELETE("/manuals/:id/chapters/:chapterId", authn.AuthMiddleWare(), manualHandler.DeleteChapter)

	// Lifecycle routes
	router.POST("/manuals/:id/submit-review", authn.AuthMiddleWare(), revisionHandler.SubmitForReview)
	router.POST("/manuals/:id/approve", authn.AuthMiddleWare(), revisionHandler.Approve)
	router.POST("/manuals/:id/reject", authn.AuthMiddleWare(), revisionHandler.Reject)
	router.POST("/manuals/:id/next-revision", authn.AuthMiddleWare(), revisionHandler.StartNextRevision)
	router.GET("/manuals/:id/revisions", authn.AuthMiddleWare(), revisionHandler.List)
	router.GET("/manuals/:id/revisions/:revisionId", authn.AuthMiddleWare(), revisionHandler.Show)

	// Audit routes, internal tooling only
	router.GET("/internal/audit-logs", authn.InternalAuthMiddleware(), auditHandler.ListLogs)
	router.GET("/internal/field-history", authn.InternalAuthMiddleware(), auditHandler.ListFieldHistory)

	// Server configuration
	serverPort := config.AppConfig.ServerPort
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverPort),
		Handler: router.Handler(),
	}

	// Start server
	go func() {
		log.Printf("Server listening on port %s", serverPort)
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Println("Server shutdown error:", err)
	}

	<-ctx.Done()
	log.Println("Server shutdown complete")
}
