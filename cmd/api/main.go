package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iamasit07/pingline/backend/internal/config"
	"github.com/iamasit07/pingline/backend/internal/domain"
	"github.com/iamasit07/pingline/backend/internal/repository/postgres"
	"github.com/iamasit07/pingline/backend/internal/repository/redis"
	"github.com/iamasit07/pingline/backend/internal/service/chat"
	"github.com/iamasit07/pingline/backend/internal/service/presence"
	"github.com/iamasit07/pingline/backend/internal/service/token"
	transportHttp "github.com/iamasit07/pingline/backend/internal/transport/http"
	"github.com/iamasit07/pingline/backend/internal/transport/http/middleware"
	"github.com/iamasit07/pingline/backend/internal/transport/websocket"
	"github.com/joho/godotenv"

	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("No .env file found")
		}
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	// Apply Pool Settings
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetimeMin) * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatal("Database unreachable:", err)
	}

	log.Println("Running database migrations...")
	if err := postgres.RunMigrations(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Database migration completed successfully")

	// Repositories (Persistence Layer)
	userRepo := postgres.NewUserRepo(db)
	messageRepo := postgres.NewMessageRepo(db)

	// Redis (optional cache)
	if err := redis.InitRedis(); err != nil {
		log.Printf("Failed to initialize Redis: %v", err)
	}
	defer redis.CloseRedis()

	var cache token.CacheRepository
	if redis.IsRedisEnabled() && redis.RedisClient != nil {
		cache = redis.NewRedisCache(redis.RedisClient)
	}

	// Services (Business Logic Layer)
	tokenService := token.NewService(userRepo, cache)
	chatService := chat.NewService(messageRepo)
	connManager := websocket.NewConnectionManager()

	// Presence transitions: persist the status and tell everyone else.
	statusSink := func(userID int64, online bool) {
		status := domain.StatusOffline
		if online {
			status = domain.StatusOnline
		}
		if err := userRepo.UpdateStatus(userID, status); err != nil {
			log.Printf("[PRESENCE] Failed to persist status for user %d: %v", userID, err)
		}
		connManager.Broadcast(domain.NewStatusChanged(userID, online), userID)
		log.Printf("[PRESENCE] User %d is now %s", userID, status)
	}
	registry := presence.NewRegistry(cfg.PresenceDebounce, statusSink)
	defer registry.Close()

	// HTTP Handlers (API Layer)
	authHandler := transportHttp.NewAuthHandler(userRepo, tokenService)
	chatHandler := transportHttp.NewChatHandler(chatService, registry, userRepo)
	oauthHandler := transportHttp.NewOAuthHandler(userRepo, tokenService, &cfg.OAuthConfig)
	wsHandler := websocket.NewHandler(connManager, registry, chatService, tokenService)

	mux := http.NewServeMux()

	// WebSocket Route (auth handled inside the WS handler itself)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Public Auth Routes
	mux.HandleFunc("/api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("/api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("/api/v1/auth/refresh-token", authHandler.RefreshToken)

	// OAuth Routes (public)
	mux.HandleFunc("/api/v1/auth/google/login", oauthHandler.GoogleLogin)
	mux.HandleFunc("/api/v1/auth/google/callback", oauthHandler.GoogleCallback)

	// Protected Routes
	mux.HandleFunc("/api/v1/auth/logout", middleware.AuthMiddleware(authHandler.Logout, tokenService))
	mux.HandleFunc("/api/v1/auth/me", middleware.AuthMiddleware(authHandler.Me, tokenService))
	mux.HandleFunc("/api/v1/chat/getconversationhistory", middleware.AuthMiddleware(chatHandler.GetConversationHistory, tokenService))
	mux.HandleFunc("/api/v1/chat/getonlineusers", middleware.AuthMiddleware(chatHandler.GetOnlineUsers, tokenService))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: middleware.SecurityHeaders(middleware.EnableCORS(mux)),
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	connManager.CloseAll()

	log.Println("Server exited gracefully")
}
