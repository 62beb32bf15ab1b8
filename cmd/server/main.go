package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lembas/internal/config"
	"lembas/internal/handlers/apiserver"
	"lembas/internal/importer"
	appKafka "lembas/internal/kafka"
	"lembas/internal/middleware"
	appRedis "lembas/internal/redis"
	"lembas/internal/services"
	"lembas/internal/storage"
	"lembas/internal/websocket"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	redisDriver "github.com/redis/go-redis/v9"
)

func main() {
	// 1. Load configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded.")

	// 2. Database
	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	log.Println("Database connection established.")

	if err := storage.AutoMigrateTables(db); err != nil {
		log.Printf("Warning: database migration may have failed: %v", err)
	} else {
		log.Println("Database migration completed.")
	}

	store := storage.NewGormStore(db)

	// 3. Redis + token blacklist
	redisClient := redisDriver.NewClient(&redisDriver.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("Connected to Redis.")
	tokenBlacklist := appRedis.NewRedisTokenBlacklist(redisClient)

	// 4. Kafka sync-event bus
	kfkProducer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
	if err != nil {
		log.Fatalf("Failed to create Kafka producer: %v", err)
	}
	defer kfkProducer.Close()
	publisher := services.NewKafkaSyncPublisher(kfkProducer, cfg.Kafka)

	// 5. Services
	evaluator := services.NewEvaluator(store)
	authService := services.NewAuthService(store, tokenBlacklist, cfg.Auth)
	userService := services.NewUserService(store, publisher)
	friendService := services.NewFriendService(store, publisher)
	recipeService := services.NewRecipeService(store, evaluator, publisher)
	shareService := services.NewShareService(store, evaluator, publisher)
	importClient := importer.NewClient(cfg.Importer)

	// Bootstrap: an empty instance prints an owner join code so the first
	// account can be created.
	if code, needed, err := authService.EnsureOwnerJoinCode(context.Background()); err != nil {
		log.Printf("Warning: owner bootstrap check failed: %v", err)
	} else if needed {
		log.Printf("No owner account exists yet. Sign up with owner join code: %s", code)
	}

	// 6. Realtime hub + notifier consumer
	hub := websocket.NewHub()
	go hub.Run()

	notifier := services.NewNotifier(store, hub)
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	kfkConsumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
	if err != nil {
		log.Fatalf("Failed to create Kafka consumer: %v", err)
	}
	go func() {
		topics := []string{cfg.Kafka.SyncEventsTopic}
		if err := kfkConsumer.Consume(consumerCtx, topics, cfg.Kafka.ConsumerGroup, notifier.HandleSyncEvent); err != nil {
			log.Printf("Sync-event consumer stopped with error: %v", err)
		}
	}()

	// 7. Handlers
	authHandler := apiserver.NewAuthHandler(authService)
	userHandler := apiserver.NewUserHandler(userService)
	adminHandler := apiserver.NewAdminHandler(userService, authService)
	recipeHandler := apiserver.NewRecipeHandler(recipeService, importClient)
	friendHandler := apiserver.NewFriendHandler(friendService)
	shareHandler := apiserver.NewShareHandler(shareService, recipeService)
	wsHandler := apiserver.NewWSHandler(hub, notifier, cfg.Auth.JWTSecretKey, tokenBlacklist, cfg.WebSocket)

	authMW := middleware.AuthMiddleware(cfg.Auth.JWTSecretKey, tokenBlacklist)
	optionalAuthMW := middleware.OptionalAuthMiddleware(cfg.Auth.JWTSecretKey, tokenBlacklist)

	// 8. Routes
	r := mux.NewRouter()

	// Public auth endpoints
	r.HandleFunc("/api/auth/signup", authHandler.SignupHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", authHandler.LoginHandler).Methods(http.MethodPost)

	// Share-token endpoints: anonymous allowed, identity attached if present
	shareRouter := r.PathPrefix("/api/share").Subrouter()
	shareRouter.Use(optionalAuthMW)
	shareRouter.HandleFunc("/{token}", shareHandler.ResolveShareHandler).Methods(http.MethodGet)
	shareRouter.HandleFunc("/{token}", shareHandler.EditViaShareHandler).Methods(http.MethodPut)

	// Authenticated API
	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(authMW)
	apiRouter.HandleFunc("/auth/logout", authHandler.LogoutHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/auth/me", authHandler.MeHandler).Methods(http.MethodGet)

	apiRouter.HandleFunc("/recipes", recipeHandler.ListRecipesHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/recipes", recipeHandler.SaveRecipeHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/recipes/import", recipeHandler.ImportRecipeHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/recipes/{recipeID:[0-9]+}", recipeHandler.DeleteRecipeHandler).Methods(http.MethodDelete)

	apiRouter.HandleFunc("/recipes/{recipeID:[0-9]+}/shares", shareHandler.ListSharesHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/recipes/{recipeID:[0-9]+}/shares/public", shareHandler.SetPublicShareHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/recipes/{recipeID:[0-9]+}/shares/user", shareHandler.GrantUserShareHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/recipes/{recipeID:[0-9]+}/shares/user/{userID:[0-9]+}", shareHandler.RevokeUserShareHandler).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/shared", shareHandler.SharedWithMeHandler).Methods(http.MethodGet)

	apiRouter.HandleFunc("/users", userHandler.DirectoryHandler).Methods(http.MethodGet)

	apiRouter.HandleFunc("/friends", friendHandler.OverviewHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/friends/{userID:[0-9]+}", friendHandler.RemoveFriendHandler).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/friend-requests", friendHandler.SendFriendRequestHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/friend-requests/{requestID:[0-9]+}/accept", friendHandler.AcceptFriendRequestHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/friend-requests/{requestID:[0-9]+}/reject", friendHandler.RejectFriendRequestHandler).Methods(http.MethodPost)

	apiRouter.HandleFunc("/admin/users", adminHandler.ListUsersHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/admin/users/{userID:[0-9]+}/role", adminHandler.ChangeRoleHandler).Methods(http.MethodPut)
	apiRouter.HandleFunc("/admin/users/{userID:[0-9]+}", adminHandler.DeleteUserHandler).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/admin/join-codes", adminHandler.ListJoinCodesHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/admin/join-codes", adminHandler.CreateJoinCodeHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/admin/join-codes/{code}", adminHandler.DeleteJoinCodeHandler).Methods(http.MethodDelete)

	// Realtime sync; the handler validates the JWT itself at upgrade time.
	r.Handle("/ws", wsHandler).Methods(http.MethodGet)

	// 9. CORS
	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.Server.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.Server.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.Server.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.Server.CORS.ExposedHeaders),
		handlers.MaxAge(cfg.Server.CORS.MaxAge),
	}
	if cfg.Server.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}
	corsHandler := handlers.CORS(corsOptions...)(r)

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:           serverAddr,
		Handler:        corsHandler,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		IdleTimeout:    time.Second * 60,
	}

	go func() {
		log.Printf("Server listening on %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown signal received, stopping server...")

	cancelConsumer()
	kfkConsumer.Close()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shut down: %v", err)
	}
	log.Println("Server stopped cleanly.")
}
