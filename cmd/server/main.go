package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"go-party/internal/batcher"
	"go-party/internal/chat"
	"go-party/internal/config"
	"go-party/internal/db"
	"go-party/internal/game"
	"go-party/internal/generation"
	myMiddleware "go-party/internal/middleware"
	"go-party/internal/user"
)

func main() {
	// 1. Config & Flags
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	cfg.BindFlags(flag.CommandLine)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database (optional)
	var archive game.Archive
	var chatRepo *chat.Repository
	if cfg.DBDSN != "" {
		database, err := db.NewDatabase(cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			log.Fatalf("❌ Failed to connect to DB: %v", err)
		}
		defer database.Close()
		log.Printf("✅ Connected to %s", cfg.DBDriver)

		if err := database.AutoMigrate(); err != nil {
			log.Fatalf("❌ Migration failed: %v", err)
		}
		log.Println("✅ Database Schema Initialized")
		chatRepo = chat.NewRepository(database)
		archive = chatRepo
	} else {
		log.Println("PARTY_DB_DSN not set, transcripts will not be saved")
	}

	// 3. Connect to Redis (optional)
	var relay chat.Relay = chat.NewLocalRelay()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		defer redisClient.Close()
		if _, err := redisClient.Ping(ctx).Result(); err != nil {
			log.Fatalf("❌ Failed to connect to Redis: %v", err)
		}
		log.Println("✅ Connected to Redis")
		relay = chat.NewRedisRelay(redisClient)
	}

	// 4. Generator
	var gen generation.Service
	if cfg.LLMAPIKey != "" {
		gen = generation.NewClient(generation.ClientConfig{
			BaseURL:    cfg.LLMBaseURL,
			APIKey:     cfg.LLMAPIKey,
			Model:      cfg.LLMModel,
			HTTPClient: &http.Client{Timeout: cfg.GenerationTimeout + 5*time.Second},
		})
		log.Println("✅ Using remote generator")
	} else {
		gen = generation.NewOffline(uint64(time.Now().UnixNano()))
		log.Println("PARTY_LLM_API_KEY not set, using offline generator")
	}

	// 5. Game engine + hub
	strategy, ok := batcher.ParseStrategy(cfg.DispatchStrategy)
	if !ok {
		log.Fatalf("❌ Unknown dispatch strategy %q", cfg.DispatchStrategy)
	}
	hub := chat.NewHub(relay)
	engine := game.New(game.Config{
		Window:            cfg.BatchWindow,
		Cooldown:          cfg.MessageCooldown,
		GenerationTimeout: cfg.GenerationTimeout,
		Strategy:          strategy,
	}, gen, hub, archive)
	hub.Attach(engine)
	log.Printf("✅ Engine ready (%s dispatch, %s window)", strategy, cfg.BatchWindow)

	userService := user.NewService(cfg.JWTSecret, cfg.TokenTTL)
	userHandler := user.NewHandler(userService)
	chatHandler := chat.NewHandler(hub, chatRepo)
	authMiddleware := myMiddleware.NewAuthMiddleware(userService)

	// 6. Define Routes
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", chat.Health)
	r.Post("/api/session", userHandler.CreateSession)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)
		r.Get("/ws", chatHandler.ServeWs)
		r.Get("/api/rooms/{code}/messages", chatHandler.GetTranscript)
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: r}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		log.Printf("🚀 Server starting on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("❌ HTTP shutdown: %v", err)
		}
		if err := engine.Drain(shutdownCtx); err != nil {
			log.Printf("❌ Drain: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("❌ Server stopped: %v", err)
	}
	log.Println("✅ Server stopped")
}
