package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	v1 "github.com/pvparena/typing-arena/api/v1"
	"github.com/pvparena/typing-arena/internal/auth"
	"github.com/pvparena/typing-arena/internal/config"
	"github.com/pvparena/typing-arena/internal/lifecycle"
	"github.com/pvparena/typing-arena/internal/match"
	"github.com/pvparena/typing-arena/internal/matchqueue"
	"github.com/pvparena/typing-arena/internal/ranking"
	"github.com/pvparena/typing-arena/internal/registry"
	"github.com/pvparena/typing-arena/internal/wsrouter"
	transport "github.com/pvparena/typing-arena/websocket"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system values")
	}

	cfg := config.Load()

	db := mustOpenDB(cfg)
	store := ranking.NewGormStore(db)
	if err := store.EnsureIndexes(context.Background()); err != nil {
		log.Fatalf("failed to migrate pvp schema: %v", err)
	}

	reg := registry.New()
	if cfg.RedisAddr != "" {
		attachRedisBridge(cfg, reg)
	}

	coordinator := match.NewCoordinator(store, reg, cfg.TestDuration, cfg.MatchTimeout)
	queue := matchqueue.New(coordinator, reg, cfg.QueueTimeout)

	manager, err := lifecycle.New(queue, cfg.CleanupInterval)
	if err != nil {
		log.Fatalf("failed to start lifecycle manager: %v", err)
	}

	router := wsrouter.New(reg, queue, coordinator)

	e := echo.New()
	e.HTTPErrorHandler = v1.ErrorHandler
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
	}))

	v1.Store = store
	v1.Queue = queue

	api := e.Group("/api/v1/pvp")
	api.Use(auth.Middleware(cfg.JWTSecret))
	v1.RegisterPvpRoutes(api)

	e.GET("/pvp/ws", transport.Handler(reg, router, cfg.JWTSecret, cfg.FrontendURL))

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	manager.Shutdown()
	queue.Close()
	coordinator.Shutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Println("server shutdown error:", err)
	}
}

func mustOpenDB(cfg config.Config) *gorm.DB {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("error connecting to database: %v", err)
	}
	return db
}

// attachRedisBridge wires the Session Registry to a shared Redis
// pub/sub channel so events reach players connected to other
// instances. A single-instance deployment leaves REDIS_ADDR unset and
// never calls this.
func attachRedisBridge(cfg config.Config, reg *registry.Registry) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}

	bridge := registry.NewRedisBridge(ctx, rdb, reg)
	if err := bridge.Start(); err != nil {
		log.Fatalf("failed to subscribe to redis pubsub: %v", err)
	}
	reg.AttachBroadcaster(bridge)
	log.Println("redis pub/sub bridge attached")
}
