package main // Entry point package

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/raffle-reservation/internal/allocator"
	"github.com/iliyamo/raffle-reservation/internal/cache"
	"github.com/iliyamo/raffle-reservation/internal/config"
	"github.com/iliyamo/raffle-reservation/internal/database"
	"github.com/iliyamo/raffle-reservation/internal/handler"
	"github.com/iliyamo/raffle-reservation/internal/middleware"
	"github.com/iliyamo/raffle-reservation/internal/queue"
	"github.com/iliyamo/raffle-reservation/internal/repository"
	"github.com/iliyamo/raffle-reservation/internal/router"
	queue_publisher "github.com/iliyamo/raffle-reservation/internal/service"
	"github.com/iliyamo/raffle-reservation/internal/sweeper"
)

func main() {
	_ = godotenv.Load() // optional .env for local development

	cfg := config.Load()
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	// Redis backs the rate limiter and the count cache. A nil client
	// degrades both gracefully: the limiter fails open, the cache is
	// bypassed.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and count caching disabled")
	}

	store := repository.NewStore(db)
	counts := cache.New(rdb, config.LoadCountCacheConfig())
	alloc := allocator.New(store, allocator.Config{
		MaxTicketsPerCall: cfg.MaxTicketsPerCall,
		DefaultMinutes:    cfg.HoldMinutes,
		MaxMinutes:        cfg.MaxHoldMinutes,
	})

	// Background expiration sweeper releases abandoned holds.
	sweepCfg := config.LoadSweeperConfig()
	if sweepCfg.Enabled {
		sw := sweeper.New(store, counts, queue_publisher.PublishReservationEvent, sweepCfg)
		go sw.Run(context.Background())
	}

	// Audit consumer for reservation lifecycle events.
	go func() {
		if err := queue.StartReservationConsumer(); err != nil {
			log.Printf("reservation consumer stopped: %v", err)
		}
	}()

	// Assign through a typed check so a nil *RedisWindowStore never hides
	// inside a non-nil WindowStore interface.
	var window middleware.WindowStore
	if ws := middleware.NewRedisWindowStore(rdb); ws != nil {
		window = ws
	}

	e := echo.New()
	router.Register(e, router.Deps{
		Reservations: handler.NewReservationHandler(alloc, store.Raffles, store.Reservations, counts, queue_publisher.PublishReservationEvent),
		Raffles:      handler.NewRaffleHandler(alloc, store.Raffles, counts),
		Organizer:    handler.NewOrganizerHandler(store.Reservations, counts, queue_publisher.PublishReservationEvent),
		Limiter:      middleware.NewReserveLimiter(config.LoadRateLimitConfig(), window),
		JWTSecret:    cfg.JWTSecret,
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
