package main // Entry point package

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/carpool-ride-reservation/internal/config"
	"github.com/iliyamo/carpool-ride-reservation/internal/database"
	"github.com/iliyamo/carpool-ride-reservation/internal/handler"
	"github.com/iliyamo/carpool-ride-reservation/internal/middleware"
	"github.com/iliyamo/carpool-ride-reservation/internal/queue"
	"github.com/iliyamo/carpool-ride-reservation/internal/repository"
	"github.com/iliyamo/carpool-ride-reservation/internal/reservation"
	"github.com/iliyamo/carpool-ride-reservation/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rideRepo := repository.NewRideRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)

	store := repository.NewSQLStore(db, rideRepo, bookingRepo)
	engine := reservation.NewEngine(store)

	e := echo.New()
	e.HideBanner = true

	// Redis-backed rate limiting and response caching degrade to
	// pass-through when no Redis instance is reachable.  Only the
	// rate limiter runs globally; the cache is restricted to the
	// public browse routes because its keys are not per-user.
	rdb := config.NewRedisClient()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	authHandler := handler.NewAuthHandler(cfg, userRepo, tokenRepo)
	rideHandler := handler.NewRideHandler(rideRepo)
	bookingHandler := handler.NewBookingHandler(engine, bookingRepo, time.Duration(cfg.ReserveTimeout)*time.Second)
	publicHandler := handler.NewPublicHandler(rideRepo)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterPublic(e, publicHandler, cacheMW)
	router.RegisterDriver(e, rideHandler, cfg.JWTSecret)
	router.RegisterRider(e, bookingHandler, cfg.JWTSecret)

	// Background consumer writing booking.confirmed events to
	// logs/booking.log.  Runs its own reconnect loop.
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking-consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
