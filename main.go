package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DirectChat/middleware"
	"DirectChat/pkg/cache"
	"DirectChat/pkg/config"
	"DirectChat/pkg/database"
	"DirectChat/pkg/eventbus"
	"DirectChat/pkg/logger"
	"DirectChat/pkg/presence"
	"DirectChat/pkg/realtime"
	"DirectChat/pkg/services"
	"DirectChat/pkg/workerpool"
	"DirectChat/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := config.Load(); err != nil {
		logger.Init("info", "json")
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Init(config.LogLevel, config.LogFormat)

	db, err := database.Open(database.Options{Driver: config.DBDriver, DSN: config.DatabaseURL})
	if err != nil {
		log.Fatal().Err(err).Str("driver", config.DBDriver).Msg("failed to connect database")
	}
	defer database.Close(db)
	log.Info().Str("driver", config.DBDriver).Msg("database ready")

	// presence: redis when configured, process memory otherwise
	var registry presence.Registry = presence.NewMemory()
	if config.RedisURL != "" {
		opts, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		redisPresence := presence.NewRedis(rdb, "presence")
		stopHeartbeat := redisPresence.StartHeartbeat(presence.DefaultTTL / 3)
		defer stopHeartbeat()
		registry = redisPresence
		log.Info().Msg("connected to Redis")
	}

	var mirror realtime.Mirror
	if config.NATSURL != "" {
		nm, err := eventbus.Connect(config.NATSURL, config.NATSSubjectPrefix)
		if err != nil {
			log.Fatal().Err(err).Msg("NATS connection failed")
		}
		defer nm.Close()
		mirror = nm
		log.Info().Str("prefix", config.NATSSubjectPrefix).Msg("event mirror connected to NATS")
	}

	profiles := cache.New(config.ProfileCacheMaxItems)
	stopJanitor := profiles.StartJanitor(time.Minute)
	defer stopJanitor()
	directory := services.NewDirectory(db, registry, profiles, time.Duration(config.ProfileCacheTTLSeconds)*time.Second)

	// the hub needs the conversation service for room checks, and the
	// services need the dispatcher, so the notifier is bound late
	notifier := &lateNotifier{}
	conversations := services.NewConversationService(db, directory, registry, notifier)
	messages := services.NewMessageService(db, conversations, notifier)

	hub := realtime.NewHub(registry, conversations, realtime.Options{
		ReadLimit:       int64(config.WSReadLimitBytes),
		EventsPerSecond: config.WSEventsPerSecond,
		OnDisconnect: func(ctx context.Context, userID uint) {
			if err := directory.TouchLastActive(ctx, userID); err != nil {
				log.Warn().Err(err).Uint("user_id", userID).Msg("last active update failed")
			}
		},
	})
	dispatcher := realtime.NewDispatcher(hub,
		workerpool.New("dispatch", config.DispatchWorkers, config.DispatchQueueSize), mirror)
	notifier.Notifier = dispatcher

	limiter := middleware.NewLimiter(time.Duration(config.RateLimitWindowSeconds)*time.Second, config.RateLimitCapacity)
	pruneCtx, stopPrune := context.WithCancel(context.Background())
	defer stopPrune()
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				limiter.Prune()
			case <-pruneCtx.Done():
				return
			}
		}
	}()

	if config.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.Metrics())

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Deps{
		DB:            db,
		Directory:     directory,
		Conversations: conversations,
		Messages:      messages,
		Hub:           hub,
		Limiter:       limiter,
	})

	srv := &http.Server{
		Addr:        ":" + config.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	go func() {
		log.Info().Str("port", config.Port).Str("env", config.AppEnv).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	// hijacked websocket connections outlive Shutdown
	dispatcher.Close()
	hub.Close(shutdownCtx)
	log.Info().Msg("server stopped")
}

// lateNotifier forwards to a Notifier assigned after construction.
type lateNotifier struct {
	services.Notifier
}
