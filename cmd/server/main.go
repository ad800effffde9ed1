package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/config"
	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/metrics"
	"github.com/Nixie-Tech-LLC/marquee/internal/notify"
	cache "github.com/Nixie-Tech-LLC/marquee/internal/redis"
	"github.com/Nixie-Tech-LLC/marquee/internal/timeline"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	// initialize PostgreSQL
	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db init")
	}
	defer conn.Close()

	// run pending migrations
	if err := db.RunMigrations(conn, cfg.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	var timelines *cache.TimelineCache
	if cfg.RedisAddress != "" {
		rdb := cache.NewClient(cfg.RedisAddress, cfg.RedisUsername, cfg.RedisPassword)
		defer rdb.Close()
		timelines = cache.NewTimelineCache(rdb, cfg.TimelineCacheTTL)
		if err := timelines.Ping(context.Background()); err != nil {
			log.Warn().Err(err).Str("address", cfg.RedisAddress).Msg("redis unreachable, device timelines will be built per request until it recovers")
		}
	} else {
		log.Info().Msg("REDIS_ADDRESS not set, timeline cache disabled")
	}

	var publisher *notify.Publisher
	if cfg.MQTTBrokerURL != "" {
		publisher, err = notify.Connect(cfg.MQTTBrokerURL, cfg.MQTTClientID)
		if err != nil {
			log.Warn().Err(err).Msg("MQTT unavailable, devices will not be notified of timeline changes")
		}
		defer publisher.Close()
	} else {
		log.Info().Msg("MQTT_BROKER_URL not set, timeline notifications disabled")
	}

	m := metrics.New()
	store := db.NewStore(conn)
	coord := timeline.NewCoordinator(
		db.NewTimelineRepository(conn, cfg.LockTimeout),
		timeline.WithVideoChecker(db.NewVideoChecker(conn)),
		timeline.WithObserver(m),
	)

	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	RegisterRoutes(r, cfg, services{
		store:     store,
		timeline:  coord,
		cache:     timelines,
		publisher: publisher,
		metrics:   m,
		ping:      conn.PingContext,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("address", cfg.ServerAddress).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown LOG_LEVEL, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Development() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
