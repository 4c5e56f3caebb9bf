package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/FleetBox/config"
	"github.com/BearBump/FleetBox/internal/broker/kafka"
	"github.com/BearBump/FleetBox/internal/cache/rediscache"
	"github.com/BearBump/FleetBox/internal/services/fleet"
	"github.com/BearBump/FleetBox/internal/storage/pgfleet"
)

type fleetAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     fleetAPIOpts
	svc      *fleet.Service
	consumer *kafka.Consumer
	producer *kafka.Producer
	closeDB  func()
}

func mustBootstrapFleetAPI() *fleetAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to parse config: %v", err))
	}

	httpAddr := cfg.FleetBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.FleetBox.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "fleet-api"
	}
	topic := cfg.Kafka.FleetEventsTopicName
	if topic == "" {
		topic = "fleet.events"
	}

	cacheTTL := time.Duration(cfg.FleetBox.VehicleStateTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)

	svc := fleet.New(st, rc, producer, fleet.Settings{
		CurrentTTL:      cacheTTL,
		RouteDistanceKm: cfg.FleetBox.RouteDistanceKm,
		EventsTopic:     topic,
	})

	var limiter *rediscache.RateLimiter
	if cfg.FleetBox.RateLimitPerMinute > 0 {
		limiter = rediscache.NewRateLimiter(redisAddr)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	opts := fleetAPIOpts{
		httpAddr:      httpAddr,
		swaggerPath:   os.Getenv("swaggerPath"),
		topic:         topic,
		consumerGroup: consumerGroup,
	}
	if limiter != nil {
		opts.limiter = limiter
		opts.rateLimit = int64(cfg.FleetBox.RateLimitPerMinute)
		opts.rateWindow = time.Minute
	}

	return &fleetAPIApp{
		ctx:      ctx,
		cancel:   cancel,
		opts:     opts,
		svc:      svc,
		consumer: consumer,
		producer: producer,
		closeDB:  st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgfleet.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgfleet.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *fleetAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *fleetAPIApp) Run() error {
	return runFleetAPI(a.ctx, a.opts, a.svc, a.consumer)
}
