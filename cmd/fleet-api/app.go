package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	fleetapi "github.com/BearBump/FleetBox/internal/api/fleetapi"
	"github.com/BearBump/FleetBox/internal/broker/messages"
	"github.com/BearBump/FleetBox/internal/faults"
	"github.com/BearBump/FleetBox/internal/services/fleet"
)

type fleetAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	limiter    fleetapi.Limiter
	rateLimit  int64
	rateWindow time.Duration

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

func runFleetAPI(ctx context.Context, opts fleetAPIOpts, svc *fleet.Service, consumer kafkaConsumer) error {
	if opts.swaggerPath != "" {
		if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
			return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
		}
	}

	api := fleetapi.New(svc).WithSwagger(opts.swaggerPath)
	if opts.limiter != nil {
		api = api.WithRateLimiter(opts.limiter, opts.rateLimit, opts.rateWindow)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, api)
	}()

	if consumer != nil {
		go func() {
			slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
			if err := consumer.Consume(ctx, func(key, value []byte) error {
				return applyFleetEvent(ctx, svc, key, value)
			}); err != nil {
				slog.Error("kafka consumer stopped", "error", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

// applyFleetEvent handles one message off the events topic. The topic also
// carries the trip events this binary publishes itself, keyed "trip:<id>";
// only "shipment:"-keyed messages are applied here. Unparseable payloads
// and faults no refetch can cure are acknowledged, not returned: returning
// them would stop the consume loop on an uncommitted offset.
func applyFleetEvent(ctx context.Context, svc *fleet.Service, key, value []byte) error {
	if !bytes.HasPrefix(key, []byte("shipment:")) {
		return nil
	}

	var m messages.ShipmentUpdated
	if err := json.Unmarshal(value, &m); err != nil {
		slog.Error("dropping malformed shipment event", "key", string(key), "error", err)
		return nil
	}

	err := svc.ApplyShipmentEvent(ctx, m)
	if err != nil && (faults.IsBadInput(err) || faults.IsNotFound(err) || faults.IsValidation(err)) {
		slog.Error("dropping unprocessable shipment event",
			"key", string(key), "shipmentId", m.ShipmentID, "error", err)
		return nil
	}
	return err
}

func runHTTPServer(ctx context.Context, lis net.Listener, api *fleetapi.API) error {
	srv := &http.Server{Handler: api.Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}
