package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hirelocal/dispatch/internal/dispatch"
	"github.com/hirelocal/dispatch/internal/gateway"
	"github.com/hirelocal/dispatch/internal/geosampler"
	"github.com/hirelocal/dispatch/internal/pkg/config"
	"github.com/hirelocal/dispatch/internal/pkg/health"
	"github.com/hirelocal/dispatch/internal/pkg/logger"
	"github.com/hirelocal/dispatch/internal/pkg/models"
	"github.com/hirelocal/dispatch/internal/realtime"
	"github.com/hirelocal/dispatch/internal/relay"
)

func main() {
	appName := "provider-agent"
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = ".env"
	}
	configs := config.InitConfig(configPath)

	zapLogger, err := logger.InitZapLoggerFromConfig(configs)
	if err != nil {
		log.Fatalf("Failed to create Zap logger: %v", err)
	}
	defer zapLogger.Close()
	logger.SetGlobalLogger(zapLogger)

	zapLogger.Info("Starting application",
		zap.String("app", appName),
		zap.String("version", configs.App.Version),
		zap.String("environment", configs.App.Environment),
	)

	providerID := os.Getenv("PROVIDER_ID")
	if providerID == "" {
		zapLogger.Fatal("PROVIDER_ID is required")
	}

	// Simulated positioning device; a deployment swaps in a real GPS bridge.
	start := models.Coordinates{Longitude: 106.8272, Latitude: -6.1754}
	device := geosampler.NewSimulatedDevice(start, 45, 8, 2*time.Second)
	sampler := geosampler.NewSampler(device, configs.Location)

	gw := gateway.NewClient(configs.Gateway, zapLogger)
	channel := realtime.NewChannel(configs.Gateway.SocketURL, configs.JWT)
	channel.SetDegradedHandler(func() {
		zapLogger.Error("realtime channel degraded, manual reconnect required")
	})

	registry := relay.NewRegistry(configs.Relay)
	session := dispatch.NewProviderSession(providerID, channel, gw, configs.Dispatch)

	session.OnOffer(func(offer models.Offer) {
		zapLogger.Info("Offer received",
			zap.String("request_id", offer.RequestID),
			zap.String("distance", offer.Distance))

		// The demo agent takes every job it is offered.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := session.Accept(ctx, offer.RequestID); err != nil {
				zapLogger.Warn("Failed to accept offer", zap.Error(err))
				return
			}
			if err := session.Begin(); err != nil {
				zapLogger.Warn("Failed to begin job", zap.Error(err))
				return
			}

			r := registry.StartRelay(offer.RequestID, channel)
			if _, err := sampler.Watch(func(sample models.PositionSample) {
				r.Offer(sample)
				if err := gw.UpdateTracking(context.Background(), offer.RequestID, sample.Coordinates); err != nil {
					zapLogger.Debug("Tracking update failed", zap.Error(err))
				}
			}, func(err error) {
				zapLogger.Warn("Position watch error", zap.Error(err))
			}); err != nil {
				zapLogger.Error("Failed to start position watch", zap.Error(err))
			}
		}()
	})
	session.OnOfferExpired(func(requestID string) {
		zapLogger.Info("Offer expired", zap.String("request_id", requestID))
	})
	session.OnOfferWithdrawn(func(requestID string) {
		zapLogger.Info("Offer withdrawn", zap.String("request_id", requestID))
	})
	session.Listen()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := channel.Connect(ctx, realtime.Identity{UserID: providerID, UserType: models.UserTypeProvider}); err != nil {
		cancel()
		zapLogger.Fatal("Failed to connect realtime channel", zap.Error(err))
	}
	cancel()

	// Announce duty with the current position so dispatch can find us.
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 15*time.Second)
	if sample, err := sampler.RequestOneShot(bootCtx); err != nil {
		zapLogger.Warn("Could not resolve initial position", zap.Error(err))
	} else if err := gw.SetAvailability(bootCtx, providerID, true, sample.Coordinates); err != nil {
		zapLogger.Warn("Failed to announce availability", zap.Error(err))
	}
	bootCancel()

	e := echo.New()
	e.HideBanner = true
	e.Use(logger.ZapEchoMiddleware(zapLogger))
	health.RegisterHealthEndpoints(e, appName, channel.Connected)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go func() {
		addr := fmt.Sprintf("%s:%d", configs.Server.Host, configs.Server.Port)
		zapLogger.Info("Starting status server", zap.String("address", addr))
		if err := e.Start(addr); err != nil {
			zapLogger.Info("Status server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down")
	offCtx, offCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := gw.SetAvailability(offCtx, providerID, false, models.Coordinates{}); err != nil {
		zapLogger.Warn("Failed to withdraw availability", zap.Error(err))
	}
	offCancel()

	sampler.StopWatch()
	session.Close()
	registry.Shutdown()
	channel.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(configs.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Status server shutdown failed", zap.Error(err))
	}
}
