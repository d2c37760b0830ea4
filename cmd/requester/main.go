package main

import (
	"context"
	"encoding/json"
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
	"github.com/hirelocal/dispatch/internal/pkg/constants"
	"github.com/hirelocal/dispatch/internal/pkg/health"
	"github.com/hirelocal/dispatch/internal/pkg/logger"
	"github.com/hirelocal/dispatch/internal/pkg/models"
	"github.com/hirelocal/dispatch/internal/realtime"
	"github.com/hirelocal/dispatch/internal/relay"
	"github.com/hirelocal/dispatch/internal/routing"
)

func main() {
	appName := "requester-agent"
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

	userID := os.Getenv("USER_ID")
	if userID == "" {
		zapLogger.Fatal("USER_ID is required")
	}
	category := os.Getenv("SERVICE_CATEGORY")
	if category == "" {
		category = "general"
	}

	device := geosampler.NewSimulatedDevice(
		models.Coordinates{Longitude: 106.8456, Latitude: -6.2088}, 0, 0, time.Minute)
	sampler := geosampler.NewSampler(device, configs.Location)

	gw := gateway.NewClient(configs.Gateway, zapLogger)
	channel := realtime.NewChannel(configs.Gateway.SocketURL, configs.JWT)
	channel.SetDegradedHandler(func() {
		zapLogger.Error("realtime channel degraded, manual reconnect required")
	})

	registry := relay.NewRegistry(configs.Relay)
	router := routing.NewOSRMClient(configs.Routing)
	session := dispatch.NewRequesterSession(userID, channel, gw)

	channel.On(constants.EventRoomJoined, func(data json.RawMessage) {
		var ack models.RoomJoinedPayload
		if err := json.Unmarshal(data, &ack); err != nil {
			return
		}
		zapLogger.Info("Joined session room", zap.String("user_type", ack.UserType))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := channel.Connect(ctx, realtime.Identity{UserID: userID, UserType: models.UserTypeRequester}); err != nil {
		cancel()
		zapLogger.Fatal("Failed to connect realtime channel", zap.Error(err))
	}
	cancel()

	// Where the provider should come to. Falls back through network and IP
	// sources when no precise fix is possible; a denial aborts entirely.
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	origin, err := sampler.RequestOneShot(bootCtx)
	bootCancel()
	if err != nil {
		zapLogger.Fatal("Could not resolve request origin", zap.Error(err))
	}
	zapLogger.Info("Request origin resolved",
		zap.String("source", string(origin.Source)),
		zap.Float64("accuracy_m", origin.Accuracy))

	session.OnTransition(func(state models.SessionState, update *models.RequestUpdate) {
		zapLogger.Info("Session state changed", zap.String("state", string(state)))

		if state != models.StateAccepted || update == nil {
			return
		}
		requestID := session.RequestID()

		detailCtx, detailCancel := context.WithTimeout(context.Background(), 10*time.Second)
		details, err := gw.CounterpartDetails(detailCtx, requestID)
		detailCancel()
		if err != nil {
			zapLogger.Warn("Failed to fetch provider details", zap.Error(err))
		} else {
			zapLogger.Info("Provider matched",
				zap.String("name", details.UserInfo.FirstName+" "+details.UserInfo.LastName),
				zap.String("phone", details.UserInfo.PhoneNo),
				zap.String("verification_code", details.OTP))
		}

		projector := routing.NewProjector(router, origin.Coordinates, configs.Routing)
		projector.OnRoute(func(route routing.Route) {
			zapLogger.Info("Route updated",
				zap.Int("points", len(route.Path)),
				zap.Float64("distance_m", route.DistanceMeters),
				zap.Float64("eta_s", route.DurationSeconds))
		})

		registry.StartTracker(requestID, channel, func(pose relay.Pose) {
			zapLogger.Debug("Provider position",
				zap.Float64("lon", pose.Coordinates.Longitude),
				zap.Float64("lat", pose.Coordinates.Latitude))
			projector.Update(context.Background(), pose.Coordinates)
		})
	})

	submitCtx, submitCancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := session.Submit(submitCtx, origin.Coordinates, category); err != nil {
		submitCancel()
		zapLogger.Fatal("Failed to submit request", zap.Error(err))
	}
	submitCancel()
	if session.State() == models.StateNoProvider {
		zapLogger.Warn("No providers available nearby")
	}

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
	if !session.State().Terminal() && session.State() != models.StateIdle {
		cancelCtx, cancelCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := session.Cancel(cancelCtx); err != nil {
			zapLogger.Warn("Failed to cancel request", zap.Error(err))
		}
		cancelCancel()
	}

	registry.Shutdown()
	channel.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(configs.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Status server shutdown failed", zap.Error(err))
	}
}
