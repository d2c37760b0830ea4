package config

import (
	"log"
	"os"
	"strconv"

	"github.com/hirelocal/dispatch/internal/pkg/models"
	"github.com/joho/godotenv"
)

func InitConfig(configPath string) *models.Config {
	local := GetEnv("APP_ENV", "local")
	if local == "local" {
		// Load config from file
		err := godotenv.Load(configPath)
		if err != nil {
			log.Println("error loading config from file", err)
		}
	}
	// Create config from environment variables
	return loadConfigFromEnv()
}

func loadConfigFromEnv() *models.Config {
	configs := &models.Config{}

	// App config
	configs.App.Name = GetEnv("APP_NAME", "")
	configs.App.Environment = GetEnv("APP_ENV", "")
	configs.App.Debug = GetEnvAsBool("APP_DEBUG", true)
	configs.App.Version = GetEnv("APP_VERSION", "")

	// Server config (agent status endpoint)
	configs.Server.Host = GetEnv("SERVER_HOST", "0.0.0.0")
	configs.Server.Port = GetEnvAsInt("SERVER_PORT", 8080)
	configs.Server.ReadTimeout = GetEnvAsInt("SERVER_READ_TIMEOUT", 30)
	configs.Server.WriteTimeout = GetEnvAsInt("SERVER_WRITE_TIMEOUT", 30)
	configs.Server.ShutdownTimeout = GetEnvAsInt("SERVER_SHUTDOWN_TIMEOUT", 10)

	// Gateway config
	configs.Gateway.BaseURL = GetEnv("GATEWAY_BASE_URL", "http://localhost:8000")
	configs.Gateway.SocketURL = GetEnv("GATEWAY_SOCKET_URL", "ws://localhost:8000/ws")
	configs.Gateway.TimeoutSeconds = GetEnvAsInt("GATEWAY_TIMEOUT_SECONDS", 10)

	// JWT config
	configs.JWT.Secret = GetEnv("JWT_SECRET", "")
	configs.JWT.Expiration = GetEnvAsInt("JWT_EXPIRATION", 60)
	configs.JWT.Issuer = GetEnv("JWT_ISSUER", "")

	// Location config
	configs.Location.DeviceTimeoutSeconds = GetEnvAsInt("LOCATION_DEVICE_TIMEOUT_SECONDS", 10)
	configs.Location.MinDisplacementMeters = GetEnvAsFloat("LOCATION_MIN_DISPLACEMENT_METERS", 50.0)
	configs.Location.MaxStalenessSeconds = GetEnvAsInt("LOCATION_MAX_STALENESS_SECONDS", 60)
	configs.Location.GeolocationURL = GetEnv("LOCATION_GEOLOCATION_URL", "")
	configs.Location.GeolocationAPIKey = GetEnv("LOCATION_GEOLOCATION_API_KEY", "")
	configs.Location.IPLookupURL = GetEnv("LOCATION_IP_LOOKUP_URL", "https://ipapi.co/json/")

	// Dispatch config
	configs.Dispatch.OfferWindowSeconds = GetEnvAsInt("DISPATCH_OFFER_WINDOW_SECONDS", 20)

	// Relay config
	configs.Relay.EmitIntervalMs = GetEnvAsInt("RELAY_EMIT_INTERVAL_MS", 1000)
	configs.Relay.HeadingThresholdDegrees = GetEnvAsFloat("RELAY_HEADING_THRESHOLD_DEGREES", 5.0)
	configs.Relay.HeadingBlend = GetEnvAsFloat("RELAY_HEADING_BLEND", 0.3)
	configs.Relay.SnapThresholdMeters = GetEnvAsFloat("RELAY_SNAP_THRESHOLD_METERS", 8.0)
	configs.Relay.PositionBlend = GetEnvAsFloat("RELAY_POSITION_BLEND", 0.3)

	// Routing config
	configs.Routing.OSRMURL = GetEnv("ROUTING_OSRM_URL", "http://localhost:5000")
	configs.Routing.RecalcIntervalSecond = GetEnvAsInt("ROUTING_RECALC_INTERVAL_SECONDS", 5)
	configs.Routing.TimeoutSeconds = GetEnvAsInt("ROUTING_TIMEOUT_SECONDS", 5)

	// Logger config
	configs.Logger.Level = GetEnv("LOG_LEVEL", "info")
	configs.Logger.FilePath = GetEnv("LOG_FILE_PATH", "logs/dispatch.log")
	configs.Logger.MaxSize = GetEnvAsInt64("LOG_MAX_SIZE", 100)
	configs.Logger.MaxAge = GetEnvAsInt("LOG_MAX_AGE", 7)
	configs.Logger.MaxBackups = GetEnvAsInt("LOG_MAX_BACKUPS", 3)
	configs.Logger.Compress = GetEnvAsBool("LOG_COMPRESS", true)
	configs.Logger.Type = GetEnv("LOG_TYPE", "file")

	return configs
}

// Helper functions to get environment variables with different types
func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := GetEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func GetEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := GetEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		log.Printf("Warning: Invalid int64 value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func GetEnvAsBool(key string, defaultValue bool) bool {
	valueStr := GetEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean value for %s, using default: %v", key, defaultValue)
		return defaultValue
	}

	return value
}

func GetEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := GetEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float value for %s, using default: %v", key, defaultValue)
		return defaultValue
	}

	return value
}
