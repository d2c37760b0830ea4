package models

// Config represents application configuration
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Gateway  GatewayConfig
	JWT      JWTConfig
	Location LocationConfig
	Dispatch DispatchConfig
	Relay    RelayConfig
	Routing  RoutingConfig
	Logger   LoggerConfig
}

// AppConfig contains application-specific configuration
type AppConfig struct {
	Name        string
	Environment string
	Debug       bool
	Version     string
}

// ServerConfig contains the agent status server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     int
	WriteTimeout    int
	ShutdownTimeout int
}

// GatewayConfig contains the backend REST and socket endpoints
type GatewayConfig struct {
	BaseURL        string
	SocketURL      string
	TimeoutSeconds int
}

// JWTConfig contains channel authentication configuration
type JWTConfig struct {
	Secret     string
	Expiration int // in minutes
	Issuer     string
}

// LocationConfig contains position sampling configuration
type LocationConfig struct {
	DeviceTimeoutSeconds  int     // bounded wait for a fresh device fix
	MinDisplacementMeters float64 // significance filter displacement threshold
	MaxStalenessSeconds   int     // significance filter liveness bound
	GeolocationURL        string  // network-based coarse geolocation service
	GeolocationAPIKey     string
	IPLookupURL           string // IP-based coarse geolocation service
}

// DispatchConfig contains offer handling configuration
type DispatchConfig struct {
	OfferWindowSeconds int // provider response countdown
}

// RelayConfig contains location relay throttling and smoothing configuration
type RelayConfig struct {
	EmitIntervalMs          int     // minimum interval between channel emissions
	HeadingThresholdDegrees float64 // deltas above this are damped
	HeadingBlend            float64 // fraction of the new heading blended in
	SnapThresholdMeters     float64 // moves within this are blended, beyond snap
	PositionBlend           float64 // fraction of the new position blended in
}

// RoutingConfig contains route projection configuration
type RoutingConfig struct {
	OSRMURL              string
	RecalcIntervalSecond int // minimum seconds between route recomputations
	TimeoutSeconds       int
}

// LoggerConfig contains logging configuration
type LoggerConfig struct {
	Level      string
	FilePath   string
	MaxSize    int64
	MaxAge     int
	MaxBackups int
	Compress   bool
	Type       string
}
