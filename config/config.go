package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Firebase FirebaseConfig
	Sim      SimConfig
	Scoring  ScoringConfig
	Tutor    TutorConfig
	App      AppConfig
}

type ServerConfig struct {
	Port string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	DSN string
}

type FirebaseConfig struct {
	CredentialsPath string
}

// SimConfig tunes the per-session simulation loop.
type SimConfig struct {
	TickHz              int     // wall cadence of the clock
	TelemetrySimHz      float64 // frame emission cadence in sim time
	TelemetryWallMaxHz  float64 // upper bound on frame emission in wall time
	TelemetryRetention  int     // frames kept per session
	SocCriticalPct      float64 // critical alert threshold
	SocCriticalRearmPct float64 // hysteresis rearm threshold
	SocWarningPct       float64
	SocWarningRearmPct  float64
	SocZeroGraceSec     float64 // soc=0 longer than this fails the session
	IdleAbandonMin      int     // sweeper: minutes without activity before abandon
}

// ScoringConfig carries the five metric weights. They must sum to 1.
type ScoringConfig struct {
	CommandAccuracyWeight    float64
	ResponseTimeWeight       float64
	ResourceManagementWeight float64
	CompletionTimeWeight     float64
	ErrorAvoidanceWeight     float64
}

type TutorConfig struct {
	BaseURL     string
	DeadlineSec int
	MaxRetries  int
}

type AppConfig struct {
	Environment string
	LogLevel    string
	Version     string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			DSN: getEnv("DB_DSN", ""),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		},
		Sim: SimConfig{
			TickHz:              getEnvAsInt("SIM_TICK_HZ", 10),
			TelemetrySimHz:      getEnvAsFloat("SIM_TELEMETRY_SIM_HZ", 1),
			TelemetryWallMaxHz:  getEnvAsFloat("SIM_TELEMETRY_WALL_MAX_HZ", 10),
			TelemetryRetention:  getEnvAsInt("SIM_TELEMETRY_RETENTION", 500),
			SocCriticalPct:      getEnvAsFloat("SIM_SOC_CRITICAL_PCT", 20),
			SocCriticalRearmPct: getEnvAsFloat("SIM_SOC_CRITICAL_REARM_PCT", 25),
			SocWarningPct:       getEnvAsFloat("SIM_SOC_WARNING_PCT", 40),
			SocWarningRearmPct:  getEnvAsFloat("SIM_SOC_WARNING_REARM_PCT", 45),
			SocZeroGraceSec:     getEnvAsFloat("SIM_SOC_ZERO_GRACE_SEC", 60),
			IdleAbandonMin:      getEnvAsInt("SIM_IDLE_ABANDON_MIN", 120),
		},
		Scoring: ScoringConfig{
			CommandAccuracyWeight:    getEnvAsFloat("SCORE_W_COMMAND_ACCURACY", 0.30),
			ResponseTimeWeight:       getEnvAsFloat("SCORE_W_RESPONSE_TIME", 0.20),
			ResourceManagementWeight: getEnvAsFloat("SCORE_W_RESOURCE_MGMT", 0.25),
			CompletionTimeWeight:     getEnvAsFloat("SCORE_W_COMPLETION_TIME", 0.15),
			ErrorAvoidanceWeight:     getEnvAsFloat("SCORE_W_ERROR_AVOIDANCE", 0.10),
		},
		Tutor: TutorConfig{
			BaseURL:     getEnv("TUTOR_BASE_URL", "http://localhost:8088"),
			DeadlineSec: getEnvAsInt("TUTOR_DEADLINE_SEC", 10),
			MaxRetries:  getEnvAsInt("TUTOR_MAX_RETRIES", 3),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}

	if c.Sim.TickHz <= 0 {
		return fmt.Errorf("SIM_TICK_HZ must be positive")
	}

	// Both rates are divisors when deriving frame intervals.
	if c.Sim.TelemetrySimHz <= 0 {
		return fmt.Errorf("SIM_TELEMETRY_SIM_HZ must be positive")
	}

	if c.Sim.TelemetryWallMaxHz <= 0 {
		return fmt.Errorf("SIM_TELEMETRY_WALL_MAX_HZ must be positive")
	}

	sum := c.Scoring.CommandAccuracyWeight +
		c.Scoring.ResponseTimeWeight +
		c.Scoring.ResourceManagementWeight +
		c.Scoring.CompletionTimeWeight +
		c.Scoring.ErrorAvoidanceWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("scoring weights must sum to 1, got %.3f", sum)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float for %s, using default: %g", key, defaultValue)
		return defaultValue
	}

	return value
}
