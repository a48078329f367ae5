package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Show     ShowConfig
	Market   MarketConfig
	Dialogue DialogueConfig
	Speech   SpeechConfig
	Logging  LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string
	Host string
	Env  string // "development" or "production"
}

// ShowConfig holds the show loop's timing parameters
type ShowConfig struct {
	DiscussionDuration time.Duration
	VotingDuration     time.Duration
	TransitionDuration time.Duration
	TopicHistorySize   int
}

// MarketConfig holds prediction-market data source configuration
type MarketConfig struct {
	GammaBaseURL string
	ClobBaseURL  string
}

// DialogueConfig holds script generation configuration
type DialogueConfig struct {
	GeminiAPIKey        string
	GeminiModel         string
	TurnsPerDiscussion  int
	DialogueHistorySize int
}

// SpeechConfig holds speech room configuration
type SpeechConfig struct {
	RoomURL string // empty runs the show headless
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
			Env:  getEnv("ENV", "development"),
		},
		Show: ShowConfig{
			DiscussionDuration: time.Duration(getEnvInt("DISCUSSION_DURATION_SECONDS", 300)) * time.Second,
			VotingDuration:     time.Duration(getEnvInt("VOTING_DURATION_SECONDS", 60)) * time.Second,
			TransitionDuration: time.Duration(getEnvInt("TRANSITION_SECONDS", 10)) * time.Second,
			TopicHistorySize:   getEnvInt("TOPIC_HISTORY_SIZE", 20),
		},
		Market: MarketConfig{
			GammaBaseURL: getEnv("GAMMA_BASE_URL", ""),
			ClobBaseURL:  getEnv("CLOB_BASE_URL", ""),
		},
		Dialogue: DialogueConfig{
			GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
			GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			TurnsPerDiscussion:  getEnvInt("TURNS_PER_DISCUSSION", 10),
			DialogueHistorySize: getEnvInt("DIALOGUE_HISTORY_SIZE", 12),
		},
		Speech: SpeechConfig{
			RoomURL: getEnv("ROOM_URL", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// getEnv returns an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an environment variable as an integer or a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
