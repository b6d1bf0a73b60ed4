package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Telegram
	BotToken       string
	TelegramAPIURL string

	// Rezka API
	RezkaAPIURL  string
	RezkaAPIKey  string
	CacheTTL     time.Duration // lifetime of resolved direct URLs
	ShortInfoTTL time.Duration // lifetime of title info and voice-over lists
	RezkaTimeout time.Duration

	// Download queue
	DownloadsTempDir         string
	MaxFileUploadSize        int64 // bytes, exclusive ceiling
	DownloadQueueToChatID    int64 // archive chat receiving every upload once
	DownloadQueuePerMsgDelay time.Duration
	DownloadQueueSleep       time.Duration
	WgetBinary               string

	// Series tracking
	TrackCheckerDelay       time.Duration // between cycles
	TrackCheckerPerDelay    time.Duration // after a skipped or seeded row
	TrackCheckerPerMsgDelay time.Duration // between notifications

	// Server
	ServerPort string

	// Paths
	DatabaseFile string // $CONFIG_DIR/hdrfilmsbot.db

	// Logging
	LogLevel  string
	LogFormat string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	viper.SetDefault("TELEGRAM_API_URL", "https://api.telegram.org")
	viper.SetDefault("REZKA_API_URL", "https://api.rezka.fi")
	viper.SetDefault("REZKA_TIMEOUT", 20)
	viper.SetDefault("CACHE_REZKA_DATA_TIME", 1800)
	viper.SetDefault("CACHE_REZKA_SHORT_INFO_TIME", 1800)
	viper.SetDefault("MAX_FILE_UPLOAD_SIZE", 2000*1024*1024)
	viper.SetDefault("DOWNLOAD_QUEUE_PER_MESSAGE_DELAY", 0.1)
	viper.SetDefault("DOWNLOAD_QUEUE_SLEEP", 3)
	viper.SetDefault("WGET_BINARY", "wget")
	viper.SetDefault("TRACK_SERIES_CHECKER_DELAY", 3600)
	viper.SetDefault("TRACK_SERIES_CHECKER_PER_DELAY", 1)
	viper.SetDefault("TRACK_SERIES_CHECKER_PER_MESSAGE_DELAY", 0.1)
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "hdrfilmsbot")
	} else {
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	downloadsDir := viper.GetString("DOWNLOADS_TEMP_DIR")
	if downloadsDir == "" {
		downloadsDir = filepath.Join(configDir, "downloads")
	}
	if err := os.MkdirAll(downloadsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create downloads directory: %w", err)
	}

	config := &Config{
		BotToken:       viper.GetString("BOT_TOKEN"),
		TelegramAPIURL: viper.GetString("TELEGRAM_API_URL"),

		RezkaAPIURL:  viper.GetString("REZKA_API_URL"),
		RezkaAPIKey:  viper.GetString("REZKA_API_KEY"),
		CacheTTL:     seconds("CACHE_REZKA_DATA_TIME"),
		ShortInfoTTL: seconds("CACHE_REZKA_SHORT_INFO_TIME"),
		RezkaTimeout: seconds("REZKA_TIMEOUT"),

		DownloadsTempDir:         downloadsDir,
		MaxFileUploadSize:        viper.GetInt64("MAX_FILE_UPLOAD_SIZE"),
		DownloadQueueToChatID:    viper.GetInt64("DOWNLOAD_QUEUE_TO_CHAT_ID"),
		DownloadQueuePerMsgDelay: seconds("DOWNLOAD_QUEUE_PER_MESSAGE_DELAY"),
		DownloadQueueSleep:       seconds("DOWNLOAD_QUEUE_SLEEP"),
		WgetBinary:               viper.GetString("WGET_BINARY"),

		TrackCheckerDelay:       seconds("TRACK_SERIES_CHECKER_DELAY"),
		TrackCheckerPerDelay:    seconds("TRACK_SERIES_CHECKER_PER_DELAY"),
		TrackCheckerPerMsgDelay: seconds("TRACK_SERIES_CHECKER_PER_MESSAGE_DELAY"),

		ServerPort: viper.GetString("SERVER_PORT"),

		DatabaseFile: filepath.Join(configDir, "hdrfilmsbot.db"),

		LogLevel:  viper.GetString("LOG_LEVEL"),
		LogFormat: viper.GetString("LOG_FORMAT"),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.RezkaAPIKey == "" {
		return fmt.Errorf("REZKA_API_KEY is required")
	}
	if c.DownloadQueueToChatID == 0 {
		return fmt.Errorf("DOWNLOAD_QUEUE_TO_CHAT_ID is required")
	}
	if c.MaxFileUploadSize <= 0 {
		return fmt.Errorf("MAX_FILE_UPLOAD_SIZE must be positive")
	}
	if c.TrackCheckerDelay < time.Second {
		return fmt.Errorf("TRACK_SERIES_CHECKER_DELAY must be at least one second")
	}
	return nil
}

// seconds reads a fractional number of seconds
func seconds(key string) time.Duration {
	return time.Duration(viper.GetFloat64(key) * float64(time.Second))
}
