package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const DefaultMaxUploadBytes = 5 << 20 // 5 MiB

type Config struct {
	Port        string
	BotToken    string
	AdminChatID string
	WebAppURL   string

	DataDir     string
	MenuFile    string
	OrdersFile  string
	UploadsFile string

	MaxUploadBytes int64

	// Optional order event stream; publishing is skipped when unset.
	KafkaBrokers []string
}

// Load reads configuration from the environment, after loading a .env file
// when one is present. Missing optional values get defaults; required values
// are checked by the caller since the CLI tool needs only the data paths.
func Load() *Config {
	_ = godotenv.Load()

	dataDir := getenv("DATA_DIR", "data")

	cfg := &Config{
		Port:           getenv("PORT", "3000"),
		BotToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		AdminChatID:    os.Getenv("ADMIN_CHAT_ID"),
		WebAppURL:      os.Getenv("WEBAPP_URL"),
		DataDir:        dataDir,
		MenuFile:       filepath.Join(dataDir, "menu.json"),
		OrdersFile:     filepath.Join(dataDir, "orders.json"),
		UploadsFile:    filepath.Join(dataDir, "uploads.json"),
		MaxUploadBytes: DefaultMaxUploadBytes,
	}

	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxUploadBytes = n
		}
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	return cfg
}

// AdminIDs returns the identity ids allowed to use admin endpoints and
// commands. Currently the allow-list is just the admin chat id.
func (c *Config) AdminIDs() []string {
	if c.AdminChatID == "" {
		return nil
	}
	return []string{c.AdminChatID}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
