package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию бота.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Discord struct {
		Token   string `envconfig:"DISCORD_TOKEN"`
		GuildID int64  `envconfig:"DISCORD_GUILD_ID"`
		// DevMode отключает проверку прав администратора для слэш-команд.
		// Только для локальной разработки, в проде включать нельзя.
		DevMode bool `envconfig:"DEV_MODE"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Limits struct {
		LeaderboardSize int   `envconfig:"LEADERBOARD_SIZE" default:"10"`
		AllTimePageSize int   `envconfig:"ALLTIME_PAGE_SIZE" default:"20"`
		ScanMaxMessages int   `envconfig:"SCAN_MAX_MESSAGES" default:"10000"`
		MaxPDFBytes     int64 `envconfig:"MAX_PDF_BYTES" default:"52428800"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
