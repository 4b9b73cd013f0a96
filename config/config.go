package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// AppConfig holds file and environment driven configuration values.
type AppConfig struct {
	AppPort        string
	AllowedOrigins []string
	SanitizeHTML   bool
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	AutoMigrate bool
	// Redis list cache; disabled when RedisHost is empty
	RedisHost       string
	RedisPort       int
	RedisDB         int
	RedisPassword   string
	CacheTTLSeconds int
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// envKeys maps config keys onto the environment variables that override them.
var envKeys = map[string]string{
	"app.port":            "APP_PORT",
	"app.allowed_origins": "CORS_ALLOWED_ORIGINS",
	"app.sanitize_html":   "SANITIZE_HTML",
	"gin.mode":            "GIN_MODE",
	"gin.log_path":        "GIN_LOG_PATH",
	"database.driver":     "DB_DRIVER",
	"database.uri":        "DATABASE_URI",
	"database.host":       "DB_HOST",
	"database.port":       "DB_PORT",
	"database.user":       "DB_USER",
	"database.password":   "DB_PASSWORD",
	"database.name":       "DB_NAME",
	"database.migrate":    "DB_AUTO_MIGRATE",
	"redis.host":          "REDIS_HOST",
	"redis.port":          "REDIS_PORT",
	"redis.db":            "REDIS_DB",
	"redis.password":      "REDIS_PASSWORD",
	"redis.ttl_seconds":   "CACHE_TTL_SECONDS",
	"log.level":           "LOG_LEVEL",
	"log.path":            "LOG_PATH",
	"log.max_size_mb":     "LOG_MAX_SIZE_MB",
	"log.max_backups":     "LOG_MAX_BACKUPS",
	"log.max_age_days":    "LOG_MAX_AGE_DAYS",
	"log.compress":        "LOG_COMPRESS",
}

// Load reads configuration. Precedence: defaults < config file < environment.
// An empty path falls back to config/config.json, which may be absent.
func Load(path string) (AppConfig, error) {
	v := viper.New()
	applyDefaults(v)

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return AppConfig{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigFile(filepath.Join("config", "config.json"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
		// a missing default file is fine; a broken or missing explicit file is not
		if path != "" || !missing {
			return AppConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := AppConfig{
		AppPort:         v.GetString("app.port"),
		AllowedOrigins:  splitList(v.GetStringSlice("app.allowed_origins")),
		SanitizeHTML:    v.GetBool("app.sanitize_html"),
		GinMode:         v.GetString("gin.mode"),
		GinPath:         v.GetString("gin.log_path"),
		DBDriver:        strings.ToLower(v.GetString("database.driver")),
		DatabaseURI:     v.GetString("database.uri"),
		DBHost:          v.GetString("database.host"),
		DBPort:          v.GetString("database.port"),
		DBUser:          v.GetString("database.user"),
		DBPassword:      v.GetString("database.password"),
		DBName:          v.GetString("database.name"),
		AutoMigrate:     v.GetBool("database.migrate"),
		RedisHost:       v.GetString("redis.host"),
		RedisPort:       v.GetInt("redis.port"),
		RedisDB:         v.GetInt("redis.db"),
		RedisPassword:   v.GetString("redis.password"),
		CacheTTLSeconds: v.GetInt("redis.ttl_seconds"),
		LogLevel:        v.GetString("log.level"),
		LogPath:         v.GetString("log.path"),
		LogMaxSizeMB:    v.GetInt("log.max_size_mb"),
		LogMaxBackups:   v.GetInt("log.max_backups"),
		LogMaxAgeDays:   v.GetInt("log.max_age_days"),
		LogCompress:     v.GetBool("log.compress"),
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return cfg, nil
}

// applyDefaults sets sane defaults for every key.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.allowed_origins", []string{"*"})
	v.SetDefault("app.sanitize_html", true)
	v.SetDefault("gin.mode", "release")
	v.SetDefault("gin.log_path", "logs/go_gin.log")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.user", "root")
	v.SetDefault("database.name", "ghosttalk")
	v.SetDefault("database.migrate", true)
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.ttl_seconds", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "logs/ghosttalk.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)
}

// splitList accepts both JSON arrays and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, s := range strings.Split(item, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

