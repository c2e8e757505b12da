// Пакет config — загрузка и валидация конфигурации Open VTB
// из переменных окружения и (опционально) YAML-файла.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Open VTB.
// Приоритет источников: ENV > YAML (OVTB_CONFIG_PATH) > env-default.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	OIDC       OIDCConfig       `yaml:"oidc"`
	Auth       AuthConfig       `yaml:"auth"`
	API        APIConfig        `yaml:"api"`
	Taken      TakenConfig      `yaml:"taken"`
	Dephealth  DephealthConfig  `yaml:"dephealth"`
	Log        LogConfig        `yaml:"log"`
	JSONSchema JSONSchemaConfig `yaml:"jsonschema"`
}

// ServerConfig — параметры HTTP-сервера.
type ServerConfig struct {
	Port            int           `yaml:"port"             env:"OVTB_PORT"             env-default:"8000"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"OVTB_HTTP_READ_TIMEOUT"  env-default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"OVTB_HTTP_WRITE_TIMEOUT" env-default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"OVTB_HTTP_IDLE_TIMEOUT"  env-default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"OVTB_SHUTDOWN_TIMEOUT"   env-default:"5s"`
}

// DatabaseConfig — параметры подключения к PostgreSQL.
type DatabaseConfig struct {
	Host     string `yaml:"host"      env:"OVTB_DB_HOST"`
	Port     int    `yaml:"port"      env:"OVTB_DB_PORT"      env-default:"5432"`
	Name     string `yaml:"name"      env:"OVTB_DB_NAME"`
	User     string `yaml:"user"      env:"OVTB_DB_USER"`
	Password string `yaml:"password"  env:"OVTB_DB_PASSWORD"`
	SSLMode  string `yaml:"ssl_mode"  env:"OVTB_DB_SSL_MODE"  env-default:"disable"`
	MaxConns int32  `yaml:"max_conns" env:"OVTB_DB_MAX_CONNS" env-default:"10"`
}

// OIDCConfig — параметры OpenID Connect провайдера.
// Пустые JWKSURL/UserinfoURL заполняются через discovery, если Discovery=true.
type OIDCConfig struct {
	Issuer         string        `yaml:"issuer"          env:"OVTB_OIDC_ISSUER"`
	JWKSURL        string        `yaml:"jwks_url"        env:"OVTB_OIDC_JWKS_URL"`
	UserinfoURL    string        `yaml:"userinfo_url"    env:"OVTB_OIDC_USERINFO_URL"`
	Discovery      bool          `yaml:"discovery"       env:"OVTB_OIDC_DISCOVERY"       env-default:"true"`
	ClientID       string        `yaml:"client_id"       env:"OVTB_OIDC_CLIENT_ID"`
	ClientSecret   string        `yaml:"client_secret"   env:"OVTB_OIDC_CLIENT_SECRET"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"OVTB_OIDC_CONNECT_TIMEOUT" env-default:"10s"`
	ReadTimeout    time.Duration `yaml:"read_timeout"    env:"OVTB_OIDC_READ_TIMEOUT"    env-default:"30s"`
	CACertPath     string        `yaml:"ca_cert_path"    env:"OVTB_OIDC_CA_CERT_PATH"`
}

// Enabled сообщает, настроен ли OIDC-провайдер.
func (o OIDCConfig) Enabled() bool {
	return o.Issuer != "" || o.JWKSURL != ""
}

// AuthConfig — параметры кэширования проверенных учётных данных.
type AuthConfig struct {
	CacheTTL  time.Duration `yaml:"cache_ttl"  env:"OVTB_AUTH_CACHE_TTL"  env-default:"5m"`
	CacheSize int           `yaml:"cache_size" env:"OVTB_AUTH_CACHE_SIZE" env-default:"1024"`
}

// APIConfig — параметры REST-слоя.
type APIConfig struct {
	// BaseURL — абсолютный префикс для полей url; пустой — вычисляется из запроса.
	BaseURL      string `yaml:"base_url"      env:"OVTB_BASE_URL"`
	URNNamespace string `yaml:"urn_namespace" env:"OVTB_URN_NAMESPACE" env-default:"maykin"`
	PageSize     int    `yaml:"page_size"     env:"OVTB_PAGE_SIZE"     env-default:"100"`
	MaxPageSize  int    `yaml:"max_page_size" env:"OVTB_MAX_PAGE_SIZE" env-default:"500"`
}

// TakenConfig — параметры внешних задач.
type TakenConfig struct {
	// HerinneringDagen — смещение даты напоминания от срока; 0 отключает.
	HerinneringDagen int `yaml:"herinnering_dagen" env:"OVTB_TAKEN_HERINNERING_DAGEN" env-default:"0"`
}

// DephealthConfig — параметры мониторинга зависимостей topologymetrics.
type DephealthConfig struct {
	Group         string        `yaml:"group"          env:"OVTB_DEPHEALTH_GROUP"          env-default:"open-vtb"`
	CheckInterval time.Duration `yaml:"check_interval" env:"OVTB_DEPHEALTH_CHECK_INTERVAL" env-default:"15s"`
}

// LogConfig — параметры логирования.
type LogConfig struct {
	Level  string `yaml:"level"  env:"OVTB_LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"OVTB_LOG_FORMAT" env-default:"json"`
}

// JSONSchemaConfig — параметры кэша скомпилированных схем.
type JSONSchemaConfig struct {
	CacheSize int `yaml:"cache_size" env:"OVTB_SCHEMA_CACHE_SIZE" env-default:"256"`
}

// Load загружает конфигурацию. Путь к YAML-файлу берётся из OVTB_CONFIG_PATH;
// если переменная не задана, используются только ENV и значения по умолчанию.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("OVTB_CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: чтение %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: чтение окружения: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Name, c.Database.SSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	level, _ := parseLogLevel(cfg.Log.Level)
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
