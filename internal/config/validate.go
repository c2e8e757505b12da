package config

import (
	"fmt"
	"regexp"
)

// nidPattern — допустимый NID по RFC 8141.
var nidPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{0,30}[A-Za-z0-9]$`)

// Validate проверяет бизнес-ограничения загруженной конфигурации.
// Load вызывает её автоматически.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("OVTB_PORT: значение %d вне допустимого диапазона 1-65535", c.Server.Port)
	}
	if _, err := parseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("OVTB_LOG_LEVEL: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("OVTB_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", c.Log.Format)
	}

	switch c.Database.SSLMode {
	case "disable", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("OVTB_DB_SSL_MODE: недопустимое значение %q", c.Database.SSLMode)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("OVTB_DB_MAX_CONNS: должно быть >= 1 (получено %d)", c.Database.MaxConns)
	}

	if !nidPattern.MatchString(c.API.URNNamespace) {
		return fmt.Errorf("OVTB_URN_NAMESPACE: %q не является допустимым NID", c.API.URNNamespace)
	}
	if c.API.PageSize < 1 || c.API.PageSize > c.API.MaxPageSize {
		return fmt.Errorf("OVTB_PAGE_SIZE: значение %d вне диапазона 1-%d", c.API.PageSize, c.API.MaxPageSize)
	}

	if c.Taken.HerinneringDagen < 0 {
		return fmt.Errorf("OVTB_TAKEN_HERINNERING_DAGEN: должно быть >= 0 (получено %d)", c.Taken.HerinneringDagen)
	}

	if c.OIDC.ConnectTimeout <= 0 || c.OIDC.ReadTimeout <= 0 {
		return fmt.Errorf("OVTB_OIDC_*_TIMEOUT: таймауты должны быть положительными")
	}
	if c.OIDC.Enabled() && !c.OIDC.Discovery && c.OIDC.JWKSURL == "" {
		return fmt.Errorf("OVTB_OIDC_JWKS_URL: обязателен при отключённом discovery")
	}

	if c.Auth.CacheSize < 1 {
		return fmt.Errorf("OVTB_AUTH_CACHE_SIZE: должно быть >= 1")
	}
	if c.JSONSchema.CacheSize < 1 {
		return fmt.Errorf("OVTB_SCHEMA_CACHE_SIZE: должно быть >= 1")
	}
	if c.Dephealth.CheckInterval <= 0 {
		return fmt.Errorf("OVTB_DEPHEALTH_CHECK_INTERVAL: должно быть положительным")
	}
	return nil
}

// RequireDatabase проверяет наличие обязательных параметров PostgreSQL.
// Вызывается командами, которым нужна база данных.
func (c *Config) RequireDatabase() error {
	missing := []string{}
	if c.Database.Host == "" {
		missing = append(missing, "OVTB_DB_HOST")
	}
	if c.Database.Name == "" {
		missing = append(missing, "OVTB_DB_NAME")
	}
	if c.Database.User == "" {
		missing = append(missing, "OVTB_DB_USER")
	}
	if len(missing) > 0 {
		return fmt.Errorf("обязательные переменные окружения не заданы: %v", missing)
	}
	return nil
}
