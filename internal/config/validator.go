package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"patiotools/yard"
)

// Validate verifica a configuração e devolve todos os problemas de uma vez
func (c *Config) Validate() error {
	var errors []string

	if c.DatabasePath == "" {
		errors = append(errors, "database path is required")
	}
	if c.BackupDir == "" && !c.SkipBackup {
		errors = append(errors, "backup dir is required unless backups are skipped")
	}

	// URL da aplicação web
	if c.BaseURL == "" {
		errors = append(errors, "base url is required")
	} else if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid base url: %s", c.BaseURL))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("base url must be http or https, got %s", u.Scheme))
	}

	if c.HTTPTimeout < time.Second {
		errors = append(errors, "http timeout must be at least 1 second")
	}
	if c.HTTPRateLimit < 0 {
		errors = append(errors, "http rate limit cannot be negative")
	}

	for _, endpoint := range c.SmokeEndpoints {
		if !strings.HasPrefix(endpoint, "/") {
			errors = append(errors, fmt.Sprintf("smoke endpoint must start with '/': %s", endpoint))
		}
	}

	if c.DefaultNivel != "" && !yard.IsValidNivel(c.DefaultNivel) {
		errors = append(errors, fmt.Sprintf("invalid default nivel: %s (valid: %s)",
			c.DefaultNivel, strings.Join(yard.ValidNiveis, ", ")))
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	if c.LogLevel != "" {
		valid := false
		logLevelUpper := strings.ToUpper(c.LogLevel)
		for _, level := range validLogLevels {
			if logLevelUpper == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("invalid log level: %s (valid: %s)",
				c.LogLevel, strings.Join(validLogLevels, ", ")))
		}
	}

	if c.LogFormat != "" && !strings.EqualFold(c.LogFormat, "text") && !strings.EqualFold(c.LogFormat, "json") {
		errors = append(errors, fmt.Sprintf("invalid log format: %s (valid: text, json)", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// GetDefaults retorna a configuração com valores padrão
func GetDefaults() *Config {
	return &Config{
		DatabasePath:   "database.db",
		BackupDir:      "backups",
		BaseURL:        "http://127.0.0.1:8505",
		HTTPTimeout:    15 * time.Second,
		HTTPRateLimit:  200 * time.Millisecond,
		SmokeEndpoints: append([]string(nil), DefaultSmokeEndpoints...),
		DefaultNivel:   "operador",
		LogLevel:       "INFO",
		LogFormat:      "text",
	}
}
