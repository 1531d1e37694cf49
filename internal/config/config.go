package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config configuração comum a todas as ferramentas
type Config struct {
	// Banco de dados
	DatabasePath string `json:"database_path"`
	BackupDir    string `json:"backup_dir"`
	SkipBackup   bool   `json:"skip_backup"`

	// Aplicação web (smoke tests)
	BaseURL        string        `json:"base_url"`
	Username       string        `json:"username"`
	Password       string        `json:"-"`
	HTTPTimeout    time.Duration `json:"http_timeout"`
	HTTPRateLimit  time.Duration `json:"http_rate_limit"`
	SmokeEndpoints []string      `json:"smoke_endpoints"`

	// Filtros e auditoria
	Unidade            string   `json:"unidade"`
	CandidatePasswords []string `json:"-"`
	DefaultNivel       string   `json:"default_nivel"`

	// Logging
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

// fileConfig estrutura do arquivo YAML; durações ficam como string
type fileConfig struct {
	DatabasePath       string   `yaml:"database_path"`
	BackupDir          string   `yaml:"backup_dir"`
	SkipBackup         *bool    `yaml:"skip_backup"`
	BaseURL            string   `yaml:"base_url"`
	Username           string   `yaml:"username"`
	Password           string   `yaml:"password"`
	HTTPTimeout        string   `yaml:"http_timeout"`
	HTTPRateLimit      string   `yaml:"http_rate_limit"`
	SmokeEndpoints     []string `yaml:"smoke_endpoints"`
	Unidade            string   `yaml:"unidade"`
	CandidatePasswords []string `yaml:"candidate_passwords"`
	DefaultNivel       string   `yaml:"default_nivel"`
	LogLevel           string   `yaml:"log_level"`
	LogFormat          string   `yaml:"log_format"`
}

// DefaultSmokeEndpoints endpoints JSON verificados após o login
var DefaultSmokeEndpoints = []string{
	"/api/containers/disponiveis",
	"/api/vistorias/recentes",
	"/api/usuarios/me",
}

// LoadConfig carrega a configuração das variáveis de ambiente e, se houver,
// sobrepõe com o arquivo YAML (argumento ou PATIO_CONFIG)
func LoadConfig(path string) (*Config, error) {
	config := GetDefaults()

	config.DatabasePath = getEnv("PATIO_DB_PATH", config.DatabasePath)
	config.BackupDir = getEnv("PATIO_BACKUP_DIR", config.BackupDir)
	config.SkipBackup = getEnv("PATIO_SKIP_BACKUP", "false") == "true"
	config.BaseURL = getEnv("PATIO_BASE_URL", config.BaseURL)
	config.Username = os.Getenv("PATIO_USERNAME")
	config.Password = os.Getenv("PATIO_PASSWORD")
	config.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", config.HTTPTimeout)
	config.HTTPRateLimit = getEnvDuration("HTTP_RATE_LIMIT", config.HTTPRateLimit)
	config.Unidade = os.Getenv("PATIO_UNIDADE")
	config.CandidatePasswords = getEnvList("PATIO_CANDIDATE_PASSWORDS")
	config.DefaultNivel = getEnv("PATIO_DEFAULT_NIVEL", config.DefaultNivel)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.LogFormat = getEnv("LOG_FORMAT", config.LogFormat)
	if endpoints := getEnvList("PATIO_SMOKE_ENDPOINTS"); len(endpoints) > 0 {
		config.SmokeEndpoints = endpoints
	}

	if path == "" {
		path = os.Getenv("PATIO_CONFIG")
	}
	if path != "" {
		if err := config.mergeFile(path); err != nil {
			return nil, err
		}
		log.Printf("Config loaded from %s", path)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// mergeFile aplica os valores não vazios do arquivo YAML
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&c.DatabasePath, fc.DatabasePath)
	setString(&c.BackupDir, fc.BackupDir)
	setString(&c.BaseURL, fc.BaseURL)
	setString(&c.Username, fc.Username)
	setString(&c.Password, fc.Password)
	setString(&c.Unidade, fc.Unidade)
	setString(&c.DefaultNivel, fc.DefaultNivel)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)

	if fc.SkipBackup != nil {
		c.SkipBackup = *fc.SkipBackup
	}
	if len(fc.SmokeEndpoints) > 0 {
		c.SmokeEndpoints = fc.SmokeEndpoints
	}
	if len(fc.CandidatePasswords) > 0 {
		c.CandidatePasswords = fc.CandidatePasswords
	}

	if fc.HTTPTimeout != "" {
		d, err := time.ParseDuration(fc.HTTPTimeout)
		if err != nil {
			return fmt.Errorf("invalid http_timeout %q: %w", fc.HTTPTimeout, err)
		}
		c.HTTPTimeout = d
	}
	if fc.HTTPRateLimit != "" {
		d, err := time.ParseDuration(fc.HTTPRateLimit)
		if err != nil {
			return fmt.Errorf("invalid http_rate_limit %q: %w", fc.HTTPRateLimit, err)
		}
		c.HTTPRateLimit = d
	}

	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// getEnv retorna a variável de ambiente ou o valor padrão
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration retorna a variável de ambiente como Duration ou o valor padrão
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList lê uma lista separada por vírgulas
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
