package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// this is a pointer so that if someone attempts to use it before loading it will
// panic and force them to load it first.
// it is also private so that it cannot be modified after loading.
var _loaded *Config

// Config is the main configuration structure
type Config struct {
	Common Common `yaml:"common"`
}

// Load loads the configuration following proper precedence: defaults → config file → environment variables
func Load() {
	_loaded = &defaultConfig

	configFile := os.Getenv("CIVBOT_CONFIG_FILE")
	if configFile == "" {
		configFile = "civbot.yaml"
	}

	if err := LoadFromFile(configFile); err != nil {
		log.Printf("Failed to load config file: %v, using defaults", err)
	} else {
		log.Printf("Loaded config from file: %s", configFile)
	}

	// Environment variables win over the file.
	ApplyEnvOverrides()
}

func LoadDefault() {
	config := defaultConfig
	_loaded = &config
}

// LoadFromFile loads configuration from a YAML file, merging over defaults.
func LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	_loaded = &cfg
	return nil
}

// ApplyEnvOverrides overrides loaded config values from CIVBOT_* environment
// variables. Highest precedence.
func ApplyEnvOverrides() {
	if _loaded == nil {
		LoadDefault()
	}
	config := *_loaded

	if logLevel := os.Getenv("CIVBOT_LOG_LEVEL"); logLevel != "" {
		config.Common.Log.Level = logLevel
	}
	if logFormat := os.Getenv("CIVBOT_LOG_FORMAT"); logFormat != "" {
		config.Common.Log.Format = logFormat
	}

	if httpHost := os.Getenv("CIVBOT_HTTP_HOST"); httpHost != "" {
		config.Common.Http.Host = httpHost
	}
	if httpPort := os.Getenv("CIVBOT_HTTP_PORT"); httpPort != "" {
		if port, err := strconv.Atoi(httpPort); err == nil {
			config.Common.Http.Port = port
		}
	}

	if adminKey := os.Getenv("CIVBOT_ADMIN_API_KEY"); adminKey != "" {
		config.Common.Auth.AdminAPIKey = adminKey
	}

	if backend := os.Getenv("CIVBOT_STORE_BACKEND"); backend != "" {
		config.Common.Store.Backend = backend
	}
	if ttl := os.Getenv("CIVBOT_SESSION_TTL_MINUTES"); ttl != "" {
		if minutes, err := strconv.Atoi(ttl); err == nil {
			config.Common.Store.SessionTTLMinutes = minutes
		}
	}

	if dbHost := os.Getenv("CIVBOT_DB_HOST"); dbHost != "" {
		config.Common.Store.Postgres.Host = dbHost
	}
	if dbPort := os.Getenv("CIVBOT_DB_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			config.Common.Store.Postgres.Port = port
		}
	}
	if dbUser := os.Getenv("CIVBOT_DB_USER"); dbUser != "" {
		config.Common.Store.Postgres.User = dbUser
	}
	if dbPassword := os.Getenv("CIVBOT_DB_PASSWORD"); dbPassword != "" {
		config.Common.Store.Postgres.Password = dbPassword
	}
	if dbName := os.Getenv("CIVBOT_DB_NAME"); dbName != "" {
		config.Common.Store.Postgres.Database = dbName
	}

	if provider := os.Getenv("CIVBOT_CLASSIFIER_PROVIDER"); provider != "" {
		config.Common.Classifier.Provider = provider
	}
	if baseURL := os.Getenv("CIVBOT_CLASSIFIER_BASE_URL"); baseURL != "" {
		config.Common.Classifier.BaseURL = baseURL
	}
	if apiKey := os.Getenv("CIVBOT_OPENAI_API_KEY"); apiKey != "" {
		config.Common.Classifier.OpenAI.APIKey = apiKey
	}
	if model := os.Getenv("CIVBOT_OPENAI_MODEL"); model != "" {
		config.Common.Classifier.OpenAI.Model = model
	}

	if baseURL := os.Getenv("CIVBOT_CITYDATA_BASE_URL"); baseURL != "" {
		config.Common.CityData.BaseURL = baseURL
	}

	if webhookURL := os.Getenv("CIVBOT_DELIVERY_WEBHOOK_URL"); webhookURL != "" {
		config.Common.Delivery.WebhookURL = webhookURL
	}

	_loaded = &config
}

// set sane defaults for all of the config options. when loading the config from
// the file, any options that are not set will be set to these defaults.
var defaultConfig = Config{
	Common: Common{
		Log: logConfig{
			Level:  "info",
			Format: "json",
		},
		Http: httpConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			MaxRequestSize: 1048576,
		},
		Auth: authConfig{
			AdminAPIKey: "civbot_admin_default_key", // Default key for development
		},
		Store: storeConfig{
			Backend:              "memory",
			SessionTTLMinutes:    30,
			SweepIntervalSeconds: 60,
			HistoryWindow:        10,
			Postgres: postgresConfig{
				User:               "postgres",
				Password:           "postgres",
				Host:               "localhost",
				Port:               5432,
				Database:           "civbot",
				MaxOpenConnections: 10,
			},
		},
		Classifier: classifierConfig{
			Provider:                    "http",
			BaseURL:                     "http://localhost:9090",
			TimeoutSeconds:              5,
			LowConfidenceThreshold:      0.5,
			OverrideConfidenceThreshold: 0.75,
			OpenAI: openAIConfig{
				Model: "",
			},
		},
		CityData: cityDataConfig{
			BaseURL:        "http://localhost:9091",
			TimeoutSeconds: 5,
		},
		Delivery: deliveryConfig{
			WebhookURL:     "",
			TimeoutSeconds: 5,
		},
	},
}

type Common struct {
	Log        logConfig        `yaml:"log"`
	Http       httpConfig       `yaml:"http"`
	Auth       authConfig       `yaml:"auth"`
	Store      storeConfig      `yaml:"store"`
	Classifier classifierConfig `yaml:"classifier"`
	CityData   cityDataConfig   `yaml:"citydata"`
	Delivery   deliveryConfig   `yaml:"delivery"`
}

type logConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type httpConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxRequestSize int64  `yaml:"max_request_size"`
}

type authConfig struct {
	AdminAPIKey string `yaml:"admin_api_key"` // API key for admin operations
}

type storeConfig struct {
	Backend              string         `yaml:"backend"` // "memory" or "postgres"
	SessionTTLMinutes    int            `yaml:"session_ttl_minutes"`
	SweepIntervalSeconds int            `yaml:"sweep_interval_seconds"`
	HistoryWindow        int            `yaml:"history_window"`
	Postgres             postgresConfig `yaml:"postgres"`
}

type postgresConfig struct {
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	Database           string `yaml:"database"`
	MaxOpenConnections int    `yaml:"max_open_connections"`
}

func (c postgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		url.QueryEscape(c.Database),
	)
}

type classifierConfig struct {
	Provider                    string       `yaml:"provider"` // "http" or "openai"
	BaseURL                     string       `yaml:"base_url"`
	TimeoutSeconds              int          `yaml:"timeout_seconds"`
	LowConfidenceThreshold      float64      `yaml:"low_confidence_threshold"`
	OverrideConfidenceThreshold float64      `yaml:"override_confidence_threshold"`
	OpenAI                      openAIConfig `yaml:"openai"`
}

type openAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type cityDataConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type deliveryConfig struct {
	WebhookURL     string `yaml:"webhook_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// there should be a getter for each top level field in the config struct.
// these getters will panic if the config has not been loaded.

func Logger() logConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Log
}

func Http() httpConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Http
}

func Auth() authConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Auth
}

func Store() storeConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Store
}

func Classifier() classifierConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Classifier
}

func CityData() cityDataConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.CityData
}

func Delivery() deliveryConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Delivery
}
