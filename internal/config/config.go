package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Backends and authorizers understood by the daemon
const (
	BackendSQLite   = "sqlite"
	BackendFulltext = "bleve"
	BackendMemory   = "memory"

	AuthorizerPolkit = "polkit"
	AuthorizerGrant  = "grant"
	AuthorizerDeny   = "deny"
)

const (
	envPrefix  = "MEDIALIB_"
	envConfig  = envPrefix + "CONFIG"
	dotEnvFile = ".env"
)

// AppConfig holds application configuration
type AppConfig struct {
	LibraryDir           string   `yaml:"library_dir"`
	DatabasePath         string   `yaml:"database_path"`
	Backend              string   `yaml:"backend"`
	BusName              string   `yaml:"bus_name"`
	ObjectPath           string   `yaml:"object_path"`
	HTTPAddr             string   `yaml:"http_addr"`
	Authorizer           string   `yaml:"authorizer"`
	PolkitAction         string   `yaml:"polkit_action"`
	RequireAuthorization bool     `yaml:"require_authorization"`
	ScanOnStart          bool     `yaml:"scan_on_start"`
	RecordHistory        bool     `yaml:"record_history"`
	HistoryPlayers       []string `yaml:"history_players"`
	LogLevel             string   `yaml:"log_level"`
}

// Defaults returns the configuration used when nothing overrides it
func Defaults() AppConfig {
	return AppConfig{
		LibraryDir:    "~/Music",
		DatabasePath:  "~/.local/share/medialib/library.db",
		Backend:       BackendSQLite,
		BusName:       "org.genricoloni.MediaLib",
		ObjectPath:    "/org/genricoloni/MediaLib",
		Authorizer:    AuthorizerPolkit,
		PolkitAction:  "org.genricoloni.medialib.read",
		RecordHistory: true,
		LogLevel:      "info",
	}
}

// NewAppConfig loads the configuration for the daemon: a .env file in the
// working directory, the YAML file named by MEDIALIB_CONFIG, then MEDIALIB_*
// variables.
func NewAppConfig() (*AppConfig, error) {
	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", dotEnvFile, err)
	}
	return Load(os.Getenv(envConfig))
}

// Log writes the effective configuration
func (c *AppConfig) Log(logger *zap.Logger) {
	logger.Info("Configuration loaded",
		zap.String("libraryDir", c.LibraryDir),
		zap.String("databasePath", c.DatabasePath),
		zap.String("backend", c.Backend),
		zap.String("busName", c.BusName),
		zap.String("httpAddr", c.HTTPAddr),
		zap.String("authorizer", c.Authorizer),
		zap.Bool("requireAuthorization", c.RequireAuthorization),
		zap.Bool("scanOnStart", c.ScanOnStart),
		zap.Bool("recordHistory", c.RecordHistory),
		zap.Strings("historyPlayers", c.HistoryPlayers),
		zap.String("logLevel", c.LogLevel))
}

// Load builds a configuration from defaults, the optional YAML file at path
// and the environment
func Load(path string) (*AppConfig, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(expandPath(path))
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.LibraryDir = expandPath(cfg.LibraryDir)
	cfg.DatabasePath = expandPath(cfg.DatabasePath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the daemon cannot act on
func (c *AppConfig) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendFulltext, BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	switch c.Authorizer {
	case AuthorizerPolkit, AuthorizerGrant, AuthorizerDeny:
	default:
		return fmt.Errorf("unknown authorizer %q", c.Authorizer)
	}

	if c.Backend != BackendMemory && c.DatabasePath == "" {
		return fmt.Errorf("database_path is required for the %s backend", c.Backend)
	}

	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the configured log level
func (c *AppConfig) Level() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return lvl, fmt.Errorf("invalid log_level: %w", err)
	}
	return lvl, nil
}

func (c *AppConfig) applyEnv() error {
	strs := map[string]*string{
		"LIBRARY_DIR":   &c.LibraryDir,
		"DATABASE_PATH": &c.DatabasePath,
		"BACKEND":       &c.Backend,
		"BUS_NAME":      &c.BusName,
		"OBJECT_PATH":   &c.ObjectPath,
		"HTTP_ADDR":     &c.HTTPAddr,
		"AUTHORIZER":    &c.Authorizer,
		"POLKIT_ACTION": &c.PolkitAction,
		"LOG_LEVEL":     &c.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"REQUIRE_AUTHORIZATION": &c.RequireAuthorization,
		"SCAN_ON_START":         &c.ScanOnStart,
		"RECORD_HISTORY":        &c.RecordHistory,
	}
	for key, dst := range bools {
		v, ok := os.LookupEnv(envPrefix + key)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
		}
		*dst = b
	}

	if v, ok := os.LookupEnv(envPrefix + "HISTORY_PLAYERS"); ok {
		c.HistoryPlayers = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.HistoryPlayers = append(c.HistoryPlayers, p)
			}
		}
	}
	return nil
}

// expandPath expands environment variables and a leading ~
func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	return p
}
