package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultDatabaseFile = "journal.db"
	defaultMaxOpenConns = 16
	defaultBusyTimeout  = 5 * time.Second
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
	defaultLogMaxSizeMB = 10
	defaultLogMaxFiles  = 5
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Storage StorageConfig `toml:"storage"`
	Logging LoggingConfig `toml:"logging"`
}

type StorageConfig struct {
	// Path is the database file. URL, when set, takes precedence and is
	// handed to the store unchanged.
	Path         string        `toml:"path"`
	URL          string        `toml:"url"`
	MaxOpenConns int           `toml:"max_open_conns"`
	BusyTimeout  time.Duration `toml:"busy_timeout"`
}

type LoggingConfig struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
	MaxFiles  int    `toml:"max_files"`
	Compress  bool   `toml:"compress"`
}

type LoadOptions struct {
	ConfigPath string
	Env        map[string]string
	Flags      FlagOverrides
}

type FlagOverrides struct {
	DatabasePath *string
	LogLevel     *string
}

func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			MaxOpenConns: defaultMaxOpenConns,
			BusyTimeout:  defaultBusyTimeout,
		},
		Logging: LoggingConfig{
			Level:     defaultLogLevel,
			Format:    defaultLogFormat,
			MaxSizeMB: defaultLogMaxSizeMB,
			MaxFiles:  defaultLogMaxFiles,
		},
	}
}

// Load resolves configuration with precedence flags > env > file > defaults.
// A missing config file is not an error.
func Load(opts LoadOptions) (Config, error) {
	cfg := DefaultConfig()

	configPath, err := resolveConfigPath(opts)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}
	if err := loadAndApplyFile(configPath, &cfg); err != nil {
		return Config{}, err
	}

	if err := applyEnvOverrides(&cfg, opts); err != nil {
		return Config{}, err
	}
	applyFlagOverrides(&cfg, opts.Flags)

	if cfg.Storage.Path == "" && cfg.Storage.URL == "" {
		home, err := journalHome(opts)
		if err != nil {
			return Config{}, err
		}
		cfg.Storage.Path = filepath.Join(home, defaultDatabaseFile)
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type rawConfig struct {
	Storage *rawStorage `toml:"storage"`
	Logging *rawLogging `toml:"logging"`
}

type rawStorage struct {
	Path         *string `toml:"path"`
	URL          *string `toml:"url"`
	MaxOpenConns *int    `toml:"max_open_conns"`
	BusyTimeout  *string `toml:"busy_timeout"`
}

type rawLogging struct {
	Level     *string `toml:"level"`
	Format    *string `toml:"format"`
	File      *string `toml:"file"`
	MaxSizeMB *int    `toml:"max_size_mb"`
	MaxFiles  *int    `toml:"max_files"`
	Compress  *bool   `toml:"compress"`
}

func loadAndApplyFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %q: %w", path, err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: parse TOML file %q: %v", ErrInvalidConfig, path, err)
	}
	return applyRawConfig(cfg, raw, filepath.Dir(path))
}

// Relative storage and log paths in a file are taken relative to the file.
func applyRawConfig(cfg *Config, raw rawConfig, baseDir string) error {
	if raw.Storage != nil {
		setPath(raw.Storage.Path, &cfg.Storage.Path, baseDir)
		setString(raw.Storage.URL, &cfg.Storage.URL)
		setInt(raw.Storage.MaxOpenConns, &cfg.Storage.MaxOpenConns)
		if err := setDuration("storage.busy_timeout", raw.Storage.BusyTimeout, &cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}

	if raw.Logging != nil {
		setString(raw.Logging.Level, &cfg.Logging.Level)
		setString(raw.Logging.Format, &cfg.Logging.Format)
		setPath(raw.Logging.File, &cfg.Logging.File, baseDir)
		setInt(raw.Logging.MaxSizeMB, &cfg.Logging.MaxSizeMB)
		setInt(raw.Logging.MaxFiles, &cfg.Logging.MaxFiles)
		if raw.Logging.Compress != nil {
			cfg.Logging.Compress = *raw.Logging.Compress
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config, opts LoadOptions) error {
	if value, ok := lookupEnv(opts, "JOURNAL_DB_PATH"); ok {
		cfg.Storage.Path = value
		cfg.Storage.URL = ""
	}
	if value, ok := lookupEnv(opts, "JOURNAL_DB_URL"); ok {
		cfg.Storage.URL = value
	}
	if value, ok := lookupEnv(opts, "JOURNAL_DB_MAX_OPEN_CONNS"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse JOURNAL_DB_MAX_OPEN_CONNS: %v", ErrInvalidConfig, err)
		}
		cfg.Storage.MaxOpenConns = parsed
	}
	if value, ok := lookupEnv(opts, "JOURNAL_DB_BUSY_TIMEOUT"); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: parse JOURNAL_DB_BUSY_TIMEOUT: %v", ErrInvalidConfig, err)
		}
		cfg.Storage.BusyTimeout = d
	}

	if value, ok := lookupEnv(opts, "JOURNAL_LOG_LEVEL"); ok {
		cfg.Logging.Level = value
	}
	if value, ok := lookupEnv(opts, "JOURNAL_LOG_FORMAT"); ok {
		cfg.Logging.Format = value
	}
	if value, ok := lookupEnv(opts, "JOURNAL_LOG_FILE"); ok {
		cfg.Logging.File = value
	}
	if value, ok := lookupEnv(opts, "JOURNAL_LOG_MAX_SIZE_MB"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse JOURNAL_LOG_MAX_SIZE_MB: %v", ErrInvalidConfig, err)
		}
		cfg.Logging.MaxSizeMB = parsed
	}
	if value, ok := lookupEnv(opts, "JOURNAL_LOG_MAX_FILES"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse JOURNAL_LOG_MAX_FILES: %v", ErrInvalidConfig, err)
		}
		cfg.Logging.MaxFiles = parsed
	}
	if value, ok := lookupEnv(opts, "JOURNAL_LOG_COMPRESS"); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: parse JOURNAL_LOG_COMPRESS: %v", ErrInvalidConfig, err)
		}
		cfg.Logging.Compress = parsed
	}
	return nil
}

func applyFlagOverrides(cfg *Config, flags FlagOverrides) {
	if flags.DatabasePath != nil {
		cfg.Storage.Path = *flags.DatabasePath
		cfg.Storage.URL = ""
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
}

func validate(cfg Config) error {
	if cfg.Storage.MaxOpenConns <= 0 {
		return fmt.Errorf("%w: storage.max_open_conns must be > 0", ErrInvalidConfig)
	}
	if cfg.Storage.BusyTimeout < 0 || cfg.Storage.BusyTimeout > time.Minute {
		return fmt.Errorf("%w: storage.busy_timeout must be >= 0 and <= 1m", ErrInvalidConfig)
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: logging.level %q is not one of trace, debug, info, warn, error", ErrInvalidConfig, cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: logging.format %q is not one of text, json", ErrInvalidConfig, cfg.Logging.Format)
	}
	return nil
}

func setDuration(field string, raw *string, target *time.Duration) error {
	if raw == nil {
		return nil
	}
	d, err := time.ParseDuration(*raw)
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, field, err)
	}
	*target = d
	return nil
}

func setString(raw *string, target *string) {
	if raw != nil {
		*target = *raw
	}
}

func setPath(raw *string, target *string, baseDir string) {
	if raw == nil {
		return
	}
	value := *raw
	if value != "" && !filepath.IsAbs(value) {
		value = filepath.Join(baseDir, value)
	}
	*target = value
}

func setInt(raw *int, target *int) {
	if raw != nil {
		*target = *raw
	}
}

func resolveConfigPath(opts LoadOptions) (string, error) {
	if opts.ConfigPath != "" {
		return opts.ConfigPath, nil
	}
	if value, ok := lookupEnv(opts, "JOURNAL_CONFIG_PATH"); ok {
		return value, nil
	}
	return defaultConfigPath(opts)
}

func lookupEnv(opts LoadOptions, key string) (string, bool) {
	if opts.Env != nil {
		if value, ok := opts.Env[key]; ok {
			return value, true
		}
	}
	return os.LookupEnv(key)
}

func journalHome(opts LoadOptions) (string, error) {
	if value, ok := lookupEnv(opts, "JOURNAL_HOME"); ok && value != "" {
		return value, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "Journal"), nil
	}

	dataHome := filepath.Join(home, ".local", "share")
	if xdgDataHome, ok := lookupEnv(opts, "XDG_DATA_HOME"); ok && xdgDataHome != "" {
		dataHome = xdgDataHome
	}
	return filepath.Join(dataHome, "journal"), nil
}

func defaultConfigPath(opts LoadOptions) (string, error) {
	if value, ok := lookupEnv(opts, "JOURNAL_HOME"); ok && value != "" {
		return filepath.Join(value, "config.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "Journal", "config.toml"), nil
	}

	configHome := filepath.Join(home, ".config")
	if xdgConfigHome, ok := lookupEnv(opts, "XDG_CONFIG_HOME"); ok && xdgConfigHome != "" {
		configHome = xdgConfigHome
	}
	return filepath.Join(configHome, "journal", "config.toml"), nil
}
