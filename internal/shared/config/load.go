package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix          = "AGENTCHAT_"
	databaseURLEnv     = "DATABASE_URL"
	defaultDotEnvPath  = ".env"
	databaseURLSetting = "storage.database_url"
)

// Option customizes Load.
type Option func(*loadOptions)

type loadOptions struct {
	envLookup  EnvLookup
	readFile   func(string) ([]byte, error)
	homeDir    func() (string, error)
	configPath string
	dotEnvPath string
}

// WithEnv replaces the environment lookup.
func WithEnv(lookup EnvLookup) Option {
	return func(o *loadOptions) {
		if lookup != nil {
			o.envLookup = lookup
		}
	}
}

// WithFileReader replaces the reader used for the config and .env files.
func WithFileReader(readFile func(string) ([]byte, error)) Option {
	return func(o *loadOptions) {
		if readFile != nil {
			o.readFile = readFile
		}
	}
}

// WithHomeDir overrides home directory resolution.
func WithHomeDir(homeDir func() (string, error)) Option {
	return func(o *loadOptions) {
		o.homeDir = homeDir
	}
}

// WithConfigPath loads an explicit config file; a missing file is an error.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) {
		o.configPath = strings.TrimSpace(path)
	}
}

// WithDotEnvPath changes the .env location. An empty path disables it.
func WithDotEnvPath(path string) Option {
	return func(o *loadOptions) {
		o.dotEnvPath = strings.TrimSpace(path)
	}
}

// EnvName returns the environment variable overriding a dotted key.
func EnvName(key string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load assembles the configuration. Precedence from lowest to highest:
// defaults, config file, .env, process environment.
func Load(opts ...Option) (Config, Metadata, error) {
	options := loadOptions{
		envLookup:  DefaultEnvLookup,
		readFile:   os.ReadFile,
		homeDir:    os.UserHomeDir,
		dotEnvPath: defaultDotEnvPath,
	}
	for _, opt := range opts {
		opt(&options)
	}

	meta := Metadata{sources: map[string]ValueSource{}}
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := applyFile(v, &meta, options); err != nil {
		return Config{}, Metadata{}, err
	}
	dotenv, err := readDotEnv(options)
	if err != nil {
		return Config{}, Metadata{}, err
	}
	applyEnv(v, &meta, options.envLookup, dotenv)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, Metadata{}, fmt.Errorf("decode config: %w", err)
	}
	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, Metadata{}, err
	}
	return cfg, meta, nil
}

func applyFile(v *viper.Viper, meta *Metadata, options loadOptions) error {
	path, explicit := options.configPath, options.configPath != ""
	if !explicit {
		path, _ = ResolveConfigPath(options.envLookup, options.homeDir, func(p string) bool {
			_, err := options.readFile(p)
			return err == nil
		})
		if value, ok := options.envLookup(configPathEnv); ok && strings.TrimSpace(value) != "" {
			explicit = true
		}
	}

	data, err := options.readFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	meta.ConfigPath = path
	for _, key := range keys {
		if v.InConfig(key) {
			meta.sources[key] = SourceFile
		}
	}
	return nil
}

func readDotEnv(options loadOptions) (map[string]string, error) {
	if options.dotEnvPath == "" {
		return nil, nil
	}
	data, err := options.readFile(options.dotEnvPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", options.dotEnvPath, err)
	}
	values, err := godotenv.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", options.dotEnvPath, err)
	}
	return values, nil
}

// applyEnv overrides keys from the process environment, falling back to
// values from the .env file.
func applyEnv(v *viper.Viper, meta *Metadata, lookup EnvLookup, dotenv map[string]string) {
	resolve := func(name string) (string, ValueSource, bool) {
		if value, ok := lookup(name); ok {
			return value, SourceEnv, true
		}
		if value, ok := dotenv[name]; ok {
			return value, SourceDotEnv, true
		}
		return "", "", false
	}

	for _, key := range keys {
		value, source, ok := resolve(EnvName(key))
		if !ok {
			continue
		}
		v.Set(key, value)
		meta.sources[key] = source
	}

	if meta.Source(databaseURLSetting) != SourceDefault {
		return
	}
	if value, source, ok := resolve(databaseURLEnv); ok && strings.TrimSpace(value) != "" {
		v.Set(databaseURLSetting, value)
		meta.sources[databaseURLSetting] = source
	}
}

func normalize(cfg *Config) {
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	cfg.Storage.DatabaseURL = strings.TrimSpace(cfg.Storage.DatabaseURL)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	cfg.Tracing.Exporter = strings.ToLower(strings.TrimSpace(cfg.Tracing.Exporter))
	cfg.IDs.Strategy = strings.ToLower(strings.TrimSpace(cfg.IDs.Strategy))

	origins := cfg.HTTP.AllowedOrigins[:0]
	for _, origin := range cfg.HTTP.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	cfg.HTTP.AllowedOrigins = origins
}
