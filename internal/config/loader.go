package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileEnv names the env var pointing at an optional config file.
const ConfigFileEnv = "CONFIG_FILE"

// lookupFunc returns the raw value for an env-style key, or "" if unset.
type lookupFunc func(key string) string

// Load reads configuration from environment variables, then the file named
// by CONFIG_FILE (if any), then struct defaults, and validates the result.
func Load() (*Config, error) {
	lookup := lookupFunc(os.Getenv)

	if path := os.Getenv(ConfigFileEnv); path != "" {
		fromFile, err := fileLookup(path)
		if err != nil {
			return nil, fmt.Errorf("config load: %w", err)
		}
		lookup = chain(lookup, fromFile)
	}

	return load(lookup)
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

func load(lookup lookupFunc) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// fileLookup reads a YAML, TOML or JSON file with viper. Keys are the env
// names in any case, e.g. "save_max_attempts: 3".
func fileLookup(path string) (lookupFunc, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	return func(key string) string {
		key = strings.ToLower(key)
		if !v.IsSet(key) {
			return ""
		}
		switch val := v.Get(key).(type) {
		case []any:
			parts := make([]string, len(val))
			for i, p := range val {
				parts[i] = fmt.Sprint(p)
			}
			return strings.Join(parts, ",")
		case []string:
			return strings.Join(val, ",")
		default:
			return v.GetString(key)
		}
	}, nil
}

// chain returns the first non-empty value from the lookups in order.
func chain(lookups ...lookupFunc) lookupFunc {
	return func(key string) string {
		for _, l := range lookups {
			if v := l(key); v != "" {
				return v
			}
		}
		return ""
	}
}

// loadStruct recursively populates struct fields from lookup.
func loadStruct(v reflect.Value, lookup lookupFunc) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal, lookup); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		value := lookup(envName)
		if value == "" && envAlt != "" {
			value = lookup(envAlt)
		}

		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Data.Root) == "" {
		errs = append(errs, "DATA_ROOT must not be empty")
	}
	if c.Data.MaxUploadSize <= 0 {
		errs = append(errs, "DATA_MAX_UPLOAD_SIZE must be positive")
	}

	// Save policy validation
	if c.Save.MaxAttempts < 0 {
		errs = append(errs, "SAVE_MAX_ATTEMPTS must be non-negative (0 retries until cancelled)")
	}
	if c.Save.InitialBackoff < 0 {
		errs = append(errs, "SAVE_INITIAL_BACKOFF must be non-negative")
	}
	if c.Save.MaxBackoff < 0 {
		errs = append(errs, "SAVE_MAX_BACKOFF must be non-negative")
	}
	if c.Save.MaxBackoff > 0 && c.Save.MaxBackoff < c.Save.InitialBackoff {
		errs = append(errs, fmt.Sprintf("SAVE_MAX_BACKOFF (%s) must be >= SAVE_INITIAL_BACKOFF (%s)",
			c.Save.MaxBackoff, c.Save.InitialBackoff))
	}
	if c.Save.Multiplier < 1 {
		errs = append(errs, "SAVE_BACKOFF_MULTIPLIER must be >= 1")
	}
	if c.Save.MaxConcurrent <= 0 {
		errs = append(errs, "SAVE_MAX_CONCURRENT must be positive")
	}
	if c.Save.MaxWaitTime <= 0 {
		errs = append(errs, "SAVE_MAX_WAIT_TIME must be positive")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Database validation (only when configured)
	if c.Database.Enabled() {
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
	} else if c.Database.ExportTable != "" {
		errs = append(errs, "DB_EXPORT_TABLE is set but DATABASE_URL is empty")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"trace": true, "text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: trace, text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The database URL is masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Data: {Root: %q, Input: %q, Output: %q}, ", c.Data.Root, c.Data.Input, c.Data.Output)
	fmt.Fprintf(&b, "Save: {MaxAttempts: %d, InitialBackoff: %s, MaxBackoff: %s, Multiplier: %g}, ",
		c.Save.MaxAttempts, c.Save.InitialBackoff, c.Save.MaxBackoff, c.Save.Multiplier)
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	if c.Database.Enabled() {
		fmt.Fprintf(&b, "Database: {URL: [MASKED], ExportTable: %q}, ", c.Database.ExportTable)
	} else {
		b.WriteString("Database: {disabled}, ")
	}
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
