package logger

import (
	"os"
	"strconv"
)

// FromEnv builds a Config from LOG_* environment variables.
// File output is only enabled outside the local environment.
func FromEnv() *Config {
	cfg := &Config{
		Level:       envOr("LOG_LEVEL", "info", parseString),
		Format:      envOr("LOG_FORMAT", "text", parseString),
		ServiceName: envOr("SERVICE_NAME", "mudozzal", parseString),
		FileOnly:    envOr("LOG_FILE_ONLY", false, strconv.ParseBool),
		MaxSize:     envOr("LOG_MAX_SIZE", 100, strconv.Atoi),
		MaxBackups:  envOr("LOG_MAX_BACKUPS", 7, strconv.Atoi),
		MaxAge:      envOr("LOG_MAX_AGE", 30, strconv.Atoi),
		Compress:    envOr("LOG_COMPRESS", true, strconv.ParseBool),
	}
	if envOr("APP_ENV", "local", parseString) != "local" {
		cfg.File = envOr("LOG_FILE", "./logs/mudozzal.log", parseString)
	}
	return cfg
}

// Override replaces level and format with any non-empty value, later
// arguments winning. Used to layer config file values and CLI flags.
func (c *Config) Override(pairs ...[2]string) *Config {
	for _, p := range pairs {
		if p[0] != "" {
			c.Level = p[0]
		}
		if p[1] != "" {
			c.Format = p[1]
		}
	}
	return c
}

func parseString(s string) (string, error) { return s, nil }

// envOr parses the variable named key, falling back to def when it is
// unset or malformed.
func envOr[T any](key string, def T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}
