package tools

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is read once from the environment at startup.
type Config struct {
	Transport      string        // "devfs" (default) or "periph"
	Bus            string        // /dev/i2c-N for devfs, bus name for periph
	Address        uint16        // sensor I2C address
	Model          string        // TSL2561 package: T, FN, CL or CS
	Autogain       bool          // let the sampling job adjust gain
	RecordInterval time.Duration // time between samples
	MaxJobDuration time.Duration // sampling jobs stop after this long
	HTTPPort       string
	DBPath         string
	LogLevel       string
	LogFile        string
}

func LoadConfig() (Config, error) {
	cfg := Config{
		Transport:      getEnv("TRANSPORT", "devfs"),
		Bus:            getEnv("I2C_BUS", "/dev/i2c-1"),
		Address:        0x39,
		Model:          getEnv("TSL2561_MODEL", "T"),
		Autogain:       true,
		RecordInterval: 30 * time.Second,
		MaxJobDuration: 8 * time.Hour,
		HTTPPort:       getEnv("HTTP_PORT", "80"),
		DBPath:         getEnv("DB_PATH", "luxmeter.db"),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:        getEnv("LOG_FILE", "luxmeter.log"),
	}

	if v := os.Getenv("I2C_ADDR"); v != "" {
		addr, err := strconv.ParseUint(v, 0, 16)
		if err != nil {
			return cfg, fmt.Errorf("invalid I2C_ADDR %q: %w", v, err)
		}
		cfg.Address = uint16(addr)
	}
	if v := os.Getenv("AUTOGAIN"); v != "" {
		autogain, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid AUTOGAIN %q: %w", v, err)
		}
		cfg.Autogain = autogain
	}
	if v := os.Getenv("RECORD_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid RECORD_INTERVAL %q: %w", v, err)
		}
		cfg.RecordInterval = d
	}
	if v := os.Getenv("MAX_JOB_DURATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid MAX_JOB_DURATION %q: %w", v, err)
		}
		cfg.MaxJobDuration = d
	}

	switch cfg.Transport {
	case "devfs", "periph":
	default:
		return cfg, fmt.Errorf("unknown TRANSPORT %q", cfg.Transport)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
