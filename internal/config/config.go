package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerURL    string
	DataDir      string
	MediaDir     string
	ContactsFile string
	Grants       []string
	BatchSize    int
	MediaCap     int
	BatchDelay   time.Duration
	StatusPort   int
	GinMode      string
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		DataDir:    "snapvault-data",
		Grants:     []string{"contacts", "media"},
		BatchSize:  10,
		MediaCap:   10000,
		BatchDelay: 100 * time.Millisecond,
		GinMode:    "release",
	}

	cfg.ServerURL = strings.TrimRight(env.Getenv("SNAPVAULT_SERVER_URL"), "/")
	if cfg.ServerURL == "" {
		return Config{}, fmt.Errorf("SNAPVAULT_SERVER_URL is required")
	}

	if raw := env.Getenv("SNAPVAULT_DATA_DIR"); raw != "" {
		cfg.DataDir = raw
	}
	cfg.MediaDir = env.Getenv("SNAPVAULT_MEDIA_DIR")
	cfg.ContactsFile = env.Getenv("SNAPVAULT_CONTACTS_FILE")

	if raw := env.Getenv("SNAPVAULT_GRANTS"); raw != "" {
		grants := []string{}
		for _, g := range strings.Split(raw, ",") {
			g = strings.TrimSpace(g)
			if g == "" {
				continue
			}
			if g != "contacts" && g != "media" {
				return Config{}, fmt.Errorf("invalid SNAPVAULT_GRANTS entry %q", g)
			}
			grants = append(grants, g)
		}
		cfg.Grants = grants
	}

	if raw := env.Getenv("SNAPVAULT_BATCH_SIZE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid SNAPVAULT_BATCH_SIZE")
		}
		cfg.BatchSize = n
	}

	if raw := env.Getenv("SNAPVAULT_MEDIA_CAP"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid SNAPVAULT_MEDIA_CAP")
		}
		cfg.MediaCap = n
	}

	if raw := env.Getenv("SNAPVAULT_BATCH_DELAY"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("invalid SNAPVAULT_BATCH_DELAY")
		}
		cfg.BatchDelay = d
	}

	if raw := env.Getenv("SNAPVAULT_STATUS_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port < 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid SNAPVAULT_STATUS_PORT")
		}
		cfg.StatusPort = port
	}

	if raw := env.Getenv("SNAPVAULT_GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	return cfg, nil
}

func (c Config) Granted(scope string) bool {
	for _, g := range c.Grants {
		if g == scope {
			return true
		}
	}
	return false
}
