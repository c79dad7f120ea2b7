package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const maxFrameRate = 1000

// FileEnv names the environment variable holding an optional config file path.
const FileEnv = "FLIGHTSIM_CONFIG"

// Config holds all application configuration.
type Config struct {
	Integrator IntegratorConfig
	Sim        SimConfig
	State      StateConfig
	Log        LogConfig
	Trace      TraceConfig
	Influx     InfluxConfig
	MCP        MCPConfig
}

// IntegratorConfig locates the remote integrator.
type IntegratorConfig struct {
	Host         string
	Port         int
	Path         string
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
}

// SimConfig holds stepping and initial-state settings.
type SimConfig struct {
	StepSize        time.Duration
	TimeBudget      time.Duration
	FrameRate       int
	Renormalize     bool
	InitialAltitude float64
	InitialSpeed    float64
}

type StateConfig struct {
	StaleThreshold time.Duration
}

type LogConfig struct {
	Level string
	Dir   string
}

// TraceConfig selects trajectory persistence. An empty Driver keeps the
// trace in memory only.
type TraceConfig struct {
	Capacity int
	Driver   string
	DSN      string
}

type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Enabled reports whether points should be sent to InfluxDB.
func (c InfluxConfig) Enabled() bool { return c.URL != "" }

type MCPConfig struct {
	Enabled bool
}

// Load reads configuration from environment variables and, if FLIGHTSIM_CONFIG
// is set, from that file. Environment wins over the file; invalid values fall
// back to defaults.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.GetString(strings.ToLower(FileEnv)); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return fromViper(v), nil
}

func fromViper(v *viper.Viper) Config {
	cfg := Config{
		Integrator: IntegratorConfig{
			Host:         getString(v, "integrator.host", "localhost"),
			Port:         getInt(v, "integrator.port", 8000),
			Path:         getString(v, "integrator.path", "/api/update"),
			Timeout:      getDuration(v, "integrator.timeout", 2*time.Second),
			Retries:      getInt(v, "integrator.retries", 0),
			RetryBackoff: getDuration(v, "integrator.retry_backoff", 10*time.Millisecond),
		},
		Sim: SimConfig{
			StepSize:        getDuration(v, "sim.step_size", 50*time.Millisecond),
			TimeBudget:      getDuration(v, "sim.time_budget", 100*time.Second),
			FrameRate:       getInt(v, "sim.frame_rate", 60),
			Renormalize:     getBool(v, "sim.renormalize", false),
			InitialAltitude: getFloat(v, "sim.initial_altitude", 10),
			InitialSpeed:    getFloat(v, "sim.initial_speed", 30),
		},
		State: StateConfig{
			StaleThreshold: getDuration(v, "stale_threshold", 5*time.Second),
		},
		Log: LogConfig{
			Level: getString(v, "log.level", "info"),
			Dir:   getString(v, "log.dir", ""),
		},
		Trace: TraceConfig{
			Capacity: getInt(v, "trace.capacity", 2000),
			Driver:   strings.ToLower(getString(v, "trace.driver", "")),
			DSN:      getString(v, "trace.dsn", ""),
		},
		Influx: InfluxConfig{
			URL:    getString(v, "influx.url", ""),
			Token:  getString(v, "influx.token", ""),
			Org:    getString(v, "influx.org", ""),
			Bucket: getString(v, "influx.bucket", "flightsim"),
		},
		MCP: MCPConfig{
			Enabled: getBool(v, "mcp.enabled", true),
		},
	}

	if cfg.Integrator.Port <= 0 || cfg.Integrator.Port > 65535 {
		cfg.Integrator.Port = 8000
	}
	if cfg.Integrator.Retries < 0 {
		cfg.Integrator.Retries = 0
	}
	if cfg.Sim.StepSize <= 0 {
		cfg.Sim.StepSize = 50 * time.Millisecond
	}
	if cfg.Sim.FrameRate <= 0 {
		cfg.Sim.FrameRate = 60
	}
	cfg.Sim.FrameRate = min(cfg.Sim.FrameRate, maxFrameRate)
	if cfg.Trace.Capacity <= 0 {
		cfg.Trace.Capacity = 2000
	}
	switch cfg.Trace.Driver {
	case "sqlite", "postgres":
	default:
		cfg.Trace.Driver = ""
	}
	return cfg
}

func getString(v *viper.Viper, key, defaultVal string) string {
	if s := v.GetString(key); s != "" {
		return s
	}
	return defaultVal
}

func getInt(v *viper.Viper, key string, defaultVal int) int {
	n, err := strconv.Atoi(v.GetString(key))
	if err != nil {
		return defaultVal
	}
	return n
}

func getFloat(v *viper.Viper, key string, defaultVal float64) float64 {
	f, err := strconv.ParseFloat(v.GetString(key), 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getBool(v *viper.Viper, key string, defaultVal bool) bool {
	b, err := strconv.ParseBool(v.GetString(key))
	if err != nil {
		return defaultVal
	}
	return b
}

func getDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return defaultVal
	}
	return d
}
