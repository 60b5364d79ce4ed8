// Package config resolves service configuration from TERRAFUSION_* environment
// variables and an optional YAML file. Invalid values are logged and replaced
// by their defaults; only settings that would make the service unsafe to run
// are reported as errors.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/star/terrafusion/internal/auth"
	"github.com/star/terrafusion/internal/cache"
	"github.com/star/terrafusion/internal/landmass"
	"github.com/star/terrafusion/internal/observability"
	"github.com/star/terrafusion/internal/propagation"
	"github.com/star/terrafusion/internal/stream"
)

// EnvPrefix prefixes every environment variable, e.g. TERRAFUSION_HTTP_ADDR.
const EnvPrefix = "TERRAFUSION"

// Config is the resolved service configuration.
type Config struct {
	HTTPAddr   string
	Auth       auth.Config
	TrustProxy bool
	LogLevel   slog.Level

	ViewportWidth   int
	ViewportHeight  int
	FrameInterval   time.Duration
	PublishInterval time.Duration
	FontSize        float64
	Sim             propagation.Config

	GridStep        float64
	ClassifyWorkers int
	RegistryPath    string // empty uses the embedded registry

	Landmass   landmass.LoaderConfig
	Stream     stream.Config
	FrameCache cache.Config
	Tracing    observability.TracingConfig
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		HTTPAddr:        ":8080",
		LogLevel:        slog.LevelInfo,
		ViewportWidth:   800,
		ViewportHeight:  600,
		FrameInterval:   16 * time.Millisecond,
		PublishInterval: 100 * time.Millisecond,
		FontSize:        11,
		Sim:             propagation.DefaultConfig(),
		GridStep:        4,
		ClassifyWorkers: runtime.NumCPU(),
		Landmass: landmass.LoaderConfig{
			URL:        landmass.DefaultSourceURL,
			Fetch:      false,
			CacheDir:   "/tmp/terrafusion/landmass",
			MaxFiles:   3,
			UseOutline: true,
		},
		Stream: stream.Config{
			MaxConcurrentPerIP: 10,
			MaxConcurrent:      1000,
			KeepaliveInterval:  30 * time.Second,
			WriteTimeout:       10 * time.Second,
		},
		FrameCache: cache.Config{
			JPEGQuality:  85,
			WarmInterval: 250 * time.Millisecond,
			MaxAge:       500 * time.Millisecond,
		},
		Tracing: observability.TracingConfig{
			ServiceName: "terrafusion",
			Exporter:    "stdout",
			Endpoint:    "localhost:4317",
			SampleRatio: 1,
		},
	}
}

// NewViper returns a viper instance bound to the TERRAFUSION_ environment and,
// when file is non-empty, the YAML config file at that path.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}
	return v, nil
}

// Load resolves the configuration from v.
func Load(v *viper.Viper, logger *slog.Logger) (Config, error) {
	cfg := Defaults()
	r := reader{v: v, logger: logger}

	cfg.HTTPAddr = r.str("http_addr", cfg.HTTPAddr)
	cfg.TrustProxy = r.boolean("trust_proxy", cfg.TrustProxy)
	cfg.LogLevel = r.level("log_level", cfg.LogLevel)

	authCfg, err := loadAuth(v)
	if err != nil {
		return cfg, err
	}
	cfg.Auth = authCfg

	cfg.ViewportWidth = r.integer("viewport_width", cfg.ViewportWidth, 16, 8192)
	cfg.ViewportHeight = r.integer("viewport_height", cfg.ViewportHeight, 16, 8192)
	cfg.FrameInterval = r.duration("frame_interval", cfg.FrameInterval, time.Millisecond, time.Second)
	cfg.PublishInterval = r.duration("publish_interval", cfg.PublishInterval, time.Millisecond, time.Minute)
	cfg.FontSize = r.float("font_size", cfg.FontSize, 6, 48)

	cfg.Sim.RotationStep = r.float("rotation_step", cfg.Sim.RotationStep, -10, 10)
	cfg.Sim.Tilt = r.float("tilt", cfg.Sim.Tilt, -90, 90)
	cfg.Sim.DriftDamping = r.float("drift_damping", cfg.Sim.DriftDamping, 0, 10)

	cfg.GridStep = r.float("grid_step", cfg.GridStep, 0.5, 30)
	cfg.ClassifyWorkers = r.integer("classify_workers", cfg.ClassifyWorkers, 1, 256)
	cfg.RegistryPath = r.str("registry_path", cfg.RegistryPath)

	cfg.Landmass.URL = r.str("landmass_url", cfg.Landmass.URL)
	cfg.Landmass.Fetch = r.boolean("landmass_fetch", cfg.Landmass.Fetch)
	cfg.Landmass.CacheDir = r.str("landmass_cache_dir", cfg.Landmass.CacheDir)
	cfg.Landmass.MaxFiles = r.integer("landmass_max_files", cfg.Landmass.MaxFiles, 1, 100)
	cfg.Landmass.UseOutline = r.boolean("landmass_outline", cfg.Landmass.UseOutline)

	cfg.Stream.MaxConcurrentPerIP = r.integer("stream_max_concurrent", cfg.Stream.MaxConcurrentPerIP, 1, 10000)
	cfg.Stream.MaxConcurrent = r.integer("stream_max_total", cfg.Stream.MaxConcurrent, 1, 100000)
	cfg.Stream.KeepaliveInterval = r.duration("stream_keepalive", cfg.Stream.KeepaliveInterval, time.Second, time.Hour)
	cfg.Stream.TrustProxy = cfg.TrustProxy

	cfg.FrameCache.JPEGQuality = r.integer("frame_jpeg_quality", cfg.FrameCache.JPEGQuality, 1, 100)
	cfg.FrameCache.WarmInterval = r.duration("frame_warm_interval", cfg.FrameCache.WarmInterval, 10*time.Millisecond, time.Minute)
	cfg.FrameCache.MaxAge = r.duration("frame_max_age", cfg.FrameCache.MaxAge, 10*time.Millisecond, time.Minute)

	cfg.Tracing.Enabled = r.boolean("tracing_enabled", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = r.choice("tracing_exporter", cfg.Tracing.Exporter, "stdout", "otlp")
	cfg.Tracing.Endpoint = r.str("tracing_endpoint", cfg.Tracing.Endpoint)
	cfg.Tracing.SampleRatio = r.float("tracing_sample_ratio", cfg.Tracing.SampleRatio, 0, 1)

	return cfg, nil
}

// loadAuth is strict: a half-configured auth setup is an error, not a warning.
func loadAuth(v *viper.Viper) (auth.Config, error) {
	cfg := auth.Config{}
	if s := v.GetString("auth_enabled"); s != "" {
		enabled, err := strconv.ParseBool(s)
		if err != nil {
			return cfg, errors.New("auth_enabled must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}
	if cfg.Enabled {
		cfg.Token = v.GetString("auth_token")
		if cfg.Token == "" {
			return cfg, errors.New("auth_token is required when auth is enabled")
		}
	}
	return cfg, nil
}

// LogValue summarises the configuration for the startup log. The auth token
// is never included.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("http_addr", c.HTTPAddr),
		slog.Bool("auth_enabled", c.Auth.Enabled),
		slog.String("log_level", c.LogLevel.String()),
		slog.String("viewport", fmt.Sprintf("%dx%d", c.ViewportWidth, c.ViewportHeight)),
		slog.Int64("frame_interval_ms", c.FrameInterval.Milliseconds()),
		slog.Int64("publish_interval_ms", c.PublishInterval.Milliseconds()),
		slog.Float64("rotation_step", c.Sim.RotationStep),
		slog.Float64("drift_damping", c.Sim.DriftDamping),
		slog.Float64("grid_step", c.GridStep),
		slog.Bool("landmass_fetch", c.Landmass.Fetch),
		slog.Int("stream_max_concurrent", c.Stream.MaxConcurrentPerIP),
		slog.Bool("tracing_enabled", c.Tracing.Enabled),
	)
}
