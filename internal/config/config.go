package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/imagineos/tapthepost/internal/compose"
	"github.com/imagineos/tapthepost/internal/pipeline"
	"github.com/imagineos/tapthepost/internal/proxy"
)

const envPrefix = "TAPTHEPOST_"

// Proxy configures the remote image proxy
type Proxy struct {
	AllowedHosts []string      `yaml:"allowed_hosts"`
	StatusHosts  []string      `yaml:"status_hosts"`
	MirrorBase   string        `yaml:"mirror_base"`
	MaxBytes     int64         `yaml:"max_bytes"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Config holds every tunable of the service. Values come from defaults, an
// optional YAML file and TAPTHEPOST_* environment variables, in that order.
type Config struct {
	Port              string        `yaml:"port"`
	DataDir           string        `yaml:"data_dir"`
	ExportTTL         time.Duration `yaml:"export_ttl"`
	SessionIdle       time.Duration `yaml:"session_idle"`
	SweepSchedule     string        `yaml:"sweep_schedule"`
	MaxUploadBytes    int64         `yaml:"max_upload_bytes"`
	SliceCount        int           `yaml:"slice_count"`
	JPEGQuality       int           `yaml:"jpeg_quality"`
	DecodeConcurrency int           `yaml:"decode_concurrency"`
	MaxCanvasPixels   int64         `yaml:"max_canvas_pixels"`
	Proxy             Proxy         `yaml:"proxy"`
}

func Default() *Config {
	return &Config{
		Port:              "8888",
		ExportTTL:         15 * time.Minute,
		SessionIdle:       time.Hour,
		SweepSchedule:     "@every 5m",
		MaxUploadBytes:    25 * 1024 * 1024,
		SliceCount:        compose.DefaultSliceCount,
		JPEGQuality:       95,
		DecodeConcurrency: 4,
		MaxCanvasPixels:   compose.DefaultMaxPixels,
		Proxy: Proxy{
			AllowedHosts: proxy.DefaultAllowedHosts,
			StatusHosts:  proxy.DefaultStatusHosts,
			MirrorBase:   proxy.DefaultMirrorBase,
			MaxBytes:     proxy.DefaultMaxBytes,
			Timeout:      proxy.DefaultTimeout,
		},
	}
}

// Load builds the configuration; path may be empty
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	integer := func(name string, dst *int64) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	number := func(name string, dst *int) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	list := func(name string, dst *[]string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			var out []string
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
			*dst = out
		}
	}

	str("PORT", &c.Port)
	str("DATA_DIR", &c.DataDir)
	str("SWEEP_SCHEDULE", &c.SweepSchedule)
	dur("EXPORT_TTL", &c.ExportTTL)
	dur("SESSION_IDLE", &c.SessionIdle)
	integer("MAX_UPLOAD_BYTES", &c.MaxUploadBytes)
	integer("MAX_CANVAS_PIXELS", &c.MaxCanvasPixels)
	number("SLICE_COUNT", &c.SliceCount)
	number("JPEG_QUALITY", &c.JPEGQuality)
	number("DECODE_CONCURRENCY", &c.DecodeConcurrency)
	str("PROXY_MIRROR_BASE", &c.Proxy.MirrorBase)
	dur("PROXY_TIMEOUT", &c.Proxy.Timeout)
	integer("PROXY_MAX_BYTES", &c.Proxy.MaxBytes)
	list("PROXY_ALLOWED_HOSTS", &c.Proxy.AllowedHosts)
	list("PROXY_STATUS_HOSTS", &c.Proxy.StatusHosts)

	return errors.Join(errs...)
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port must be set"))
	}
	if c.SliceCount < 1 {
		errs = append(errs, fmt.Errorf("slice_count must be at least 1, got %d", c.SliceCount))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("jpeg_quality must be between 1 and 100, got %d", c.JPEGQuality))
	}
	if c.DecodeConcurrency < 1 {
		errs = append(errs, fmt.Errorf("decode_concurrency must be at least 1, got %d", c.DecodeConcurrency))
	}
	if c.MaxCanvasPixels < 1 || c.MaxCanvasPixels > compose.CanvasPixelCeiling {
		errs = append(errs, fmt.Errorf("max_canvas_pixels must be between 1 and %d, got %d", compose.CanvasPixelCeiling, c.MaxCanvasPixels))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max_upload_bytes must be positive"))
	}
	if c.Proxy.MaxBytes <= 0 {
		errs = append(errs, errors.New("proxy.max_bytes must be positive"))
	}
	if c.Proxy.Timeout <= 0 {
		errs = append(errs, errors.New("proxy.timeout must be positive"))
	}
	if len(c.Proxy.AllowedHosts) == 0 {
		errs = append(errs, errors.New("proxy.allowed_hosts must not be empty"))
	}
	return errors.Join(errs...)
}

// Fetcher builds the remote image proxy from the proxy section
func (c *Config) Fetcher() *proxy.Fetcher {
	return &proxy.Fetcher{
		HTTPClient:   &http.Client{},
		AllowedHosts: c.Proxy.AllowedHosts,
		StatusHosts:  c.Proxy.StatusHosts,
		MirrorBase:   c.Proxy.MirrorBase,
		MaxBytes:     c.Proxy.MaxBytes,
		Timeout:      c.Proxy.Timeout,
	}
}

// Pipeline builds the composition pipeline around remote
func (c *Config) Pipeline(remote pipeline.RemoteImages) *pipeline.Pipeline {
	p := pipeline.New(remote)
	p.SliceCount = c.SliceCount
	p.JPEGQuality = c.JPEGQuality
	p.Concurrency = c.DecodeConcurrency
	p.MaxPixels = c.MaxCanvasPixels
	return p
}
