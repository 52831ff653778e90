package fxpipe

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/fxpipe/diskcache"
)

// Config is the file form of the renderer options.
//
//	cache_dir = "/var/cache/fxpipe"
//	unique_id = "GALE01"
//
//	[stream]
//	capacity = 4194304
//	buffer_count = 3
//
//	[shader]
//	validate = false
//	dump_dir = ""
//	compression = "zstd"
//	max_permutations = 0
//
//	[log]
//	level = "info"
type Config struct {
	CacheDir string `toml:"cache_dir"`
	UniqueID string `toml:"unique_id"`
	Backend  string `toml:"backend"`

	Stream StreamConfig `toml:"stream"`
	Shader ShaderConfig `toml:"shader"`
	Log    LogConfig    `toml:"log"`
}

// StreamConfig configures the streaming ring buffers.
type StreamConfig struct {
	Capacity    uint64 `toml:"capacity"`
	BufferCount int    `toml:"buffer_count"`
}

// ShaderConfig configures the shader caches.
type ShaderConfig struct {
	Validate        bool   `toml:"validate"`
	DumpDir         string `toml:"dump_dir"`
	Compression     string `toml:"compression"`
	MaxPermutations int    `toml:"max_permutations"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads a TOML config file. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fxpipe: load config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(&cfg); err != nil {
		return nil, fmt.Errorf("fxpipe: parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that can be checked without a device.
func (c *Config) Validate() error {
	if _, err := diskcache.ParseCodec(c.Shader.Compression); err != nil {
		return fmt.Errorf("%w: shader.compression: %w", ErrInvalidConfig, err)
	}
	if c.Stream.BufferCount != 0 && c.Stream.BufferCount < 2 {
		return fmt.Errorf("%w: stream.buffer_count %d, minimum 2", ErrInvalidConfig, c.Stream.BufferCount)
	}
	if c.Shader.MaxPermutations < 0 {
		return fmt.Errorf("%w: shader.max_permutations %d", ErrInvalidConfig, c.Shader.MaxPermutations)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// Options converts the config to renderer options. Zero values keep the
// defaults.
func (c *Config) Options() []Option {
	codec, _ := diskcache.ParseCodec(c.Shader.Compression)
	opts := []Option{
		WithCacheDir(c.CacheDir),
		WithUniqueID(c.UniqueID),
		WithBackendName(c.Backend),
		WithShaderValidation(c.Shader.Validate),
		WithDumpDir(c.Shader.DumpDir),
		WithCompression(codec),
		WithMaxPermutations(c.Shader.MaxPermutations),
	}
	if c.Stream.Capacity != 0 {
		opts = append(opts, WithBufferCapacity(c.Stream.Capacity))
	}
	if c.Stream.BufferCount != 0 {
		opts = append(opts, WithBufferCount(c.Stream.BufferCount))
	}
	return opts
}

// LogLevel parses log.level. An empty level is info.
func (c *Config) LogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Log.Level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level)
	}
}

// Marshal encodes the config as TOML.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
