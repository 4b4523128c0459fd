// Package config loads coreprobe settings from defaults, a TOML file,
// COREPROBE_* environment variables and command line flags, in increasing
// order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"codeberg.org/mutker/coreprobe/internal/errors"
	"codeberg.org/mutker/coreprobe/internal/execution"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ErrInvalidMode        = errors.ErrorCode("config_invalid_mode")
	ErrInvalidMethod      = errors.ErrorCode("config_invalid_execution_method")
	ErrInvalidCodec       = errors.ErrorCode("config_invalid_codec")
	ErrInvalidCompression = errors.ErrorCode("config_invalid_compression")
	ErrInvalidExporter    = errors.ErrorCode("config_invalid_exporter")
	ErrInvalidRetries     = errors.ErrorCode("config_invalid_retries")
	ErrInvalidBatchSize   = errors.ErrorCode("config_invalid_batch_size")
	ErrDumpConfig         = errors.ErrorCode("config_dump_failed")
)

const (
	envPrefix  = "COREPROBE"
	configName = "coreprobe"

	DefaultServer          = "127.0.0.1:5000"
	DefaultInterval        = 10
	DefaultExecutionMethod = "direct"
	DefaultLogLevel        = "info"
	DefaultMode            = "auto"
	DefaultCodec           = "json"
	DefaultCompression     = "none"
	DefaultRetries         = 3
	DefaultRetryDelay      = 2 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultMetricsDBPath   = "/var/lib/coreprobe/metrics.db"
	DefaultBatchSize       = 10
	DefaultExporter        = "none"
)

var errFactory = errors.New()

type TransportConfig struct {
	Codec          string        `mapstructure:"codec"`
	Compression    string        `mapstructure:"compression"`
	Retries        int           `mapstructure:"retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	DBPath    string `mapstructure:"db_path"`
	BatchSize int    `mapstructure:"batch_size"`
}

type TelemetryConfig struct {
	Exporter string `mapstructure:"exporter"`
	Endpoint string `mapstructure:"endpoint"`
}

type Config struct {
	Server          string          `mapstructure:"server"`
	Interval        int             `mapstructure:"interval"`
	ExecutionMethod string          `mapstructure:"execution_method"`
	SearchPaths     []string        `mapstructure:"search_paths"`
	LogLevel        string          `mapstructure:"log_level"`
	Mode            string          `mapstructure:"mode"`
	InstallSensors  bool            `mapstructure:"install_sensors"`
	GPU             bool            `mapstructure:"gpu"`
	Transport       TransportConfig `mapstructure:"transport"`
	Metrics         MetricsConfig   `mapstructure:"metrics"`
	Telemetry       TelemetryConfig `mapstructure:"telemetry"`

	// DumpConfig asks the caller to print the effective config and exit.
	DumpConfig bool `mapstructure:"-"`
	// ConfigFile is the file that was read, if any.
	ConfigFile string `mapstructure:"-"`
}

// Load builds the effective configuration. args are the command line
// arguments without the program name.
func Load(args []string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	if err := bindFlags(v, flags); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	if err := bindEnv(v); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	configPath, _ := flags.GetString("config")
	if configPath == "" {
		configPath = os.Getenv(envPrefix + "_CONFIG")
	}
	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	cfg.DumpConfig, _ = flags.GetBool("dump-config")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server", DefaultServer)
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("execution_method", DefaultExecutionMethod)
	v.SetDefault("search_paths", execution.DefaultSearchPaths)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("mode", DefaultMode)
	v.SetDefault("install_sensors", false)
	v.SetDefault("gpu", false)
	v.SetDefault("transport.codec", DefaultCodec)
	v.SetDefault("transport.compression", DefaultCompression)
	v.SetDefault("transport.retries", DefaultRetries)
	v.SetDefault("transport.retry_delay", DefaultRetryDelay)
	v.SetDefault("transport.connect_timeout", DefaultConnectTimeout)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.db_path", DefaultMetricsDBPath)
	v.SetDefault("metrics.batch_size", DefaultBatchSize)
	v.SetDefault("telemetry.exporter", DefaultExporter)
	v.SetDefault("telemetry.endpoint", "")
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"server":             "server",
	"interval":           "interval",
	"execution-method":   "execution_method",
	"search-paths":       "search_paths",
	"log-level":          "log_level",
	"mode":               "mode",
	"install-sensors":    "install_sensors",
	"gpu":                "gpu",
	"codec":              "transport.codec",
	"compression":        "transport.compression",
	"retries":            "transport.retries",
	"retry-delay":        "transport.retry_delay",
	"metrics":            "metrics.enabled",
	"metrics-db":         "metrics.db_path",
	"telemetry-exporter": "telemetry.exporter",
	"telemetry-endpoint": "telemetry.endpoint",
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("coreprobe", pflag.ContinueOnError)

	flags.String("config", "", "Path to the TOML config file")
	flags.Bool("dump-config", false, "Print the effective configuration as TOML and exit")
	flags.String("server", DefaultServer, "Address of the report collector (host:port)")
	flags.Int("interval", DefaultInterval, "Seconds between collection cycles")
	flags.String("execution-method", DefaultExecutionMethod, "How to run external tools: direct, shell, fork-exec, fork-syscall, existence-check")
	flags.StringSlice("search-paths", execution.DefaultSearchPaths, "Directories probed by the existence check")
	flags.String("log-level", DefaultLogLevel, "Log level: debug, info, warn, error")
	flags.String("mode", DefaultMode, "Collector: auto, linux, esxi")
	flags.Bool("install-sensors", false, "Install lm-sensors when it is missing")
	flags.Bool("gpu", false, "Include NVIDIA GPU readings")
	flags.String("codec", DefaultCodec, "Report encoding: json, cbor")
	flags.String("compression", DefaultCompression, "Report compression: none, gzip, zstd, lz4")
	flags.Int("retries", DefaultRetries, "Send attempts per report")
	flags.Duration("retry-delay", DefaultRetryDelay, "Delay between send attempts")
	flags.Bool("metrics", false, "Record readings in the local history database")
	flags.String("metrics-db", DefaultMetricsDBPath, "Path to the history database")
	flags.String("telemetry-exporter", DefaultExporter, "Self-instrumentation exporter: none, stdout, otlp-http")
	flags.String("telemetry-endpoint", "", "OTLP/HTTP endpoint (host:port)")

	return flags
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	return nil
}

func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("server", envPrefix+"_SERVER", "SENSOR_SERVER"); err != nil {
		return err
	}

	return v.BindEnv("interval", envPrefix+"_INTERVAL", "SENSOR_INTERVAL")
}

func readConfigFile(v *viper.Viper, path string) error {
	v.SetConfigType("toml")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}

		return nil
	}

	v.SetConfigName(configName)
	v.AddConfigPath("/etc/coreprobe")
	v.AddConfigPath("/etc")
	if exe, err := os.Executable(); err == nil {
		v.AddConfigPath(filepath.Dir(exe))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}

// Validate checks every enumerated and numeric setting.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if !LogLevel(strings.ToLower(c.LogLevel)).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if _, err := execution.ParseMethod(c.ExecutionMethod); err != nil {
		return errFactory.Wrap(ErrInvalidMethod, err)
	}
	if !Mode(c.Mode).IsValid() {
		return errFactory.WithData(ErrInvalidMode, c.Mode)
	}
	if !slices.Contains(validCodecs, c.Transport.Codec) {
		return errFactory.WithData(ErrInvalidCodec, c.Transport.Codec)
	}
	if !slices.Contains(validCompressions, c.Transport.Compression) {
		return errFactory.WithData(ErrInvalidCompression, c.Transport.Compression)
	}
	if c.Transport.Retries < 1 {
		return errFactory.WithData(ErrInvalidRetries, c.Transport.Retries)
	}
	if c.Metrics.BatchSize < 1 {
		return errFactory.WithData(ErrInvalidBatchSize, c.Metrics.BatchSize)
	}
	if !slices.Contains(validExporters, c.Telemetry.Exporter) {
		return errFactory.WithData(ErrInvalidExporter, c.Telemetry.Exporter)
	}

	return nil
}

func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

type fileTransport struct {
	Codec          string `toml:"codec"`
	Compression    string `toml:"compression"`
	Retries        int    `toml:"retries"`
	RetryDelay     string `toml:"retry_delay"`
	ConnectTimeout string `toml:"connect_timeout"`
}

type fileMetrics struct {
	Enabled   bool   `toml:"enabled"`
	DBPath    string `toml:"db_path"`
	BatchSize int    `toml:"batch_size"`
}

type fileTelemetry struct {
	Exporter string `toml:"exporter"`
	Endpoint string `toml:"endpoint"`
}

type fileConfig struct {
	Server          string        `toml:"server"`
	Interval        int           `toml:"interval"`
	ExecutionMethod string        `toml:"execution_method"`
	SearchPaths     []string      `toml:"search_paths"`
	LogLevel        string        `toml:"log_level"`
	Mode            string        `toml:"mode"`
	InstallSensors  bool          `toml:"install_sensors"`
	GPU             bool          `toml:"gpu"`
	Transport       fileTransport `toml:"transport"`
	Metrics         fileMetrics   `toml:"metrics"`
	Telemetry       fileTelemetry `toml:"telemetry"`
}

// TOML renders the configuration in the config file format.
func (c *Config) TOML() ([]byte, error) {
	out, err := toml.Marshal(fileConfig{
		Server:          c.Server,
		Interval:        c.Interval,
		ExecutionMethod: c.ExecutionMethod,
		SearchPaths:     c.SearchPaths,
		LogLevel:        c.LogLevel,
		Mode:            c.Mode,
		InstallSensors:  c.InstallSensors,
		GPU:             c.GPU,
		Transport: fileTransport{
			Codec:          c.Transport.Codec,
			Compression:    c.Transport.Compression,
			Retries:        c.Transport.Retries,
			RetryDelay:     c.Transport.RetryDelay.String(),
			ConnectTimeout: c.Transport.ConnectTimeout.String(),
		},
		Metrics:   fileMetrics(c.Metrics),
		Telemetry: fileTelemetry(c.Telemetry),
	})
	if err != nil {
		return nil, errFactory.Wrap(ErrDumpConfig, err)
	}

	return out, nil
}
