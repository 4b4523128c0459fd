package config

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarn    LogLevel = "warn"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// Mode selects which collector runs
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeLinux Mode = "linux"
	ModeESXi  Mode = "esxi"
)

func (m Mode) IsValid() bool {
	switch m {
	case ModeAuto, ModeLinux, ModeESXi:
		return true
	default:
		return false
	}
}

var (
	validCodecs       = []string{"json", "cbor"}
	validCompressions = []string{"none", "gzip", "zstd", "lz4"}
	validExporters    = []string{"none", "stdout", "otlp-http"}
)
