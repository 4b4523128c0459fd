package telemetry

import (
	"slices"

	"codeberg.org/mutker/coreprobe/internal/errors"
)

const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"

	defaultServiceName = "coreprobe"
)

type Config struct {
	Exporter    string
	Endpoint    string
	ServiceName string
}

func DefaultConfig() Config {
	return Config{
		Exporter:    ExporterNone,
		ServiceName: defaultServiceName,
	}
}

func (c Config) Validate() error {
	if !slices.Contains([]string{ExporterNone, ExporterStdout, ExporterOTLPHTTP}, c.Exporter) {
		return errors.New().WithData(ErrInvalidExporter, c.Exporter)
	}

	return nil
}
