package telemetry

import "codeberg.org/mutker/coreprobe/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig   = errors.ErrInvalidConfig
	ErrInvalidExporter = errors.ErrorCode("telemetry_invalid_exporter")

	// Setup Errors
	ErrExporterInit    = errors.ErrorCode("telemetry_exporter_init_failed")
	ErrInstrumentsInit = errors.ErrorCode("telemetry_instruments_init_failed")
	ErrResourceInit    = errors.ErrorCode("telemetry_resource_init_failed")

	// Service Errors
	ErrServiceShutdown = errors.ErrShutdownFailed
)
