package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/coreprobe/internal/config"
	"codeberg.org/mutker/coreprobe/internal/errors"
	"codeberg.org/mutker/coreprobe/internal/execution"
	"codeberg.org/mutker/coreprobe/internal/gpu"
	"codeberg.org/mutker/coreprobe/internal/installer"
	"codeberg.org/mutker/coreprobe/internal/logger"
	"codeberg.org/mutker/coreprobe/internal/metrics"
	"codeberg.org/mutker/coreprobe/internal/pid"
	"codeberg.org/mutker/coreprobe/internal/probe"
	"codeberg.org/mutker/coreprobe/internal/telemetry"
	"codeberg.org/mutker/coreprobe/internal/transport"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 5 * time.Second

type app struct {
	cfg       *config.Config
	recorder  telemetry.Recorder
	probe     *probe.Probe
	history   metrics.MetricsCollector
	client    *transport.Client
	gpuProber *gpu.Prober
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if cfg.DumpConfig {
		out, err := cfg.TOML()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to dump config: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug().Str("config_file", cfg.ConfigFile).Msg("Config loaded")

	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to write pid file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	a, err := newApp(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize")
		a.cleanup()
		removePID()
		os.Exit(1)
	}

	if err := a.loop(ctx); err != nil {
		logger.Error().Err(err).Msg("Error in main loop")
	}
	a.cleanup()
	removePID()
}

// newApp wires every component. On error the partially built app is
// returned so it can be cleaned up.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	errFactory := errors.New()
	a := &app{cfg: cfg}

	recorder, err := telemetry.New(ctx, telemetry.Config{
		Exporter:    cfg.Telemetry.Exporter,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: telemetry.DefaultConfig().ServiceName,
	})
	if err != nil {
		return a, errFactory.Wrap(errors.ErrInitApp, err)
	}
	a.recorder = recorder

	method, err := execution.ParseMethod(cfg.ExecutionMethod)
	if err != nil {
		return a, errFactory.Wrap(errors.ErrInitApp, err)
	}
	opts := []execution.Option{
		execution.WithSearchPaths(cfg.SearchPaths),
		execution.WithObserver(recorder),
	}
	runner := execution.New(method, opts...)

	mode := resolveMode(cfg.Mode, execution.New(execution.ExistenceCheck, opts...))
	logger.Info().Str("mode", string(mode)).Str("method", method.String()).Msg("Environment detected")

	var probeOpts []probe.Option
	if mode == probe.ModeLinux {
		if cfg.InstallSensors {
			if err := installer.EnsureSensors(runner); err != nil {
				return a, errFactory.Wrap(errors.ErrInitApp, err)
			}
		}

		if cfg.GPU {
			prober, err := gpu.New()
			if err != nil {
				logger.Warn().Err(err).Msg("GPU readings disabled")
			} else {
				a.gpuProber = prober
				probeOpts = append(probeOpts, probe.WithGPU(prober))
			}
		}
	}

	a.probe = probe.New(mode, runner, probeOpts...)
	a.probe.Start()

	historyCfg := metrics.DefaultConfig()
	historyCfg.Enabled = cfg.Metrics.Enabled
	historyCfg.DBPath = cfg.Metrics.DBPath
	historyCfg.BatchSize = cfg.Metrics.BatchSize
	if a.history, err = metrics.NewService(historyCfg); err != nil {
		return a, errFactory.Wrap(errors.ErrInitApp, err)
	}

	a.client, err = transport.New(transport.Config{
		Server:         cfg.Server,
		Codec:          cfg.Transport.Codec,
		Compression:    cfg.Transport.Compression,
		Retries:        cfg.Transport.Retries,
		RetryDelay:     cfg.Transport.RetryDelay,
		ConnectTimeout: cfg.Transport.ConnectTimeout,
	})
	if err != nil {
		return a, errFactory.Wrap(errors.ErrInitApp, err)
	}

	return a, nil
}

func resolveMode(configured string, checker execution.Runner) probe.Mode {
	switch config.Mode(configured) {
	case config.ModeLinux:
		return probe.ModeLinux
	case config.ModeESXi:
		return probe.ModeESXi
	default:
		return probe.DetectMode(checker)
	}
}

func (a *app) loop(ctx context.Context) error {
	interval := a.cfg.IntervalDuration()
	if interval <= 0 {
		return errors.New().WithData(errors.ErrInvalidInterval, a.cfg.Interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		a.tick(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (a *app) tick(ctx context.Context) {
	report, err := a.probe.Collect(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error().Err(err).Msg("Failed to collect report")
		}
		return
	}

	if err := a.history.Record(ctx, snapshotOf(report)); err != nil {
		logger.Warn().Err(err).Msg("Failed to record report history")
	}

	err = a.client.Send(ctx, report.Payload())
	a.recorder.ReportSent(ctx, err)
	if err != nil {
		logger.Error().Err(err).Str("server", a.cfg.Server).Msg("Failed to send report")
		return
	}

	logger.Info().Str("mode", string(a.probe.Mode())).Msg("Report sent successfully")
}

func snapshotOf(report probe.Report) *metrics.MetricsSnapshot {
	if report.ESXi != nil {
		return metrics.FromESXiReport(report.ESXi)
	}
	return metrics.FromSensorReport(report.Linux)
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func (a *app) cleanup() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close metrics history")
		}
	}

	if a.gpuProber != nil {
		if err := a.gpuProber.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("Failed to shut down NVML")
		}
	}

	if a.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.recorder.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to shut down telemetry")
		}
	}

	logger.Info().Msg("Exiting...")
}

func removePID() {
	if err := pid.Remove(); err != nil {
		logger.Error().Err(err).Msg("Failed to remove pid file")
	}
}
