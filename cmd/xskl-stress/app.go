package main

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xskl/observability"
	"github.com/benz9527/xskl/stress"
	"github.com/benz9527/xskl/xlog"
)

type stressBanner struct{}

func (stressBanner) JSON() string {
	return `{"app":"xskl-stress","desc":"lock-free skip list stress harness"}`
}

func (stressBanner) PlainText() string {
	return `
 __  __ ___  _  __ _          ___  _____  ___  ___  ___  ___
 \ \/ // __|| |/ /| |   ___  / __||_   _|| _ \| __|/ __|/ __|
  >  < \__ \| ' < | |__|___| \__ \  | |  |   /| _| \__ \\__ \
 /_/\_\|___/|_|\_\|____|     |___/  |_|  |_|_\|___||___/|___/
`
}

func newLogger(cfg *appConfig) xlog.XLogger {
	enc := xlog.PlainText
	if strings.EqualFold(strings.TrimSpace(cfg.LogEncoder), "json") {
		enc = xlog.JSON
	}
	logger := xlog.NewXLogger(
		xlog.WithXLoggerStdErrWriter(),
		xlog.WithXLoggerEncoder(enc),
		xlog.WithXLoggerLevel(xlog.ParseLogLevel(cfg.LogLevel)),
		xlog.WithXLoggerLevelEncoder(zapcore.CapitalLevelEncoder),
		xlog.WithXLoggerTimeEncoder(zapcore.ISO8601TimeEncoder),
	)
	logger.Banner(stressBanner{})
	return logger
}

func setMaxProcs(lc fx.Lifecycle, logger xlog.XLogger) error {
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Logf(zapcore.InfoLevel, format, args...)
	}))
	if err != nil {
		return err
	}
	lc.Append(fx.StopHook(undo))
	return nil
}

// metricsShutdown flushes the exporter installed for the run.
type metricsShutdown observability.ShutdownFunc

func newMetrics(lc fx.Lifecycle, cfg *appConfig, logger xlog.XLogger) (metricsShutdown, error) {
	shutdown, handler, err := observability.NewMetricsExporter(cfg.Metrics, cfg.MetricsInterval)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	stopServer, err := observability.ServeMetrics(ctx, cfg.MetricsAddr, handler, logger)
	if err != nil {
		cancel()
		_ = shutdown(context.Background())
		return nil, err
	}
	switch {
	case handler == nil:
	case strings.TrimSpace(cfg.MetricsAddr) == "":
		logger.Warn("prometheus metrics enabled without an address, not served")
	default:
		logger.Info("serving prometheus metrics", zap.String("addr", cfg.MetricsAddr))
	}
	observability.InitAppStats(ctx, "stress", nil)
	lc.Append(fx.Hook{
		OnStop: func(stopCtx context.Context) error {
			defer cancel()
			_ = stopServer(stopCtx)
			return shutdown(stopCtx)
		},
	})
	return metricsShutdown(shutdown), nil
}

func newHarness(cfg *appConfig, logger xlog.XLogger, _ metricsShutdown) (*stress.Harness, error) {
	return stress.NewHarness(cfg.Stress, logger)
}

// runStress runs the harness in the background once the app has started
// and shuts the app down with exit code 1 if any violation was found.
func runStress(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *appConfig,
	logger xlog.XLogger,
	h *stress.Harness,
) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				run := h.Run
				if cfg.Phased {
					run = h.RunPhased
				}
				report, err := run(ctx)
				code := 0
				switch {
				case err != nil && ctx.Err() == nil:
					logger.ErrorStack(err, "stress run aborted")
					code = 1
				case err != nil:
					logger.Warn("stress run interrupted")
				case report.Failed():
					logger.Error(report.Err(), "stress run found violations", zap.Object("report", report))
					code = 1
				default:
					logger.Info("stress run passed", zap.Object("report", report))
				}
				_ = logger.Sync()
				_ = shutdowner.Shutdown(fx.ExitCode(code))
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			wg.Wait()
			return nil
		},
	})
}

func newApp(cfg *appConfig, extra ...fx.Option) *fx.App {
	opts := []fx.Option{
		fx.Supply(cfg),
		fx.Provide(
			newLogger,
			newMetrics,
			newHarness,
		),
		fx.WithLogger(func(logger xlog.XLogger) fxevent.Logger {
			return xlog.NewFxXLogger(logger)
		}),
		fx.Invoke(setMaxProcs, runStress),
	}
	return fx.New(append(opts, extra...)...)
}
