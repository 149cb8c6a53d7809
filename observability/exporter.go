package observability

// https://opentelemetry.io/docs/languages/go/exporters/

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"

	"github.com/benz9527/xskl/xlog"
)

type MetricsExporterType uint8

const (
	NoneMetricsExporter MetricsExporterType = iota
	ConsoleMetricsExporter
	PrometheusMetricsExporter
)

var ErrUnknownMetricsExporter = errors.New("[observability] unknown metrics exporter")

func (t MetricsExporterType) String() string {
	switch t {
	case ConsoleMetricsExporter:
		return "console"
	case PrometheusMetricsExporter:
		return "prometheus"
	default:
	}
	return "none"
}

func ParseMetricsExporterType(name string) (MetricsExporterType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return NoneMetricsExporter, nil
	case "console", "stdout":
		return ConsoleMetricsExporter, nil
	case "prometheus", "prom":
		return PrometheusMetricsExporter, nil
	default:
	}
	return NoneMetricsExporter, fmt.Errorf("%w: %q", ErrUnknownMetricsExporter, name)
}

// ShutdownFunc flushes and stops the meter provider installed by an exporter.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// NewConsoleMetricsExporter serves for test/dev environment.
func NewConsoleMetricsExporter(interval, timeout time.Duration, opts ...stdoutmetric.Option) (ShutdownFunc, error) {
	exporter, err := stdoutmetric.New(opts...)
	if err != nil {
		return nil, err
	}
	mp := metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(
		exporter,
		metric.WithInterval(interval),
		metric.WithTimeout(timeout),
	)))
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

// NewPrometheusMetricsExporter serves for the product environment. The
// metrics are fetched by HTTP from the registry's handler.
func NewPrometheusMetricsExporter(registry *promclient.Registry) (ShutdownFunc, http.Handler, error) {
	if registry == nil {
		registry = promclient.NewRegistry()
	}
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}
	mp := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(mp)
	return mp.Shutdown, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// ServeMetrics binds addr and exposes handler under /metrics until ctx is
// done. The bind error is returned to the caller, serve errors after that
// are logged. It is a no-op without a handler or an address.
func ServeMetrics(ctx context.Context, addr string, handler http.Handler, logger xlog.XLogger) (ShutdownFunc, error) {
	if handler == nil || strings.TrimSpace(addr) == "" {
		return noopShutdown, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("[observability] metrics listen on %q: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && logger != nil {
			logger.Error(err, "metrics server stopped", zap.String("addr", srv.Addr))
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	return srv.Shutdown, nil
}

// NewMetricsExporter installs the exporter of typ as the global meter provider.
// The prometheus handler is nil for the other exporters.
func NewMetricsExporter(typ MetricsExporterType, interval time.Duration) (ShutdownFunc, http.Handler, error) {
	switch typ {
	case ConsoleMetricsExporter:
		shutdown, err := NewConsoleMetricsExporter(interval, interval, stdoutmetric.WithPrettyPrint())
		return shutdown, nil, err
	case PrometheusMetricsExporter:
		return NewPrometheusMetricsExporter(nil)
	case NoneMetricsExporter:
		return noopShutdown, nil, nil
	default:
	}
	return nil, nil, ErrUnknownMetricsExporter
}
