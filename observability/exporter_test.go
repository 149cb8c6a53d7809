package observability

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
)

func TestParseMetricsExporterType(t *testing.T) {
	testcases := []struct {
		in      string
		expect  MetricsExporterType
		wantErr bool
	}{
		{"", NoneMetricsExporter, false},
		{"none", NoneMetricsExporter, false},
		{"Console", ConsoleMetricsExporter, false},
		{"stdout", ConsoleMetricsExporter, false},
		{" prometheus ", PrometheusMetricsExporter, false},
		{"statsd", NoneMetricsExporter, true},
	}
	for _, tc := range testcases {
		t.Run(tc.in, func(tt *testing.T) {
			typ, err := ParseMetricsExporterType(tc.in)
			if tc.wantErr {
				require.ErrorIs(tt, err, ErrUnknownMetricsExporter)
				return
			}
			require.NoError(tt, err)
			require.Equal(tt, tc.expect, typ)
		})
	}
	require.Equal(t, "console", ConsoleMetricsExporter.String())
	require.Equal(t, "prometheus", PrometheusMetricsExporter.String())
	require.Equal(t, "none", MetricsExporterType(9).String())
}

func TestConsoleMetricsExporter(t *testing.T) {
	buf := &bytes.Buffer{}
	shutdown, err := NewConsoleMetricsExporter(time.Hour, time.Second, stdoutmetric.WithWriter(buf))
	require.NoError(t, err)

	counter, err := otel.Meter("xskl/test/console").Int64Counter("test.count")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, shutdown(context.Background()))
	require.Contains(t, buf.String(), "test.count")
}

func TestPrometheusMetricsExporter(t *testing.T) {
	registry := promclient.NewRegistry()
	shutdown, handler, err := NewPrometheusMetricsExporter(registry)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, shutdown(context.Background()))
	}()

	counter, err := otel.Meter("xskl/test/prometheus").Int64Counter("test.prom.count")
	require.NoError(t, err)
	counter.Add(context.Background(), 7)

	srv := httptest.NewServer(handler)
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Regexp(t, `test_prom_count_total(\{[^}]*\})? 7`, string(body))
}

func TestNewMetricsExporter(t *testing.T) {
	shutdown, handler, err := NewMetricsExporter(NoneMetricsExporter, time.Second)
	require.NoError(t, err)
	require.Nil(t, handler)
	require.NoError(t, shutdown(context.Background()))

	_, _, err = NewMetricsExporter(MetricsExporterType(9), time.Second)
	require.ErrorIs(t, err, ErrUnknownMetricsExporter)

	stop, err := ServeMetrics(context.Background(), "", nil, nil)
	require.NoError(t, err)
	require.NoError(t, stop(context.Background()))
}

func TestServeMetrics(t *testing.T) {
	_, handler, err := NewPrometheusMetricsExporter(promclient.NewRegistry())
	require.NoError(t, err)

	// Reserve a free port, then release it for the server.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	stop, err := ServeMetrics(context.Background(), addr, handler, nil)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, stop(context.Background()))
	}()

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeMetrics_AddrInUse(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	_, handler, err := NewPrometheusMetricsExporter(promclient.NewRegistry())
	require.NoError(t, err)

	stop, err := ServeMetrics(context.Background(), busy.Addr().String(), handler, nil)
	require.Error(t, err)
	require.Nil(t, stop)
}
