package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/benz9527/xskl/observability"
	"github.com/benz9527/xskl/stress"
)

const envPrefix = "XSKL_"

type appConfig struct {
	Stress          stress.Config
	Phased          bool
	Metrics         observability.MetricsExporterType
	MetricsAddr     string
	MetricsInterval time.Duration
	LogLevel        string
	LogEncoder      string
}

func envName(flag string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// parseConfig reads the flags, then fills every flag left unset on the
// command line from its XSKL_ environment variable.
func parseConfig(args []string, getenv func(string) string) (*appConfig, error) {
	def := stress.DefaultConfig()
	fs := pflag.NewFlagSet("xskl-stress", pflag.ContinueOnError)
	var (
		variant    = fs.String("variant", def.Variant.String(), "skip list variant: full | insert-only")
		readers    = fs.Int("readers", def.Readers, "reader workers")
		writers    = fs.Int("writers", def.Writers, "writer workers")
		erasers    = fs.Int("erasers", def.Erasers, "eraser workers, full variant only")
		iterators  = fs.Int("iterators", def.Iterators, "iterator workers")
		keySpace   = fs.Uint32("key-space", def.KeySpace, "keys are drawn from [0, key-space)")
		duration   = fs.Duration("duration", def.Duration, "run duration, 0 runs until interrupted")
		seed       = fs.Uint64("seed", 0, "deterministic seed, 0 is random")
		phased     = fs.Bool("phased", false, "run the phased insert/erase/verify mode instead of the timed mode")
		metrics    = fs.String("metrics", "none", "metrics exporter: none | console | prometheus")
		metricAddr = fs.String("metrics-addr", ":9464", "prometheus listen address")
		interval   = fs.Duration("metrics-interval", 5*time.Second, "console exporter interval")
		logLevel   = fs.String("log-level", "info", "log level: debug | info | warn | error")
		logEncoder = fs.String("log-encoder", "plain", "log encoder: json | plain")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	var envErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed || envErr != nil {
			return
		}
		if v := strings.TrimSpace(getenv(envName(f.Name))); v != "" {
			if err := fs.Set(f.Name, v); err != nil {
				envErr = fmt.Errorf("%s: %w", envName(f.Name), err)
			}
		}
	})
	if envErr != nil {
		return nil, envErr
	}

	cfg := &appConfig{
		Stress: stress.Config{
			Readers:   *readers,
			Writers:   *writers,
			Erasers:   *erasers,
			Iterators: *iterators,
			KeySpace:  *keySpace,
			Duration:  *duration,
			Seed:      *seed,
			StatsName: "stress",
		},
		Phased:          *phased,
		MetricsAddr:     *metricAddr,
		MetricsInterval: *interval,
		LogLevel:        *logLevel,
		LogEncoder:      *logEncoder,
	}
	var err error
	if cfg.Stress.Variant, err = stress.ParseVariant(*variant); err != nil {
		return nil, err
	}
	if cfg.Stress.Variant == stress.VariantInsertOnly && !fs.Changed("erasers") {
		cfg.Stress.Erasers = 0
	}
	if cfg.Metrics, err = observability.ParseMetricsExporterType(*metrics); err != nil {
		return nil, err
	}
	if err = cfg.Stress.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
