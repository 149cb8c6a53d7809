package stress

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

const (
	MaxKeySpace          = 1 << 24
	defaultKeySpace      = 1 << 16
	defaultDuration      = 10 * time.Second
	maxViolationsTracked = 64
)

var (
	ErrInvalidConfig  = errors.New("[stress] invalid config")
	ErrViolation      = errors.New("[stress] violation")
	ErrUnknownVariant = errors.New("[stress] unknown variant")
)

type Variant uint8

const (
	VariantFull Variant = iota
	VariantInsertOnly
)

func (v Variant) String() string {
	switch v {
	case VariantFull:
		return "full"
	case VariantInsertOnly:
		return "insert-only"
	default:
	}
	return "unknown"
}

func ParseVariant(name string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "full", "lock-free", "lf":
		return VariantFull, nil
	case "insert-only", "insertonly", "io":
		return VariantInsertOnly, nil
	default:
	}
	return VariantFull, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
}

type Config struct {
	Variant   Variant
	Readers   int
	Writers   int
	Erasers   int
	Iterators int
	// KeySpace bounds the keys to [0, KeySpace).
	KeySpace uint32
	Duration time.Duration
	// Seed drives the workers' key picking and the level generator.
	// Zero means crypto random.
	Seed      uint64
	StatsName string
}

func DefaultConfig() Config {
	return Config{
		Variant:   VariantFull,
		Readers:   4,
		Writers:   4,
		Erasers:   2,
		Iterators: 1,
		KeySpace:  defaultKeySpace,
		Duration:  defaultDuration,
	}
}

func (cfg *Config) Workers() int {
	return cfg.Readers + cfg.Writers + cfg.Erasers + cfg.Iterators
}

func (cfg *Config) Validate() error {
	var err error
	if cfg.Readers < 0 || cfg.Writers < 0 || cfg.Erasers < 0 || cfg.Iterators < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: negative worker count", ErrInvalidConfig))
	}
	if cfg.Workers() <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: no workers", ErrInvalidConfig))
	}
	if cfg.Variant != VariantFull && cfg.Variant != VariantInsertOnly {
		err = multierr.Append(err, fmt.Errorf("%w: %d", ErrUnknownVariant, cfg.Variant))
	}
	if cfg.Variant == VariantInsertOnly && cfg.Erasers > 0 {
		err = multierr.Append(err, fmt.Errorf("%w: insert-only variant has no erasers", ErrInvalidConfig))
	}
	if cfg.KeySpace == 0 || cfg.KeySpace > MaxKeySpace {
		err = multierr.Append(err, fmt.Errorf("%w: key space %d out of (0, %d]", ErrInvalidConfig, cfg.KeySpace, MaxKeySpace))
	}
	if cfg.Duration < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: negative duration", ErrInvalidConfig))
	}
	return err
}
