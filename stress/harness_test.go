package stress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewHarness_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeySpace = 0
	_, err := NewHarness(cfg, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestHarness_RunPhased(t *testing.T) {
	testcases := []struct {
		name         string
		variant      Variant
		erasers      int
		expectedLive uint64
	}{
		{"full", VariantFull, 3, 2048},
		{"insert-only", VariantInsertOnly, 0, 4096},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			cfg := Config{
				Variant:  tc.variant,
				Readers:  2,
				Writers:  4,
				Erasers:  tc.erasers,
				KeySpace: 4096,
				Seed:     7,
			}
			h, err := NewHarness(cfg, nil)
			require.NoError(tt, err)
			report, err := h.RunPhased(context.Background())
			require.NoError(tt, err)
			require.False(tt, report.Failed(), "%v", report.Err())
			require.Equal(tt, uint64(4096), report.Inserts)
			require.Equal(tt, uint64(4096)-tc.expectedLive, report.Erases)
			require.Equal(tt, tc.expectedLive, report.Expected)
			require.Equal(tt, int64(tc.expectedLive), report.Len)
			require.Equal(tt, uint64(4096), report.Reads)
			require.GreaterOrEqual(tt, report.Levels, int32(1))

			for key := uint32(0); key < 4096; key++ {
				expected := tc.variant == VariantInsertOnly || key&1 == 1
				require.Equal(tt, expected, h.Structure().Contains(key), key)
			}
		})
	}
}

func TestHarness_Run(t *testing.T) {
	testcases := []struct {
		name    string
		variant Variant
		erasers int
	}{
		{"full", VariantFull, 3},
		{"insert-only", VariantInsertOnly, 0},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			cfg := Config{
				Variant:   tc.variant,
				Readers:   3,
				Writers:   3,
				Erasers:   tc.erasers,
				Iterators: 2,
				KeySpace:  512,
				Duration:  300 * time.Millisecond,
			}
			h, err := NewHarness(cfg, nil)
			require.NoError(tt, err)
			report, err := h.Run(context.Background())
			require.NoError(tt, err)
			require.False(tt, report.Failed(), "%v", report.Err())
			require.Greater(tt, report.Inserts, uint64(0))
			require.Greater(tt, report.Reads, uint64(0))
			require.Greater(tt, report.Scans, uint64(0))
			require.Equal(tt, int64(report.Expected), report.Len)
			if tc.variant == VariantFull {
				require.Greater(tt, report.Erases, uint64(0))
				require.Equal(tt, report.Inserts-report.Erases, report.Expected)
			} else {
				require.Equal(tt, uint64(0), report.Erases)
				require.Equal(tt, 0, report.FreeListLen)
				require.Equal(tt, report.Inserts, report.Expected)
			}
		})
	}
}

func TestHarness_RunCancelled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeySpace = 256
	cfg.Duration = 0
	h, err := NewHarness(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	report, err := h.Run(ctx)
	require.NoError(t, err)
	require.False(t, report.Failed(), "%v", report.Err())
}

func TestHarness_DetectsViolations(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cfg := DefaultConfig()
	cfg.KeySpace = 64
	h, err := NewHarness(cfg, nil)
	require.NoError(t, err)

	// Keys changed behind the oracle.
	require.True(t, h.Structure().Insert(5))
	require.True(t, h.Structure().Insert(9))
	h.oracle.release(11, keyInserted)

	report := h.report(time.Millisecond)
	require.True(t, report.Failed())
	require.Equal(t, uint64(2), report.TotalViolations)
	errs := multierr.Errors(report.Err())
	require.Len(t, errs, 2)
	for _, err := range errs {
		require.ErrorIs(t, err, ErrViolation)
	}
	require.Contains(t, errs[0].Error(), "1 expected keys missing, smallest 11")
	require.Contains(t, errs[1].Error(), "2 unexpected keys present, smallest 5")

	zap.New(core).Info("report", zap.Object("report", report))
	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()["report"].(map[string]any)
	require.Equal(t, "full", fields["variant"])
	require.Equal(t, uint64(2), fields["violations"])
	require.Len(t, fields["violationDetails"], 2)
}
