package list

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	XSklStatsName = "xskl"
)

var (
	xSklOutcomeOk          = attribute.NewSet(attribute.String("xskl.outcome", "ok"))
	xSklOutcomeExists      = attribute.NewSet(attribute.String("xskl.outcome", "exists"))
	xSklOutcomeNotFound    = attribute.NewSet(attribute.String("xskl.outcome", "not_found"))
	xSklOutcomeAllocFailed = attribute.NewSet(attribute.String("xskl.outcome", "alloc_failed"))
)

type xSklStatsSource interface {
	Len() int64
	Levels() int32
	FreeListLen() int
}

type xSklStats struct {
	insertCount   metric.Int64Counter
	eraseCount    metric.Int64Counter
	casRetryCount metric.Int64Counter
	evictedCount  metric.Int64Counter
	length        metric.Int64ObservableGauge
	levels        metric.Int64ObservableGauge
	freeListLen   metric.Int64ObservableGauge
}

func outcomeAttributeSet(err error) attribute.Set {
	switch {
	case err == nil:
		return xSklOutcomeOk
	case errors.Is(err, ErrXSklKeyExists):
		return xSklOutcomeExists
	case errors.Is(err, ErrXSklNotFound):
		return xSklOutcomeNotFound
	default:
	}
	return xSklOutcomeAllocFailed
}

func (stats *xSklStats) RecordInsert(err error) {
	if stats == nil {
		return
	}
	stats.insertCount.Add(context.Background(), 1, metric.WithAttributeSet(outcomeAttributeSet(err)))
}

func (stats *xSklStats) RecordErase(err error) {
	if stats == nil {
		return
	}
	stats.eraseCount.Add(context.Background(), 1, metric.WithAttributeSet(outcomeAttributeSet(err)))
}

func (stats *xSklStats) IncreaseCASRetryCount() {
	if stats == nil {
		return
	}
	stats.casRetryCount.Add(context.Background(), 1)
}

func (stats *xSklStats) IncreaseEvictedCount() {
	if stats == nil {
		return
	}
	stats.evictedCount.Add(context.Background(), 1)
}

func newXSklStats(name string, src xSklStatsSource) *xSklStats {
	meterName := XSklStatsName
	if name != "" {
		meterName = fmt.Sprintf("%s/%s", XSklStatsName, name)
	}
	meter := otel.Meter(meterName)
	return &xSklStats{
		insertCount: lo.Must[metric.Int64Counter](meter.
			Int64Counter(
				"xskl.insert.count",
				metric.WithDescription("The number of insert calls, by outcome."),
			),
		),
		eraseCount: lo.Must[metric.Int64Counter](meter.
			Int64Counter(
				"xskl.erase.count",
				metric.WithDescription("The number of erase calls, by outcome."),
			),
		),
		casRetryCount: lo.Must[metric.Int64Counter](meter.
			Int64Counter(
				"xskl.cas.retry.count",
				metric.WithDescription("The number of failed link CAS that forced a retry."),
			),
		),
		evictedCount: lo.Must[metric.Int64Counter](meter.
			Int64Counter(
				"xskl.freelist.evicted.count",
				metric.WithDescription("The number of unlinked nodes evicted from the free list."),
			),
		),
		length: lo.Must[metric.Int64ObservableGauge](meter.
			Int64ObservableGauge(
				"xskl.length",
				metric.WithDescription("The number of live keys."),
				metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
					ob.Observe(src.Len())
					return nil
				}),
			),
		),
		levels: lo.Must[metric.Int64ObservableGauge](meter.
			Int64ObservableGauge(
				"xskl.levels",
				metric.WithDescription("The level hint."),
				metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
					ob.Observe(int64(src.Levels()))
					return nil
				}),
			),
		),
		freeListLen: lo.Must[metric.Int64ObservableGauge](meter.
			Int64ObservableGauge(
				"xskl.freelist.length",
				metric.WithDescription("The number of unlinked nodes waiting for reclamation."),
				metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
					ob.Observe(int64(src.FreeListLen()))
					return nil
				}),
			),
		),
	}
}
