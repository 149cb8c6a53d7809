package stress

import (
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

type Report struct {
	Variant  Variant
	Elapsed  time.Duration
	Inserts  uint64
	Erases   uint64
	Reads    uint64
	Scans    uint64
	Idle     uint64
	Len      int64
	Expected uint64
	Levels   int32
	// FreeListLen is always zero for the insert-only variant.
	FreeListLen int
	RSS         uint64
	// TotalViolations counts every violation, Violations keeps the first ones.
	TotalViolations uint64
	Violations      error
}

var _ zapcore.ObjectMarshaler = (*Report)(nil)

func (r *Report) Failed() bool {
	return r != nil && r.TotalViolations > 0
}

func (r *Report) Err() error {
	if r == nil {
		return nil
	}
	return r.Violations
}

func (r *Report) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	if r == nil {
		return nil
	}
	enc.AddString("variant", r.Variant.String())
	enc.AddDuration("elapsed", r.Elapsed)
	enc.AddUint64("inserts", r.Inserts)
	enc.AddUint64("erases", r.Erases)
	enc.AddUint64("reads", r.Reads)
	enc.AddUint64("scans", r.Scans)
	enc.AddUint64("idle", r.Idle)
	enc.AddInt64("len", r.Len)
	enc.AddUint64("expected", r.Expected)
	enc.AddInt32("levels", r.Levels)
	enc.AddInt("freeListLen", r.FreeListLen)
	enc.AddUint64("rss", r.RSS)
	enc.AddUint64("violations", r.TotalViolations)
	if r.Violations != nil {
		errs := multierr.Errors(r.Violations)
		msgs := make([]string, 0, len(errs))
		for _, err := range errs {
			msgs = append(msgs, err.Error())
		}
		return enc.AddArray("violationDetails", zapcore.ArrayMarshalerFunc(func(arr zapcore.ArrayEncoder) error {
			for _, msg := range msgs {
				arr.AppendString(msg)
			}
			return nil
		}))
	}
	return nil
}
