package xlog

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConsoleCore(t *testing.T) {
	lvlEnabler := zap.NewAtomicLevelAt(LogLevelDebug.zapLevel())
	cc := newConsoleCore(
		&lvlEnabler,
		JSON,
		logOutWriterType(99),
		zapcore.CapitalLevelEncoder,
		zapcore.ISO8601TimeEncoder,
	)
	require.Nil(t, cc)

	cc = newConsoleCore(
		&lvlEnabler,
		JSON,
		StdOut,
		zapcore.CapitalLevelEncoder,
		zapcore.ISO8601TimeEncoder,
	)
	require.NotNil(t, cc.outEncoder())
	require.NotNil(t, cc.writeSyncer())
	require.NotNil(t, cc.levelEncoder())
	require.NotNil(t, cc.timeEncoder())

	require.True(t, cc.Enabled(zapcore.DebugLevel))
	lvlEnabler.SetLevel(zapcore.ErrorLevel)
	require.False(t, cc.Enabled(zapcore.DebugLevel))
	require.False(t, cc.Enabled(zapcore.WarnLevel))
	require.True(t, cc.Enabled(zapcore.ErrorLevel))
	require.Nil(t, cc.Check(zapcore.Entry{Level: zapcore.InfoLevel}, nil))
	require.NotNil(t, cc.Check(zapcore.Entry{Level: zapcore.ErrorLevel}, nil))

	// The wrapped core follows the parent level.
	wrapped, err := WrapCore(cc, componentCoreEncoderCfg)
	require.NoError(t, err)
	require.False(t, wrapped.Enabled(zapcore.InfoLevel))
	lvlEnabler.SetLevel(zapcore.DebugLevel)
	require.True(t, wrapped.Enabled(zapcore.InfoLevel))

	_, err = WrapCore(nil, componentCoreEncoderCfg)
	require.Error(t, err)
}

func TestXLogMultiCore_DataRace(t *testing.T) {
	w1, w2 := &testMemOutWriter{}, &testMemOutWriter{}
	lvl1 := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	lvl2 := zap.NewAtomicLevelAt(zapcore.WarnLevel)

	registerOutWriter(testMemAsOut, w1)
	c1 := newConsoleCore(&lvl1, JSON, testMemAsOut, zapcore.CapitalLevelEncoder, zapcore.ISO8601TimeEncoder)
	registerOutWriter(testMemAsOut, w2)
	c2 := newConsoleCore(&lvl2, JSON, testMemAsOut, zapcore.CapitalLevelEncoder, zapcore.ISO8601TimeEncoder)

	tee := XLogTeeCore(c1, c2)
	require.Nil(t, tee.writeSyncer())
	require.Nil(t, tee.levelEncoder())
	require.Nil(t, tee.timeEncoder())
	require.Nil(t, tee.outEncoder())
	require.True(t, tee.Enabled(zapcore.DebugLevel))

	logger := zap.New(tee)
	var wg sync.WaitGroup
	wg.Add(2)
	for g := 0; g < 2; g++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				logger.Debug("debug", zap.String("g", strconv.Itoa(id)))
				logger.Warn("warn", zap.String("g", strconv.Itoa(id)))
			}
		}(g)
	}
	wg.Wait()
	require.NoError(t, tee.Sync())
	require.Len(t, w1.lines(), 400)
	require.Len(t, w2.lines(), 200)

	child := tee.With([]zap.Field{zap.String("k", "v")})
	require.True(t, child.Enabled(zapcore.WarnLevel))
}

func TestWrapComponentCore(t *testing.T) {
	require.Panics(t, func() { wrapComponentCore(nil) })
	require.Panics(t, func() { wrapComponentCore(zapcore.NewNopCore()) })

	lvl := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	w := &testMemOutWriter{}
	registerOutWriter(testMemAsOut, w)
	cc := newConsoleCore(&lvl, JSON, testMemAsOut, zapcore.CapitalLevelEncoder, zapcore.ISO8601TimeEncoder)
	for _, core := range []zapcore.Core{cc, XLogTeeCore(cc)} {
		wrapped := wrapComponentCore(core)
		_, ok := wrapped.(XLogCore)
		require.True(t, ok)
		zap.New(wrapped).Named("component").Info("hi")
	}
	lines := w.jsonLines(t)
	require.Len(t, lines, 2)
	require.Equal(t, "component", lines[0]["component"])
	require.NotContains(t, lines[0], "callAt")
}
