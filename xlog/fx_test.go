package xlog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxevent"
)

func TestFxXLogger(t *testing.T) {
	var nilLogger *FxXLogger
	nilLogger.LogEvent(&fxevent.Started{})

	parentLogger, w := newTestMemXLogger(t, WithXLoggerLevel(LogLevelDebug))
	logger := NewFxXLogger(parentLogger)
	logger.LogEvent(&fxevent.Invoking{FunctionName: "main.run"})
	logger.LogEvent(&fxevent.Provided{
		ConstructorName: "main.newHarness",
		OutputTypeNames: []string{"*stress.Harness", "error"},
	})
	logger.LogEvent(&fxevent.OnStartExecuted{FunctionName: "main.runStress", Err: errors.New("boom")})
	logger.LogEvent(&fxevent.Started{})
	logger.LogEvent(&fxevent.Stopping{Signal: syscallInterrupt{}})

	lines := w.jsonLines(t)
	require.Len(t, lines, 6)
	require.Equal(t, "invoke", lines[0]["msg"])
	require.Equal(t, "main.run", lines[0]["function"])
	require.Equal(t, "Fx", lines[0]["component"])
	require.Equal(t, "provide", lines[1]["msg"])
	require.Equal(t, "*stress.Harness", lines[1]["type"])
	require.Equal(t, "main.newHarness", lines[1]["constructor"])
	require.Equal(t, "error", lines[2]["type"])
	require.Equal(t, "OnStart hook failed", lines[3]["msg"])
	require.Equal(t, "boom", lines[3]["error"])
	require.Equal(t, "app started", lines[4]["msg"])
	require.Equal(t, "interrupt", lines[5]["signal"])
}

type syscallInterrupt struct{}

func (syscallInterrupt) String() string { return "interrupt" }
func (syscallInterrupt) Signal()        {}
