package xlog

import (
	"time"

	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// FxXLogger is the fxevent.Logger of the fx applications. The container
// wiring is logged at the debug level, the lifecycle at the info level.
type FxXLogger struct {
	logger XLogger
}

func (l *FxXLogger) hook(stage, fn, caller string, runtime time.Duration, err error) {
	fields := []zap.Field{
		zap.String("function", fn),
		zap.String("caller", caller),
		zap.Duration("runtime", runtime),
	}
	if err != nil {
		l.logger.Error(err, stage+" hook failed", fields...)
		return
	}
	l.logger.Debug(stage+" hook done", fields...)
}

func (l *FxXLogger) types(verb string, names []string, module string, err error, stack []string, fields ...zap.Field) {
	if module != "" {
		fields = append(fields, zap.String("module", module))
	}
	for _, name := range names {
		l.logger.Debug(verb, append(fields, zap.String("type", name))...)
	}
	if err != nil {
		l.logger.Error(err, verb+" failed", zap.Strings("stacktrace", stack))
	}
}

func (l *FxXLogger) LogEvent(event fxevent.Event) {
	if l == nil || l.logger == nil {
		return
	}

	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		l.logger.Debug("OnStart hook running",
			zap.String("function", e.FunctionName),
			zap.String("caller", e.CallerName),
		)
	case *fxevent.OnStartExecuted:
		l.hook("OnStart", e.FunctionName, e.CallerName, e.Runtime, e.Err)
	case *fxevent.OnStopExecuting:
		l.logger.Debug("OnStop hook running",
			zap.String("function", e.FunctionName),
			zap.String("caller", e.CallerName),
		)
	case *fxevent.OnStopExecuted:
		l.hook("OnStop", e.FunctionName, e.CallerName, e.Runtime, e.Err)
	case *fxevent.Supplied:
		l.types("supply", []string{e.TypeName}, e.ModuleName, e.Err, e.StackTrace)
	case *fxevent.Provided:
		l.types("provide", e.OutputTypeNames, e.ModuleName, e.Err, e.StackTrace,
			zap.String("constructor", e.ConstructorName),
			zap.Bool("private", e.Private),
		)
	case *fxevent.Replaced:
		l.types("replace", e.OutputTypeNames, e.ModuleName, e.Err, e.StackTrace)
	case *fxevent.Decorated:
		l.types("decorate", e.OutputTypeNames, e.ModuleName, e.Err, e.StackTrace,
			zap.String("decorator", e.DecoratorName),
		)
	case *fxevent.Invoking:
		fields := []zap.Field{zap.String("function", e.FunctionName)}
		if e.ModuleName != "" {
			fields = append(fields, zap.String("module", e.ModuleName))
		}
		l.logger.Debug("invoke", fields...)
	case *fxevent.Invoked:
		if e.Err != nil {
			l.logger.Error(e.Err, "invoke failed",
				zap.String("function", e.FunctionName),
				zap.String("trace", e.Trace),
			)
		}
	case *fxevent.Started:
		if e.Err != nil {
			l.logger.Error(e.Err, "app start failed")
			return
		}
		l.logger.Info("app started")
	case *fxevent.Stopping:
		l.logger.Info("app stopping", zap.String("signal", e.Signal.String()))
	case *fxevent.Stopped:
		if e.Err != nil {
			l.logger.Error(e.Err, "app stop failed")
		}
	case *fxevent.RollingBack:
		l.logger.Warn("app start failed, rolling back", zap.Error(e.StartErr))
	case *fxevent.RolledBack:
		if e.Err != nil {
			l.logger.Error(e.Err, "app roll back failed")
		}
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			l.logger.Error(e.Err, "fx logger init failed")
			return
		}
		l.logger.Debug("fx logger initialized", zap.String("constructor", e.ConstructorName))
	default:
	}
}

func NewFxXLogger(logger XLogger) *FxXLogger {
	l := &xLogger{}
	l.logger.Store(logger.
		zap().
		Named("Fx").
		WithOptions(zap.WrapCore(wrapComponentCore)),
	)
	return &FxXLogger{logger: l}
}
