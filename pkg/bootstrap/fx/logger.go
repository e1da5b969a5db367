package fx

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"go.uber.org/fx/fxevent"
)

// CharmLogger adapts charmbracelet log.Logger to fx's fxevent.Logger interface.
type CharmLogger struct {
	logger *log.Logger
}

// NewCharmLogger tags every fx event with component=fx.
func NewCharmLogger(logger *log.Logger) fxevent.Logger {
	return &CharmLogger{logger: logger.With("component", "fx")}
}

// hook logs a lifecycle hook result at error level when it failed.
func (l *CharmLogger) hook(kind, function, caller string, err error, runtime fmt.Stringer) {
	if err != nil {
		l.logger.Error("[Fx] "+kind+" failed", "function", function, "caller", caller, "error", err, "runtime", runtime)
		return
	}
	l.logger.Info("[Fx] "+kind, "function", function, "caller", caller, "runtime", runtime)
}

// LogEvent implements fxevent.Logger.
func (l *CharmLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuted:
		l.hook("OnStart", e.FunctionName, e.CallerName, e.Err, e.Runtime)
	case *fxevent.OnStopExecuted:
		l.hook("OnStop", e.FunctionName, e.CallerName, e.Err, e.Runtime)
	case *fxevent.Provided:
		if e.Err != nil {
			l.logger.Error("[Fx] provide failed", "constructor", e.ConstructorName, "error", e.Err)
			return
		}
		l.logger.Debug("[Fx] provide", "constructor", e.ConstructorName, "module", e.ModuleName, "type", e.OutputTypeNames)
	case *fxevent.Invoked:
		if e.Err != nil {
			l.logger.Error("[Fx] invoke failed", "function", e.FunctionName, "error", e.Err)
			return
		}
		l.logger.Debug("[Fx] invoke", "function", e.FunctionName, "module", e.ModuleName)
	case *fxevent.Started:
		if e.Err != nil {
			l.logger.Error("[Fx] start failed", "error", e.Err)
			return
		}
		l.logger.Info("[Fx] running")
	case *fxevent.Stopping:
		l.logger.Info("[Fx] stopping", "signal", strings.ToUpper(e.Signal.String()))
	case *fxevent.Stopped:
		if e.Err != nil {
			l.logger.Error("[Fx] stop failed", "error", e.Err)
			return
		}
		l.logger.Info("[Fx] stopped")
	case *fxevent.OnStartExecuting, *fxevent.OnStopExecuting, *fxevent.Supplied:
		return
	default:
		l.logger.Debug("[Fx] event", "type", strings.TrimPrefix(fmt.Sprintf("%T", e), "*fxevent."))
	}
}
