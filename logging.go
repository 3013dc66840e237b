package stores

import "time"

// ApplyLogEvent describes a Store.Apply call.
type ApplyLogEvent struct {
	Operations int
	Applied    int
	Duration   time.Duration
	Err        error
}

// ApplyLogger records store apply events.
type ApplyLogger interface {
	LogApply(ApplyLogEvent)
}

// ApplyLoggerFunc adapts a function to ApplyLogger.
type ApplyLoggerFunc func(ApplyLogEvent)

// LogApply implements ApplyLogger.
func (f ApplyLoggerFunc) LogApply(event ApplyLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopApplyLogger struct{}

func (noopApplyLogger) LogApply(ApplyLogEvent) {}

// ProcessLogEvent describes one executor run.
type ProcessLogEvent struct {
	ProcessID      string
	Commands       int
	CommandsRun    int
	Operations     int
	UndoOperations int
	Duration       time.Duration
	Err            error
	// HookErr holds activity hook failures; they never fail the execution.
	HookErr error
}

// ProcessLogger records process executions.
type ProcessLogger interface {
	LogProcess(ProcessLogEvent)
}

// ProcessLoggerFunc adapts a function to ProcessLogger.
type ProcessLoggerFunc func(ProcessLogEvent)

// LogProcess implements ProcessLogger.
func (f ProcessLoggerFunc) LogProcess(event ProcessLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopProcessLogger struct{}

func (noopProcessLogger) LogProcess(ProcessLogEvent) {}

// EvaluatorLogEvent describes one Process.Evaluate call, guards included.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Process  string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records rule evaluations.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

// HistoryLogEvent describes one undo or redo that reached the store.
type HistoryLogEvent struct {
	HistoryID  string
	Action     string
	Cursor     int
	Entries    int
	Operations int
	Err        error
	// HookErr holds activity hook failures; the undo or redo still stands.
	HookErr error
}

// HistoryLogger records undo and redo calls.
type HistoryLogger interface {
	LogHistory(HistoryLogEvent)
}

// HistoryLoggerFunc adapts a function to HistoryLogger.
type HistoryLoggerFunc func(HistoryLogEvent)

func (f HistoryLoggerFunc) LogHistory(event HistoryLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopHistoryLogger struct{}

func (noopHistoryLogger) LogHistory(HistoryLogEvent) {}
