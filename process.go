package stores

import (
	"context"
	"time"

	"github.com/goliatone/go-stores/pkg/activity"
	"github.com/google/uuid"
)

// Process is an ordered list of commands. It holds no store state and can be
// bound to any number of stores.
type Process struct {
	id       string
	commands []Command
	cfg      processConfig
}

// ProcessOption configures a Process.
type ProcessOption func(*processConfig)

type processConfig struct {
	evaluator     Evaluator
	programCache  ProgramCache
	functions     *FunctionRegistry
	evalLogger    EvaluatorLogger
	guards        []string
	callback      ProcessCallback
	decorators    []CallbackDecorator
	logger        ProcessLogger
	activityHooks activity.Hooks
	channel       string
	actorID       string
	tenantID      string
}

// ProcessCallback observes the outcome of one execution. It receives the
// accumulated result and the first error, if any.
type ProcessCallback func(ProcessResult, error)

// CallbackDecorator wraps a ProcessCallback.
type CallbackDecorator func(ProcessCallback) ProcessCallback

// ProcessFactory builds processes sharing preconfigured options.
type ProcessFactory func(id string, commands []Command, opts ...ProcessOption) *Process

// Executor runs a bound process against its store.
type Executor func(ctx context.Context, payload any) (ProcessResult, error)

// ProcessResult accumulates what an execution did to the store.
type ProcessResult struct {
	ID             string
	Payload        any
	Store          *Store
	Operations     []Operation
	UndoOperations []Operation
	// Undo reverts the execution. Collectors may replace it with a version
	// that also updates their own bookkeeping.
	Undo func() error
}

// WithCallback sets the callback fired once per execution.
func WithCallback(cb ProcessCallback) ProcessOption {
	return func(cfg *processConfig) {
		cfg.callback = cb
	}
}

// WithCallbackDecorators wraps the callback; the first decorator is the
// outermost one.
func WithCallbackDecorators(decorators ...CallbackDecorator) ProcessOption {
	return func(cfg *processConfig) {
		for _, decorator := range decorators {
			if decorator != nil {
				cfg.decorators = append(cfg.decorators, decorator)
			}
		}
	}
}

// WithGuard adds an expression that must evaluate to true against the store
// snapshot before any command runs.
func WithGuard(expr string) ProcessOption {
	return func(cfg *processConfig) {
		if expr != "" {
			cfg.guards = append(cfg.guards, expr)
		}
	}
}

// WithEvaluator configures the evaluator used by guards. The default is the
// expr evaluator.
func WithEvaluator(e Evaluator) ProcessOption {
	return func(cfg *processConfig) {
		cfg.evaluator = e
	}
}

// WithProcessLogger attaches a logger notified after every execution.
func WithProcessLogger(logger ProcessLogger) ProcessOption {
	return func(cfg *processConfig) {
		cfg.logger = logger
	}
}

// WithEvaluatorLogger attaches a logger notified after every guard and
// Evaluate call.
func WithEvaluatorLogger(logger EvaluatorLogger) ProcessOption {
	return func(cfg *processConfig) {
		cfg.evalLogger = logger
	}
}

// WithActivityHooks emits process lifecycle events to hooks. Nil entries are
// dropped.
func WithActivityHooks(hooks activity.Hooks) ProcessOption {
	normalized := activity.Compact(hooks)
	return func(cfg *processConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityActor sets the actor and tenant stamped on emitted events.
func WithActivityActor(actorID, tenantID string) ProcessOption {
	return func(cfg *processConfig) {
		cfg.actorID = actorID
		cfg.tenantID = tenantID
	}
}

// WithActivityChannel overrides the channel stamped on emitted events.
func WithActivityChannel(channel string) ProcessOption {
	return func(cfg *processConfig) {
		cfg.channel = channel
	}
}

// NewProcess builds a process. An empty id is replaced with a random UUID.
func NewProcess(id string, commands []Command, opts ...ProcessOption) *Process {
	if id == "" {
		id = uuid.NewString()
	}
	cfg := processConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = noopProcessLogger{}
	}
	if cfg.evalLogger == nil {
		cfg.evalLogger = noopEvaluatorLogger{}
	}
	cfg.evaluator = resolveEvaluator(cfg)
	return &Process{
		id:       id,
		commands: append([]Command(nil), commands...),
		cfg:      cfg,
	}
}

// NewProcessFactoryWith returns a constructor whose processes carry
// decorators outside any decorators passed per process.
func NewProcessFactoryWith(decorators ...CallbackDecorator) ProcessFactory {
	shared := append([]CallbackDecorator(nil), decorators...)
	return func(id string, commands []Command, opts ...ProcessOption) *Process {
		all := make([]ProcessOption, 0, len(opts)+1)
		all = append(all, WithCallbackDecorators(shared...))
		all = append(all, opts...)
		return NewProcess(id, commands, all...)
	}
}

// ID returns the process identifier.
func (p *Process) ID() string {
	return p.id
}

// Bind returns an executor running p against store.
func (p *Process) Bind(store *Store) Executor {
	return func(ctx context.Context, payload any) (ProcessResult, error) {
		return p.execute(ctx, store, payload)
	}
}

func (p *Process) execute(ctx context.Context, store *Store, payload any) (ProcessResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	result := ProcessResult{ID: p.id, Payload: payload, Store: store}
	run, err := p.run(ctx, store, &result)

	undo := result.UndoOperations
	result.Undo = func() error {
		if store == nil {
			return ErrNilStore
		}
		_, err := store.Apply(undo, true)
		return err
	}

	hookErr := p.emit(ctx, result, err)
	p.cfg.logger.LogProcess(ProcessLogEvent{
		ProcessID:      p.id,
		Commands:       len(p.commands),
		CommandsRun:    run,
		Operations:     len(result.Operations),
		UndoOperations: len(result.UndoOperations),
		Duration:       time.Since(start),
		Err:            err,
		HookErr:        hookErr,
	})
	p.callback()(result, err)
	return result, err
}

// run executes the commands in order, applying each patch before the next
// command starts. Nothing is unwound on failure.
func (p *Process) run(ctx context.Context, store *Store, result *ProcessResult) (int, error) {
	if store == nil {
		return 0, ErrNilStore
	}
	if err := p.checkGuards(store, result.Payload); err != nil {
		return 0, err
	}
	req := CommandRequest{store: store, Payload: result.Payload, ProcessID: p.id}
	run := 0
	for _, command := range p.commands {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		run++
		if command == nil {
			continue
		}
		ops, err := command(ctx, req)
		if err != nil {
			return run, err
		}
		undo, applied, err := store.apply(ops, true)
		result.Operations = append(result.Operations, ops[:applied]...)
		result.UndoOperations = append(undo, result.UndoOperations...)
		if err != nil {
			return run, err
		}
	}
	return run, nil
}

func (p *Process) callback() ProcessCallback {
	cb := p.cfg.callback
	if cb == nil {
		cb = func(ProcessResult, error) {}
	}
	for i := len(p.cfg.decorators) - 1; i >= 0; i-- {
		cb = p.cfg.decorators[i](cb)
	}
	return cb
}

func (p *Process) emit(ctx context.Context, result ProcessResult, err error) error {
	emitter := activity.NewEmitter(p.cfg.activityHooks, activity.Config{
		Enabled:  true,
		Channel:  p.cfg.channel,
		ActorID:  p.cfg.actorID,
		TenantID: p.cfg.tenantID,
	})
	if !emitter.Enabled() {
		return nil
	}
	input := activity.ProcessEventInput{
		ProcessID:      p.id,
		Operations:     len(result.Operations),
		UndoOperations: len(result.UndoOperations),
		Err:            err,
	}
	if err != nil {
		return emitter.Emit(ctx, activity.BuildProcessFailedEvent(input))
	}
	return emitter.Emit(ctx, activity.BuildProcessExecutedEvent(input))
}
