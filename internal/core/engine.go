package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ritual/pkg/domain"
)

var (
	// ErrEngineStopped is returned by commands issued after the engine stopped.
	ErrEngineStopped = errors.New("engine stopped")
	// ErrEngineRunning is returned when Run is called twice.
	ErrEngineRunning = errors.New("engine already running")
)

// saveQueueSize bounds how many snapshots may wait for the save worker
// before the command loop blocks.
const saveQueueSize = 16

// Engine serializes every command through one goroutine. Saves capture a
// snapshot at their position in the command order and are written in that
// order by a separate worker, so commands keep flowing during a write.
type Engine struct {
	svc    *Service
	docs   domain.DocumentStore
	logger Logger

	cmds     chan command
	saves    chan saveRequest
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
}

type command struct {
	name  string
	apply func(ctx context.Context)
	reply chan struct{}
}

type saveRequest struct {
	state domain.State
	reply chan error
}

// NewEngine wires svc to docs. Call Run before issuing commands.
func NewEngine(svc *Service, docs domain.DocumentStore, opts ...Option) *Engine {
	cfg := applyOptions(opts)
	return &Engine{
		svc:    svc,
		docs:   docs,
		logger: cfg.logger,
		cmds:   make(chan command),
		saves:  make(chan saveRequest, saveQueueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Service returns the facade the engine drives.
func (e *Engine) Service() *Service { return e.svc }

// Run processes commands until ctx is cancelled or Stop is called. Saves
// already queued are written before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrEngineRunning
	}
	defer close(e.done)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(e.saves)
		return e.commandLoop(gctx)
	})
	g.Go(func() error {
		return e.saveLoop(context.WithoutCancel(ctx))
	})
	err := g.Wait()
	e.logger.Debug("engine stopped")
	return err
}

// Stop asks Run to return. It does not wait; use Done for that.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Done is closed once Run has returned.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Close closes the document store. Call it after Run returns.
func (e *Engine) Close() error {
	if e.docs == nil {
		return nil
	}
	return e.docs.Close()
}

func (e *Engine) commandLoop(ctx context.Context) error {
	e.logger.Debug("engine started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.stop:
			return nil
		case cmd := <-e.cmds:
			e.logger.Debug("applying command", "command", cmd.name)
			cmd.apply(ctx)
			close(cmd.reply)
		}
	}
}

func (e *Engine) saveLoop(ctx context.Context) error {
	for req := range e.saves {
		req.reply <- e.write(ctx, req.state)
	}
	return nil
}

func (e *Engine) write(ctx context.Context, state domain.State) error {
	if e.docs == nil {
		return domain.IOError("save", "", errors.New("no document store configured"))
	}
	err := e.docs.Save(ctx, state)
	if err != nil {
		e.logger.Error("save failed", "kind", domain.ErrorKind(err), "error", err)
	}
	return err
}

// submit hands fn to the command loop and waits until it has run. Once the
// loop accepts a command it always completes it.
func (e *Engine) submit(ctx context.Context, name string, fn func(ctx context.Context)) error {
	cmd := command{name: name, apply: fn, reply: make(chan struct{})}
	select {
	case e.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrEngineStopped
	}
	<-cmd.reply
	return nil
}

// NewDay queues "add day". A zero date means now.
func (e *Engine) NewDay(ctx context.Context, date time.Time) (domain.Day, error) {
	var (
		day domain.Day
		err error
	)
	if serr := e.submit(ctx, OpAddDay, func(ctx context.Context) {
		day, _, err = e.svc.AddDay(ctx, date)
	}); serr != nil {
		return domain.Day{}, serr
	}
	return day, err
}

// AddHabitToDay validates title, then queues "add habit to day". An empty
// title is rejected without reaching the aggregate.
func (e *Engine) AddHabitToDay(ctx context.Context, title string, dayID uuid.UUID) (domain.Habit, error) {
	valid, err := domain.NewNonEmptyString(title)
	if err != nil {
		return domain.Habit{}, err
	}
	var habit domain.Habit
	if serr := e.submit(ctx, OpAddHabitToDay, func(ctx context.Context) {
		habit, _, err = e.svc.AddHabitToDay(ctx, valid, dayID)
	}); serr != nil {
		return domain.Habit{}, serr
	}
	return habit, err
}

// SetHabitDone queues "set habit done".
func (e *Engine) SetHabitDone(ctx context.Context, dayID, habitID uuid.UUID, done bool) (domain.HabitRef, error) {
	var (
		ref domain.HabitRef
		err error
	)
	if serr := e.submit(ctx, OpSetHabitDone, func(ctx context.Context) {
		ref, _, err = e.svc.SetHabitDone(ctx, dayID, habitID, done)
	}); serr != nil {
		return domain.HabitRef{}, serr
	}
	return ref, err
}

// Save queues a snapshot of the state as of this point in the command order
// and waits until the worker has written it.
func (e *Engine) Save(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := e.submit(ctx, OpSave, func(context.Context) {
		e.saves <- saveRequest{state: e.svc.Snapshot(), reply: reply}
	}); err != nil {
		return err
	}
	return <-reply
}

// Reload queues a load of the stored document, replacing the in-memory
// state on success. A failed load leaves the state untouched.
func (e *Engine) Reload(ctx context.Context) error {
	if e.docs == nil {
		return domain.IOError("load", "", errors.New("no document store configured"))
	}
	var err error
	if serr := e.submit(ctx, OpLoad, func(ctx context.Context) {
		var state domain.State
		state, err = e.docs.Load(ctx)
		if err != nil {
			e.logger.Error("reload failed", "kind", domain.ErrorKind(err), "error", err)
			return
		}
		e.svc.Replace(state)
	}); serr != nil {
		return serr
	}
	return err
}

// Watch calls onChange whenever the stored document is rewritten by another
// process. Backends without change notification return ErrWatchUnsupported.
func (e *Engine) Watch(ctx context.Context, onChange func()) error {
	w, ok := e.docs.(Watcher)
	if !ok {
		return ErrWatchUnsupported
	}
	return w.Watch(ctx, onChange)
}

// Snapshot returns a deep copy of the committed state. It does not go
// through the command queue.
func (e *Engine) Snapshot() domain.State { return e.svc.Snapshot() }
