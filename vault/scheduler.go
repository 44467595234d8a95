package vault

import (
	"context"
	"sync"
)

// Operation is one lifecycle request. The set is closed: Open, Save,
// Close, ChangePassphrase, Export and Import.
type Operation interface {
	Name() string
	run(ctx context.Context, v *Vault) error
}

type Open struct{ Passphrase string }

type Save struct{}

type Close struct{}

type ChangePassphrase struct{ Old, New string }

type Export struct{ Passphrase, Path string }

type Import struct {
	Passphrase string
	Source     Source
	Mode       ImportMode
}

func (Open) Name() string             { return "open" }
func (Save) Name() string             { return "save" }
func (Close) Name() string            { return "close" }
func (ChangePassphrase) Name() string { return "change" }
func (Export) Name() string           { return "export" }

func (o Import) Name() string { return "import-" + o.Mode.String() }

func (o Open) run(ctx context.Context, v *Vault) error { return v.Open(ctx, o.Passphrase) }
func (Save) run(ctx context.Context, v *Vault) error   { return v.Save(ctx) }
func (Close) run(ctx context.Context, v *Vault) error  { return v.Close(ctx) }

func (o ChangePassphrase) run(ctx context.Context, v *Vault) error {
	return v.ChangePassphrase(ctx, o.Old, o.New)
}

func (o Export) run(ctx context.Context, v *Vault) error {
	return v.Export(ctx, o.Passphrase, o.Path)
}

func (o Import) run(ctx context.Context, v *Vault) error {
	return v.Import(ctx, o.Passphrase, o.Source, o.Mode)
}

// Callback receives exactly one outcome per submitted operation, on the
// scheduler's worker goroutine.
type Callback interface {
	OnSuccess(v *Vault)
	OnFailure(err error)
}

// CallbackFuncs adapts two funcs to Callback. Nil funcs are skipped.
type CallbackFuncs struct {
	Success func(v *Vault)
	Failure func(err error)
}

func (c CallbackFuncs) OnSuccess(v *Vault) {
	if c.Success != nil {
		c.Success(v)
	}
}

func (c CallbackFuncs) OnFailure(err error) {
	if c.Failure != nil {
		c.Failure(err)
	}
}

type job struct {
	op Operation
	cb Callback
}

// Scheduler runs operations against one Vault on a single worker
// goroutine, in submission order, one at a time. Running operations are
// never cancelled.
type Scheduler struct {
	vault *Vault
	jobs  chan job

	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
}

const DefaultQueueSize = 8

// NewScheduler starts the worker. queueSize bounds pending operations;
// values below 1 use DefaultQueueSize.
func NewScheduler(v *Vault, queueSize int) *Scheduler {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	s := &Scheduler{
		vault: v,
		jobs:  make(chan job, queueSize),
		done:  make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Scheduler) Vault() *Vault { return s.vault }

func (s *Scheduler) loop() {
	defer close(s.done)
	for j := range s.jobs {
		s.execute(j)
	}
}

func (s *Scheduler) execute(j job) {
	ctx := context.Background()
	log := s.vault.log.With("op", j.op.Name())

	log.Debug(ctx, "operation started")
	err := j.op.run(ctx, s.vault)
	s.vault.hint("")
	if err != nil {
		log.Warn(ctx, "operation failed", "error", err)
		if j.cb != nil {
			j.cb.OnFailure(err)
		}
		return
	}
	log.Debug(ctx, "operation finished")
	if j.cb != nil {
		j.cb.OnSuccess(s.vault)
	}
}

// Submit queues op. It does not block: a full queue returns ErrQueueFull.
func (s *Scheduler) Submit(op Operation, cb Callback) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return ErrSchedulerStopped
	}
	select {
	case s.jobs <- job{op: op, cb: cb}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do submits op and waits for its outcome. Cancelling ctx stops the wait,
// not the operation.
func (s *Scheduler) Do(ctx context.Context, op Operation) (*Vault, error) {
	type result struct {
		v   *Vault
		err error
	}
	res := make(chan result, 1)
	cb := CallbackFuncs{
		Success: func(v *Vault) { res <- result{v: v} },
		Failure: func(err error) { res <- result{err: err} },
	}
	if err := s.Submit(op, cb); err != nil {
		return nil, err
	}
	select {
	case r := <-res:
		return r.v, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown stops accepting work and waits for queued operations to finish.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.jobs)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
