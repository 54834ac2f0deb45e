package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/ytget/stream-downloader/internal/model"
)

const (
	// DefaultStoreTimeout bounds every record store call made by the loop
	DefaultStoreTimeout = 5 * time.Second

	// DefaultShutdownGrace is how long Run waits for terminated workers to exit.
	// It outlasts the runner's own kill delay.
	DefaultShutdownGrace = 10 * time.Second

	// Buffered so progress samples rarely get dropped while the loop is busy
	commandBuffer = 64

	interruptedDetail = "download interrupted by restart"
)

// ErrStopped is returned by calls made after Run has returned
var ErrStopped = errors.New("dispatcher is not running")

// Dispatcher runs queued downloads with a concurrency cap
type Dispatcher struct {
	store    Store
	runner   ProcessRunner
	settings Settings
	notifier Notifier
	log      *slog.Logger

	storeTimeout  time.Duration
	shutdownGrace time.Duration
	now           func() time.Time

	cmds chan func()
	done chan struct{}

	// Owned by the Run goroutine
	ctx         context.Context
	tasks       map[int64]*model.Task
	queue       []int64
	running     int
	maxParallel int
	closing     bool
}

// NewDispatcher creates a dispatcher. Nothing runs until Run is called.
func NewDispatcher(log *slog.Logger, store Store, runner ProcessRunner, settings Settings, notifier Notifier, maxParallel int) *Dispatcher {
	return &Dispatcher{
		store:        store,
		runner:       runner,
		settings:     settings,
		notifier:     notifier,
		log:          log.With(slog.String("service", "dispatcher")),
		storeTimeout:  DefaultStoreTimeout,
		shutdownGrace: DefaultShutdownGrace,
		now:           time.Now,
		cmds:          make(chan func(), commandBuffer),
		done:          make(chan struct{}),
		tasks:         make(map[int64]*model.Task),
		maxParallel:   max(maxParallel, 1),
	}
}

// SetStoreTimeout must be called before Run
func (d *Dispatcher) SetStoreTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.storeTimeout = timeout
	}
}

// Run reconciles persisted state and then serves requests until ctx is done.
// On exit running workers are terminated and their exits recorded for up to
// the shutdown grace; rows of workers still running after it are reconciled
// on the next start.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.done)

	d.ctx = ctx
	if err := d.reconcile(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			return nil
		case fn := <-d.cmds:
			fn()
		}
	}
}

// Enqueue queues a stored item for download
func (d *Dispatcher) Enqueue(ctx context.Context, id int64) error {
	_, err := call(ctx, d, func() (struct{}, error) {
		return struct{}{}, d.enqueue(id)
	})
	return err
}

// Stop cancels a waiting or downloading item
func (d *Dispatcher) Stop(ctx context.Context, id int64) error {
	_, err := call(ctx, d, func() (struct{}, error) {
		return struct{}{}, d.stop(id)
	})
	return err
}

// Delete removes an item record unless it is queued or running
func (d *Dispatcher) Delete(ctx context.Context, id int64) (bool, error) {
	return call(ctx, d, func() (bool, error) {
		return d.delete(id)
	})
}

// SetMaxParallel changes the concurrency cap. Raising it starts waiting
// tasks at once; lowering it never terminates running ones.
func (d *Dispatcher) SetMaxParallel(ctx context.Context, n int) error {
	_, err := call(ctx, d, func() (struct{}, error) {
		d.maxParallel = max(n, 1)
		d.log.Info("concurrency changed", slog.Int("max_parallel", d.maxParallel))
		d.dispatch()
		return struct{}{}, nil
	})
	return err
}

// Tasks returns the live tasks, downloading ones first, then in queue order
func (d *Dispatcher) Tasks(ctx context.Context) ([]model.TaskState, error) {
	return call(ctx, d, func() ([]model.TaskState, error) {
		states := make([]model.TaskState, 0, len(d.tasks))
		for _, task := range d.tasks {
			if task.Status == model.StatusDownloading {
				states = append(states, taskState(task))
			}
		}
		sort.Slice(states, func(i, j int) bool { return states[i].ID < states[j].ID })

		for _, id := range d.queue {
			states = append(states, taskState(d.tasks[id]))
		}
		return states, nil
	})
}

func taskState(task *model.Task) model.TaskState {
	state := model.TaskState{ID: task.ID, Status: task.Status}
	if task.Process != nil {
		state.RunID = task.Process.RunID()
	}
	return state
}

// call runs fn on the loop goroutine and waits for its result
func call[T any](ctx context.Context, d *Dispatcher, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	var zero T

	reply := make(chan result, 1)
	cmd := func() {
		v, err := fn()
		reply <- result{v, err}
	}

	select {
	case d.cmds <- cmd:
	case <-d.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case r := <-reply:
		return r.val, r.err
	case <-d.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// post hands a runner callback to the loop without waiting for it
func (d *Dispatcher) post(fn func()) {
	select {
	case d.cmds <- fn:
	case <-d.done:
	}
}

func (d *Dispatcher) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(d.ctx, d.storeTimeout)
}

func (d *Dispatcher) enqueue(id int64) error {
	if task, ok := d.tasks[id]; ok {
		return model.Transition(id, task.Status, model.StatusWaiting)
	}

	ctx, cancel := d.storeContext()
	defer cancel()

	item, err := d.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return err
		}
		return model.StoreError("find item", err)
	}

	from := item.Status
	if from.IsActive() {
		// Not live, so the row was left behind by a failed status write
		from = model.StatusFailed
	}
	if err := model.Transition(id, from, model.StatusWaiting); err != nil {
		return err
	}

	task := d.newTask(item)
	if err := d.store.UpdateStatus(ctx, id, model.StatusWaiting); err != nil {
		return model.StoreError("mark item waiting", err)
	}

	d.tasks[id] = task
	d.queue = append(d.queue, id)
	d.emit(task, model.StatusEvent{})

	d.log.Info("item queued", slog.Int64("id", id), slog.Int("queued", len(d.queue)))

	d.dispatch()
	return nil
}

// newTask resolves execution parameters from the item and the current settings
func (d *Dispatcher) newTask(item *model.DownloadItem) *model.Task {
	return &model.Task{
		ID: item.ID,
		Params: model.TaskParams{
			URL:            item.URL,
			Local:          d.settings.GetDownloadDirectory(),
			Name:           item.Name,
			Headers:        item.Headers,
			Type:           item.Type,
			Proxy:          d.settings.GetProxy(),
			DeleteSegments: d.settings.GetDeleteSegments(),
		},
		Status:     model.StatusWaiting,
		EnqueuedAt: d.now(),
	}
}

// dispatch starts waiting tasks in FIFO order while capacity allows
func (d *Dispatcher) dispatch() {
	if d.closing {
		return
	}
	for d.running < d.maxParallel && len(d.queue) > 0 {
		id := d.queue[0]
		d.queue = d.queue[1:]
		d.start(d.tasks[id])
	}
}

func (d *Dispatcher) start(task *model.Task) {
	ctx, cancel := d.storeContext()
	defer cancel()

	if err := d.store.UpdateStatus(ctx, task.ID, model.StatusDownloading); err != nil {
		d.log.Error("cannot mark item downloading", slog.Int64("id", task.ID), slog.Any("error", err))
		d.abort(ctx, task, model.StoreError("mark item downloading", err))
		return
	}

	handle, err := d.runner.Start(task, d.progressFunc(task.ID), d.exitFunc(task.ID))
	if err != nil {
		d.log.Error("cannot start worker", slog.Int64("id", task.ID), slog.Any("error", err))
		d.abort(ctx, task, err)
		return
	}

	task.Status = model.StatusDownloading
	task.Process = handle
	task.StartedAt = d.now()
	d.running++

	d.emit(task, model.StatusEvent{})
}

// abort drops a task that never got a process and records it as failed
func (d *Dispatcher) abort(ctx context.Context, task *model.Task, cause error) {
	delete(d.tasks, task.ID)

	if err := d.store.UpdateStatus(ctx, task.ID, model.StatusFailed); err != nil {
		d.log.Error("cannot mark item failed", slog.Int64("id", task.ID), slog.Any("error", err))
	}

	task.Status = model.StatusFailed
	d.emit(task, model.StatusEvent{Outcome: model.OutcomeFailure, Error: cause.Error()})
}

func (d *Dispatcher) progressFunc(id int64) func(model.Progress) {
	return func(p model.Progress) {
		fn := func() { d.progress(id, p) }
		select {
		case d.cmds <- fn:
		default:
		}
	}
}

func (d *Dispatcher) exitFunc(id int64) func(model.Outcome) {
	return func(o model.Outcome) {
		d.post(func() { d.complete(id, o) })
	}
}

// current returns the live downloading task that owns runID
func (d *Dispatcher) current(id int64, runID string) (*model.Task, bool) {
	task, ok := d.tasks[id]
	if !ok || task.Status != model.StatusDownloading || task.Process == nil {
		return nil, false
	}
	return task, task.Process.RunID() == runID
}

func (d *Dispatcher) progress(id int64, p model.Progress) {
	if _, ok := d.current(id, p.RunID); !ok {
		return
	}
	d.notifier.Emit(model.EventProgress, model.ProgressEvent{ID: id, Percent: p.Percent, Speed: p.Speed})
}

func (d *Dispatcher) complete(id int64, o model.Outcome) {
	task, ok := d.current(id, o.RunID)
	if !ok {
		d.log.Debug("stale worker exit ignored",
			slog.Int64("id", id),
			slog.String("run_id", o.RunID),
			slog.String("outcome", string(o.Kind)))
		return
	}

	status := model.StatusSuccess
	switch o.Kind {
	case model.OutcomeFailure:
		status = model.StatusFailed
	case model.OutcomeKilled:
		status = model.StatusStopped
	}

	delete(d.tasks, id)
	d.running--

	ctx, cancel := d.storeContext()
	defer cancel()

	// The task is gone either way; a failed write is fixed by reconciliation
	if err := d.store.UpdateStatus(ctx, id, status); err != nil {
		d.log.Error("cannot record outcome",
			slog.Int64("id", id),
			slog.String("status", string(status)),
			slog.Any("error", err))
	}

	if o.Kind == model.OutcomeFailure {
		d.log.Warn("download failed", slog.Int64("id", id), slog.Int("exit_code", o.ExitCode), slog.String("detail", o.Detail()))
	} else {
		d.log.Info("download finished", slog.Int64("id", id), slog.String("status", string(status)))
	}

	task.Status = status
	d.emit(task, model.StatusEvent{Outcome: o.Kind, Error: o.Detail(), Warning: o.Warning})

	d.dispatch()
}

func (d *Dispatcher) stop(id int64) error {
	task, ok := d.tasks[id]
	if !ok {
		ctx, cancel := d.storeContext()
		defer cancel()

		if _, err := d.store.FindByID(ctx, id); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return err
			}
			return model.StoreError("find item", err)
		}
		return fmt.Errorf("item %d: %w", id, model.ErrNoSuchTask)
	}

	if err := model.Transition(id, task.Status, model.StatusStopped); err != nil {
		return err
	}

	ctx, cancel := d.storeContext()
	defer cancel()

	if err := d.store.UpdateStatus(ctx, id, model.StatusStopped); err != nil {
		return model.StoreError("mark item stopped", err)
	}

	event := model.StatusEvent{}
	switch task.Status {
	case model.StatusDownloading:
		task.Process.Terminate()
		d.running--
		event.Outcome = model.OutcomeKilled
	case model.StatusWaiting:
		d.queue = slices.DeleteFunc(d.queue, func(q int64) bool { return q == id })
	}

	delete(d.tasks, id)
	task.Status = model.StatusStopped
	d.emit(task, event)

	d.log.Info("item stopped", slog.Int64("id", id))

	d.dispatch()
	return nil
}

func (d *Dispatcher) delete(id int64) (bool, error) {
	if task, ok := d.tasks[id]; ok {
		return false, fmt.Errorf("%w: item %d is %s, stop it first", model.ErrInvalidTransition, id, task.Status)
	}

	ctx, cancel := d.storeContext()
	defer cancel()

	item, err := d.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return false, model.StoreError("find item", err)
	}
	if item.Status.IsActive() {
		// Not live: its final status write failed, so the row counts as failed
		d.log.Warn("deleting item with unrecorded outcome",
			slog.Int64("id", id),
			slog.String("status", string(item.Status)))
	}

	removed, err := d.store.Delete(ctx, id)
	if err != nil {
		return false, model.StoreError("delete item", err)
	}
	return removed, nil
}

// reconcile rebuilds the live table from persisted rows
func (d *Dispatcher) reconcile() error {
	ctx, cancel := d.storeContext()
	defer cancel()

	items, err := d.store.FindByStatus(ctx, model.StatusWaiting, model.StatusDownloading)
	if err != nil {
		return model.StoreError("load active items", err)
	}

	requeued := 0
	for _, item := range items {
		if item.Status == model.StatusDownloading {
			// The process died with the previous run
			if err := d.store.UpdateStatus(ctx, item.ID, model.StatusFailed); err != nil {
				d.log.Error("cannot fail interrupted item", slog.Int64("id", item.ID), slog.Any("error", err))
				continue
			}
			d.notifier.Emit(model.EventFailed, model.StatusEvent{
				ID:      item.ID,
				Name:    item.Name,
				Status:  model.StatusFailed,
				Outcome: model.OutcomeFailure,
				Error:   interruptedDetail,
			})
			continue
		}

		d.tasks[item.ID] = d.newTask(item)
		d.queue = append(d.queue, item.ID)
		requeued++
	}

	d.log.Info("state reconciled", slog.Int("active", len(items)), slog.Int("requeued", requeued))

	d.dispatch()
	return nil
}

// shutdown terminates running workers and records their exits while the
// grace period lasts. Queued tasks stay Waiting and are requeued on the next start.
func (d *Dispatcher) shutdown() {
	d.closing = true
	d.ctx = context.WithoutCancel(d.ctx)

	for _, task := range d.tasks {
		if task.Process != nil {
			task.Process.Terminate()
		}
	}

	grace := time.NewTimer(d.shutdownGrace)
	defer grace.Stop()

	for d.running > 0 {
		select {
		case fn := <-d.cmds:
			fn()
		case <-grace.C:
			d.log.Warn("workers did not exit in time", slog.Int("running", d.running))
			return
		}
	}
	d.log.Info("dispatcher stopped", slog.Int("queued", len(d.queue)))
}

// emit publishes the task's current status
func (d *Dispatcher) emit(task *model.Task, event model.StatusEvent) {
	event.ID = task.ID
	event.Name = task.Params.Name
	event.Status = task.Status
	d.notifier.Emit(model.EventForStatus(task.Status), event)
}
