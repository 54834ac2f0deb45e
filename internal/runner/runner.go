package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/ytget/stream-downloader/internal/model"
	"github.com/ytget/stream-downloader/internal/platform"
)

const runIDPrefix = "run-"

// Exit is what a backend reports once its process has ended
type Exit struct {
	Code   int
	Output string // tail of the process output
	Err    error
}

// ProgressFunc receives parsed progress samples from a backend
type ProgressFunc func(percent float64, speed string)

// Backend launches one worker process for a task.
// The returned channel yields exactly one Exit and is then closed.
type Backend interface {
	Start(ctx context.Context, params model.TaskParams, report ProgressFunc) (<-chan Exit, error)
}

// Runner starts worker processes and turns their exits into outcomes
type Runner struct {
	backends map[model.VideoType]Backend
	fs       afero.Fs
	log      *slog.Logger
}

// New creates a runner with one backend per video type
func New(log *slog.Logger, fs afero.Fs, backends map[model.VideoType]Backend) *Runner {
	return &Runner{
		backends: backends,
		fs:       fs,
		log:      log.With(slog.String("service", "runner")),
	}
}

// handle identifies one process invocation
type handle struct {
	runID  string
	cancel context.CancelFunc
	killed atomic.Bool
}

func (h *handle) RunID() string { return h.runID }

// Terminate asks the process to stop. Calling it twice is harmless.
func (h *handle) Terminate() {
	h.killed.Store(true)
	h.cancel()
}

// Start launches the worker for task. Callbacks are invoked from the
// runner's own goroutines, never from inside Start; onExit fires exactly once.
func (r *Runner) Start(task *model.Task, onProgress func(model.Progress), onExit func(model.Outcome)) (model.ProcessHandle, error) {
	backend, ok := r.backends[task.Params.Type]
	if !ok {
		return nil, fmt.Errorf("%w: no worker for type %q", model.ErrInvalidInput, task.Params.Type)
	}

	if err := platform.CreateDirectoryIfNotExists(r.fs, task.Params.Local); err != nil {
		return nil, fmt.Errorf("cannot prepare download directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{runID: generateRunID(), cancel: cancel}

	report := func(percent float64, speed string) {
		if onProgress != nil && !h.killed.Load() {
			onProgress(model.Progress{RunID: h.runID, Percent: percent, Speed: speed})
		}
	}

	exits, err := backend.Start(ctx, task.Params, report)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("cannot start worker: %w", err)
	}

	r.log.Info("worker started",
		slog.Int64("id", task.ID),
		slog.String("run_id", h.runID),
		slog.String("type", string(task.Params.Type)))

	go r.wait(task, h, exits, onExit)

	return h, nil
}

func (r *Runner) wait(task *model.Task, h *handle, exits <-chan Exit, onExit func(model.Outcome)) {
	exit, ok := <-exits
	if !ok {
		exit = Exit{Code: -1, Err: fmt.Errorf("worker exited without a report")}
	}
	h.cancel()

	outcome := r.outcome(task.Params, h, exit)

	r.log.Info("worker exited",
		slog.Int64("id", task.ID),
		slog.String("run_id", h.runID),
		slog.String("outcome", string(outcome.Kind)),
		slog.Int("exit_code", outcome.ExitCode))

	if onExit != nil {
		onExit(outcome)
	}
}

func (r *Runner) outcome(params model.TaskParams, h *handle, exit Exit) model.Outcome {
	out := model.Outcome{
		RunID:    h.runID,
		ExitCode: exit.Code,
		Output:   exit.Output,
	}

	switch {
	case h.killed.Load():
		out.Kind = model.OutcomeKilled
	case exit.Err != nil:
		out.Kind = model.OutcomeFailure
		out.Err = exit.Err
	case exit.Code != 0:
		out.Kind = model.OutcomeFailure
		out.Err = fmt.Errorf("worker exited with code %d", exit.Code)
	default:
		out.Kind = model.OutcomeSuccess
		if params.DeleteSegments {
			if err := platform.RemoveSegments(r.fs, platform.SegmentDir(params.Local, params.Name)); err != nil {
				r.log.Warn("cannot remove segments", slog.String("run_id", h.runID), slog.Any("error", err))
				out.Warning = err.Error()
			}
		}
	}

	return out
}

// generateRunID returns a time ordered unique id for a process invocation
func generateRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf(runIDPrefix+"%d", time.Now().UnixNano())
	}
	return runIDPrefix + id.String()
}
