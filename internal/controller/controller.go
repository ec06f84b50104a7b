// Package controller owns the lifecycle of background-removal jobs: one
// non-terminal job per target, a worker goroutine per job for the
// blocking API calls, and ordered delivery of every event through the
// dispatch loop. The UI-facing side (sink, integrator) only ever runs on
// the loop and sees exactly one terminal event per job.
package controller

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dreamtools/dream-background-remover/internal/client"
	"github.com/dreamtools/dream-background-remover/internal/dispatch"
	"github.com/dreamtools/dream-background-remover/internal/i18n"
	"github.com/dreamtools/dream-background-remover/internal/model"
)

var (
	// ErrTargetBusy is returned synchronously when a non-terminal job
	// already holds the target's slot. The second request is refused, not
	// queued.
	ErrTargetBusy = errors.New("a job is already active for this target")

	// ErrJobNotFound is returned for unknown or already-released job ids.
	ErrJobNotFound = errors.New("job not found")
)

// ProgressSink receives job events on the dispatch loop. OnTerminal is
// called exactly once per job, after all OnProgress calls for that job.
type ProgressSink interface {
	OnProgress(ev model.ProgressEvent)
	OnTerminal(jobID string, res model.TerminalResult)
}

// MultiSink fans events out to several sinks in order.
type MultiSink []ProgressSink

func (m MultiSink) OnProgress(ev model.ProgressEvent) {
	for _, s := range m {
		s.OnProgress(ev)
	}
}

func (m MultiSink) OnTerminal(jobID string, res model.TerminalResult) {
	for _, s := range m {
		s.OnTerminal(jobID, res)
	}
}

// Integrator applies a successful result to the host project. Called on
// the dispatch loop, at most once per job.
type Integrator interface {
	Apply(image []byte, mode model.Mode, target string) (*model.IntegrationRef, error)
}

// Controller runs jobs. All fields of a jobRun are guarded by mu.
type Controller struct {
	cfg        Config
	remote     client.BackgroundRemover
	integrator Integrator
	sink       ProgressSink
	loop       *dispatch.Loop

	mu       sync.Mutex
	byTarget map[string]*jobRun
	byID     map[string]*jobRun
}

type jobRun struct {
	job             model.Job
	credential      string
	ref             *client.RemoteRef
	cancelRequested bool
	terminal        bool
	ctx             context.Context
	cancel          context.CancelFunc
}

func New(cfg Config, remote client.BackgroundRemover, integrator Integrator, sink ProgressSink, loop *dispatch.Loop) *Controller {
	return &Controller{
		cfg:        cfg.withDefaults(),
		remote:     remote,
		integrator: integrator,
		sink:       sink,
		loop:       loop,
		byTarget:   make(map[string]*jobRun),
		byID:       make(map[string]*jobRun),
	}
}

// Start validates and schedules a job. Failures here are synchronous: no
// goroutine is scheduled and no events are emitted. The returned job is a
// snapshot in state pending; execution begins on the next loop turn.
func (c *Controller) Start(target string, image []byte, mode model.Mode, modelVersion, credential string) (model.Job, error) {
	if strings.TrimSpace(credential) == "" {
		return model.Job{}, model.NewJobError(model.ErrKindAuth, i18n.KeyErrMissingAPIKey, nil)
	}
	if !mode.Valid() {
		return model.Job{}, model.NewJobError(model.ErrKindPayload, i18n.KeyErrPayload,
			map[string]string{"reason": "invalid mode " + string(mode)})
	}
	if len(image) == 0 {
		return model.Job{}, model.NewJobError(model.ErrKindPayload, i18n.KeyErrPayload,
			map[string]string{"reason": "empty image"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	r := &jobRun{
		job: model.Job{
			ID:        uuid.New().String(),
			Target:    target,
			Mode:      mode,
			Model:     modelVersion,
			State:     model.JobStatePending,
			CreatedAt: time.Now(),
		},
		credential: credential,
		ctx:        ctx,
		cancel:     cancel,
	}

	c.mu.Lock()
	if _, busy := c.byTarget[target]; busy {
		c.mu.Unlock()
		cancel()
		return model.Job{}, ErrTargetBusy
	}
	c.byTarget[target] = r
	c.byID[r.job.ID] = r
	snapshot := r.job
	c.mu.Unlock()

	c.emit(r, model.JobStatePending, i18n.KeyProgressAccepted, nil)

	// The worker is launched from the loop so a cancel that lands before
	// this turn runs never touches the network.
	c.loop.Post(func() {
		if c.isCancelRequested(r) {
			c.deliverTerminal(r, cancelledResult())
			return
		}
		go c.run(r, image)
	})

	return snapshot, nil
}

// Cancel requests cooperative cancellation. The local transition to
// cancelled is unconditional; the remote abort is best effort and its
// cost, if the prediction already ran, is accepted.
func (c *Controller) Cancel(jobID string) (model.Job, error) {
	c.mu.Lock()
	r, ok := c.byID[jobID]
	if !ok {
		c.mu.Unlock()
		return model.Job{}, ErrJobNotFound
	}
	r.cancelRequested = true
	job := r.job
	cancel := r.cancel
	c.mu.Unlock()

	cancel()
	job.State = model.JobStateCancelled
	return job, nil
}

// Status returns a snapshot of an active job. Terminal jobs have been
// released; callers fall back to the history store for those.
func (c *Controller) Status(jobID string) (model.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.byID[jobID]
	if !ok {
		return model.Job{}, ErrJobNotFound
	}
	return r.job, nil
}

// run is the worker: the only place blocking network calls happen.
func (c *Controller) run(r *jobRun, image []byte) {
	defer r.cancel()

	if c.isCancelRequested(r) {
		c.finish(r, cancelledResult())
		return
	}

	c.setState(r, model.JobStateSubmitted)
	c.emit(r, model.JobStateSubmitted, i18n.KeyProgressUploading, nil)

	ref, err := c.remote.Submit(r.ctx, image, r.job.Model, r.credential)
	if err != nil {
		c.failFromError(r, err)
		return
	}
	c.setRef(r, ref)

	c.setState(r, model.JobStatePolling)
	c.emit(r, model.JobStatePolling, i18n.KeyProgressProcessing, nil)

	output, ok := c.pollUntilDone(r, ref)
	if !ok {
		return
	}

	if c.isCancelRequested(r) {
		c.abortRemote(r)
		c.finish(r, cancelledResult())
		return
	}

	c.emit(r, model.JobStatePolling, i18n.KeyProgressFinalizing, nil)
	c.deliverSuccess(r, output)
}

// pollUntilDone drives the backoff loop. It reports ok=false after it has
// already finished the job (failure, timeout or cancellation).
func (c *Controller) pollUntilDone(r *jobRun, ref *client.RemoteRef) ([]byte, bool) {
	delay := c.cfg.PollInitial
	attempt := 0

	for {
		select {
		case <-r.ctx.Done():
			c.failFromError(r, r.ctx.Err())
			return nil, false
		case <-time.After(delay):
		}

		attempt++
		st, err := c.remote.Poll(r.ctx, ref, r.credential)
		if err != nil {
			c.abortRemote(r)
			c.failFromError(r, err)
			return nil, false
		}

		switch st.Phase {
		case client.PhaseRunning:
			c.emit(r, model.JobStatePolling, i18n.KeyProgressWaiting,
				map[string]string{"attempt": strconv.Itoa(attempt)})
			delay = nextDelay(delay, c.cfg)
		case client.PhaseFailed:
			c.finish(r, model.TerminalResult{
				State: model.JobStateFailed,
				Error: model.NewJobError(model.ErrKindRemote, i18n.KeyErrRemote,
					map[string]string{"reason": st.Reason}),
			})
			return nil, false
		case client.PhaseDone:
			return st.Output, true
		}
	}
}

// deliverSuccess runs the integrator on the loop and delivers the single
// terminal event. An integration failure is a distinct terminal: the
// remote work completed and was paid for, but nothing reached the
// project.
func (c *Controller) deliverSuccess(r *jobRun, output []byte) {
	task := func() {
		if c.isCancelRequested(r) {
			c.deliverTerminal(r, cancelledResult())
			return
		}
		ref, err := c.integrator.Apply(output, r.job.Mode, r.job.Target)
		if err != nil {
			c.deliverTerminal(r, model.TerminalResult{
				State: model.JobStateFailed,
				Error: &model.JobError{
					Kind:       model.ErrKindIntegration,
					MessageKey: i18n.KeyErrIntegration,
					Params:     map[string]string{"reason": err.Error()},
					Err:        err,
				},
				RemoteCompleted: true,
			})
			return
		}
		c.deliverTerminal(r, model.TerminalResult{
			State:           model.JobStateSucceeded,
			Ref:             ref,
			RemoteCompleted: true,
		})
	}
	if !c.loop.Post(task) {
		task()
	}
}

// failFromError converts a worker-side fault to the job's terminal state.
// A requested cancel wins over whatever error the cancellation surfaced.
func (c *Controller) failFromError(r *jobRun, err error) {
	if c.isCancelRequested(r) {
		c.abortRemote(r)
		c.finish(r, cancelledResult())
		return
	}
	if errors.Is(err, context.DeadlineExceeded) || r.ctx.Err() == context.DeadlineExceeded {
		c.finish(r, model.TerminalResult{
			State: model.JobStateFailed,
			Error: model.NewJobError(model.ErrKindTimeout, i18n.KeyErrTimeout, nil),
		})
		return
	}
	c.finish(r, model.TerminalResult{
		State: model.JobStateFailed,
		Error: model.AsJobError(err, i18n.KeyErrNetwork),
	})
}

// abortRemote signals the API to stop a cancelled prediction. Best
// effort: failures are logged and ignored, local state does not wait on
// the remote side.
func (c *Controller) abortRemote(r *jobRun) {
	if !c.isCancelRequested(r) {
		return
	}
	c.mu.Lock()
	ref := r.ref
	credential := r.credential
	c.mu.Unlock()
	if ref == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.AbortTimeout)
	defer cancel()
	if err := c.remote.Abort(ctx, ref, credential); err != nil {
		log.Printf("[Controller] Best-effort abort of job %s failed: %v", r.job.ID, err)
	}
}

// finish routes a terminal result through the loop so it lands after all
// progress events already posted for the job.
func (c *Controller) finish(r *jobRun, res model.TerminalResult) {
	if !c.loop.Post(func() { c.deliverTerminal(r, res) }) {
		c.deliverTerminal(r, res)
	}
}

// deliverTerminal marks the job terminal, releases the target slot and
// notifies the sink. The terminal guard makes a second delivery a no-op,
// whatever path raced to get here.
func (c *Controller) deliverTerminal(r *jobRun, res model.TerminalResult) {
	c.mu.Lock()
	if r.terminal {
		c.mu.Unlock()
		return
	}
	r.terminal = true
	r.job.State = res.State
	r.job.Error = res.Error
	now := time.Now()
	r.job.CompletedAt = &now
	res.Job = r.job
	delete(c.byTarget, r.job.Target)
	delete(c.byID, r.job.ID)
	c.mu.Unlock()

	c.sink.OnTerminal(res.Job.ID, res)
}

func (c *Controller) emit(r *jobRun, state model.JobState, key string, params map[string]string) {
	c.mu.Lock()
	if r.terminal || r.cancelRequested {
		c.mu.Unlock()
		return
	}
	ev := model.ProgressEvent{
		JobID:      r.job.ID,
		State:      state,
		MessageKey: key,
		Params:     params,
		At:         time.Now(),
	}
	c.mu.Unlock()

	c.loop.Post(func() {
		c.sink.OnProgress(ev)
	})
}

func (c *Controller) setState(r *jobRun, state model.JobState) {
	c.mu.Lock()
	if !r.terminal {
		r.job.State = state
		if state == model.JobStateSubmitted && r.job.StartedAt == nil {
			now := time.Now()
			r.job.StartedAt = &now
		}
	}
	c.mu.Unlock()
}

func (c *Controller) setRef(r *jobRun, ref *client.RemoteRef) {
	c.mu.Lock()
	r.ref = ref
	c.mu.Unlock()
}

func (c *Controller) isCancelRequested(r *jobRun) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return r.cancelRequested
}

func cancelledResult() model.TerminalResult {
	return model.TerminalResult{State: model.JobStateCancelled}
}
