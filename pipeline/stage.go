// Package pipeline orchestrates the three-stage analysis workflow:
// primary page/competitor analysis, LSI n-gram comparison, and
// keyword-by-tag analysis. Stages run remotely; this package owns their
// life cycle, progress reconciliation, and the data handed between them.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Gl0balRak/textanalyzer-gateway/models"
	"github.com/Gl0balRak/textanalyzer-gateway/progress"
)

// Config controls stage pacing and hardening.
type Config struct {
	// Progress configures the simulated progress estimator.
	Progress progress.Config

	// StallTimeout fails a streaming stage that produces no event for
	// this long. Zero means the default of 5 minutes.
	StallTimeout time.Duration
}

func (c *Config) stall() time.Duration {
	if c.StallTimeout <= 0 {
		return 5 * time.Minute
	}
	return c.StallTimeout
}

// SubmitFunc issues the stage's one network submission and returns the
// result envelope plus the task id for the progress stream, if any.
type SubmitFunc[R any] func(ctx context.Context) (*R, string, error)

// Stage owns the state of one analysis stage: at most one job in
// flight, simulated progress merged with real server events, and a
// terminal result or error. Safe for concurrent use.
type Stage[R any] struct {
	kind models.StageKind
	cfg  Config
	est  *progress.Estimator

	// openStream is nil for stages without a push channel (LSI,
	// keywords); those run on simulated progress alone.
	openStream func(ctx context.Context, taskID string) (ProgressStream, error)

	mu     sync.Mutex
	status models.StageStatus
	taskID string
	result *R
	err    error
	epoch  int
	cancel context.CancelFunc
}

// NewStage creates an idle stage controller.
func NewStage[R any](kind models.StageKind, cfg Config,
	openStream func(ctx context.Context, taskID string) (ProgressStream, error)) *Stage[R] {
	return &Stage[R]{
		kind:       kind,
		cfg:        cfg,
		est:        progress.New(cfg.Progress),
		openStream: openStream,
		status:     models.StageIdle,
	}
}

// Run executes one job to its terminal state. While a job is already in
// flight the call is rejected with ErrStageBusy and nothing is
// submitted. A Reset during the run discards the outcome silently.
func (s *Stage[R]) Run(ctx context.Context, submit SubmitFunc[R]) error {
	s.mu.Lock()
	if s.status.Active() {
		s.mu.Unlock()
		slog.Warn("stage already running, run ignored", "stage", s.kind)
		return models.ErrStageBusy
	}
	s.epoch++
	epoch := s.epoch
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.err = nil
	s.taskID = ""
	if s.openStream != nil {
		s.status = models.StageSubmitting
	} else {
		// No push channel: the submission call is the whole job.
		s.status = models.StageRunning
	}
	s.mu.Unlock()

	defer cancel()
	s.est.Start()

	result, taskID, err := submit(runCtx)
	if err != nil {
		return s.fail(epoch, err)
	}

	if s.openStream == nil || taskID == "" {
		return s.succeed(epoch, result)
	}

	s.mu.Lock()
	if s.epoch == epoch {
		s.taskID = taskID
	}
	s.mu.Unlock()

	stream, err := s.openStream(runCtx, taskID)
	if err != nil {
		// The submission already returned the full envelope; losing
		// the progress channel is not losing the job.
		slog.Warn("progress stream unavailable, completing from envelope",
			"stage", s.kind, "task_id", taskID, "error", err)
		return s.succeed(epoch, result)
	}

	s.setStatus(epoch, models.StageStreaming)
	return s.consume(runCtx, epoch, stream, result)
}

// consume applies stream frames until a terminal transition.
func (s *Stage[R]) consume(ctx context.Context, epoch int, stream ProgressStream, result *R) error {
	defer stream.Close()

	stall := time.NewTimer(s.cfg.stall())
	defer stall.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-stall.C:
			return s.fail(epoch, &models.StreamError{Err: errors.New("no progress events before stall timeout")})

		case ev, ok := <-stream.Events():
			if !ok {
				if err := stream.Err(); err != nil {
					return s.fail(epoch, err)
				}
				// Clean end without a terminal frame: the envelope
				// already carried the result.
				return s.succeed(epoch, result)
			}

			if !stall.Stop() {
				select {
				case <-stall.C:
				default:
				}
			}
			stall.Reset(s.cfg.stall())

			switch ev.Type {
			case models.EventStageStart, models.EventStageComplete:
				slog.Debug("analysis sub-stage boundary", "stage", s.kind, "sub_stage", ev.Stage, "type", ev.Type)

			case models.EventBatchStart, models.EventURLStart, models.EventURLSuccess, models.EventURLFailed:
				if ev.Progress != nil {
					s.est.ReportReal(*ev.Progress)
				}

			case models.EventParsingComplete, models.EventComplete:
				return s.succeed(epoch, result)

			case models.EventError:
				return s.fail(epoch, &models.ServerError{Message: ev.Message})

			case models.EventHeartbeat, models.EventUnknown:
				// Keep-alive and forward-compat frames carry nothing.
			}
		}
	}
}

// succeed records the terminal success, unless the run was reset away.
func (s *Stage[R]) succeed(epoch int, result *R) error {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil
	}
	s.status = models.StageSucceeded
	s.result = result
	s.err = nil
	s.mu.Unlock()

	s.est.Complete()
	return nil
}

// fail records the terminal failure, unless the run was reset away.
// Previously stored results stay readable.
func (s *Stage[R]) fail(epoch int, err error) error {
	s.mu.Lock()
	if s.epoch != epoch {
		// A stale failure must not halt the estimator of whatever run
		// replaced this one.
		s.mu.Unlock()
		return nil
	}
	s.status = models.StageFailed
	s.err = err
	s.mu.Unlock()

	s.est.Stop()
	slog.Warn("stage failed", "stage", s.kind, "error", err)
	return err
}

func (s *Stage[R]) setStatus(epoch int, status models.StageStatus) {
	s.mu.Lock()
	if s.epoch == epoch {
		s.status = status
	}
	s.mu.Unlock()
}

// Reset tears down any in-flight job and returns to idle. Idempotent;
// late network callbacks from the cancelled run are discarded.
func (s *Stage[R]) Reset() {
	s.mu.Lock()
	s.epoch++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.status = models.StageIdle
	s.taskID = ""
	s.result = nil
	s.err = nil
	s.mu.Unlock()

	s.est.Stop()
}

// Status returns the current lifecycle state.
func (s *Stage[R]) Status() models.StageStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Progress returns the observable progress percentage.
func (s *Stage[R]) Progress() float64 {
	s.mu.Lock()
	succeeded := s.status == models.StageSucceeded
	s.mu.Unlock()
	if succeeded {
		return 100
	}
	return s.est.Value()
}

// Result returns the stored stage result, or nil before success.
func (s *Stage[R]) Result() *R {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Err returns the stored terminal error, or nil.
func (s *Stage[R]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// View builds the stage's read model for the UI layer.
func (s *Stage[R]) View() models.StageView {
	s.mu.Lock()
	v := models.StageView{
		Kind:   s.kind,
		Status: s.status,
		TaskID: s.taskID,
	}
	if s.err != nil {
		v.Error = models.ToDetail(s.err)
	}
	succeeded := s.status == models.StageSucceeded
	s.mu.Unlock()

	if succeeded {
		v.Progress = 100
	} else {
		v.Progress = s.est.Value()
	}
	return v
}
