package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gl0balRak/textanalyzer-gateway/models"
)

func TestStage_StreamDrivesCompletion(t *testing.T) {
	// Scenario: a started job streams a url_success frame at 40%, then
	// a complete frame; observed progress must pass 40 and land on 100.
	stream := newFakeStream(
		models.ProgressEvent{Type: models.EventStageStart, Stage: "serp"},
		models.ProgressEvent{Type: models.EventURLSuccess, Progress: pct(40)},
		models.ProgressEvent{Type: models.EventHeartbeat},
		models.ProgressEvent{Type: models.EventComplete},
	)
	backend := &fakeBackend{analyzeResult: primaryResult("task-1", "https://c1.test"), stream: stream}

	stage := NewStage[models.AnalysisResult](models.StagePrimary, fastConfig(), backend.OpenProgress)
	err := stage.Run(context.Background(), func(ctx context.Context) (*models.AnalysisResult, string, error) {
		result, err := backend.AnalyzePage(ctx, validRequest())
		if err != nil {
			return nil, "", err
		}
		return result, result.TaskID, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := stage.Status(); got != models.StageSucceeded {
		t.Errorf("status = %q, want succeeded", got)
	}
	if got := stage.Progress(); got != 100 {
		t.Errorf("progress = %v, want 100", got)
	}
	if stage.Result() == nil || stage.Result().TaskID != "task-1" {
		t.Error("stage result not stored")
	}
}

func TestStage_RealProgressForwarded(t *testing.T) {
	// Hold the stream open after the progress frame so the estimate at
	// that moment is observable.
	events := make(chan models.ProgressEvent)
	stream := &fakeStream{events: events}
	backend := &fakeBackend{analyzeResult: primaryResult("task-1"), stream: stream}

	stage := NewStage[models.AnalysisResult](models.StagePrimary, fastConfig(), backend.OpenProgress)
	done := make(chan error, 1)
	go func() {
		done <- stage.Run(context.Background(), func(ctx context.Context) (*models.AnalysisResult, string, error) {
			return backend.analyzeResult, "task-1", nil
		})
	}()

	events <- models.ProgressEvent{Type: models.EventURLSuccess, Progress: pct(64)}

	deadline := time.Now().Add(time.Second)
	for stage.Progress() < 64 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := stage.Progress(); got < 64 {
		t.Errorf("progress = %v, want >= 64 after server report", got)
	}

	events <- models.ProgressEvent{Type: models.EventComplete}
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestStage_SingleInFlightJob(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{analyzeResult: primaryResult(""), analyzeGate: gate}

	stage := NewStage[models.AnalysisResult](models.StagePrimary, fastConfig(), backend.OpenProgress)
	submit := func(ctx context.Context) (*models.AnalysisResult, string, error) {
		result, err := backend.AnalyzePage(ctx, validRequest())
		return result, "", err
	}

	done := make(chan error, 1)
	go func() { done <- stage.Run(context.Background(), submit) }()

	deadline := time.Now().Add(time.Second)
	for !stage.Status().Active() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := stage.Run(context.Background(), submit); !errors.Is(err, models.ErrStageBusy) {
		t.Errorf("second Run returned %v, want ErrStageBusy", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first Run: %v", err)
	}

	if analyze, _, _, _ := backend.calls(); analyze != 1 {
		t.Errorf("backend submissions = %d, want exactly 1", analyze)
	}
}

func TestStage_SubmissionFailure(t *testing.T) {
	wantErr := &models.RemoteError{Status: 500, Body: "boom"}
	backend := &fakeBackend{analyzeErr: wantErr}

	stage := NewStage[models.AnalysisResult](models.StagePrimary, fastConfig(), backend.OpenProgress)
	err := stage.Run(context.Background(), func(ctx context.Context) (*models.AnalysisResult, string, error) {
		result, err := backend.AnalyzePage(ctx, validRequest())
		return result, "", err
	})

	var rErr *models.RemoteError
	if !errors.As(err, &rErr) {
		t.Fatalf("Run returned %v, want RemoteError", err)
	}
	if got := stage.Status(); got != models.StageFailed {
		t.Errorf("status = %q, want failed", got)
	}
	if stage.Progress() == 100 {
		t.Error("failed stage must not report completion")
	}
}

func TestStage_ServerErrorFrame(t *testing.T) {
	stream := newFakeStream(models.ProgressEvent{Type: models.EventError, Message: "serp quota exhausted"})
	backend := &fakeBackend{analyzeResult: primaryResult("task-1"), stream: stream}

	stage := NewStage[models.AnalysisResult](models.StagePrimary, fastConfig(), backend.OpenProgress)
	err := stage.Run(context.Background(), func(ctx context.Context) (*models.AnalysisResult, string, error) {
		return backend.analyzeResult, "task-1", nil
	})

	var svErr *models.ServerError
	if !errors.As(err, &svErr) {
		t.Fatalf("Run returned %v, want ServerError", err)
	}
	if svErr.Message != "serp quota exhausted" {
		t.Errorf("message = %q, want verbatim frame message", svErr.Message)
	}
}

func TestStage_StreamTransportFailure(t *testing.T) {
	stream := &fakeStream{events: make(chan models.ProgressEvent), err: &models.StreamError{Err: errors.New("connection reset")}}
	close(stream.events)
	backend := &fakeBackend{stream: stream}

	stage := NewStage[models.AnalysisResult](models.StagePrimary, fastConfig(), backend.OpenProgress)
	err := stage.Run(context.Background(), func(ctx context.Context) (*models.AnalysisResult, string, error) {
		return primaryResult("task-1"), "task-1", nil
	})

	var stErr *models.StreamError
	if !errors.As(err, &stErr) {
		t.Fatalf("Run returned %v, want StreamError", err)
	}
	if got := stage.Status(); got != models.StageFailed {
		t.Errorf("status = %q, want failed", got)
	}
}

func TestStage_StreamOpenFailureCompletesFromEnvelope(t *testing.T) {
	backend := &fakeBackend{streamErr: errors.New("stream unavailable")}

	stage := NewStage[models.AnalysisResult](models.StagePrimary, fastConfig(), backend.OpenProgress)
	err := stage.Run(context.Background(), func(ctx context.Context) (*models.AnalysisResult, string, error) {
		return primaryResult("task-1", "https://c1.test"), "task-1", nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := stage.Status(); got != models.StageSucceeded {
		t.Errorf("status = %q, want succeeded from envelope", got)
	}
}

func TestStage_StallTimeout(t *testing.T) {
	cfg := fastConfig()
	cfg.StallTimeout = 20 * time.Millisecond
	// A stream that never emits anything.
	stream := &fakeStream{events: make(chan models.ProgressEvent)}
	backend := &fakeBackend{stream: stream}

	stage := NewStage[models.AnalysisResult](models.StagePrimary, cfg, backend.OpenProgress)
	err := stage.Run(context.Background(), func(ctx context.Context) (*models.AnalysisResult, string, error) {
		return primaryResult("task-1"), "task-1", nil
	})

	var stErr *models.StreamError
	if !errors.As(err, &stErr) {
		t.Fatalf("Run returned %v, want StreamError after stall", err)
	}
}

func TestStage_ResetIdempotent(t *testing.T) {
	backend := &fakeBackend{analyzeResult: primaryResult("")}
	stage := NewStage[models.AnalysisResult](models.StagePrimary, fastConfig(), backend.OpenProgress)

	if err := stage.Run(context.Background(), func(ctx context.Context) (*models.AnalysisResult, string, error) {
		result, err := backend.AnalyzePage(ctx, validRequest())
		return result, "", err
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	stage.Reset()
	if got := stage.Status(); got != models.StageIdle {
		t.Fatalf("status after reset = %q, want idle", got)
	}
	if stage.Result() != nil || stage.Err() != nil {
		t.Error("reset must clear result and error")
	}

	// Second reset, and reset from idle, must be harmless no-ops.
	stage.Reset()
	if got := stage.Status(); got != models.StageIdle {
		t.Errorf("status after double reset = %q", got)
	}
}

func TestStage_StaleFailureKeepsSuccessorProgress(t *testing.T) {
	// A run that fails after being reset away must not halt the
	// estimator of the run that replaced it.
	gate := make(chan struct{})
	events := make(chan models.ProgressEvent)
	backend := &fakeBackend{stream: &fakeStream{events: events}}

	stage := NewStage[models.AnalysisResult](models.StagePrimary, fastConfig(), backend.OpenProgress)

	first := make(chan error, 1)
	go func() {
		first <- stage.Run(context.Background(), func(ctx context.Context) (*models.AnalysisResult, string, error) {
			<-gate
			return nil, "", &models.RemoteError{Status: 500, Body: "boom"}
		})
	}()

	deadline := time.Now().Add(time.Second)
	for !stage.Status().Active() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	stage.Reset()

	second := make(chan error, 1)
	go func() {
		second <- stage.Run(context.Background(), func(ctx context.Context) (*models.AnalysisResult, string, error) {
			return primaryResult("task-2", "https://c1.test"), "task-2", nil
		})
	}()

	deadline = time.Now().Add(time.Second)
	for stage.Status() != models.StageStreaming && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	before := stage.Progress()

	// Release the stale run; its failure must be discarded silently.
	close(gate)
	if err := <-first; err != nil {
		t.Fatalf("stale run surfaced %v, want discarded", err)
	}

	deadline = time.Now().Add(time.Second)
	for stage.Progress() <= before && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := stage.Progress(); got <= before {
		t.Errorf("progress = %v, froze at %v after stale failure", got, before)
	}
	if got := stage.Status(); got != models.StageStreaming {
		t.Errorf("status = %q, want streaming untouched by stale failure", got)
	}

	events <- models.ProgressEvent{Type: models.EventComplete}
	if err := <-second; err != nil {
		t.Fatalf("second Run: %v", err)
	}
}

func TestStage_ResetDiscardsInFlightRun(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{analyzeResult: primaryResult(""), analyzeGate: gate}
	stage := NewStage[models.AnalysisResult](models.StagePrimary, fastConfig(), backend.OpenProgress)

	done := make(chan error, 1)
	go func() {
		done <- stage.Run(context.Background(), func(ctx context.Context) (*models.AnalysisResult, string, error) {
			result, err := backend.AnalyzePage(ctx, validRequest())
			return result, "", err
		})
	}()

	deadline := time.Now().Add(time.Second)
	for !stage.Status().Active() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	stage.Reset()
	close(gate)
	<-done

	// The late response must not resurrect state torn down by reset.
	if got := stage.Status(); got != models.StageIdle {
		t.Errorf("status = %q after reset raced a response, want idle", got)
	}
	if stage.Result() != nil {
		t.Error("stale result applied after reset")
	}
}
