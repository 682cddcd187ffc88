package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/Gl0balRak/textanalyzer-gateway/models"
	"github.com/Gl0balRak/textanalyzer-gateway/progress"
)

// fastConfig keeps timers short enough for tests.
func fastConfig() Config {
	return Config{
		Progress: progress.Config{
			TickInterval:     2 * time.Millisecond,
			MaxIncrement:     10,
			CompleteStep:     25,
			CompleteInterval: time.Millisecond,
		},
		StallTimeout: 2 * time.Second,
	}
}

// fakeStream feeds scripted frames to a stage under test.
type fakeStream struct {
	events chan models.ProgressEvent
	err    error

	closeOnce sync.Once
}

func newFakeStream(events ...models.ProgressEvent) *fakeStream {
	s := &fakeStream{events: make(chan models.ProgressEvent, len(events))}
	for _, ev := range events {
		s.events <- ev
	}
	close(s.events)
	return s
}

func (s *fakeStream) Events() <-chan models.ProgressEvent { return s.events }
func (s *fakeStream) Err() error                          { return s.err }
func (s *fakeStream) Close()                              { s.closeOnce.Do(func() {}) }

// fakeBackend counts calls and replays scripted results.
type fakeBackend struct {
	mu sync.Mutex

	analyzeCalls  int
	singleCalls   int
	ngramCalls    int
	keywordCalls  int
	progressCalls int

	analyzeResult *models.AnalysisResult
	analyzeErr    error
	analyzeGate   chan struct{} // when set, AnalyzePage blocks until closed

	stream    ProgressStream
	streamErr error

	singleResult *models.CompetitorRecord
	singleErr    error

	ngramResult *models.LSIResult
	ngramErr    error

	keywordResult *models.KeywordsResult
	keywordErr    error
}

func (b *fakeBackend) AnalyzePage(ctx context.Context, req *models.AnalysisRequest) (*models.AnalysisResult, error) {
	b.mu.Lock()
	b.analyzeCalls++
	gate := b.analyzeGate
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return b.analyzeResult, b.analyzeErr
}

func (b *fakeBackend) OpenProgress(ctx context.Context, taskID string) (ProgressStream, error) {
	b.mu.Lock()
	b.progressCalls++
	b.mu.Unlock()
	if b.streamErr != nil {
		return nil, b.streamErr
	}
	return b.stream, nil
}

func (b *fakeBackend) AnalyzeSinglePage(ctx context.Context, pageURL string) (*models.CompetitorRecord, error) {
	b.mu.Lock()
	b.singleCalls++
	b.mu.Unlock()
	return b.singleResult, b.singleErr
}

func (b *fakeBackend) CompareNgrams(ctx context.Context, req *models.NgramRequest) (*models.LSIResult, error) {
	b.mu.Lock()
	b.ngramCalls++
	b.mu.Unlock()
	return b.ngramResult, b.ngramErr
}

func (b *fakeBackend) AnalyzeKeywords(ctx context.Context, req *models.KeywordsRequest) (*models.KeywordsResult, error) {
	b.mu.Lock()
	b.keywordCalls++
	b.mu.Unlock()
	return b.keywordResult, b.keywordErr
}

func (b *fakeBackend) calls() (analyze, single, ngram, keyword int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.analyzeCalls, b.singleCalls, b.ngramCalls, b.keywordCalls
}

func pct(v float64) *float64 { return &v }

func primaryResult(taskID string, competitorURLs ...string) *models.AnalysisResult {
	result := &models.AnalysisResult{
		TaskID: taskID,
		MyPage: &models.OwnPage{URL: "https://a.test", Stats: &models.PageStats{TotalVisibleWords: 800}},
	}
	for i, u := range competitorURLs {
		result.Competitors = append(result.Competitors, models.CompetitorRecord{
			Position: i + 1,
			URL:      u,
			Stats:    &models.PageStats{TotalVisibleWords: 1000 + i},
		})
	}
	result.Summary = models.AnalysisSummary{
		CompetitorsFound:      len(competitorURLs),
		CompetitorsSuccessful: len(competitorURLs),
	}
	return result
}

func validRequest() *models.AnalysisRequest {
	return &models.AnalysisRequest{
		PageURL:   "https://a.test",
		MainQuery: "buy phone",
	}
}
