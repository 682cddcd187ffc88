package pipeline

import (
	"context"

	"github.com/Gl0balRak/textanalyzer-gateway/analyzer"
	"github.com/Gl0balRak/textanalyzer-gateway/models"
)

// ProgressStream is one live progress channel for a running job.
type ProgressStream interface {
	Events() <-chan models.ProgressEvent
	Err() error
	Close()
}

// Backend is the analyzer service seen from the pipeline's side.
// *analyzer.Client satisfies it through NewBackend.
type Backend interface {
	AnalyzePage(ctx context.Context, req *models.AnalysisRequest) (*models.AnalysisResult, error)
	OpenProgress(ctx context.Context, taskID string) (ProgressStream, error)
	AnalyzeSinglePage(ctx context.Context, pageURL string) (*models.CompetitorRecord, error)
	CompareNgrams(ctx context.Context, req *models.NgramRequest) (*models.LSIResult, error)
	AnalyzeKeywords(ctx context.Context, req *models.KeywordsRequest) (*models.KeywordsResult, error)
}

type clientBackend struct {
	*analyzer.Client
}

func (b clientBackend) OpenProgress(ctx context.Context, taskID string) (ProgressStream, error) {
	return b.Client.OpenProgress(ctx, taskID)
}

// NewBackend adapts an analyzer client to the Backend interface.
func NewBackend(c *analyzer.Client) Backend {
	return clientBackend{c}
}
