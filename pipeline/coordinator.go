package pipeline

import (
	"context"
	"sync"

	"github.com/Gl0balRak/textanalyzer-gateway/cache"
	"github.com/Gl0balRak/textanalyzer-gateway/models"
	"github.com/Gl0balRak/textanalyzer-gateway/webhook"
)

// LSIParams are the optional user-tunable knobs for the LSI stage.
// Zero fields fall back to the backend's fixed defaults.
type LSIParams struct {
	N            int  `json:"n,omitempty"`
	TopK         int  `json:"top_k,omitempty"`
	ExactPhrases bool `json:"exact_phrases,omitempty"`
}

// Coordinator sequences the three stage controllers and carries data
// between them. It is the exclusive owner of all run state: competitor
// records, the selection set, and downstream results. One coordinator
// serves one analysis session.
type Coordinator struct {
	backend     Backend
	singleCache *cache.Cache

	primary  *Stage[models.AnalysisResult]
	lsi      *Stage[models.LSIResult]
	keywords *Stage[models.KeywordsResult]

	mu          sync.Mutex
	request     *models.AnalysisRequest
	myPage      *models.OwnPage
	competitors []models.CompetitorRecord
	selected    map[string]struct{}
	summary     *models.AnalysisSummary
	lsiData     *models.LSIResult
	keywordData *models.KeywordsResult
}

// NewCoordinator creates a coordinator over the given backend.
// singleCache may be nil to disable single-page deduplication.
func NewCoordinator(backend Backend, cfg Config, singleCache *cache.Cache) *Coordinator {
	c := &Coordinator{
		backend:     backend,
		singleCache: singleCache,
		selected:    make(map[string]struct{}),
	}
	c.primary = NewStage[models.AnalysisResult](models.StagePrimary, cfg, backend.OpenProgress)
	c.lsi = NewStage[models.LSIResult](models.StageLSI, cfg, nil)
	c.keywords = NewStage[models.KeywordsResult](models.StageKeywords, cfg, nil)
	return c
}

// RunPrimary validates and runs the primary analysis stage, blocking
// until it reaches a terminal state. On success the competitor set and
// own-page record are replaced wholesale and the selection is cleared.
func (c *Coordinator) RunPrimary(ctx context.Context, req *models.AnalysisRequest) error {
	req.Defaults()
	if err := req.Validate(); err != nil {
		return err
	}

	if c.primary.Status().Active() {
		return models.ErrStageBusy
	}

	err := c.primary.Run(ctx, func(ctx context.Context) (*models.AnalysisResult, string, error) {
		// The stage has accepted this run; only now invalidate
		// everything downstream. A duplicate rejected with
		// ErrStageBusy must leave existing results untouched.
		c.mu.Lock()
		reqCopy := *req
		c.request = &reqCopy
		c.myPage = nil
		c.competitors = nil
		c.summary = nil
		c.lsiData = nil
		c.keywordData = nil
		c.selected = make(map[string]struct{})
		c.mu.Unlock()
		c.lsi.Reset()
		c.keywords.Reset()

		result, err := c.backend.AnalyzePage(ctx, req)
		if err != nil {
			return nil, "", err
		}
		return result, result.TaskID, nil
	})
	if err != nil {
		c.notify(webhook.EventAnalysisFailed, models.ToDetail(err))
		return err
	}

	if result := c.primary.Result(); result != nil {
		c.mu.Lock()
		c.myPage = result.MyPage
		c.competitors = result.Competitors
		c.summary = &result.Summary
		c.pruneSelectionLocked()
		c.mu.Unlock()
		c.notify(webhook.EventAnalysisCompleted, result.Summary)
	}
	return nil
}

// AddSingleURL analyzes one manually-added URL outside the stage
// machinery and appends it to the competitor set. Re-adding an existing
// URL replaces that record, which also makes a failed addition
// retryable in place. Failures never touch pipeline-wide state.
func (c *Coordinator) AddSingleURL(ctx context.Context, pageURL string) (*models.CompetitorRecord, error) {
	if pageURL == "" {
		return nil, &models.ValidationError{Field: "url", Message: "URL is required"}
	}

	record, ok := c.cachedSingle(pageURL)
	if !ok {
		fetched, err := c.backend.AnalyzeSinglePage(ctx, pageURL)
		if err != nil {
			return nil, &models.SinglePageError{URL: pageURL, Err: err}
		}
		record = fetched
		if c.singleCache != nil {
			c.singleCache.Set(pageURL, fetched)
		}
	}

	c.mu.Lock()
	replaced := false
	for i := range c.competitors {
		if c.competitors[i].URL == record.URL {
			c.competitors[i] = *record
			replaced = true
			break
		}
	}
	if !replaced {
		c.competitors = append(c.competitors, *record)
	}
	c.mu.Unlock()
	return record, nil
}

func (c *Coordinator) cachedSingle(pageURL string) (*models.CompetitorRecord, bool) {
	if c.singleCache == nil {
		return nil, false
	}
	return c.singleCache.Get(pageURL)
}

// ToggleCompetitor flips one URL's membership in the selection set.
// The URL must belong to the current competitor set.
func (c *Coordinator) ToggleCompetitor(pageURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	known := false
	for i := range c.competitors {
		if c.competitors[i].URL == pageURL {
			known = true
			break
		}
	}
	if !known {
		return &models.ValidationError{Field: "url", Message: "URL is not in the analyzed competitor set"}
	}

	if _, ok := c.selected[pageURL]; ok {
		delete(c.selected, pageURL)
	} else {
		c.selected[pageURL] = struct{}{}
	}
	return nil
}

// SelectAll selects every competitor unless all are already selected,
// in which case it clears the selection.
func (c *Coordinator) SelectAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.selected) == len(c.competitors) && len(c.competitors) > 0 {
		c.selected = make(map[string]struct{})
		return
	}
	for i := range c.competitors {
		c.selected[c.competitors[i].URL] = struct{}{}
	}
}

// pruneSelectionLocked drops selected URLs no longer present in the
// competitor set. Caller must hold c.mu.
func (c *Coordinator) pruneSelectionLocked() {
	for url := range c.selected {
		found := false
		for i := range c.competitors {
			if c.competitors[i].URL == url {
				found = true
				break
			}
		}
		if !found {
			delete(c.selected, url)
		}
	}
}

// RunLSI runs the LSI n-gram comparison over the selected competitors,
// blocking until terminal. params may be nil for backend defaults.
func (c *Coordinator) RunLSI(ctx context.Context, params *LSIParams) error {
	req, err := c.buildNgramRequest(params)
	if err != nil {
		return err
	}

	err = c.lsi.Run(ctx, func(ctx context.Context) (*models.LSIResult, string, error) {
		result, err := c.backend.CompareNgrams(ctx, req)
		return result, "", err
	})
	if err != nil {
		c.notify(webhook.EventLSIFailed, models.ToDetail(err))
		return err
	}

	if result := c.lsi.Result(); result != nil {
		c.mu.Lock()
		c.lsiData = result
		c.mu.Unlock()
		c.notify(webhook.EventLSICompleted, nil)
	}
	return nil
}

// RunKeywords runs the keyword-by-tag analysis over the selected
// competitors, blocking until terminal.
func (c *Coordinator) RunKeywords(ctx context.Context) error {
	req, err := c.buildKeywordsRequest()
	if err != nil {
		return err
	}

	err = c.keywords.Run(ctx, func(ctx context.Context) (*models.KeywordsResult, string, error) {
		result, err := c.backend.AnalyzeKeywords(ctx, req)
		return result, "", err
	})
	if err != nil {
		c.notify(webhook.EventKeywordsFailed, models.ToDetail(err))
		return err
	}

	if result := c.keywords.Result(); result != nil {
		c.mu.Lock()
		c.keywordData = result
		c.mu.Unlock()
		c.notify(webhook.EventKeywordsCompleted, nil)
	}
	return nil
}

// downstreamInputLocked gates LSI/keyword runs on their upstream data.
// Caller must hold c.mu.
func (c *Coordinator) downstreamInputLocked() (myURL string, selected []string, err error) {
	if c.myPage == nil || c.myPage.URL == "" {
		return "", nil, &models.PreconditionError{Message: "run the primary analysis first"}
	}
	if len(c.selected) == 0 {
		return "", nil, &models.PreconditionError{Message: "select at least one competitor"}
	}
	// Selection order follows the competitor ranking, not map order.
	for i := range c.competitors {
		if _, ok := c.selected[c.competitors[i].URL]; ok {
			selected = append(selected, c.competitors[i].URL)
		}
	}
	return c.myPage.URL, selected, nil
}

func (c *Coordinator) buildNgramRequest(params *LSIParams) (*models.NgramRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	myURL, selected, err := c.downstreamInputLocked()
	if err != nil {
		return nil, err
	}

	req := &models.NgramRequest{
		CompetitorURLs: selected,
		MyURL:          myURL,
	}
	if params != nil {
		req.N = params.N
		req.TopK = params.TopK
		req.ExactPhrases = params.ExactPhrases
	}
	req.Defaults()
	if c.request != nil {
		req.MedianMode = c.request.CalculateByMedian
		req.MainQuery = c.request.MainQuery
		req.AdditionalQueries = c.request.AdditionalQueries
	}
	return req, nil
}

func (c *Coordinator) buildKeywordsRequest() (*models.KeywordsRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	myURL, selected, err := c.downstreamInputLocked()
	if err != nil {
		return nil, err
	}

	req := &models.KeywordsRequest{
		CompetitorURLs: selected,
		MyURL:          myURL,
	}
	if c.request != nil {
		req.MainQuery = c.request.MainQuery
		req.AdditionalQueries = c.request.AdditionalQueries
		req.SearchEngine = c.request.SearchEngine
	}
	return req, nil
}

// ResetAll tears down every stage and destroys all run state. This is
// the only way to start a materially new analysis. Idempotent.
func (c *Coordinator) ResetAll() {
	c.primary.Reset()
	c.lsi.Reset()
	c.keywords.Reset()

	c.mu.Lock()
	c.request = nil
	c.myPage = nil
	c.competitors = nil
	c.summary = nil
	c.lsiData = nil
	c.keywordData = nil
	c.selected = make(map[string]struct{})
	c.mu.Unlock()
}

// StageView returns the read model for one stage kind.
func (c *Coordinator) StageView(kind models.StageKind) models.StageView {
	switch kind {
	case models.StageLSI:
		return c.lsi.View()
	case models.StageKeywords:
		return c.keywords.View()
	default:
		return c.primary.View()
	}
}

// Snapshot returns a deep-copied read model of the whole pipeline.
func (c *Coordinator) Snapshot() *models.PipelineSnapshot {
	snap := &models.PipelineSnapshot{
		Primary:  c.primary.View(),
		LSI:      c.lsi.View(),
		Keywords: c.keywords.View(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.myPage != nil {
		page := *c.myPage
		if c.myPage.Stats != nil {
			stats := *c.myPage.Stats
			page.Stats = &stats
		}
		snap.MyPage = &page
	}
	snap.Competitors = append([]models.CompetitorRecord(nil), c.competitors...)
	for i := range snap.Competitors {
		if snap.Competitors[i].Stats != nil {
			stats := *snap.Competitors[i].Stats
			snap.Competitors[i].Stats = &stats
		}
	}
	for i := range c.competitors {
		if c.competitors[i].URL != "" {
			if _, ok := c.selected[c.competitors[i].URL]; ok {
				snap.Selected = append(snap.Selected, c.competitors[i].URL)
			}
		}
	}
	if c.summary != nil {
		summary := *c.summary
		snap.Summary = &summary
	}
	snap.LSIData = c.lsiData.Clone()
	snap.KeywordsData = c.keywordData.Clone()
	return snap
}

// notify fires a webhook event when the current request asked for one.
func (c *Coordinator) notify(eventType string, data any) {
	c.mu.Lock()
	var url, secret, taskID string
	if c.request != nil {
		url = c.request.WebhookURL
		secret = c.request.WebhookSecret
	}
	c.mu.Unlock()
	if url == "" {
		return
	}
	if result := c.primary.Result(); result != nil {
		taskID = result.TaskID
	}
	webhook.DeliverAsync(url, secret, &webhook.Event{
		Type:   eventType,
		TaskID: taskID,
		Data:   data,
	})
}
