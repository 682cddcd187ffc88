package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gl0balRak/textanalyzer-gateway/cache"
	"github.com/Gl0balRak/textanalyzer-gateway/models"
)

func newTestCoordinator(backend Backend) *Coordinator {
	return NewCoordinator(backend, fastConfig(), nil)
}

func mustRunPrimary(t *testing.T, c *Coordinator, backend *fakeBackend) {
	t.Helper()
	if err := c.RunPrimary(context.Background(), validRequest()); err != nil {
		t.Fatalf("RunPrimary: %v", err)
	}
	if got := c.StageView(models.StagePrimary).Status; got != models.StageSucceeded {
		t.Fatalf("primary status = %q, want succeeded", got)
	}
}

func TestRunPrimary_ValidationGate(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestCoordinator(backend)

	tests := []struct {
		name string
		req  *models.AnalysisRequest
	}{
		{"empty page url", &models.AnalysisRequest{MainQuery: "buy phone"}},
		{"empty main query", &models.AnalysisRequest{PageURL: "https://a.test"}},
		{"both empty", &models.AnalysisRequest{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.RunPrimary(context.Background(), tt.req)
			var vErr *models.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
		})
	}

	if analyze, _, _, _ := backend.calls(); analyze != 0 {
		t.Errorf("validation failures reached the network: %d calls", analyze)
	}
}

func TestRunPrimary_PopulatesState(t *testing.T) {
	backend := &fakeBackend{analyzeResult: primaryResult("", "https://c1.test", "https://c2.test")}
	c := newTestCoordinator(backend)

	mustRunPrimary(t, c, backend)

	snap := c.Snapshot()
	if len(snap.Competitors) != 2 {
		t.Fatalf("competitors = %d, want 2", len(snap.Competitors))
	}
	if snap.MyPage == nil || snap.MyPage.URL != "https://a.test" {
		t.Error("own page record missing")
	}
	if len(snap.Selected) != 0 {
		t.Errorf("selection not cleared after primary run: %v", snap.Selected)
	}
	if snap.Summary == nil || snap.Summary.CompetitorsFound != 2 {
		t.Error("summary not stored")
	}
}

func TestRunPrimary_ReplacesStateAndPrunesSelection(t *testing.T) {
	backend := &fakeBackend{analyzeResult: primaryResult("", "https://c1.test", "https://c2.test")}
	c := newTestCoordinator(backend)

	mustRunPrimary(t, c, backend)
	if err := c.ToggleCompetitor("https://c1.test"); err != nil {
		t.Fatalf("ToggleCompetitor: %v", err)
	}

	// A new primary run replaces the competitor set; no stale URL may
	// survive in the selection.
	backend.analyzeResult = primaryResult("", "https://d1.test")
	mustRunPrimary(t, c, backend)

	snap := c.Snapshot()
	if len(snap.Selected) != 0 {
		t.Errorf("selection kept URLs from the replaced set: %v", snap.Selected)
	}
	if len(snap.Competitors) != 1 || snap.Competitors[0].URL != "https://d1.test" {
		t.Errorf("competitor set not replaced: %+v", snap.Competitors)
	}
}

func TestRunPrimary_RejectedDuplicateKeepsState(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{analyzeResult: primaryResult("", "https://c1.test"), analyzeGate: gate}
	c := newTestCoordinator(backend)

	done := make(chan error, 1)
	go func() { done <- c.RunPrimary(context.Background(), validRequest()) }()

	// Wait until the accepted run has passed its own downstream wipe
	// and is blocked inside the backend call.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if analyze, _, _, _ := backend.calls(); analyze == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	// Stands in for results a rejected duplicate must not destroy.
	c.mu.Lock()
	c.competitors = []models.CompetitorRecord{{Position: 1, URL: "https://kept.test"}}
	c.selected = map[string]struct{}{"https://kept.test": {}}
	c.mu.Unlock()

	if err := c.RunPrimary(context.Background(), validRequest()); !errors.Is(err, models.ErrStageBusy) {
		t.Fatalf("duplicate RunPrimary = %v, want ErrStageBusy", err)
	}

	snap := c.Snapshot()
	if len(snap.Competitors) != 1 || snap.Competitors[0].URL != "https://kept.test" {
		t.Errorf("rejected duplicate wiped competitors: %+v", snap.Competitors)
	}
	if len(snap.Selected) != 1 {
		t.Errorf("rejected duplicate wiped selection: %v", snap.Selected)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
}

func TestToggleCompetitor_SelfInverse(t *testing.T) {
	backend := &fakeBackend{analyzeResult: primaryResult("", "https://c1.test")}
	c := newTestCoordinator(backend)
	mustRunPrimary(t, c, backend)

	if err := c.ToggleCompetitor("https://c1.test"); err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if got := c.Snapshot().Selected; len(got) != 1 {
		t.Fatalf("selected = %v, want one entry", got)
	}
	if err := c.ToggleCompetitor("https://c1.test"); err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if got := c.Snapshot().Selected; len(got) != 0 {
		t.Errorf("toggle is not its own inverse: %v", got)
	}

	if err := c.ToggleCompetitor("https://unknown.test"); err == nil {
		t.Error("toggling a URL outside the competitor set must fail")
	}
}

func TestSelectAll_ToggleSemantics(t *testing.T) {
	backend := &fakeBackend{analyzeResult: primaryResult("",
		"https://c1.test", "https://c2.test", "https://c3.test", "https://c4.test", "https://c5.test")}
	c := newTestCoordinator(backend)
	mustRunPrimary(t, c, backend)

	for _, u := range []string{"https://c1.test", "https://c2.test", "https://c3.test"} {
		if err := c.ToggleCompetitor(u); err != nil {
			t.Fatalf("toggle %s: %v", u, err)
		}
	}

	c.SelectAll()
	if got := c.Snapshot().Selected; len(got) != 5 {
		t.Fatalf("select-all with partial selection selected %d, want 5", len(got))
	}

	c.SelectAll()
	if got := c.Snapshot().Selected; len(got) != 0 {
		t.Errorf("select-all with full selection kept %d, want 0", len(got))
	}
}

func TestRunLSI_Preconditions(t *testing.T) {
	backend := &fakeBackend{analyzeResult: primaryResult("", "https://c1.test")}
	c := newTestCoordinator(backend)

	// Before any primary run.
	err := c.RunLSI(context.Background(), nil)
	var pErr *models.PreconditionError
	if !errors.As(err, &pErr) {
		t.Fatalf("RunLSI before primary = %v, want PreconditionError", err)
	}

	// After primary, but with an empty selection.
	mustRunPrimary(t, c, backend)
	err = c.RunLSI(context.Background(), nil)
	if !errors.As(err, &pErr) {
		t.Fatalf("RunLSI with empty selection = %v, want PreconditionError", err)
	}

	if _, _, ngram, _ := backend.calls(); ngram != 0 {
		t.Errorf("precondition failures reached the network: %d calls", ngram)
	}
}

func TestRunKeywords_Preconditions(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestCoordinator(backend)

	var pErr *models.PreconditionError
	if err := c.RunKeywords(context.Background()); !errors.As(err, &pErr) {
		t.Fatalf("RunKeywords before primary = %v, want PreconditionError", err)
	}
	if _, _, _, keyword := backend.calls(); keyword != 0 {
		t.Errorf("precondition failure reached the network: %d calls", keyword)
	}
}

func TestRunLSI_BuildsRequestFromSelection(t *testing.T) {
	backend := &fakeBackend{
		analyzeResult: primaryResult("", "https://c1.test", "https://c2.test", "https://c3.test"),
		ngramResult: &models.LSIResult{
			NGrams: []models.NGramStat{{NGram: "phone", Size: 1, AvgCount: 3, MyCount: 1}},
		},
	}
	c := NewCoordinator(backend, fastConfig(), nil)
	mustRunPrimary(t, c, backend)

	if err := c.ToggleCompetitor("https://c3.test"); err != nil {
		t.Fatal(err)
	}
	if err := c.ToggleCompetitor("https://c1.test"); err != nil {
		t.Fatal(err)
	}

	if err := c.RunLSI(context.Background(), &LSIParams{N: 2, TopK: 20}); err != nil {
		t.Fatalf("RunLSI: %v", err)
	}

	snap := c.Snapshot()
	if snap.LSIData == nil || len(snap.LSIData.NGrams) != 1 {
		t.Fatal("LSI result not stored")
	}
	if got := snap.LSI.Status; got != models.StageSucceeded {
		t.Errorf("lsi status = %q, want succeeded", got)
	}
	if got := snap.LSI.Progress; got != 100 {
		t.Errorf("lsi progress = %v, want 100", got)
	}
	// Selection order follows competitor ranking regardless of toggle order.
	if len(snap.Selected) != 2 || snap.Selected[0] != "https://c1.test" || snap.Selected[1] != "https://c3.test" {
		t.Errorf("selected = %v, want ranking order", snap.Selected)
	}
}

func TestRunKeywords_FailureKeepsLSIData(t *testing.T) {
	backend := &fakeBackend{
		analyzeResult: primaryResult("", "https://c1.test"),
		ngramResult: &models.LSIResult{
			NGrams: []models.NGramStat{{NGram: "phone", Size: 1, AvgCount: 3, MyCount: 1}},
		},
		keywordErr: &models.RemoteError{Status: 500, Body: "backend exploded"},
	}
	c := newTestCoordinator(backend)
	mustRunPrimary(t, c, backend)
	c.SelectAll()

	if err := c.RunLSI(context.Background(), nil); err != nil {
		t.Fatalf("RunLSI: %v", err)
	}

	var rErr *models.RemoteError
	if err := c.RunKeywords(context.Background()); !errors.As(err, &rErr) {
		t.Fatalf("RunKeywords error = %v, want RemoteError", err)
	}

	snap := c.Snapshot()
	if snap.Keywords.Status != models.StageFailed {
		t.Errorf("keywords status = %q, want failed", snap.Keywords.Status)
	}
	if snap.LSIData == nil || len(snap.LSIData.NGrams) != 1 {
		t.Error("keyword-stage failure wiped the still-valid LSI data")
	}
	if snap.MyPage == nil || len(snap.Competitors) != 1 {
		t.Error("keyword-stage failure wiped upstream primary data")
	}
}

func TestAddSingleURL(t *testing.T) {
	backend := &fakeBackend{
		analyzeResult: primaryResult("", "https://c1.test"),
		singleResult: &models.CompetitorRecord{
			URL:   "https://manual.test",
			Stats: &models.PageStats{TotalVisibleWords: 640},
		},
	}
	c := NewCoordinator(backend, fastConfig(), cache.New(10, time.Minute))
	mustRunPrimary(t, c, backend)

	record, err := c.AddSingleURL(context.Background(), "https://manual.test")
	if err != nil {
		t.Fatalf("AddSingleURL: %v", err)
	}
	if record.Stats.TotalVisibleWords != 640 {
		t.Errorf("record stats = %+v", record.Stats)
	}
	if got := len(c.Snapshot().Competitors); got != 2 {
		t.Fatalf("competitors = %d after manual add, want 2", got)
	}

	// Re-adding the same URL within the cache TTL replaces in place
	// without another backend call.
	if _, err := c.AddSingleURL(context.Background(), "https://manual.test"); err != nil {
		t.Fatalf("repeat AddSingleURL: %v", err)
	}
	if got := len(c.Snapshot().Competitors); got != 2 {
		t.Errorf("repeat add duplicated the record: %d competitors", got)
	}
	if _, single, _, _ := backend.calls(); single != 1 {
		t.Errorf("single-page calls = %d, want 1 (second served from cache)", single)
	}
}

func TestAddSingleURL_FailureIsIsolated(t *testing.T) {
	backend := &fakeBackend{
		analyzeResult: primaryResult("", "https://c1.test"),
		singleErr:     &models.ServerError{Message: "page unreachable"},
	}
	c := newTestCoordinator(backend)
	mustRunPrimary(t, c, backend)

	_, err := c.AddSingleURL(context.Background(), "https://broken.test")
	var spErr *models.SinglePageError
	if !errors.As(err, &spErr) {
		t.Fatalf("error = %v, want SinglePageError", err)
	}

	snap := c.Snapshot()
	if len(snap.Competitors) != 1 {
		t.Error("failed single-page add mutated the competitor set")
	}
	if snap.Primary.Status != models.StageSucceeded {
		t.Error("failed single-page add touched stage state")
	}
}

func TestSnapshot_DeepCopies(t *testing.T) {
	backend := &fakeBackend{
		analyzeResult: primaryResult("", "https://c1.test"),
		ngramResult: &models.LSIResult{
			NGrams: []models.NGramStat{{NGram: "phone", Size: 1, Forms: []string{"phones"}, AvgCount: 3, MyCount: 1}},
		},
		keywordResult: &models.KeywordsResult{
			Table:      []models.KeywordTagRow{{Keyword: "phone", Top10: models.TagCounts{"title": 2}}},
			TotalWords: models.TagCounts{"title": 10},
			TagsUsed:   []string{"title"},
		},
	}
	c := newTestCoordinator(backend)
	mustRunPrimary(t, c, backend)
	c.SelectAll()
	if err := c.RunLSI(context.Background(), nil); err != nil {
		t.Fatalf("RunLSI: %v", err)
	}
	if err := c.RunKeywords(context.Background()); err != nil {
		t.Fatalf("RunKeywords: %v", err)
	}

	snap := c.Snapshot()
	snap.Competitors[0].Stats.TotalVisibleWords = -1
	snap.LSIData.NGrams[0].Forms[0] = "mangled"
	snap.KeywordsData.Table[0].Top10["title"] = -1
	snap.KeywordsData.TotalWords["title"] = -1
	snap.KeywordsData.TagsUsed[0] = "mangled"

	fresh := c.Snapshot()
	if fresh.Competitors[0].Stats.TotalVisibleWords != 1000 {
		t.Error("competitor stats shared with live state")
	}
	if fresh.LSIData.NGrams[0].Forms[0] != "phones" {
		t.Error("n-gram forms shared with live state")
	}
	if fresh.KeywordsData.Table[0].Top10["title"] != 2 {
		t.Error("keyword tag counts shared with live state")
	}
	if fresh.KeywordsData.TotalWords["title"] != 10 {
		t.Error("total word counts shared with live state")
	}
	if fresh.KeywordsData.TagsUsed[0] != "title" {
		t.Error("tags-used slice shared with live state")
	}
}

func TestResetAll(t *testing.T) {
	backend := &fakeBackend{analyzeResult: primaryResult("", "https://c1.test")}
	c := newTestCoordinator(backend)
	mustRunPrimary(t, c, backend)
	c.SelectAll()

	c.ResetAll()
	snap := c.Snapshot()
	if snap.Primary.Status != models.StageIdle || snap.LSI.Status != models.StageIdle || snap.Keywords.Status != models.StageIdle {
		t.Error("stages not idle after ResetAll")
	}
	if len(snap.Competitors) != 0 || len(snap.Selected) != 0 || snap.MyPage != nil {
		t.Error("run state survived ResetAll")
	}

	// Idempotent.
	c.ResetAll()
}
