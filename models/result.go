package models

// PageStats is the per-page word distribution reported by the backend.
type PageStats struct {
	WordCountInA      int `json:"word_count_in_a"`
	WordCountOutsideA int `json:"word_count_outside_a"`
	TextFragments     int `json:"text_fragments_count"`
	TotalVisibleWords int `json:"total_visible_words"`
}

// CompetitorRecord is one analyzed competitor page. URL is the unique key
// within a result set. Records are never mutated after creation; the whole
// set is replaced on pipeline reset.
type CompetitorRecord struct {
	Position int        `json:"position,omitempty"`
	URL      string     `json:"url"`
	Stats    *PageStats `json:"parsed_data,omitempty"`
	Status   string     `json:"status,omitempty"`

	// ParsedFrom tells whether the page was fetched live ("original")
	// or served from an archived copy ("saved_copy").
	ParsedFrom string `json:"parsed_from,omitempty"`

	// FallbackUsed marks that a backup URL was substituted.
	FallbackUsed bool `json:"fallback_used,omitempty"`
}

// OwnPage is the user's own page analysis within a primary-stage result.
type OwnPage struct {
	URL    string     `json:"url"`
	Stats  *PageStats `json:"parsed_data"`
	Status string     `json:"status,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// AnalysisSummary is the backend's pre-computed per-run aggregation.
type AnalysisSummary struct {
	MyPageAnalyzed        bool `json:"my_page_analyzed"`
	MyPageSuccess         bool `json:"my_page_success"`
	CompetitorsFound      int  `json:"competitors_found"`
	CompetitorsSuccessful int  `json:"competitors_successful"`
	TotalPagesAnalyzed    int  `json:"total_pages_analyzed"`
}

// AnalysisData echoes the queries the run was started with.
type AnalysisData struct {
	MainQuery         string   `json:"main_query"`
	AdditionalQueries []string `json:"additional_queries"`
}

// AnalysisResult is the primary-stage result envelope.
type AnalysisResult struct {
	TaskID       string             `json:"task_id"`
	MyPage       *OwnPage           `json:"my_page"`
	Competitors  []CompetitorRecord `json:"competitors"`
	AnalysisData AnalysisData       `json:"analysis_data"`
	Summary      AnalysisSummary    `json:"summary"`
	Error        string             `json:"error,omitempty"`
}

// NGramStat is one n-gram's comparative coverage. Read-only once produced.
type NGramStat struct {
	NGram string `json:"ngram"`

	// Forms lists the surface word-forms folded into this n-gram.
	Forms []string `json:"forms,omitempty"`

	// Size is the n-gram order (1..3).
	Size int `json:"size"`

	CompetitorCount int     `json:"competitor_count"`
	AvgCount        float64 `json:"avg_count"`
	MyCount         int     `json:"my_count"`
}

// Coverage derives the own-page coverage percentage against the
// competitor average: min(own/avg, 1) * 100, or 0 when avg is 0.
func (s *NGramStat) Coverage() float64 {
	if s.AvgCount == 0 {
		return 0
	}
	ratio := float64(s.MyCount) / s.AvgCount
	if ratio > 1 {
		ratio = 1
	}
	return ratio * 100
}

// LSIResult is the LSI-stage result grouped by n-gram order.
type LSIResult struct {
	NGrams             []NGramStat `json:"ngrams"`
	TotalCompetitors   int         `json:"total_competitors"`
	FilteredCount      int         `json:"filtered_count"`
	QueryWordsFiltered int         `json:"query_words_filtered"`
	MedianMode         bool        `json:"median_mode"`
	Error              string      `json:"error,omitempty"`
}

// ByOrder splits the n-gram list into unigram/bigram/trigram groups,
// preserving backend order within each group.
func (r *LSIResult) ByOrder() (unigrams, bigrams, trigrams []NGramStat) {
	for _, s := range r.NGrams {
		switch s.Size {
		case 1:
			unigrams = append(unigrams, s)
		case 2:
			bigrams = append(bigrams, s)
		case 3:
			trigrams = append(trigrams, s)
		}
	}
	return
}

// Clone returns a copy sharing no slices with the receiver.
func (r *LSIResult) Clone() *LSIResult {
	if r == nil {
		return nil
	}
	out := *r
	out.NGrams = make([]NGramStat, len(r.NGrams))
	for i, s := range r.NGrams {
		s.Forms = append([]string(nil), s.Forms...)
		out.NGrams[i] = s
	}
	return &out
}

// TagCounts is a keyword's occurrence count per HTML tag zone. Which zones
// are present depends on the search engine: google collapses all non-title
// zones into "all_text".
type TagCounts map[string]float64

// KeywordTagRow is one keyword phrase's per-zone occurrence counts across
// the three report sections. Read-only once produced.
type KeywordTagRow struct {
	Keyword string    `json:"keyword"`
	Top10   TagCounts `json:"top10"`
	Diff    TagCounts `json:"diff"`
	MySite  TagCounts `json:"my_site"`
}

// KeywordsResult is the keyword-stage result envelope.
type KeywordsResult struct {
	Table        []KeywordTagRow `json:"table"`
	TotalWords   TagCounts       `json:"total_words"`
	SearchEngine string          `json:"search_engine"`
	TagsUsed     []string        `json:"tags_used"`
	Error        string          `json:"error,omitempty"`
}

func (t TagCounts) clone() TagCounts {
	if t == nil {
		return nil
	}
	out := make(TagCounts, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Clone returns a copy sharing no slices or maps with the receiver.
func (r *KeywordsResult) Clone() *KeywordsResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Table = make([]KeywordTagRow, len(r.Table))
	for i, row := range r.Table {
		row.Top10 = row.Top10.clone()
		row.Diff = row.Diff.clone()
		row.MySite = row.MySite.clone()
		out.Table[i] = row
	}
	out.TotalWords = r.TotalWords.clone()
	out.TagsUsed = append([]string(nil), r.TagsUsed...)
	return &out
}
