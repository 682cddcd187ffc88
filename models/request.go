package models

// Search engine identifiers accepted by the analyzer backend.
const (
	EngineYandex = "yandex"
	EngineGoogle = "google"
)

// AnalysisRequest is the immutable input to a pipeline run.
// Field names follow the analyzer backend's JSON schema.
type AnalysisRequest struct {
	// PageURL is the user's own page to compare against the top. Required.
	PageURL string `json:"page_url" binding:"required"`

	// MainQuery is the primary search query. Required.
	MainQuery string `json:"main_query" binding:"required"`

	// AdditionalQueries are extra queries, order-significant.
	AdditionalQueries []string `json:"additional_queries,omitempty"`

	// ExcludedWords are stop words removed from the comparison. Set semantics.
	ExcludedWords []string `json:"excluded_words,omitempty"`

	CheckAI         bool `json:"check_ai,omitempty"`
	CheckSpelling   bool `json:"check_spelling,omitempty"`
	CheckUniqueness bool `json:"check_uniqueness,omitempty"`

	// SearchEngine is "yandex" or "google". Default: "yandex".
	SearchEngine string `json:"search_engine,omitempty" binding:"omitempty,oneof=yandex google"`

	// Region is the search region code. Default: "213" (Moscow).
	Region string `json:"region,omitempty"`

	// TopSize is how many ranking competitors to fetch. Default: 10.
	TopSize int `json:"top_size,omitempty" binding:"omitempty,min=1,max=100"`

	// ExcludePlatforms drops aggregator/marketplace results from the top.
	ExcludePlatforms bool `json:"exclude_platforms,omitempty"`

	// ParseArchived allows falling back to archived copies of
	// competitor pages that refuse to be fetched live.
	ParseArchived bool `json:"parse_saved_copies,omitempty"`

	// CalculateByMedian switches averages to medians in the comparison.
	CalculateByMedian bool `json:"median_mode,omitempty"`

	// WebhookURL, when set, receives stage completion events.
	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *AnalysisRequest) Defaults() {
	if r.SearchEngine == "" {
		r.SearchEngine = EngineYandex
	}
	if r.Region == "" {
		r.Region = "213"
	}
	if r.TopSize == 0 {
		r.TopSize = 10
	}
}

// Validate enforces the submission gate: page URL and main query must
// both be present before anything is sent to the network.
func (r *AnalysisRequest) Validate() error {
	if r.PageURL == "" {
		return &ValidationError{Field: "page_url", Message: "page URL is required"}
	}
	if r.MainQuery == "" {
		return &ValidationError{Field: "main_query", Message: "main query is required"}
	}
	return nil
}

// NgramRequest is the payload for the LSI comparison call.
type NgramRequest struct {
	CompetitorURLs []string `json:"competitor_urls"`
	MyURL          string   `json:"my_url"`

	// N is the maximum n-gram order to compare. Default: 3.
	N int `json:"n,omitempty"`

	// TopK limits how many n-grams the backend returns. Default: 50.
	TopK int `json:"top_k,omitempty"`

	// ExactPhrases disables word-form folding.
	ExactPhrases bool `json:"exact_phrases,omitempty"`

	MedianMode        bool     `json:"median_mode,omitempty"`
	MainQuery         string   `json:"main_query,omitempty"`
	AdditionalQueries []string `json:"additional_queries,omitempty"`
}

// Defaults applies the backend's fixed defaults to unset tuning fields.
func (r *NgramRequest) Defaults() {
	if r.N == 0 {
		r.N = 3
	}
	if r.TopK == 0 {
		r.TopK = 50
	}
}

// KeywordsRequest is the payload for the keyword-by-tag analysis call.
type KeywordsRequest struct {
	CompetitorURLs    []string `json:"competitor_urls"`
	MyURL             string   `json:"my_url"`
	MainQuery         string   `json:"main_query"`
	AdditionalQueries []string `json:"additional_queries,omitempty"`
	SearchEngine      string   `json:"search_engine,omitempty"`
}
