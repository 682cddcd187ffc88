// Package analyzer is the HTTP client for the external analysis backend.
// It wraps the backend's job-submission endpoints and its SSE progress
// stream. All analysis happens server-side; this client only submits
// requests and decodes envelopes.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Gl0balRak/textanalyzer-gateway/models"
)

// Client talks to one analyzer backend instance. It uses net/http
// directly — no third-party SDK needed.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// TokenSource, when set, supplies the bearer token attached to
	// every request. Called per request so refreshed tokens are seen.
	TokenSource func() string
}

// NewClient creates a Client for the given base URL.
// Pass nil to use a default http.Client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// AnalyzePage submits the primary analysis job. The backend responds
// with the full result envelope, including the task id for the
// progress stream.
func (c *Client) AnalyzePage(ctx context.Context, req *models.AnalysisRequest) (*models.AnalysisResult, error) {
	var result models.AnalysisResult
	if err := c.postJSON(ctx, "/analyzer/analyze-a-tags", req, &result); err != nil {
		return nil, err
	}
	if result.Error != "" {
		return nil, &models.ServerError{Message: result.Error}
	}
	return &result, nil
}

// AnalyzeSinglePage analyzes one manually-added URL outside the
// progress machinery.
func (c *Client) AnalyzeSinglePage(ctx context.Context, pageURL string) (*models.CompetitorRecord, error) {
	endpoint := "/analyzer/analyze-single-page?url=" + url.QueryEscape(pageURL)
	var env struct {
		models.CompetitorRecord
		Error string `json:"error,omitempty"`
	}
	if err := c.postJSON(ctx, endpoint, nil, &env); err != nil {
		return nil, err
	}
	if env.Error != "" {
		return nil, &models.ServerError{Message: env.Error}
	}
	record := env.CompetitorRecord
	if record.URL == "" {
		record.URL = pageURL
	}
	return &record, nil
}

// CompareNgrams runs the LSI n-gram comparison.
func (c *Client) CompareNgrams(ctx context.Context, req *models.NgramRequest) (*models.LSIResult, error) {
	var result models.LSIResult
	if err := c.postJSON(ctx, "/analyzer/ngrams/compare", req, &result); err != nil {
		return nil, err
	}
	if result.Error != "" {
		return nil, &models.ServerError{Message: result.Error}
	}
	return &result, nil
}

// AnalyzeKeywords runs the keyword-by-tag analysis.
func (c *Client) AnalyzeKeywords(ctx context.Context, req *models.KeywordsRequest) (*models.KeywordsResult, error) {
	var result models.KeywordsResult
	if err := c.postJSON(ctx, "/analyzer/keywords/analyze-full", req, &result); err != nil {
		return nil, err
	}
	if result.Error != "" {
		return nil, &models.ServerError{Message: result.Error}
	}
	return &result, nil
}

// postJSON sends one POST and decodes the JSON response into out.
// Non-2xx statuses become *models.RemoteError.
func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read backend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &models.RemoteError{Status: resp.StatusCode, Body: truncate(string(respBody), 512)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse backend response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.TokenSource != nil {
		if token := c.TokenSource(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
