package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// analysisRequest mirrors the gateway API request model.
type analysisRequest struct {
	PageURL           string   `json:"page_url"`
	MainQuery         string   `json:"main_query"`
	AdditionalQueries []string `json:"additional_queries,omitempty"`
	ExcludedWords     []string `json:"excluded_words,omitempty"`
	SearchEngine      string   `json:"search_engine,omitempty"`
	Region            string   `json:"region,omitempty"`
	TopSize           int      `json:"top_size,omitempty"`
}

// stageView mirrors the gateway stage state model.
type stageView struct {
	Kind     string  `json:"kind"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	TaskID   string  `json:"task_id,omitempty"`
	Error    *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// snapshot mirrors the stage views of the gateway pipeline snapshot.
type snapshot struct {
	Primary  stageView `json:"primary"`
	LSI      stageView `json:"lsi"`
	Keywords stageView `json:"keywords"`
}

// apiError mirrors the gateway error envelope.
type apiError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// gatewayClient is a small session-aware client for the gateway API.
// The gateway assigns a workspace ID on first contact; carrying it on
// every call keeps all tools operating on the same analysis state.
type gatewayClient struct {
	baseURL   string
	token     string
	sessionID string
	http      *http.Client
}

func newGatewayClient() *gatewayClient {
	baseURL := os.Getenv("ANALYZER_GATEWAY_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8090"
	}
	return &gatewayClient{
		baseURL: baseURL,
		token:   os.Getenv("ANALYZER_API_TOKEN"),
		http:    &http.Client{Timeout: 120 * time.Second},
	}
}

func (g *gatewayClient) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+"/api/v1"+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	if g.sessionID != "" {
		req.Header.Set("X-Session-ID", g.sessionID)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if id := resp.Header.Get("X-Session-ID"); id != "" {
		g.sessionID = id
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

// pollStage polls the pipeline snapshot until the named stage reaches a
// terminal state or the context is cancelled.
func (g *gatewayClient) pollStage(ctx context.Context, stage string) ([]byte, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			body, status, err := g.do(ctx, http.MethodGet, "/analysis", nil)
			if err != nil {
				return nil, err
			}
			if status != http.StatusOK {
				return nil, fmt.Errorf("gateway returned status %d: %s", status, body)
			}

			var snap snapshot
			if err := json.Unmarshal(body, &snap); err != nil {
				return nil, fmt.Errorf("parse snapshot: %w", err)
			}
			view := snap.Primary
			switch stage {
			case "lsi":
				view = snap.LSI
			case "keywords":
				view = snap.Keywords
			}
			if view.Status == "succeeded" || view.Status == "failed" {
				return body, nil
			}
		}
	}
}

func errorMessage(body []byte, status int) string {
	var e apiError
	if json.Unmarshal(body, &e) == nil && e.Error != nil {
		return fmt.Sprintf("%s: %s", e.Error.Code, e.Error.Message)
	}
	return fmt.Sprintf("gateway returned status %d: %s", status, body)
}

func main() {
	g := newGatewayClient()

	s := server.NewMCPServer(
		"textanalyzer",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	analyzePageTool := mcp.NewTool("analyze_page",
		mcp.WithDescription("Analyze a page's text metrics against the search results top for a query. Returns per-competitor word counts and a summary. Blocks until the analysis finishes."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the page to analyze"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The main search query to compare against"),
		),
		mcp.WithString("search_engine",
			mcp.Description("Search engine to pull the top from: 'yandex' (default) or 'google'"),
			mcp.Enum("yandex", "google"),
		),
		mcp.WithString("region",
			mcp.Description("Search region code (default: '213')"),
		),
		mcp.WithNumber("top_size",
			mcp.Description("How many top results to compare against (default: 10)"),
		),
	)
	s.AddTool(analyzePageTool, handleAnalyzePage(g))

	singlePageTool := mcp.NewTool("analyze_single_page",
		mcp.WithDescription("Analyze a single extra URL and add it to the competitor table of the current analysis."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the page to analyze"),
		),
	)
	s.AddTool(singlePageTool, handleSinglePage(g))

	compareNgramsTool := mcp.NewTool("compare_ngrams",
		mcp.WithDescription("Run the LSI n-gram comparison between the analyzed page and the selected competitors. Requires analyze_page to have succeeded first; selects all competitors."),
		mcp.WithNumber("n",
			mcp.Description("Maximum n-gram order (default: 3)"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("How many top n-grams per order to keep (default: 50)"),
		),
	)
	s.AddTool(compareNgramsTool, handleCompareNgrams(g))

	keywordsTool := mcp.NewTool("analyze_keywords",
		mcp.WithDescription("Run the keyword-by-tag analysis between the analyzed page and the selected competitors. Requires analyze_page to have succeeded first; selects all competitors."),
	)
	s.AddTool(keywordsTool, handleAnalyzeKeywords(g))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleAnalyzePage(g *gatewayClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pageURL, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}
		if _, err := url.ParseRequestURI(pageURL); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid url: %v", err)), nil
		}

		reqBody := analysisRequest{
			PageURL:      pageURL,
			MainQuery:    query,
			SearchEngine: request.GetString("search_engine", ""),
			Region:       request.GetString("region", ""),
			TopSize:      request.GetInt("top_size", 0),
		}

		body, status, err := g.do(ctx, http.MethodPost, "/analysis", reqBody)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if status != http.StatusAccepted {
			return mcp.NewToolResultError(errorMessage(body, status)), nil
		}

		result, err := g.pollStage(ctx, "primary")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(result)), nil
	}
}

func handleSinglePage(g *gatewayClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pageURL, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		body, status, err := g.do(ctx, http.MethodPost, "/analysis/single-page", map[string]string{"url": pageURL})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if status != http.StatusOK {
			return mcp.NewToolResultError(errorMessage(body, status)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

func handleCompareNgrams(g *gatewayClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if result := selectAll(ctx, g); result != nil {
			return result, nil
		}

		params := map[string]int{}
		if n := request.GetInt("n", 0); n > 0 {
			params["n"] = n
		}
		if topK := request.GetInt("top_k", 0); topK > 0 {
			params["top_k"] = topK
		}

		body, status, err := g.do(ctx, http.MethodPost, "/lsi", params)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if status != http.StatusAccepted {
			return mcp.NewToolResultError(errorMessage(body, status)), nil
		}

		result, err := g.pollStage(ctx, "lsi")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(result)), nil
	}
}

func handleAnalyzeKeywords(g *gatewayClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if result := selectAll(ctx, g); result != nil {
			return result, nil
		}

		body, status, err := g.do(ctx, http.MethodPost, "/keywords", struct{}{})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if status != http.StatusAccepted {
			return mcp.NewToolResultError(errorMessage(body, status)), nil
		}

		result, err := g.pollStage(ctx, "keywords")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(result)), nil
	}
}

// selectAll marks every competitor selected before a downstream stage.
// The gateway's select-all toggles, so it only fires when the selection
// is empty. Returns a non-nil error result when a call fails.
func selectAll(ctx context.Context, g *gatewayClient) *mcp.CallToolResult {
	body, status, err := g.do(ctx, http.MethodGet, "/analysis", nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	if status != http.StatusOK {
		return mcp.NewToolResultError(errorMessage(body, status))
	}
	var snap struct {
		Selected []string `json:"selected"`
	}
	if err := json.Unmarshal(body, &snap); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("parse snapshot: %v", err))
	}
	if len(snap.Selected) > 0 {
		return nil
	}

	body, status, err = g.do(ctx, http.MethodPost, "/competitors/select-all", struct{}{})
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	if status != http.StatusOK {
		return mcp.NewToolResultError(errorMessage(body, status))
	}
	return nil
}
