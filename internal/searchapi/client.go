package searchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"omnisearch/backend/internal/config"
)

const maxErrorBodyBytes = 8 * 1024

var ErrMissingAPIKey = errors.New("search api key is not configured")

// Client wraps the upstream combined (AI-answer + web) search endpoint and
// its web-only and suggestion paths.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg config.Config, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return Client{
		apiKey:     strings.TrimSpace(cfg.SearchAPIKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.SearchAPIBaseURL), "/"),
		httpClient: httpClient,
	}
}

// Combined issues a full AI-answer + web-search request.
func (c Client) Combined(ctx context.Context, req Request) (Response, error) {
	body, err := c.get(ctx, "/search", req.encode(), req.Bearer)
	if err != nil {
		return Response{}, err
	}

	var parsed Response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode search response: %w", err)
	}
	return parsed, nil
}

// Traditional issues a web-search-only request. AI-related parameters are
// stripped regardless of what the caller set.
func (c Client) Traditional(ctx context.Context, req Request) ([]WebResult, error) {
	req.Type = TypeTraditional
	req.DisableTools = false
	req.DeepResearch = false
	req.Model = ""
	req.DetailLevel = ""
	req.CitationStyle = ""

	body, err := c.get(ctx, "/search", req.encode(), req.Bearer)
	if err != nil {
		return nil, err
	}

	var parsed Response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode traditional response: %w", err)
	}
	return dedupeWebResults(parsed.Traditional), nil
}

type suggestAPIResponse struct {
	Suggestions []string `json:"suggestions"`
}

// Suggest returns query completions for a partial query.
func (c Client) Suggest(ctx context.Context, query string, limit int) ([]string, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 8
	}

	params := url.Values{}
	params.Set("q", trimmed)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/suggest", params, "")
	if err != nil {
		return nil, err
	}

	var parsed suggestAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode suggest response: %w", err)
	}

	out := make([]string, 0, len(parsed.Suggestions))
	for _, suggestion := range parsed.Suggestions {
		if s := strings.TrimSpace(suggestion); s != "" {
			out = append(out, s)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c Client) get(ctx context.Context, path string, params url.Values, bearer string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("parse search endpoint: %w", err)
	}
	endpoint.RawQuery = params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request search upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, APIError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	return body, nil
}

func dedupeWebResults(results []WebResult) []WebResult {
	out := make([]WebResult, 0, len(results))
	seen := make(map[string]struct{}, len(results))
	for _, item := range results {
		rawURL := strings.TrimSpace(item.URL)
		if rawURL == "" {
			continue
		}
		if _, exists := seen[rawURL]; exists {
			continue
		}
		seen[rawURL] = struct{}{}
		if strings.TrimSpace(item.Title) == "" {
			item.Title = rawURL
		}
		out = append(out, item)
	}
	return out
}
