package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"omnisearch/backend/internal/auth"
	"omnisearch/backend/internal/config"
	"omnisearch/backend/internal/resultcache"
	"omnisearch/backend/internal/search"
	"omnisearch/backend/internal/session"
	"omnisearch/backend/internal/suggest"
)

type runnerStub struct {
	result  search.NormalizedResult
	err     error
	queries []search.Query
}

func (r *runnerStub) Run(_ context.Context, query search.Query, _ string) (search.NormalizedResult, error) {
	r.queries = append(r.queries, query)
	return r.result, r.err
}

type suggestFetcherStub struct {
	result []string
	err    error
}

func (f suggestFetcherStub) Suggest(context.Context, string, int) ([]string, error) {
	return f.result, f.err
}

func newTestServer(t *testing.T, runner SearchRunner, fetcher suggest.Fetcher) (*httptest.Server, *resultcache.Registry) {
	t.Helper()

	cfg := config.Config{
		AuthRequired:      false,
		SessionCookieName: "omnisearch_session",
	}
	if fetcher == nil {
		fetcher = suggestFetcherStub{}
	}
	caches := resultcache.NewRegistry()
	debouncer := suggest.NewDebouncer(fetcher, suggest.Config{QuietPeriod: time.Millisecond})

	h := NewHandler(cfg, session.NewStore(nil), auth.Verifier{}, runner, caches, debouncer)

	r := chi.NewRouter()
	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(p chi.Router) {
			p.Use(h.RequireSession)
			p.Get("/search", h.Search)
			p.Get("/search/results/{category}", h.CachedResult)
			p.Post("/search/results/{category}/retry", h.RetryCategory)
			p.Get("/search/suggestions", h.Suggestions)
			p.Get("/search/filters", h.GetFilters)
			p.Patch("/search/filters", h.UpdateFilters)
			p.Post("/search/filters/reset", h.ResetFilters)
		})
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, caches
}

func doRequest(t *testing.T, method, url string, body string) *http.Response {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestSearchWritesResultToCache(t *testing.T) {
	runner := &runnerStub{result: search.NormalizedResult{
		AI:          &search.Answer{Answer: "a", Model: "llama-3.3-70b"},
		Traditional: []search.WebResult{{Title: "t", URL: "https://example.com"}},
	}}
	server, caches := newTestServer(t, runner, nil)

	resp := doRequest(t, http.MethodGet, server.URL+"/v1/search?q=solar&category=news", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	var result search.NormalizedResult
	decodeBody(t, resp, &result)
	if result.AI == nil || result.AI.Answer != "a" {
		t.Fatalf("unexpected body: %+v", result)
	}

	if len(runner.queries) != 1 {
		t.Fatalf("expected one cascade run, got %d", len(runner.queries))
	}
	if runner.queries[0].Text != "solar" || runner.queries[0].Category != search.CategoryNews {
		t.Fatalf("unexpected query: %+v", runner.queries[0])
	}

	entry := caches.For("anonymous-user").Get(search.CategoryNews)
	if !entry.Searched {
		t.Fatal("search must mark the category searched")
	}
	if len(entry.Result.Traditional) != 1 {
		t.Fatalf("result must be cached, got %+v", entry.Result)
	}
}

func TestSearchRejectsMissingQuery(t *testing.T) {
	server, _ := newTestServer(t, &runnerStub{}, nil)

	resp := doRequest(t, http.MethodGet, server.URL+"/v1/search", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSearchRejectsUnknownCategory(t *testing.T) {
	server, _ := newTestServer(t, &runnerStub{}, nil)

	resp := doRequest(t, http.MethodGet, server.URL+"/v1/search?q=solar&category=bogus", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSearchMapsExhaustedCascadeToBadGateway(t *testing.T) {
	runner := &runnerStub{err: &search.Error{StatusCode: 503, Message: "Groq API service unavailable"}}
	server, caches := newTestServer(t, runner, nil)

	resp := doRequest(t, http.MethodGet, server.URL+"/v1/search?q=solar", "")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}

	var body errorResponse
	decodeBody(t, resp, &body)
	if body.Error.Code != "search_failed" {
		t.Fatalf("unexpected error code %q", body.Error.Code)
	}
	if body.Error.UpstreamStatus != 503 {
		t.Fatalf("expected upstream status carried through, got %d", body.Error.UpstreamStatus)
	}
	if body.Error.Message != "Groq API service unavailable" {
		t.Fatalf("unexpected message %q", body.Error.Message)
	}

	if !caches.For("anonymous-user").Get(search.CategoryAll).Searched {
		t.Fatal("a failed cascade must still mark the category attempted")
	}
}

func TestSearchCanceledCascadeWritesNoErrorBody(t *testing.T) {
	runner := &runnerStub{err: &search.Error{Message: "request search upstream: context canceled", Cause: context.Canceled}}
	server, _ := newTestServer(t, runner, nil)

	resp := doRequest(t, http.MethodGet, server.URL+"/v1/search?q=solar", "")
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusBadGateway {
		t.Fatal("a canceled cascade must not be reported as an upstream failure")
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(body) != 0 {
		t.Fatalf("expected no response body for a canceled cascade, got %q", body)
	}
}

func TestCachedResultReturnsEmptyEntryBeforeFirstSearch(t *testing.T) {
	server, _ := newTestServer(t, &runnerStub{}, nil)

	resp := doRequest(t, http.MethodGet, server.URL+"/v1/search/results/images", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	var entry resultcache.Entry
	decodeBody(t, resp, &entry)
	if entry.Searched {
		t.Fatal("untouched category must not be marked searched")
	}
}

func TestRetryClearsSearchedFlag(t *testing.T) {
	server, caches := newTestServer(t, &runnerStub{}, nil)
	caches.For("anonymous-user").MarkSearched(search.CategoryNews, true)

	resp := doRequest(t, http.MethodPost, server.URL+"/v1/search/results/news/retry", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	resp.Body.Close()

	if caches.For("anonymous-user").Get(search.CategoryNews).Searched {
		t.Fatal("retry must clear the searched flag")
	}
}

func TestUpdateFiltersInvalidatesSearchedState(t *testing.T) {
	server, caches := newTestServer(t, &runnerStub{}, nil)
	store := caches.For("anonymous-user")
	store.MarkSearched(search.CategoryAll, true)
	store.MarkSearched(search.CategoryVideo, true)

	resp := doRequest(t, http.MethodPatch, server.URL+"/v1/search/filters", `{"timeRange":"week"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Filters search.FilterSet `json:"filters"`
	}
	decodeBody(t, resp, &body)
	if body.Filters.TimeRange != search.TimeRangeWeek {
		t.Fatalf("expected merged time range, got %q", body.Filters.TimeRange)
	}

	if store.Get(search.CategoryAll).Searched || store.Get(search.CategoryVideo).Searched {
		t.Fatal("filter change must clear searched flags for every category")
	}
}

func TestResetFiltersRestoresDefaults(t *testing.T) {
	server, caches := newTestServer(t, &runnerStub{}, nil)
	timeRange := search.TimeRangeYear
	caches.For("anonymous-user").SetFilters(search.FilterPatch{TimeRange: &timeRange})

	resp := doRequest(t, http.MethodPost, server.URL+"/v1/search/filters/reset", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Filters search.FilterSet `json:"filters"`
	}
	decodeBody(t, resp, &body)
	if body.Filters.TimeRange != search.TimeRangeAny {
		t.Fatalf("expected default time range, got %q", body.Filters.TimeRange)
	}
}

func TestGetFiltersReturnsActiveSet(t *testing.T) {
	server, _ := newTestServer(t, &runnerStub{}, nil)

	resp := doRequest(t, http.MethodGet, server.URL+"/v1/search/filters", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Filters search.FilterSet `json:"filters"`
	}
	decodeBody(t, resp, &body)
	if body.Filters.TimeRange != search.TimeRangeAny || !body.Filters.Sources[search.SourceNews] {
		t.Fatalf("expected default filters, got %+v", body.Filters)
	}
}

func TestSuggestionsEmptyQueryShortCircuits(t *testing.T) {
	server, _ := newTestServer(t, &runnerStub{}, suggestFetcherStub{result: []string{"never"}})

	resp := doRequest(t, http.MethodGet, server.URL+"/v1/search/suggestions?q=", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Suggestions []string `json:"suggestions"`
	}
	decodeBody(t, resp, &body)
	if len(body.Suggestions) != 0 {
		t.Fatalf("expected empty suggestions, got %v", body.Suggestions)
	}
}

func TestSuggestionsReturnsUpstreamCompletions(t *testing.T) {
	server, _ := newTestServer(t, &runnerStub{}, suggestFetcherStub{result: []string{"solar panels", "solar power"}})

	resp := doRequest(t, http.MethodGet, server.URL+"/v1/search/suggestions?q=solar", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Suggestions []string `json:"suggestions"`
	}
	decodeBody(t, resp, &body)
	if len(body.Suggestions) != 2 {
		t.Fatalf("unexpected suggestions: %v", body.Suggestions)
	}
}
