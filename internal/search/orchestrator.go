package search

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"omnisearch/backend/internal/searchapi"
)

const (
	// FallbackModel identifies an answer synthesized without any AI provider.
	FallbackModel = "error-fallback"

	fallbackAnswer = "The AI answer service is temporarily unavailable, so this search ran without it. The web results below are live and complete."

	defaultLimitMessage = "You have reached your search limit for this billing period."
	defaultAuthMessage  = "Sign in to continue searching."
)

const defaultDeepResearchIterations = 4

// Provider is the pair of upstream adapters the cascade drives.
type Provider interface {
	Combined(ctx context.Context, req searchapi.Request) (searchapi.Response, error)
	Traditional(ctx context.Context, req searchapi.Request) ([]searchapi.WebResult, error)
}

type OrchestratorConfig struct {
	Timeout time.Duration
}

// Orchestrator turns one submitted query into a completed NormalizedResult
// through a bounded three-tier cascade: combined request, no-tools retry,
// web-only fallback. It never touches the result cache; writes belong to the
// caller.
type Orchestrator struct {
	provider   Provider
	classifier Classifier
	cfg        OrchestratorConfig
}

func NewOrchestrator(provider Provider, classifier Classifier, cfg OrchestratorConfig) Orchestrator {
	return Orchestrator{
		provider:   provider,
		classifier: classifier,
		cfg:        cfg,
	}
}

// Run executes the cascade for one query. A populated NormalizedResult is
// returned for every completed outcome, including degraded and terminal
// limit/auth states; an error means the cascade was exhausted.
func (o Orchestrator) Run(ctx context.Context, query Query, bearer string) (NormalizedResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	req := buildRequest(query, bearer)

	resp, err := o.provider.Combined(ctx, req)
	if err == nil {
		return normalizeCombined(resp, false), nil
	}

	var apiErr searchapi.APIError
	if !errors.As(err, &apiErr) {
		// Transport failure: no body to classify, no informed retry possible.
		return NormalizedResult{}, &Error{Message: err.Error(), Cause: err}
	}

	body, parsed := searchapi.ParseErrorBody(apiErr.Body)

	// Limit and auth conditions are authoritative. A fallback success here
	// would either burn calls against an exhausted quota or hide a sign-in
	// requirement behind a degraded answer.
	if parsed && (body.LimitReached || body.AuthRequired) {
		return NormalizedResult{
			LimitReached: body.LimitReached,
			AuthRequired: body.AuthRequired,
			Message:      terminalMessage(body, body.LimitReached),
		}, nil
	}

	kind := FailureUnclassified
	if parsed && body.Code != "" {
		kind, _ = o.classifier.ClassifyCode(body.Code)
	}
	if kind == FailureUnclassified {
		kind = o.classifier.Classify(apiErr.Body, apiErr.StatusCode)
	}

	switch kind {
	case FailureSubscriptionLimit:
		return NormalizedResult{LimitReached: true, Message: terminalMessage(body, true)}, nil
	case FailureAuthRequired:
		return NormalizedResult{AuthRequired: true, Message: terminalMessage(body, false)}, nil
	}

	log.Printf("search tier1 failed: category=%s status=%d kind=%s", query.Category, apiErr.StatusCode, kind)

	// Tier 2: retry without agentic tools. Only worthwhile when the failure
	// is the tool path or the AI provider itself; a web-search outage or an
	// unknown failure would just repeat with the same outcome.
	if kind == FailureToolUnavailable || kind == FailureProviderUnavailable {
		degradedReq := req
		degradedReq.DisableTools = true
		resp, err := o.provider.Combined(ctx, degradedReq)
		if err == nil {
			return normalizeCombined(resp, true), nil
		}
		log.Printf("search tier2 failed: category=%s err=%v", query.Category, err)
	}

	// Tier 3: pure web search with a synthesized answer block.
	if kind == FailureToolUnavailable || kind == FailureProviderUnavailable || kind == FailureWebSearchUnavailable {
		webResults, err := o.provider.Traditional(ctx, req)
		if err == nil {
			return NormalizedResult{
				AI: &Answer{
					Answer:   fallbackAnswer,
					Sources:  []Source{},
					Model:    FallbackModel,
					Degraded: true,
				},
				Traditional: normalizeWebResults(webResults),
			}, nil
		}
		log.Printf("search tier3 failed: category=%s err=%v", query.Category, err)
	}

	message := strings.TrimSpace(body.Message)
	if message == "" {
		message = strings.TrimSpace(apiErr.Body)
	}
	if message == "" {
		message = "search failed"
	}
	return NormalizedResult{}, &Error{StatusCode: apiErr.StatusCode, Message: message}
}

// buildRequest maps a query and its filter snapshot onto upstream parameters,
// leaving every field at its zero value when the filter sits at its
// documented default.
func buildRequest(query Query, bearer string) searchapi.Request {
	filters := query.Filters
	req := searchapi.Request{
		Query:      query.Text,
		Type:       string(query.Category),
		IsFollowUp: query.IsFollowUp,
		Bearer:     bearer,
	}

	if query.Category == CategoryDeepResearch {
		req.DeepResearch = true
		req.MaxIterations = defaultDeepResearchIterations
		req.IncludeReasoning = true
		req.DeepDive = filters.AI.DetailLevel == "detailed"
		req.SearchContextSize = filters.AI.DetailLevel
	}

	if filters.TimeRange != "" && filters.TimeRange != TimeRangeAny {
		req.TimeRange = string(filters.TimeRange)
	}
	if filters.Region != "" && filters.Region != RegionGlobal {
		req.Region = filters.Region
	}
	req.Sources = filters.enabledSources()
	req.ContentTypes = filters.enabledContentTypes()

	if filters.AI.Model != "" && filters.AI.Model != DefaultModel {
		req.Model = filters.AI.Model
	}
	if filters.AI.DetailLevel != "" && filters.AI.DetailLevel != DefaultDetailLevel {
		req.DetailLevel = filters.AI.DetailLevel
	}
	if filters.AI.CitationStyle != "" && filters.AI.CitationStyle != DefaultCitationStyle {
		req.CitationStyle = filters.AI.CitationStyle
	}

	return req
}

func normalizeCombined(resp searchapi.Response, degraded bool) NormalizedResult {
	out := NormalizedResult{
		Traditional: normalizeWebResults(resp.Traditional),
	}
	if resp.AI != nil {
		sources := make([]Source, 0, len(resp.AI.Sources))
		for _, ref := range resp.AI.Sources {
			rawURL := strings.TrimSpace(ref.URL)
			if rawURL == "" {
				continue
			}
			title := strings.TrimSpace(ref.Title)
			if title == "" {
				title = rawURL
			}
			sources = append(sources, Source{Title: title, URL: rawURL})
		}
		out.AI = &Answer{
			Answer:     strings.TrimSpace(resp.AI.Answer),
			Sources:    sources,
			Model:      strings.TrimSpace(resp.AI.Model),
			Degraded:   degraded,
			Contextual: resp.AI.Contextual,
		}
	}
	return out
}

func normalizeWebResults(results []searchapi.WebResult) []WebResult {
	out := make([]WebResult, 0, len(results))
	for _, item := range results {
		rawURL := strings.TrimSpace(item.URL)
		if rawURL == "" {
			continue
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = rawURL
		}
		out = append(out, WebResult{
			Title:    title,
			URL:      rawURL,
			Snippet:  strings.TrimSpace(item.Snippet),
			Domain:   strings.TrimSpace(item.Domain),
			Date:     strings.TrimSpace(item.Date),
			ImageURL: strings.TrimSpace(item.ImageURL),
		})
	}
	return out
}

func terminalMessage(body searchapi.ErrorBody, limit bool) string {
	if message := strings.TrimSpace(body.Message); message != "" {
		return message
	}
	if limit {
		return defaultLimitMessage
	}
	return defaultAuthMessage
}
