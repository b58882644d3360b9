package searchapi

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// TypeTraditional selects the web-search-only path of the upstream endpoint.
const TypeTraditional = "traditional"

// Request describes one call against the combined search endpoint. Zero
// values mean "documented default" and are omitted from the encoded query so
// requests stay minimal.
type Request struct {
	Query      string
	Type       string
	IsFollowUp bool

	// Tier 2 asks the server to skip agentic tool use.
	DisableTools bool

	DeepResearch      bool
	MaxIterations     int
	IncludeReasoning  bool
	DeepDive          bool
	SearchContextSize string

	TimeRange    string
	Region       string
	Sources      []string
	ContentTypes []string

	Model         string
	DetailLevel   string
	CitationStyle string

	// Bearer is the signed-in user's credential; empty for anonymous calls.
	Bearer string
}

func (r Request) encode() url.Values {
	params := url.Values{}
	params.Set("q", r.Query)
	if r.Type != "" {
		params.Set("type", r.Type)
	}
	if r.IsFollowUp {
		params.Set("isFollowUp", "true")
	}
	if r.DisableTools {
		params.Set("disableTools", "true")
	}
	if r.DeepResearch {
		params.Set("deepResearch", "true")
		if r.MaxIterations > 0 {
			params.Set("maxIterations", strconv.Itoa(r.MaxIterations))
		}
		if r.IncludeReasoning {
			params.Set("includeReasoning", "true")
		}
		if r.DeepDive {
			params.Set("deepDive", "true")
		}
		if r.SearchContextSize != "" {
			params.Set("searchContextSize", r.SearchContextSize)
		}
	}
	if r.TimeRange != "" {
		params.Set("timeRange", r.TimeRange)
	}
	if r.Region != "" {
		params.Set("region", r.Region)
	}
	if len(r.Sources) > 0 {
		params.Set("sources", strings.Join(r.Sources, ","))
	}
	if len(r.ContentTypes) > 0 {
		params.Set("contentTypes", strings.Join(r.ContentTypes, ","))
	}
	if r.Model != "" {
		params.Set("model", r.Model)
	}
	if r.DetailLevel != "" {
		params.Set("aiDetailLevel", r.DetailLevel)
	}
	if r.CitationStyle != "" {
		params.Set("aiCitationStyle", r.CitationStyle)
	}
	return params
}

type SourceRef struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type AIBlock struct {
	Answer     string      `json:"answer"`
	Sources    []SourceRef `json:"sources"`
	Model      string      `json:"model"`
	Contextual bool        `json:"contextual"`
}

type WebResult struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Domain   string `json:"domain"`
	Date     string `json:"date"`
	ImageURL string `json:"imageUrl"`
}

// Response is the upstream success shape shared by every tier.
type Response struct {
	AI          *AIBlock    `json:"ai"`
	Traditional []WebResult `json:"traditional"`
}

// ErrorBody is the upstream error shape carried by non-2xx responses.
type ErrorBody struct {
	Message      string `json:"message"`
	Code         string `json:"code"`
	LimitReached bool   `json:"limitReached"`
	AuthRequired bool   `json:"authRequired"`
}

// ParseErrorBody decodes an upstream error body, tolerating bodies that are
// not valid JSON (they still reach the classifier as plain text).
func ParseErrorBody(raw string) (ErrorBody, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !strings.HasPrefix(trimmed, "{") {
		return ErrorBody{}, false
	}
	var body ErrorBody
	if err := json.Unmarshal([]byte(trimmed), &body); err != nil {
		return ErrorBody{}, false
	}
	return body, true
}

// APIError is a non-2xx upstream response with its raw body preserved for
// classification.
type APIError struct {
	StatusCode int
	Body       string
}

func (e APIError) Error() string {
	return fmt.Sprintf("search upstream returned %d: %s", e.StatusCode, e.Body)
}
