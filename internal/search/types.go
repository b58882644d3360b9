package search

import (
	"errors"
	"fmt"
	"strings"
)

// MaxQueryRunes bounds user query text at submission time.
const MaxQueryRunes = 400

type Category string

const (
	CategoryAll          Category = "all"
	CategoryAI           Category = "ai"
	CategoryWeb          Category = "web"
	CategoryImages       Category = "images"
	CategoryVideo        Category = "video"
	CategoryNews         Category = "news"
	CategoryShopping     Category = "shopping"
	CategorySocial       Category = "social"
	CategoryMaps         Category = "maps"
	CategoryAcademic     Category = "academic"
	CategoryDeepResearch Category = "deep-research"
)

func Categories() []Category {
	return []Category{
		CategoryAll,
		CategoryAI,
		CategoryWeb,
		CategoryImages,
		CategoryVideo,
		CategoryNews,
		CategoryShopping,
		CategorySocial,
		CategoryMaps,
		CategoryAcademic,
		CategoryDeepResearch,
	}
}

func ParseCategory(raw string) (Category, bool) {
	trimmed := Category(strings.ToLower(strings.TrimSpace(raw)))
	if trimmed == "" {
		return CategoryAll, true
	}
	for _, category := range Categories() {
		if category == trimmed {
			return category, true
		}
	}
	return "", false
}

// Query is an immutable snapshot of one submitted search. Filters are copied
// at construction so later filter edits cannot leak into an in-flight query.
type Query struct {
	Text       string
	Category   Category
	IsFollowUp bool
	Filters    FilterSet
}

func NewQuery(text string, category Category, isFollowUp bool, filters FilterSet) (Query, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Query{}, errors.New("query text is required")
	}
	if len([]rune(trimmed)) > MaxQueryRunes {
		return Query{}, fmt.Errorf("query text exceeds %d characters", MaxQueryRunes)
	}
	if _, ok := ParseCategory(string(category)); !ok {
		return Query{}, fmt.Errorf("unknown category %q", category)
	}
	return Query{
		Text:       trimmed,
		Category:   category,
		IsFollowUp: isFollowUp,
		Filters:    filters.Clone(),
	}, nil
}

type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type Answer struct {
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	Model      string   `json:"model"`
	Degraded   bool     `json:"degraded,omitempty"`
	Contextual bool     `json:"contextual,omitempty"`
}

type WebResult struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Domain   string `json:"domain"`
	Date     string `json:"date,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// NormalizedResult is the single output shape of one completed search.
// LimitReached and AuthRequired are terminal states: when either is set the
// answer and web fields are replaced by Message and nothing else is populated.
type NormalizedResult struct {
	AI           *Answer     `json:"ai,omitempty"`
	Traditional  []WebResult `json:"traditional"`
	LimitReached bool        `json:"limitReached,omitempty"`
	AuthRequired bool        `json:"authRequired,omitempty"`
	Message      string      `json:"message,omitempty"`
}

// Error is the terminal failure of an exhausted cascade. StatusCode carries
// the original upstream status (0 when the failure never reached the wire);
// Cause holds the underlying transport error when one exists, so callers can
// still detect context cancellation with errors.Is.
type Error struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("search failed: %s", e.Message)
	}
	return fmt.Sprintf("search failed (upstream %d): %s", e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
