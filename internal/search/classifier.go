package search

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// FailureKind is the classified shape of one failed upstream response. It
// lives only for the duration of a single cascade pass.
type FailureKind string

const (
	FailureToolUnavailable      FailureKind = "tool_unavailable"
	FailureProviderUnavailable  FailureKind = "provider_unavailable"
	FailureWebSearchUnavailable FailureKind = "web_search_unavailable"
	FailureSubscriptionLimit    FailureKind = "subscription_limit"
	FailureAuthRequired         FailureKind = "auth_required"
	FailureUnclassified         FailureKind = "unclassified"
)

// PhraseTable maps known upstream error wording to failure kinds. Matching is
// case-sensitive substring search; upstream error text is stable enough that
// the cheap comparison holds.
type PhraseTable struct {
	ToolUnavailable      []string `json:"toolUnavailable"`
	ProviderUnavailable  []string `json:"providerUnavailable"`
	WebSearchUnavailable []string `json:"webSearchUnavailable"`
}

// DefaultPhraseTable carries the wording the upstream providers emit today.
// Kept as data so the table can be replaced from configuration without
// touching orchestration logic.
func DefaultPhraseTable() PhraseTable {
	return PhraseTable{
		ToolUnavailable: []string{
			"Failed to execute tool",
			"tool_use_failed",
			"Tool invocation failed",
			"agent exceeded maximum iterations",
		},
		ProviderUnavailable: []string{
			"Groq API service unavailable",
			"Groq API error",
			"502 Bad Gateway",
			"Service Unavailable",
			"rate_limit_exceeded",
			"upstream connect error",
		},
		WebSearchUnavailable: []string{
			"Web search request failed",
			"Search provider returned an error",
			"SearchAPI error",
		},
	}
}

// LoadPhraseTable reads a replacement phrase table from a JSON file.
func LoadPhraseTable(path string) (PhraseTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return PhraseTable{}, fmt.Errorf("read phrase table: %w", err)
	}
	var table PhraseTable
	if err := json.Unmarshal(raw, &table); err != nil {
		return PhraseTable{}, fmt.Errorf("parse phrase table: %w", err)
	}
	return table, nil
}

type Classifier struct {
	table PhraseTable
}

func NewClassifier(table PhraseTable) Classifier {
	return Classifier{table: table}
}

// Classify maps a failed response to a FailureKind. Total: unknown wording
// yields FailureUnclassified, never an error.
func (c Classifier) Classify(body string, _ int) FailureKind {
	for _, phrase := range c.table.ToolUnavailable {
		if strings.Contains(body, phrase) {
			return FailureToolUnavailable
		}
	}
	for _, phrase := range c.table.ProviderUnavailable {
		if strings.Contains(body, phrase) {
			return FailureProviderUnavailable
		}
	}
	for _, phrase := range c.table.WebSearchUnavailable {
		if strings.Contains(body, phrase) {
			return FailureWebSearchUnavailable
		}
	}
	return FailureUnclassified
}

// ClassifyCode maps a structured upstream error code, when one is present,
// ahead of any substring matching.
func (c Classifier) ClassifyCode(code string) (FailureKind, bool) {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "tool_unavailable", "tool_error":
		return FailureToolUnavailable, true
	case "provider_unavailable", "provider_error", "ai_unavailable":
		return FailureProviderUnavailable, true
	case "web_search_unavailable", "search_error":
		return FailureWebSearchUnavailable, true
	case "limit_reached":
		return FailureSubscriptionLimit, true
	case "auth_required":
		return FailureAuthRequired, true
	default:
		return FailureUnclassified, false
	}
}
