package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"omnisearch/backend/internal/search"
	"omnisearch/backend/internal/suggest"
)

// Search runs the fallback cascade for one query and caches the outcome for
// the session. Concurrent requests for the same category share one cascade.
func (h Handler) Search(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid session")
		return
	}

	params := r.URL.Query()
	category, valid := search.ParseCategory(params.Get("category"))
	if !valid {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown category")
		return
	}

	store := h.caches.For(user.ID)
	query, err := search.NewQuery(
		params.Get("q"),
		category,
		params.Get("isFollowUp") == "true",
		store.Filters(),
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	// The session token doubles as the bearer credential the upstream
	// expects for signed-in users.
	bearer, _ := readSessionCookie(r, h.cfg.SessionCookieName)

	startedAt := time.Now()
	result, err := store.Search(r.Context(), category, func(ctx context.Context) (search.NormalizedResult, error) {
		return h.runner.Run(ctx, query, bearer)
	})
	if err != nil {
		// Cancellation first: a cascade error can wrap the client disconnect.
		if errors.Is(err, context.Canceled) {
			return
		}
		var searchErr *search.Error
		if errors.As(err, &searchErr) {
			log.Printf(
				"search exhausted: user_id=%s category=%s upstream_status=%d elapsed_ms=%d",
				user.ID, category, searchErr.StatusCode, time.Since(startedAt).Milliseconds(),
			)
			writeUpstreamError(w, http.StatusBadGateway, "search_failed", searchErr.Message, searchErr.StatusCode)
			return
		}
		log.Printf("search failed: user_id=%s category=%s err=%v", user.ID, category, err)
		writeError(w, http.StatusInternalServerError, "search_failed", "search failed")
		return
	}

	log.Printf(
		"search completed: user_id=%s category=%s degraded=%t limit_reached=%t web_results=%d elapsed_ms=%d",
		user.ID, category, result.AI != nil && result.AI.Degraded, result.LimitReached,
		len(result.Traditional), time.Since(startedAt).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, result)
}

// CachedResult reads the stored entry for a category without searching.
func (h Handler) CachedResult(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid session")
		return
	}

	category, valid := search.ParseCategory(chi.URLParam(r, "category"))
	if !valid {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown category")
		return
	}

	writeJSON(w, http.StatusOK, h.caches.For(user.ID).Get(category))
}

// RetryCategory clears the attempted flag so the UI re-queries on next view.
func (h Handler) RetryCategory(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid session")
		return
	}

	category, valid := search.ParseCategory(chi.URLParam(r, "category"))
	if !valid {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown category")
		return
	}

	h.caches.For(user.ID).MarkSearched(category, false)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid session")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": []string{}})
		return
	}

	suggestions, err := h.suggestions.Lookup(r.Context(), user.ID, query)
	if errors.Is(err, suggest.ErrSuperseded) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		log.Printf("suggestions failed: user_id=%s err=%v", user.ID, err)
		writeError(w, http.StatusBadGateway, "suggestions_failed", "suggestion lookup failed")
		return
	}

	if suggestions == nil {
		suggestions = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (h Handler) GetFilters(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"filters": h.caches.For(user.ID).Filters()})
}

// UpdateFilters merges a partial filter change and invalidates every
// category's searched state for the session.
func (h Handler) UpdateFilters(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid session")
		return
	}

	var patch search.FilterPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	filters := h.caches.For(user.ID).SetFilters(patch)
	log.Printf("filters updated: user_id=%s time_range=%s region=%s", user.ID, filters.TimeRange, filters.Region)
	writeJSON(w, http.StatusOK, map[string]any{"filters": filters})
}

func (h Handler) ResetFilters(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid session")
		return
	}

	filters := h.caches.For(user.ID).ResetFilters()
	writeJSON(w, http.StatusOK, map[string]any{"filters": filters})
}
