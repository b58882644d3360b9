package httpapi

import (
	"database/sql"
	"log"
	"net/http"

	"omnisearch/backend/internal/auth"
	"omnisearch/backend/internal/config"
	"omnisearch/backend/internal/resultcache"
	"omnisearch/backend/internal/search"
	"omnisearch/backend/internal/searchapi"
	"omnisearch/backend/internal/session"
	"omnisearch/backend/internal/suggest"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(cfg config.Config, db *sql.DB) http.Handler {
	store := session.NewStore(db)
	verifier := auth.NewVerifier(cfg)
	client := searchapi.NewClient(cfg, nil)

	table := search.DefaultPhraseTable()
	if cfg.ClassifierPhrasesPath != "" {
		loaded, err := search.LoadPhraseTable(cfg.ClassifierPhrasesPath)
		if err != nil {
			log.Printf("classifier phrase table fallback: path=%s err=%v", cfg.ClassifierPhrasesPath, err)
		} else {
			table = loaded
		}
	}

	orchestrator := search.NewOrchestrator(client, search.NewClassifier(table), search.OrchestratorConfig{
		Timeout: cfg.SearchTimeout(),
	})
	caches := resultcache.NewRegistry()
	suggestions := suggest.NewDebouncer(client, suggest.Config{
		QuietPeriod:   cfg.SuggestQuietPeriod(),
		RatePerSecond: cfg.SuggestRatePerSecond,
		Burst:         cfg.SuggestBurst,
	})

	h := NewHandler(cfg, store, verifier, orchestrator, caches, suggestions)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Test-Email", "X-Test-Google-Sub"},
		ExposedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Healthz)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Route("/auth", func(authR chi.Router) {
			authR.Post("/google", h.AuthGoogle)
			authR.With(h.RequireSession).Get("/me", h.AuthMe)
			authR.With(h.RequireSession).Post("/logout", h.AuthLogout)
		})

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

	return r
}
