package search

import "testing"

func TestDefaultFilterSetIsFullyPopulated(t *testing.T) {
	filters := DefaultFilterSet()

	for _, source := range SourceTypes() {
		enabled, present := filters.Sources[source]
		if !present {
			t.Fatalf("source map missing %s", source)
		}
		if !enabled {
			t.Fatalf("source %s should default to enabled", source)
		}
	}
	for _, content := range ContentTypes() {
		enabled, present := filters.ContentTypes[content]
		if !present {
			t.Fatalf("content map missing %s", content)
		}
		if !enabled {
			t.Fatalf("content type %s should default to enabled", content)
		}
	}

	if filters.TimeRange != TimeRangeAny || filters.Region != RegionGlobal {
		t.Fatalf("unexpected defaults: %+v", filters)
	}
	if filters.AI.Model != DefaultModel || filters.AI.DetailLevel != DefaultDetailLevel || filters.AI.CitationStyle != DefaultCitationStyle {
		t.Fatalf("unexpected ai defaults: %+v", filters.AI)
	}
}

func TestMergeShallowMergesSubObjects(t *testing.T) {
	filters := DefaultFilterSet()
	region := "US"
	model := "llama-3.3-70b"

	merged := filters.Merge(FilterPatch{
		Region:  &region,
		Sources: map[SourceType]bool{SourceSocial: false},
		AI:      &AIPatch{Model: &model},
	})

	if merged.Region != "US" {
		t.Fatalf("expected region US, got %s", merged.Region)
	}
	if merged.Sources[SourceSocial] {
		t.Fatal("social should be disabled")
	}
	if !merged.Sources[SourceNews] || !merged.Sources[SourceBlogs] {
		t.Fatal("untouched source keys must survive a partial patch")
	}
	if merged.AI.Model != model {
		t.Fatalf("expected model patched, got %s", merged.AI.Model)
	}
	if merged.AI.DetailLevel != DefaultDetailLevel || merged.AI.CitationStyle != DefaultCitationStyle {
		t.Fatal("untouched ai fields must survive a partial patch")
	}

	// Merge returns a copy; the original stays intact.
	if filters.Region != RegionGlobal || !filters.Sources[SourceSocial] {
		t.Fatalf("original filter set mutated: %+v", filters)
	}
}

func TestMergeIgnoresUnknownMapKeys(t *testing.T) {
	merged := DefaultFilterSet().Merge(FilterPatch{
		Sources: map[SourceType]bool{"podcasts": true},
	})
	if _, present := merged.Sources["podcasts"]; present {
		t.Fatal("unknown source keys must not enter the filter set")
	}
	if len(merged.Sources) != len(SourceTypes()) {
		t.Fatalf("source map must stay fully populated with exactly the known keys, got %d", len(merged.Sources))
	}
}

func TestEnabledSubsetsOmittedAtDefaults(t *testing.T) {
	filters := DefaultFilterSet()
	if filters.enabledSources() != nil {
		t.Fatal("all-enabled sources should encode as absent")
	}
	if filters.enabledContentTypes() != nil {
		t.Fatal("all-enabled content types should encode as absent")
	}

	filters.Sources[SourceCommercial] = false
	sources := filters.enabledSources()
	if len(sources) != len(SourceTypes())-1 {
		t.Fatalf("expected %d enabled sources, got %v", len(SourceTypes())-1, sources)
	}
	for _, source := range sources {
		if source == string(SourceCommercial) {
			t.Fatal("disabled source leaked into the enabled list")
		}
	}
}

func TestNewQueryValidation(t *testing.T) {
	if _, err := NewQuery("   ", CategoryAll, false, DefaultFilterSet()); err == nil {
		t.Fatal("expected error for blank query")
	}

	long := make([]rune, MaxQueryRunes+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := NewQuery(string(long), CategoryAll, false, DefaultFilterSet()); err == nil {
		t.Fatal("expected error for oversized query")
	}

	query, err := NewQuery("  solar power  ", CategoryNews, true, DefaultFilterSet())
	if err != nil {
		t.Fatalf("new query: %v", err)
	}
	if query.Text != "solar power" {
		t.Fatalf("expected trimmed text, got %q", query.Text)
	}
	if !query.IsFollowUp || query.Category != CategoryNews {
		t.Fatalf("unexpected query: %+v", query)
	}
}

func TestQueryFiltersAreSnapshot(t *testing.T) {
	filters := DefaultFilterSet()
	query, err := NewQuery("q", CategoryAll, false, filters)
	if err != nil {
		t.Fatalf("new query: %v", err)
	}

	filters.Sources[SourceNews] = false
	if !query.Filters.Sources[SourceNews] {
		t.Fatal("later filter edits must not leak into a constructed query")
	}
}

func TestBuildRequestOmitsDefaults(t *testing.T) {
	query := mustQuery(t, "solar", CategoryAll)
	req := buildRequest(query, "token")

	if req.TimeRange != "" || req.Region != "" {
		t.Fatalf("defaults must map to zero values: %+v", req)
	}
	if req.Sources != nil || req.ContentTypes != nil {
		t.Fatalf("all-enabled subsets must map to nil: %+v", req)
	}
	if req.Model != "" || req.DetailLevel != "" || req.CitationStyle != "" {
		t.Fatalf("default ai preferences must map to zero values: %+v", req)
	}
	if req.Bearer != "token" {
		t.Fatalf("bearer lost: %q", req.Bearer)
	}
}

func TestBuildRequestCarriesNonDefaults(t *testing.T) {
	filters := DefaultFilterSet()
	filters.TimeRange = TimeRangeWeek
	filters.Region = "DE"
	filters.Sources[SourceCommercial] = false
	filters.AI.Model = "llama-3.3-70b"

	query, err := NewQuery("solar", CategoryNews, false, filters)
	if err != nil {
		t.Fatalf("new query: %v", err)
	}
	req := buildRequest(query, "")

	if req.Type != "news" {
		t.Fatalf("expected type news, got %q", req.Type)
	}
	if req.TimeRange != "week" || req.Region != "DE" {
		t.Fatalf("non-default filters lost: %+v", req)
	}
	if len(req.Sources) != len(SourceTypes())-1 {
		t.Fatalf("expected enabled-source subset, got %v", req.Sources)
	}
	if req.Model != "llama-3.3-70b" {
		t.Fatalf("expected model carried, got %q", req.Model)
	}
}

func TestBuildRequestDeepResearch(t *testing.T) {
	query := mustQuery(t, "fusion timeline", CategoryDeepResearch)
	req := buildRequest(query, "")

	if !req.DeepResearch {
		t.Fatal("deep-research category must set the mode flag")
	}
	if req.MaxIterations <= 0 {
		t.Fatal("deep-research mode needs an iteration bound")
	}
}
