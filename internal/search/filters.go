package search

import "strings"

type TimeRange string

const (
	TimeRangeAny   TimeRange = "any"
	TimeRangeDay   TimeRange = "24h"
	TimeRangeWeek  TimeRange = "week"
	TimeRangeMonth TimeRange = "month"
	TimeRangeYear  TimeRange = "year"
)

const RegionGlobal = "global"

type SourceType string

const (
	SourceNews       SourceType = "news"
	SourceBlogs      SourceType = "blogs"
	SourceAcademic   SourceType = "academic"
	SourceSocial     SourceType = "social"
	SourceCommercial SourceType = "commercial"
)

func SourceTypes() []SourceType {
	return []SourceType{SourceNews, SourceBlogs, SourceAcademic, SourceSocial, SourceCommercial}
}

type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentVideo ContentType = "video"
)

func ContentTypes() []ContentType {
	return []ContentType{ContentText, ContentImage, ContentVideo}
}

const (
	DefaultModel         = "auto"
	DefaultDetailLevel   = "balanced"
	DefaultCitationStyle = "numbered"
)

type AIPreferences struct {
	Model         string `json:"model"`
	DetailLevel   string `json:"detailLevel"`
	CitationStyle string `json:"citationStyle"`
}

// FilterSet is always fully populated: both boolean maps carry an entry for
// every known key, never a partial subset.
type FilterSet struct {
	TimeRange    TimeRange            `json:"timeRange"`
	Region       string               `json:"region"`
	Sources      map[SourceType]bool  `json:"sources"`
	ContentTypes map[ContentType]bool `json:"contentTypes"`
	AI           AIPreferences        `json:"ai"`
}

func DefaultFilterSet() FilterSet {
	sources := make(map[SourceType]bool, len(SourceTypes()))
	for _, source := range SourceTypes() {
		sources[source] = true
	}
	contentTypes := make(map[ContentType]bool, len(ContentTypes()))
	for _, content := range ContentTypes() {
		contentTypes[content] = true
	}
	return FilterSet{
		TimeRange:    TimeRangeAny,
		Region:       RegionGlobal,
		Sources:      sources,
		ContentTypes: contentTypes,
		AI: AIPreferences{
			Model:         DefaultModel,
			DetailLevel:   DefaultDetailLevel,
			CitationStyle: DefaultCitationStyle,
		},
	}
}

func (f FilterSet) Clone() FilterSet {
	out := f
	out.Sources = make(map[SourceType]bool, len(f.Sources))
	for key, enabled := range f.Sources {
		out.Sources[key] = enabled
	}
	out.ContentTypes = make(map[ContentType]bool, len(f.ContentTypes))
	for key, enabled := range f.ContentTypes {
		out.ContentTypes[key] = enabled
	}
	return out
}

// AIPatch carries the AI-preference fields of a partial filter update.
type AIPatch struct {
	Model         *string `json:"model"`
	DetailLevel   *string `json:"detailLevel"`
	CitationStyle *string `json:"citationStyle"`
}

// FilterPatch is a partial filter update. Nil fields and absent map keys are
// left untouched; nested sub-objects merge field by field rather than being
// replaced wholesale.
type FilterPatch struct {
	TimeRange    *TimeRange           `json:"timeRange"`
	Region       *string              `json:"region"`
	Sources      map[SourceType]bool  `json:"sources"`
	ContentTypes map[ContentType]bool `json:"contentTypes"`
	AI           *AIPatch             `json:"ai"`
}

func (f FilterSet) Merge(patch FilterPatch) FilterSet {
	out := f.Clone()
	if patch.TimeRange != nil {
		out.TimeRange = *patch.TimeRange
	}
	if patch.Region != nil {
		region := strings.TrimSpace(*patch.Region)
		if region == "" {
			region = RegionGlobal
		}
		out.Region = region
	}
	for key, enabled := range patch.Sources {
		if _, known := out.Sources[key]; known {
			out.Sources[key] = enabled
		}
	}
	for key, enabled := range patch.ContentTypes {
		if _, known := out.ContentTypes[key]; known {
			out.ContentTypes[key] = enabled
		}
	}
	if patch.AI != nil {
		if patch.AI.Model != nil {
			out.AI.Model = strings.TrimSpace(*patch.AI.Model)
		}
		if patch.AI.DetailLevel != nil {
			out.AI.DetailLevel = strings.TrimSpace(*patch.AI.DetailLevel)
		}
		if patch.AI.CitationStyle != nil {
			out.AI.CitationStyle = strings.TrimSpace(*patch.AI.CitationStyle)
		}
	}
	return out
}

// enabledSources returns nil when every source type is enabled, so request
// encoding can omit the parameter at its default.
func (f FilterSet) enabledSources() []string {
	return enabledSubset(f.Sources, SourceTypes())
}

func (f FilterSet) enabledContentTypes() []string {
	return enabledSubset(f.ContentTypes, ContentTypes())
}

func enabledSubset[K ~string](enabled map[K]bool, known []K) []string {
	all := true
	for _, key := range known {
		if !enabled[key] {
			all = false
			break
		}
	}
	if all {
		return nil
	}
	out := make([]string, 0, len(known))
	for _, key := range known {
		if enabled[key] {
			out = append(out, string(key))
		}
	}
	return out
}
