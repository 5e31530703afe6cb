// Package htmldocs ingests the Home Manager and nix-darwin option
// reference pages and serves search, lookup and statistics from
// in-memory indices. Loading is one-shot per process: a background load
// builds an immutable snapshot that replaces its predecessor atomically.
package htmldocs

import "time"

// Option is one canonical option record scraped from an upstream page.
// Source identifies the page (three pages feed the Home Manager
// universe and duplicate names are legal).
type Option struct {
	Name              string  `json:"name"`
	Description       string  `json:"description,omitempty"`
	Type              string  `json:"type,omitempty"`
	Default           string  `json:"default,omitempty"`
	Example           string  `json:"example,omitempty"`
	Category          string  `json:"category,omitempty"`
	Source            string  `json:"source,omitempty"`
	DeclaredBy        string  `json:"declared_by,omitempty"`
	IntroducedVersion string  `json:"introduced_version,omitempty"`
	DeprecatedVersion string  `json:"deprecated_version,omitempty"`
	ManualURL         string  `json:"manual_url,omitempty"`
	Score             float64 `json:"score,omitempty"`
}

// NameSet is a set of option names. The value type is bool rather than
// struct{} because gob refuses types with no exported fields and the
// snapshot lives in the gob cache slot.
type NameSet map[string]bool

// Add inserts name into the set.
func (s NameSet) Add(name string) { s[name] = true }

// Has reports membership.
func (s NameSet) Has(name string) bool { return s[name] }

// LoadingStatus is the loader state machine's observable state.
type LoadingStatus string

const (
	StatusNotStarted LoadingStatus = "not_started"
	StatusLoading    LoadingStatus = "loading"
	StatusLoaded     LoadingStatus = "loaded"
	StatusError      LoadingStatus = "error"
)

// Snapshot is the immutable index bundle. Once published it is never
// mutated; a successor snapshot fully replaces it.
type Snapshot struct {
	// Records preserves document order and duplicates across sources.
	Records []Option

	// Options maps name to record; for duplicate names the later source
	// wins, matching upstream page precedence.
	Options map[string]Option

	// OptionsByCategory maps category to the names under it.
	OptionsByCategory map[string][]string

	// Inverted maps each word (>= 3 letters, lower-cased, from name and
	// description) to the names containing it.
	Inverted map[string]NameSet

	// Prefix maps every proper dotted prefix of every name to the names
	// under it.
	Prefix map[string]NameSet

	// Hierarchical maps (parent-path, leaf) pairs to names.
	Hierarchical map[string]NameSet

	TotalOptions    int
	TotalCategories int
	LastUpdated     time.Time
}

// OptionsResult is the uniform search reply.
type OptionsResult struct {
	Count   int      `json:"count"`
	Options []Option `json:"options"`
	Found   bool     `json:"found"`
	Error   string   `json:"error,omitempty"`
}

// OptionInfo is the lookup reply. On a miss, Suggestions carries up to
// five names under the requested prefix.
type OptionInfo struct {
	Option
	Found          bool     `json:"found"`
	RelatedOptions []Option `json:"related_options,omitempty"`
	Suggestions    []string `json:"suggestions,omitempty"`
	Loading        bool     `json:"loading,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// EnableOption is a ".enable" boolean annotated with its parent path.
type EnableOption struct {
	Name   string `json:"name"`
	Parent string `json:"parent"`
}

// PrefixResult aggregates every option under one dotted prefix.
type PrefixResult struct {
	Prefix        string         `json:"prefix"`
	Count         int            `json:"count"`
	Names         []string       `json:"names,omitempty"`
	Types         map[string]int `json:"types,omitempty"`
	EnableOptions []EnableOption `json:"enable_options,omitempty"`
	Found         bool           `json:"found"`
	Loading       bool           `json:"loading,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// CategorySummary describes one top-level category in the options list.
type CategorySummary struct {
	Count         int            `json:"count"`
	Types         map[string]int `json:"types,omitempty"`
	EnableOptions []EnableOption `json:"enable_options,omitempty"`
	HasChildren   bool           `json:"has_children"`
}

// ListResult is the fixed top-level category walk.
type ListResult struct {
	Categories map[string]CategorySummary `json:"categories"`
	Loading    bool                       `json:"loading,omitempty"`
	Error      string                     `json:"error,omitempty"`
}

// IndexStats sizes the search structures.
type IndexStats struct {
	Words             int `json:"words"`
	Prefixes          int `json:"prefixes"`
	HierarchicalParts int `json:"hierarchical_parts"`
}

// Stats is the aggregate statistics reply.
type Stats struct {
	TotalOptions    int            `json:"total_options"`
	TotalCategories int            `json:"total_categories"`
	TotalTypes      int            `json:"total_types"`
	BySource        map[string]int `json:"by_source,omitempty"`
	ByCategory      map[string]int `json:"by_category,omitempty"`
	ByType          map[string]int `json:"by_type,omitempty"`
	IndexStats      IndexStats     `json:"index_stats"`
	Loading         bool           `json:"loading,omitempty"`
	Error           string         `json:"error,omitempty"`
}
