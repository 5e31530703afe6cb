package htmldocs

import (
	"fmt"
	"sort"
	"strings"

	"mcp-nixos/internal/text"
)

// Score values for the search tiers. Ties at equal score break by name
// ascending so results are deterministic across runs.
const (
	scoreExact       = 100
	scoreStarPrefix  = 90
	scorePrefix      = 80
	scoreWordInName  = 10
	scoreWordInDesc  = 3
	scoreWordPartial = 2
)

// DefaultSearchLimit bounds search replies when the caller passes none.
const DefaultSearchLimit = 20

// Search scores every candidate and returns the top limit by
// (-score, name).
func (s *Snapshot) Search(query string, limit int) OptionsResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return OptionsResult{Options: []Option{}, Error: "Empty query"}
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	scores := make(map[string]int)

	if _, ok := s.Options[query]; ok {
		scores[query] += scoreExact
	}

	if strings.HasSuffix(query, "*") {
		base := strings.TrimSuffix(strings.TrimSuffix(query, "*"), ".")
		for name := range s.Prefix[base] {
			scores[name] += scoreStarPrefix
		}
	}

	if set, ok := s.Prefix[query]; ok {
		for name := range set {
			if strings.HasPrefix(name, query+".") {
				scores[name] += scorePrefix
			}
		}
	}

	words := text.Words(query)
	if len(words) > 0 {
		candidates := s.wordCandidates(words)
		for name := range candidates {
			opt := s.Options[name]
			nameLower := strings.ToLower(name)
			descLower := strings.ToLower(opt.Description)
			for _, w := range words {
				switch {
				case strings.Contains(nameLower, w):
					scores[name] += scoreWordInName
				case strings.Contains(descLower, w):
					scores[name] += scoreWordInDesc
				}
			}
		}
	}

	// Last resort: match on the first three letters of each query word
	// against the index vocabulary.
	if len(scores) == 0 && len(words) > 0 {
		for _, w := range words {
			p := w[:3]
			seen := make(NameSet)
			for vocab, set := range s.Inverted {
				if !strings.HasPrefix(vocab, p) {
					continue
				}
				for name := range set {
					if !seen.Has(name) {
						seen.Add(name)
						scores[name] += scoreWordPartial
					}
				}
			}
		}
	}

	ranked := rankNames(scores)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	options := make([]Option, 0, len(ranked))
	for _, name := range ranked {
		opt := s.Options[name]
		opt.Score = float64(scores[name])
		options = append(options, opt)
	}
	return OptionsResult{Count: len(options), Options: options, Found: len(options) > 0}
}

// wordCandidates intersects the inverted-index postings of all query
// words. Words absent from the vocabulary empty the intersection.
func (s *Snapshot) wordCandidates(words []string) NameSet {
	var out NameSet
	for _, w := range words {
		set, ok := s.Inverted[w]
		if !ok {
			return NameSet{}
		}
		if out == nil {
			out = make(NameSet, len(set))
			for name := range set {
				out.Add(name)
			}
			continue
		}
		for name := range out {
			if !set.Has(name) {
				delete(out, name)
			}
		}
	}
	if out == nil {
		return NameSet{}
	}
	return out
}

// rankNames orders by descending score, then name ascending.
func rankNames(scores map[string]int) []string {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if scores[names[i]] != scores[names[j]] {
			return scores[names[i]] > scores[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// suggestionLimit bounds both the miss suggestions and the sibling list.
const suggestionLimit = 5

// GetOption returns the record for name, or a suggestion payload built
// from the prefix index. Hierarchical hits carry up to five siblings
// under the same parent.
func (s *Snapshot) GetOption(name string) OptionInfo {
	opt, ok := s.Options[name]
	if !ok {
		info := OptionInfo{Option: Option{Name: name}, Error: fmt.Sprintf("Option %q not found", name)}
		if set, ok := s.Prefix[name]; ok {
			info.Suggestions = firstNames(set, suggestionLimit, "")
		}
		return info
	}

	info := OptionInfo{Option: opt, Found: true}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		parent := name[:i]
		if set, ok := s.Prefix[parent]; ok {
			for _, sib := range firstNames(set, suggestionLimit, name) {
				if rel, ok := s.Options[sib]; ok {
					info.RelatedOptions = append(info.RelatedOptions, rel)
				}
			}
		}
	}
	return info
}

// firstNames returns up to limit names from set in sorted order,
// skipping exclude. Direct children sort ahead of deeper descendants
// only by virtue of name order; that is deterministic and good enough.
func firstNames(set NameSet, limit int, exclude string) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		if name != exclude {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) > limit {
		names = names[:limit]
	}
	return names
}

// GetOptionsByPrefix returns every name under prefix plus aggregate
// counts: per-type totals and the ".enable" booleans annotated with
// their parents.
func (s *Snapshot) GetOptionsByPrefix(prefix string) PrefixResult {
	set, ok := s.Prefix[prefix]
	if !ok {
		return PrefixResult{
			Prefix: prefix,
			Error:  fmt.Sprintf("No options found with prefix %q", prefix),
		}
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	types := make(map[string]int)
	var enables []EnableOption
	for _, name := range names {
		opt := s.Options[name]
		if opt.Type != "" {
			types[opt.Type]++
		}
		if strings.HasSuffix(name, ".enable") && strings.EqualFold(opt.Type, "boolean") {
			enables = append(enables, EnableOption{
				Name:   name,
				Parent: strings.TrimSuffix(name, ".enable"),
			})
		}
	}

	return PrefixResult{
		Prefix:        prefix,
		Count:         len(names),
		Names:         names,
		Types:         types,
		EnableOptions: enables,
		Found:         true,
	}
}

// OptionsList walks a closed set of top-level categories and summarises
// each. Categories with no options report zero counts rather than being
// dropped, so the reply shape is stable.
func (s *Snapshot) OptionsList(topLevel []string) ListResult {
	out := ListResult{Categories: make(map[string]CategorySummary, len(topLevel))}
	for _, category := range topLevel {
		summary := CategorySummary{Types: make(map[string]int)}
		if set, ok := s.Prefix[category]; ok {
			summary.Count = len(set)
			summary.HasChildren = summary.Count > 0
			for name := range set {
				opt := s.Options[name]
				if opt.Type != "" {
					summary.Types[opt.Type]++
				}
				if strings.HasSuffix(name, ".enable") && strings.EqualFold(opt.Type, "boolean") {
					summary.EnableOptions = append(summary.EnableOptions, EnableOption{
						Name:   name,
						Parent: strings.TrimSuffix(name, ".enable"),
					})
				}
			}
			sort.Slice(summary.EnableOptions, func(i, j int) bool {
				return summary.EnableOptions[i].Name < summary.EnableOptions[j].Name
			})
		}
		out.Categories[category] = summary
	}
	return out
}

// Stats summarises the snapshot and its index structures.
func (s *Snapshot) Stats() Stats {
	bySource := make(map[string]int)
	byType := make(map[string]int)
	for _, rec := range s.Records {
		if rec.Source != "" {
			bySource[rec.Source]++
		}
	}
	for _, opt := range s.Options {
		if opt.Type != "" {
			byType[opt.Type]++
		}
	}
	byCategory := make(map[string]int, len(s.OptionsByCategory))
	for category, names := range s.OptionsByCategory {
		byCategory[category] = len(names)
	}
	return Stats{
		TotalOptions:    s.TotalOptions,
		TotalCategories: s.TotalCategories,
		TotalTypes:      len(byType),
		BySource:        bySource,
		ByCategory:      byCategory,
		ByType:          byType,
		IndexStats: IndexStats{
			Words:             len(s.Inverted),
			Prefixes:          len(s.Prefix),
			HierarchicalParts: len(s.Hierarchical),
		},
	}
}
