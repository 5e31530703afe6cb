package htmldocs

import (
	"strings"
	"time"

	"mcp-nixos/internal/text"
)

// hierKey builds the composite key for the hierarchical index. Option
// names never contain a pipe.
func hierKey(parent, leaf string) string {
	return parent + "|" + leaf
}

// properPrefixes yields every proper dotted prefix of name:
// "programs.git.enable" → ["programs", "programs.git"].
func properPrefixes(name string) []string {
	var prefixes []string
	for i, r := range name {
		if r == '.' {
			prefixes = append(prefixes, name[:i])
		}
	}
	return prefixes
}

// BuildSnapshot constructs all five index structures in a single pass
// over the records. The returned snapshot is complete and never mutated
// afterwards; the caller publishes it atomically.
func BuildSnapshot(records []Option, now time.Time) *Snapshot {
	s := &Snapshot{
		Records:           records,
		Options:           make(map[string]Option, len(records)),
		OptionsByCategory: make(map[string][]string),
		Inverted:          make(map[string]NameSet),
		Prefix:            make(map[string]NameSet),
		Hierarchical:      make(map[string]NameSet),
		LastUpdated:       now,
	}

	for _, opt := range records {
		if opt.Name == "" {
			continue
		}
		s.Options[opt.Name] = opt

		category := opt.Category
		if category == "" {
			category = "Uncategorized"
		}
		s.OptionsByCategory[category] = append(s.OptionsByCategory[category], opt.Name)

		for _, w := range text.Words(opt.Name) {
			set, ok := s.Inverted[w]
			if !ok {
				set = make(NameSet)
				s.Inverted[w] = set
			}
			set.Add(opt.Name)
		}
		for _, w := range text.Words(opt.Description) {
			set, ok := s.Inverted[w]
			if !ok {
				set = make(NameSet)
				s.Inverted[w] = set
			}
			set.Add(opt.Name)
		}

		for _, p := range properPrefixes(opt.Name) {
			set, ok := s.Prefix[p]
			if !ok {
				set = make(NameSet)
				s.Prefix[p] = set
			}
			set.Add(opt.Name)
		}

		if i := strings.LastIndexByte(opt.Name, '.'); i > 0 {
			parent, leaf := opt.Name[:i], opt.Name[i+1:]
			key := hierKey(parent, leaf)
			set, ok := s.Hierarchical[key]
			if !ok {
				set = make(NameSet)
				s.Hierarchical[key] = set
			}
			set.Add(opt.Name)
		}
	}

	s.TotalOptions = len(s.Options)
	s.TotalCategories = len(s.OptionsByCategory)
	return s
}
