package nixos

import (
	"regexp"
	"strings"
)

// parsedQuery is the outcome of multi-word query splitting: one main
// hierarchical path, loose terms, and quoted phrases.
type parsedQuery struct {
	MainPath    string
	Terms       []string
	QuotedTerms []string
}

var quotedRe = regexp.MustCompile(`"([^"]*)"`)

// looksLikePath reports whether a token should be treated as an option
// path: it contains a dot. Wildcard shapes like services.*.enable
// qualify through their dots.
func looksLikePath(tok string) bool {
	return strings.Contains(tok, ".")
}

// parseQuery splits a query into {main_path, terms, quoted_terms}. The
// first dotted token becomes the main path; without one, the whole
// query (minus quoted phrases) is the main path.
func parseQuery(q string) parsedQuery {
	var p parsedQuery

	rest := quotedRe.ReplaceAllStringFunc(q, func(m string) string {
		phrase := strings.TrimSpace(strings.Trim(m, `"`))
		if phrase != "" {
			p.QuotedTerms = append(p.QuotedTerms, phrase)
		}
		return " "
	})

	for _, tok := range strings.Fields(rest) {
		if p.MainPath == "" && looksLikePath(tok) {
			p.MainPath = tok
			continue
		}
		p.Terms = append(p.Terms, tok)
	}

	if p.MainPath == "" {
		p.MainPath = strings.TrimSpace(rest)
		p.Terms = nil
	}
	return p
}

// serviceName extracts <svc> from a "services.<svc>." path, or "".
func serviceName(path string) string {
	if !strings.HasPrefix(path, "services.") {
		return ""
	}
	rest := strings.TrimPrefix(path, "services.")
	if i := strings.IndexByte(rest, '.'); i > 0 {
		return rest[:i]
	}
	if rest != "" && !strings.ContainsAny(rest, "*") {
		return rest
	}
	return ""
}

func term(field, value string, boost float64) map[string]any {
	return map[string]any{"term": map[string]any{field: map[string]any{"value": value, "boost": boost}}}
}

func prefix(field, value string, boost float64) map[string]any {
	return map[string]any{"prefix": map[string]any{field: map[string]any{"value": value, "boost": boost}}}
}

func wildcard(field, value string, boost float64, caseInsensitive bool) map[string]any {
	inner := map[string]any{"value": value, "boost": boost}
	if caseInsensitive {
		inner["case_insensitive"] = true
	}
	return map[string]any{"wildcard": map[string]any{field: inner}}
}

func match(field, value string, boost float64) map[string]any {
	return map[string]any{"match": map[string]any{field: map[string]any{"query": value, "boost": boost}}}
}

func matchPhrase(field, value string, boost float64) map[string]any {
	return map[string]any{"match_phrase": map[string]any{field: map[string]any{"query": value, "boost": boost}}}
}

// buildPackagesQuery is the package search DSL: eight boosted SHOULD
// clauses over name and description fields, no filter.
func buildPackagesQuery(q string, size int) map[string]any {
	should := []any{
		term("package_attr_name", q, 10.0),
		term("package_pname", q, 8.0),
		prefix("package_attr_name", q, 7.0),
		prefix("package_pname", q, 6.0),
		wildcard("package_attr_name", "*"+q+"*", 5.0, false),
		wildcard("package_pname", "*"+q+"*", 4.0, false),
		match("package_description", q, 3.0),
		match("package_programs", q, 6.0),
	}
	return map[string]any{
		"from": 0,
		"size": size,
		"query": map[string]any{
			"bool": map[string]any{
				"should":               should,
				"minimum_should_match": 1,
			},
		},
	}
}

// buildProgramsQuery searches by provided program name.
func buildProgramsQuery(q string, size int) map[string]any {
	should := []any{
		term("package_programs", q, 10.0),
		prefix("package_programs", q, 5.0),
		wildcard("package_programs", "*"+q+"*", 3.0, false),
	}
	return map[string]any{
		"from": 0,
		"size": size,
		"query": map[string]any{
			"bool": map[string]any{
				"should":               should,
				"minimum_should_match": 1,
			},
		},
	}
}

// buildOptionsQuery is the option search DSL. Name clauses depend on the
// query shape (wildcard, hierarchical, plain); loose terms and quoted
// phrases contribute description clauses. Everything is combined via
// dis_max under bool.must with the type:option filter.
func buildOptionsQuery(q string, size int) map[string]any {
	parsed := parseQuery(q)
	main := parsed.MainPath

	var clauses []any
	switch {
	case strings.Contains(main, "*"):
		clauses = append(clauses, wildcard("option_name", main, 6.0, true))
	case strings.Contains(main, "."):
		clauses = append(clauses,
			prefix("option_name", main, 10.0),
			wildcard("option_name", main+".*", 8.0, false),
			wildcard("option_name", main+"*", 6.0, false),
		)
	default:
		clauses = append(clauses,
			term("option_name", main, 10.0),
			prefix("option_name", main, 8.0),
			wildcard("option_name", "*"+main+"*", 6.0, false),
			match("option_description", main, 4.0),
		)
	}

	for _, t := range parsed.Terms {
		clauses = append(clauses, match("option_description", t, 4.0))
	}
	for _, phrase := range parsed.QuotedTerms {
		clauses = append(clauses, matchPhrase("option_description", phrase, 6.0))
	}
	if svc := serviceName(main); svc != "" && strings.HasPrefix(main, "services."+svc+".") {
		clauses = append(clauses, match("option_description", svc, 2.0))
	}

	return map[string]any{
		"from": 0,
		"size": size,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"type": map[string]any{"value": "option"}}},
				},
				"must": []any{
					map[string]any{"dis_max": map[string]any{"queries": clauses}},
				},
			},
		},
	}
}

// buildOptionLookupQuery is a size-1 exact lookup; usePrefix switches to
// the prefix retry used after an exact miss on hierarchical names.
func buildOptionLookupQuery(name string, usePrefix bool) map[string]any {
	var nameClause map[string]any
	if usePrefix {
		nameClause = prefix("option_name", name, 1.0)
	} else {
		nameClause = term("option_name", name, 1.0)
	}
	return map[string]any{
		"size": 1,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"type": map[string]any{"value": "option"}}},
				},
				"must": []any{nameClause},
			},
		},
	}
}

// buildRelatedOptionsQuery finds siblings under services.<svc>.,
// excluding the option itself.
func buildRelatedOptionsQuery(svc, exclude string, size int) map[string]any {
	return map[string]any{
		"size": size,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"type": map[string]any{"value": "option"}}},
				},
				"must": []any{
					prefix("option_name", "services."+svc+".", 1.0),
				},
				"must_not": []any{
					map[string]any{"term": map[string]any{"option_name": map[string]any{"value": exclude}}},
				},
			},
		},
	}
}

// buildPackageLookupQuery is a size-1 term lookup by attribute name.
func buildPackageLookupQuery(name string) map[string]any {
	return map[string]any{
		"size": 1,
		"query": map[string]any{
			"term": map[string]any{"package_attr_name": map[string]any{"value": name}},
		},
	}
}

// buildPackageStatsQuery is a size-0 query with the three terms
// aggregations.
func buildPackageStatsQuery() map[string]any {
	agg := func(field string) map[string]any {
		return map[string]any{"terms": map[string]any{"field": field, "size": 10}}
	}
	return map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"channels":  agg("package_channel"),
			"licenses":  agg("package_license"),
			"platforms": agg("package_platforms"),
		},
	}
}

// buildOptionCountQuery filters the _count endpoint to options.
func buildOptionCountQuery() map[string]any {
	return map[string]any{
		"query": map[string]any{
			"term": map[string]any{"type": map[string]any{"value": "option"}},
		},
	}
}
