package nixos

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		main   string
		terms  []string
		quoted []string
	}{
		{
			name:  "plain words stay together",
			query: "web server",
			main:  "web server",
		},
		{
			name:  "first dotted token is the main path",
			query: "services.nginx.enable reverse proxy",
			main:  "services.nginx.enable",
			terms: []string{"reverse", "proxy"},
		},
		{
			name:   "quoted phrases extracted",
			query:  `services.nginx "reverse proxy" tuning`,
			main:   "services.nginx",
			terms:  []string{"tuning"},
			quoted: []string{"reverse proxy"},
		},
		{
			name:  "wildcard path",
			query: "services.*.enable",
			main:  "services.*.enable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := parseQuery(tt.query)
			assert.Equal(t, tt.main, p.MainPath)
			assert.Equal(t, tt.terms, p.Terms)
			assert.Equal(t, tt.quoted, p.QuotedTerms)
		})
	}
}

func TestServiceName(t *testing.T) {
	assert.Equal(t, "nginx", serviceName("services.nginx.enable"))
	assert.Equal(t, "postgresql", serviceName("services.postgresql"))
	assert.Equal(t, "", serviceName("programs.git.enable"))
	assert.Equal(t, "", serviceName("services.*.enable"))
	assert.Equal(t, "", serviceName("services."))
}

// queryJSON round-trips a built query so assertions can use the JSON
// text the backend would receive.
func queryJSON(t *testing.T, q map[string]any) string {
	t.Helper()
	data, err := json.Marshal(q)
	require.NoError(t, err)
	return string(data)
}

func TestBuildPackagesQuery(t *testing.T) {
	q := buildPackagesQuery("firefox", 20)
	assert.Equal(t, 20, q["size"])

	body := queryJSON(t, q)
	assert.Contains(t, body, `"minimum_should_match":1`)
	assert.Contains(t, body, `"package_attr_name":{"boost":10,"value":"firefox"}`)
	assert.Contains(t, body, `"package_pname":{"boost":8,"value":"firefox"}`)
	assert.Contains(t, body, `"package_attr_name":{"boost":5,"value":"*firefox*"}`)
	assert.Contains(t, body, `"package_description":{"boost":3,"query":"firefox"}`)
	assert.Contains(t, body, `"package_programs":{"boost":6,"query":"firefox"}`)
}

func TestBuildProgramsQuery(t *testing.T) {
	body := queryJSON(t, buildProgramsQuery("gcc", 10))
	assert.Contains(t, body, `"package_programs":{"boost":10,"value":"gcc"}`)
	assert.Contains(t, body, `"package_programs":{"boost":5,"value":"gcc"}`)
	assert.Contains(t, body, `"package_programs":{"boost":3,"value":"*gcc*"}`)
	assert.NotContains(t, body, "package_attr_name")
}

func TestBuildOptionsQuery_PlainTerm(t *testing.T) {
	body := queryJSON(t, buildOptionsQuery("ssl", 20))
	assert.Contains(t, body, `"dis_max"`)
	assert.Contains(t, body, `"type":{"value":"option"}`)
	assert.Contains(t, body, `"option_name":{"boost":10,"value":"ssl"}`)
	assert.Contains(t, body, `"option_name":{"boost":8,"value":"ssl"}`)
	assert.Contains(t, body, `"option_name":{"boost":6,"value":"*ssl*"}`)
	assert.Contains(t, body, `"option_description":{"boost":4,"query":"ssl"}`)
}

func TestBuildOptionsQuery_HierarchicalPath(t *testing.T) {
	body := queryJSON(t, buildOptionsQuery("services.nginx.timeout", 20))
	assert.Contains(t, body, `"option_name":{"boost":10,"value":"services.nginx.timeout"}`)
	assert.Contains(t, body, `"option_name":{"boost":8,"value":"services.nginx.timeout.*"}`)
	assert.Contains(t, body, `"option_name":{"boost":6,"value":"services.nginx.timeout*"}`)
	// Service clause: the description should mention the service.
	assert.Contains(t, body, `"option_description":{"boost":2,"query":"nginx"}`)
}

func TestBuildOptionsQuery_Wildcard(t *testing.T) {
	body := queryJSON(t, buildOptionsQuery("services.*.enable", 20))
	assert.Contains(t, body, `"case_insensitive":true`)
	assert.Contains(t, body, `"value":"services.*.enable"`)
	// Wildcard shape uses exactly one name clause.
	assert.NotContains(t, body, `"prefix"`)
}

func TestBuildOptionsQuery_TermsAndPhrases(t *testing.T) {
	body := queryJSON(t, buildOptionsQuery(`services.nginx "reverse proxy" tuning`, 20))
	assert.Contains(t, body, `"match_phrase":{"option_description":{"boost":6,"query":"reverse proxy"}}`)
	assert.Contains(t, body, `"option_description":{"boost":4,"query":"tuning"}`)
}

func TestBuildOptionLookupQuery(t *testing.T) {
	exact := queryJSON(t, buildOptionLookupQuery("services.nginx.enable", false))
	assert.Contains(t, exact, `"term":{"option_name"`)
	assert.Contains(t, exact, `"size":1`)

	prefixed := queryJSON(t, buildOptionLookupQuery("services.nginx.enable", true))
	assert.Contains(t, prefixed, `"prefix":{"option_name"`)
}

func TestBuildRelatedOptionsQuery(t *testing.T) {
	body := queryJSON(t, buildRelatedOptionsQuery("nginx", "services.nginx.enable", 5))
	assert.Contains(t, body, `"prefix":{"option_name":{"boost":1,"value":"services.nginx."}}`)
	assert.Contains(t, body, `"must_not"`)
	assert.Contains(t, body, `"option_name":{"value":"services.nginx.enable"}`)
	assert.Contains(t, body, `"size":5`)
}

func TestBuildPackageStatsQuery(t *testing.T) {
	body := queryJSON(t, buildPackageStatsQuery())
	assert.Contains(t, body, `"size":0`)
	assert.Contains(t, body, `"channels":{"terms":{"field":"package_channel","size":10}}`)
	assert.Contains(t, body, `"licenses":{"terms":{"field":"package_license","size":10}}`)
	assert.Contains(t, body, `"platforms":{"terms":{"field":"package_platforms","size":10}}`)
}

func TestResolveChannel(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		index   string
		ok      bool
	}{
		{"unstable", "unstable", "latest-42-nixos-unstable", true},
		{"25.05", "25.05", "latest-42-nixos-25.05", true},
		{"24.11", "24.11", "latest-42-nixos-24.11", true},
		{"stable", "25.05", "latest-42-nixos-25.05", true},
		{"beta", "25.05", "latest-42-nixos-25.05", true},
		{"UNSTABLE", "unstable", "latest-42-nixos-unstable", true},
		{" stable ", "25.05", "latest-42-nixos-25.05", true},
		{"20.03", "20.03", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channel, index, ok := ResolveChannel(tt.name)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.channel, channel)
				assert.Equal(t, tt.index, index)
			}
		})
	}
}
