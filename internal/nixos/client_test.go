package nixos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-nixos/internal/cache"
	"mcp-nixos/internal/httpclient"
	"mcp-nixos/internal/testutil"
)

func newTestClientWithStub(t *testing.T, stub *testutil.BackendStub, channel string) *Client {
	t.Helper()
	hc := httpclient.New(httpclient.Config{
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
		ConnectTimeout: time.Second,
		ReadTimeout:    5 * time.Second,
	}, nil)
	mem := cache.NewMemory(time.Hour, 100, nil)
	return NewClient(Config{
		BaseURL: stub.URL(),
		Channel: channel,
	}, hc, mem, nil)
}

// esReply renders a search response with the given _source documents.
func esReply(sources ...string) string {
	hits := make([]string, len(sources))
	for i, src := range sources {
		hits[i] = fmt.Sprintf(`{"_score":%d,"_source":%s}`, 10-i, src)
	}
	return fmt.Sprintf(`{"hits":{"total":{"value":%d},"hits":[%s]}}`,
		len(sources), strings.Join(hits, ","))
}

func TestSearchPackages(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()
	stub.SetHandle(func(string, string, []byte) (int, string) {
		return http.StatusOK, esReply(
			`{"package_attr_name":"python312","package_pname":"python3","package_version":"3.12.8","package_description":"A high-level dynamically-typed programming language"}`,
			`{"package_attr_name":"python313","package_pname":"python3","package_pversion":"3.13.1"}`,
		)
	})

	c := newTestClientWithStub(t, stub, "unstable")
	res := c.SearchPackages(context.Background(), "python", 20)
	require.Empty(t, res.Error)
	require.Equal(t, 2, res.Count)
	assert.Equal(t, "python312", res.Packages[0].Name)
	assert.Equal(t, "3.12.8", res.Packages[0].Version)
	// Historical alias still populates the version.
	assert.Equal(t, "3.13.1", res.Packages[1].Version)

	reqs := stub.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/latest-42-nixos-unstable/_search", reqs[0].Path)
	assert.Contains(t, string(reqs[0].Body), "package_attr_name")
}

func TestSearchOptions_DropsNonOptionDocuments(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()
	stub.SetHandle(func(string, string, []byte) (int, string) {
		return http.StatusOK, esReply(
			`{"type":"option","option_name":"services.nginx.enable","option_type":"boolean","option_description":"Whether to enable nginx."}`,
			`{"type":"package","package_attr_name":"nginx"}`,
		)
	})

	c := newTestClientWithStub(t, stub, "unstable")
	res := c.SearchOptions(context.Background(), "services.nginx", 20)
	require.Empty(t, res.Error)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "services.nginx.enable", res.Options[0].Name)
	assert.Equal(t, "boolean", res.Options[0].Type)
}

func TestSearchPrograms_FiltersProgramLists(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()
	stub.SetHandle(func(string, string, []byte) (int, string) {
		return http.StatusOK, esReply(
			`{"package_attr_name":"gcc13","package_programs":["gcc","g++","cpp"]}`,
			`{"package_attr_name":"binutils","package_programs":["ld","as"]}`,
			`{"package_attr_name":"stdenv","package_description":"no programs listed"}`,
		)
	})

	c := newTestClientWithStub(t, stub, "unstable")
	res := c.SearchPrograms(context.Background(), "gcc", 20)
	require.Empty(t, res.Error)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "gcc13", res.Packages[0].Name)
	assert.Equal(t, []string{"gcc"}, res.Packages[0].Programs)
}

func TestSearchPackagesWithVersion(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()
	stub.SetHandle(func(string, string, []byte) (int, string) {
		return http.StatusOK, esReply(
			`{"package_attr_name":"python311","package_version":"3.11.9"}`,
			`{"package_attr_name":"python312","package_version":"3.12.8"}`,
			`{"package_attr_name":"python313","package_version":"3.13.1"}`,
		)
	})

	c := newTestClientWithStub(t, stub, "unstable")
	res := c.SearchPackagesWithVersion(context.Background(), "python", "3.12", 10)
	require.Empty(t, res.Error)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "python312", res.Packages[0].Name)

	// The backend is asked for twice the limit to survive filtering.
	reqs := stub.Requests()
	require.Len(t, reqs, 1)
	var body struct {
		Size int `json:"size"`
	}
	require.NoError(t, json.Unmarshal(reqs[0].Body, &body))
	assert.Equal(t, 20, body.Size)
}

func TestGetPackage_NotFound(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()
	stub.SetHandle(func(string, string, []byte) (int, string) {
		return http.StatusOK, esReply()
	})

	c := newTestClientWithStub(t, stub, "unstable")
	info := c.GetPackage(context.Background(), "nosuchpackage")
	assert.False(t, info.Found)
	assert.Equal(t, "nosuchpackage", info.Name)
	assert.Equal(t, "Package not found", info.Error)
}

func TestGetOption_ServicePathHitFetchesRelated(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()
	stub.SetHandle(func(_, _ string, body []byte) (int, string) {
		if strings.Contains(string(body), "must_not") {
			return http.StatusOK, esReply(
				`{"type":"option","option_name":"services.nginx.package","option_type":"package"}`,
				`{"type":"option","option_name":"services.nginx.virtualHosts","option_type":"attribute set"}`,
			)
		}
		return http.StatusOK, esReply(
			`{"type":"option","option_name":"services.nginx.enable","option_type":"boolean","option_default":false}`,
		)
	})

	c := newTestClientWithStub(t, stub, "unstable")
	info := c.GetOption(context.Background(), "services.nginx.enable")
	require.True(t, info.Found)
	assert.True(t, info.IsServicePath)
	assert.Equal(t, "nginx", info.ServiceName)
	assert.Equal(t, "false", info.Default)
	require.Len(t, info.RelatedOptions, 2)
	assert.Equal(t, "services.nginx.package", info.RelatedOptions[0].Name)

	// One lookup plus one related-options query.
	assert.Equal(t, 2, stub.RequestCount())
}

func TestGetOption_MissRetriesWithPrefixThenSuggests(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()
	stub.SetHandle(func(string, string, []byte) (int, string) {
		return http.StatusOK, esReply()
	})

	c := newTestClientWithStub(t, stub, "unstable")
	info := c.GetOption(context.Background(), "services.quantum.enable")
	assert.False(t, info.Found)
	assert.True(t, info.IsServicePath)
	assert.Equal(t, "quantum", info.ServiceName)
	assert.Contains(t, info.Error, "services.quantum.enable")
	assert.Contains(t, info.Error, "services.quantum.package")

	// Exact lookup then the prefix retry.
	reqs := stub.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, string(reqs[0].Body), `"term"`)
	assert.Contains(t, string(reqs[1].Body), `"prefix"`)
}

func TestGetOption_PlainMissHasNoServiceSuggestion(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()
	stub.SetHandle(func(string, string, []byte) (int, string) {
		return http.StatusOK, esReply()
	})

	c := newTestClientWithStub(t, stub, "unstable")
	info := c.GetOption(context.Background(), "nosuchoption")
	assert.False(t, info.Found)
	assert.False(t, info.IsServicePath)
	assert.Equal(t, "Option not found", info.Error)
	// No dot in the name, so no prefix retry either.
	assert.Equal(t, 1, stub.RequestCount())
}

func TestSetChannel_RoutesAndDropsCache(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()
	stub.SetHandle(func(string, string, []byte) (int, string) {
		return http.StatusOK, esReply()
	})

	c := newTestClientWithStub(t, stub, "unstable")
	c.SearchPackages(context.Background(), "git", 5)
	c.SearchPackages(context.Background(), "git", 5)
	assert.Equal(t, 1, stub.RequestCount(), "identical search should come from cache")

	c.SetChannel("24.11")
	assert.Equal(t, "24.11", c.Channel())
	c.SearchPackages(context.Background(), "git", 5)
	reqs := stub.Requests()
	require.Len(t, reqs, 2, "channel switch must drop cached responses")
	assert.Equal(t, "/latest-42-nixos-24.11/_search", reqs[1].Path)
}

func TestSetChannel_AliasAndFallback(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()

	c := newTestClientWithStub(t, stub, "unstable")
	c.SetChannel("stable")
	assert.Equal(t, "25.05", c.Channel())

	c.SetChannel("no-such-channel")
	assert.Equal(t, "unstable", c.Channel())
}

func TestGetPackageStats(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()
	stub.SetHandle(func(string, string, []byte) (int, string) {
		return http.StatusOK, `{
			"hits":{"total":{"value":0},"hits":[]},
			"aggregations":{
				"channels":{"buckets":[{"key":"nixos-unstable","doc_count":120000}]},
				"licenses":{"buckets":[{"key":"MIT License","doc_count":30000}]},
				"platforms":{"buckets":[{"key":"x86_64-linux","doc_count":110000}]}
			}
		}`
	})

	c := newTestClientWithStub(t, stub, "unstable")
	stats := c.GetPackageStats(context.Background())
	require.Empty(t, stats.Error)
	require.Len(t, stats.Channels, 1)
	assert.Equal(t, Bucket{Key: "nixos-unstable", Count: 120000}, stats.Channels[0])
	assert.Equal(t, "MIT License", stats.Licenses[0].Key)
	assert.Equal(t, "x86_64-linux", stats.Platforms[0].Key)
}

func TestCountOptions(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()
	stub.SetHandle(func(string, string, []byte) (int, string) {
		return http.StatusOK, `{"count":21496}`
	})

	c := newTestClientWithStub(t, stub, "unstable")
	res := c.CountOptions(context.Background())
	require.Empty(t, res.Error)
	assert.Equal(t, 21496, res.Count)

	reqs := stub.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/latest-42-nixos-unstable/_count", reqs[0].Path)
}

func TestSearchPackages_BackendErrorSurfaces(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()
	stub.SetHandle(func(string, string, []byte) (int, string) {
		return http.StatusInternalServerError, `{"error":{"reason":"index unavailable"}}`
	})

	c := newTestClientWithStub(t, stub, "unstable")
	res := c.SearchPackages(context.Background(), "git", 5)
	assert.Zero(t, res.Count)
	assert.Contains(t, res.Error, "index unavailable")
	assert.NotNil(t, res.Packages)
}

func TestLicenseValue_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		names []string
	}{
		{"string", `"MIT"`, []string{"MIT"}},
		{"object", `{"fullName":"GNU GPL v3","url":"https://spdx.org/licenses/GPL-3.0"}`, []string{"GNU GPL v3"}},
		{"list of objects", `[{"fullName":"MIT"},{"fullName":"Apache 2.0"}]`, []string{"MIT", "Apache 2.0"}},
		{"list of strings", `["MIT","BSD"]`, []string{"MIT", "BSD"}},
		{"null", `null`, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l LicenseValue
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &l))
			assert.Equal(t, tt.names, l.Names())
		})
	}
}

func TestFlexString_Shapes(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"on"`, "on"},
		{`true`, "true"},
		{`8080`, "8080"},
		{`null`, ""},
		{`{"_type":"literalExpression","text":"pkgs.nginx"}`, `{"_type":"literalExpression","text":"pkgs.nginx"}`},
	}
	for _, tt := range tests {
		var f FlexString
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &f))
		assert.Equal(t, tt.want, string(f))
	}
}
