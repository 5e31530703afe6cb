package mcp

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-nixos/internal/cache"
	"mcp-nixos/internal/facade"
	"mcp-nixos/internal/htmldocs"
	"mcp-nixos/internal/httpclient"
	"mcp-nixos/internal/nixos"
	"mcp-nixos/internal/testutil"
)

func newTestHandlers(t *testing.T, stub *testutil.BackendStub) *Handlers {
	t.Helper()
	hc := httpclient.New(httpclient.Config{
		MaxRetries:     0,
		RetryDelay:     time.Millisecond,
		ConnectTimeout: time.Second,
		ReadTimeout:    5 * time.Second,
	}, nil)
	fs, err := cache.NewFilesystem(t.TempDir(), time.Hour, nil)
	require.NoError(t, err)

	client := nixos.NewClient(nixos.Config{BaseURL: stub.URL(), Channel: "unstable"}, hc,
		cache.NewMemory(time.Hour, 100, nil), nil)

	// Loaders are never started; the docs tools short-circuit.
	hmLoader := htmldocs.NewLoader(htmldocs.HomeManager, hc, fs, nil, time.Second, nil)
	darwinLoader := htmldocs.NewLoader(htmldocs.Darwin, hc, fs, nil, time.Second, nil)

	return NewHandlers(
		facade.NewNixOS(client),
		facade.NewDocs("home-manager", hmLoader, fs),
		facade.NewDocs("darwin", darwinLoader, fs),
		nil,
	)
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestNixOSSearch_RequiresQuery(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()
	h := newTestHandlers(t, stub)

	_, _, err := h.NixOSSearch(context.Background(), nil, SearchArgs{Query: "  "})
	assert.ErrorContains(t, err, "query is required")
	assert.Equal(t, 0, stub.RequestCount())
}

func TestNixOSSearch_RejectsUnknownType(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()
	h := newTestHandlers(t, stub)

	_, _, err := h.NixOSSearch(context.Background(), nil, SearchArgs{Query: "git", Type: "flakes"})
	assert.ErrorContains(t, err, "unknown search type")
}

func TestNixOSSearch_Packages(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()
	stub.SetHandle(func(string, string, []byte) (int, string) {
		return http.StatusOK, `{"hits":{"total":{"value":1},"hits":[
			{"_score":9,"_source":{"package_attr_name":"git","package_version":"2.47.0"}}
		]}}`
	})
	h := newTestHandlers(t, stub)

	res, _, err := h.NixOSSearch(context.Background(), nil, SearchArgs{Query: "git"})
	require.NoError(t, err)
	out := resultText(t, res)
	assert.Contains(t, out, "Found 1 packages")
	assert.Contains(t, out, "## git (2.47.0)")
}

func TestNixOSSearch_ChannelRouting(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()
	stub.SetHandle(func(string, string, []byte) (int, string) {
		return http.StatusOK, `{"hits":{"total":{"value":0},"hits":[]}}`
	})
	h := newTestHandlers(t, stub)

	_, _, err := h.NixOSSearch(context.Background(), nil, SearchArgs{Query: "git", Channel: "stable"})
	require.NoError(t, err)
	reqs := stub.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/latest-42-nixos-25.05/_search", reqs[0].Path)
}

func TestNixOSInfo_RequiresName(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()
	h := newTestHandlers(t, stub)

	_, _, err := h.NixOSInfo(context.Background(), nil, InfoArgs{})
	assert.ErrorContains(t, err, "name is required")
}

func TestNixOSSearchVersion_RequiresVersion(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()
	h := newTestHandlers(t, stub)

	_, _, err := h.NixOSSearchVersion(context.Background(), nil, VersionSearchArgs{Query: "python"})
	assert.ErrorContains(t, err, "version is required")
}

func TestHomeManagerSearch_ShortCircuitsWhileLoading(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()
	h := newTestHandlers(t, stub)

	res, _, err := h.HomeManagerSearch(context.Background(), nil, DocSearchArgs{Query: "git"})
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "still loading")
}

func TestDarwinOptionsByPrefix_RequiresPrefix(t *testing.T) {
	stub := testutil.NewBackendStub()
	defer stub.Close()
	h := newTestHandlers(t, stub)

	_, _, err := h.DarwinOptionsByPrefix(context.Background(), nil, PrefixArgs{})
	assert.ErrorContains(t, err, "option_prefix is required")
}
