package htmldocs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *Snapshot {
	return BuildSnapshot(testRecords(), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
}

func TestSearch_EmptyQuery(t *testing.T) {
	res := testSnapshot().Search("   ", 20)
	assert.Equal(t, 0, res.Count)
	assert.NotNil(t, res.Options)
	assert.Empty(t, res.Options)
	assert.Equal(t, "Empty query", res.Error)
}

func TestSearch_ExactNameRanksFirst(t *testing.T) {
	res := testSnapshot().Search("programs.git.enable", 20)
	require.True(t, res.Found)
	require.NotEmpty(t, res.Options)
	assert.Equal(t, "programs.git.enable", res.Options[0].Name)
	assert.GreaterOrEqual(t, res.Options[0].Score, float64(scoreExact))
}

func TestSearch_StarSuffixMatchesSubtree(t *testing.T) {
	res := testSnapshot().Search("programs.git.*", 20)
	require.True(t, res.Found)
	require.Len(t, res.Options, 2)
	// Equal scores break ties by name ascending.
	assert.Equal(t, "programs.git.enable", res.Options[0].Name)
	assert.Equal(t, "programs.git.userName", res.Options[1].Name)
}

func TestSearch_PrefixQuery(t *testing.T) {
	res := testSnapshot().Search("programs.git", 20)
	require.True(t, res.Found)
	names := make([]string, 0, len(res.Options))
	for _, o := range res.Options {
		names = append(names, o.Name)
	}
	assert.Contains(t, names, "programs.git.enable")
	assert.Contains(t, names, "programs.git.userName")
	// Children under the prefix outrank name-word matches elsewhere.
	assert.Equal(t, "programs.git.enable", res.Options[0].Name)
}

func TestSearch_WordsMatchDescriptions(t *testing.T) {
	res := testSnapshot().Search("gnupg", 20)
	require.True(t, res.Found)
	assert.Equal(t, "services.gpg-agent.enable", res.Options[0].Name)
}

func TestSearch_FallbackOnWordPrefix(t *testing.T) {
	// "fire" is not a vocabulary word, but shares its first three
	// letters with "firefox".
	res := testSnapshot().Search("fir", 20)
	require.True(t, res.Found)
	assert.Equal(t, "programs.firefox.enable", res.Options[0].Name)
	assert.Equal(t, float64(scoreWordPartial), res.Options[0].Score)
}

func TestSearch_NoMatches(t *testing.T) {
	res := testSnapshot().Search("zzzzqqq", 20)
	assert.False(t, res.Found)
	assert.Equal(t, 0, res.Count)
	assert.Empty(t, res.Options)
}

func TestSearch_LimitApplied(t *testing.T) {
	res := testSnapshot().Search("enable", 2)
	assert.Equal(t, 2, res.Count)
	assert.Len(t, res.Options, 2)
}

func TestGetOption_Hit_WithSiblings(t *testing.T) {
	info := testSnapshot().GetOption("programs.git.enable")
	require.True(t, info.Found)
	assert.Equal(t, "boolean", info.Type)
	require.Len(t, info.RelatedOptions, 1)
	assert.Equal(t, "programs.git.userName", info.RelatedOptions[0].Name)
}

func TestGetOption_MissWithSuggestions(t *testing.T) {
	info := testSnapshot().GetOption("programs.git")
	assert.False(t, info.Found)
	assert.Contains(t, info.Error, "programs.git")
	assert.Equal(t, []string{"programs.git.enable", "programs.git.userName"}, info.Suggestions)
}

func TestGetOption_MissWithoutSuggestions(t *testing.T) {
	info := testSnapshot().GetOption("nosuch.option")
	assert.False(t, info.Found)
	assert.Empty(t, info.Suggestions)
}

func TestGetOptionsByPrefix(t *testing.T) {
	res := testSnapshot().GetOptionsByPrefix("programs")
	require.True(t, res.Found)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, []string{
		"programs.firefox.enable",
		"programs.git.enable",
		"programs.git.userName",
	}, res.Names)
	assert.Equal(t, 2, res.Types["boolean"])
	assert.Equal(t, 1, res.Types["null or string"])

	require.Len(t, res.EnableOptions, 2)
	assert.Equal(t, EnableOption{Name: "programs.firefox.enable", Parent: "programs.firefox"}, res.EnableOptions[0])
	assert.Equal(t, EnableOption{Name: "programs.git.enable", Parent: "programs.git"}, res.EnableOptions[1])
}

func TestGetOptionsByPrefix_Miss(t *testing.T) {
	res := testSnapshot().GetOptionsByPrefix("nosuch")
	assert.False(t, res.Found)
	assert.Contains(t, res.Error, "nosuch")
}

func TestOptionsList_StableShape(t *testing.T) {
	res := testSnapshot().OptionsList([]string{"programs", "services", "wayland"})
	require.Len(t, res.Categories, 3)

	programs := res.Categories["programs"]
	assert.Equal(t, 3, programs.Count)
	assert.True(t, programs.HasChildren)
	assert.Len(t, programs.EnableOptions, 2)

	// Empty categories stay in the reply with zero counts.
	wayland := res.Categories["wayland"]
	assert.Equal(t, 0, wayland.Count)
	assert.False(t, wayland.HasChildren)
	assert.NotNil(t, wayland.Types)
}

func TestSnapshotStats(t *testing.T) {
	stats := testSnapshot().Stats()
	assert.Equal(t, 5, stats.TotalOptions)
	assert.Equal(t, 3, stats.TotalCategories)
	assert.Equal(t, 5, stats.BySource["options"])
	assert.Equal(t, 3, stats.ByType["boolean"])
	assert.Positive(t, stats.IndexStats.Words)
	assert.Positive(t, stats.IndexStats.Prefixes)
	assert.Positive(t, stats.IndexStats.HierarchicalParts)
}
