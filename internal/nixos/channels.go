package nixos

import "strings"

// DefaultChannel is used at startup and as the fallback for unknown
// channel names.
const DefaultChannel = "unstable"

// channelIndices maps channel names to upstream index identifiers. The
// table is a build-time constant; bump it when a new release branches.
var channelIndices = map[string]string{
	"unstable": "latest-42-nixos-unstable",
	"25.05":    "latest-42-nixos-25.05",
	"24.11":    "latest-42-nixos-24.11",
}

// channelAliases resolves moving names to concrete versions at lookup
// time. "stable" tracks the current stable release.
var channelAliases = map[string]string{
	"stable": "25.05",
	"beta":   "25.05",
}

// ResolveChannel maps a case-insensitive channel name (aliases honoured)
// to its canonical name and index identifier.
func ResolveChannel(name string) (channel, index string, ok bool) {
	channel = strings.ToLower(strings.TrimSpace(name))
	if target, isAlias := channelAliases[channel]; isAlias {
		channel = target
	}
	index, ok = channelIndices[channel]
	return channel, index, ok
}

// AvailableChannels lists the canonical channel names.
func AvailableChannels() []string {
	out := make([]string, 0, len(channelIndices))
	for name := range channelIndices {
		out = append(out, name)
	}
	return out
}
