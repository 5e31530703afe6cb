// Package format renders structured results as Markdown for direct
// inclusion in a model's context window. It is a collaborator of the
// core: the core exposes structured values, this package turns them
// into strings.
package format

import (
	"fmt"
	"strings"

	"mcp-nixos/internal/htmldocs"
	"mcp-nixos/internal/nixos"
	"mcp-nixos/internal/text"
)

// nixpkgsSourceBase resolves package positions to source links.
const nixpkgsSourceBase = "https://github.com/NixOS/nixpkgs/blob/nixos-unstable/"

// Packages renders a package search result.
func Packages(query string, res nixos.PackagesResult) string {
	if res.Error != "" {
		return fmt.Sprintf("Error searching packages for %q: %s", query, res.Error)
	}
	if res.Count == 0 {
		return fmt.Sprintf("No packages found for %q.", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d packages for %q:\n\n", res.Count, query)
	for _, pkg := range res.Packages {
		fmt.Fprintf(&sb, "## %s", pkg.Name)
		if pkg.Version != "" {
			fmt.Fprintf(&sb, " (%s)", pkg.Version)
		}
		sb.WriteByte('\n')
		if pkg.Description != "" {
			sb.WriteString(text.StripHTML(pkg.Description))
			sb.WriteByte('\n')
		}
		if len(pkg.Programs) > 0 {
			fmt.Fprintf(&sb, "Programs: %s\n", strings.Join(pkg.Programs, ", "))
		}
		sb.WriteByte('\n')
	}
	return strings.TrimSpace(sb.String())
}

// PackageInfo renders a single-package lookup.
func PackageInfo(info nixos.PackageInfo) string {
	if !info.Found {
		msg := info.Error
		if msg == "" {
			msg = "Package not found"
		}
		return fmt.Sprintf("%s: %s", info.Name, msg)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", info.Name)
	writeField(&sb, "Version", info.Version)
	writeField(&sb, "Description", text.StripHTML(info.Description))
	if info.LongDescription != "" {
		fmt.Fprintf(&sb, "\n%s\n\n", text.StripHTML(info.LongDescription))
	}
	if names := info.License.Names(); len(names) > 0 {
		writeField(&sb, "License", strings.Join(names, ", "))
	}
	if len(info.Homepage) > 0 {
		writeField(&sb, "Homepage", strings.Join(info.Homepage, ", "))
	}
	if len(info.Platforms) > 0 {
		writeField(&sb, "Platforms", strings.Join(info.Platforms, ", "))
	}
	if len(info.Maintainers) > 0 {
		names := make([]string, 0, len(info.Maintainers))
		for _, m := range info.Maintainers {
			if m.Name != "" {
				names = append(names, m.Name)
			}
		}
		writeField(&sb, "Maintainers", strings.Join(names, ", "))
	}
	if info.Position != "" {
		writeField(&sb, "Source", positionURL(info.Position))
	}
	if len(info.Programs) > 0 {
		writeField(&sb, "Programs", strings.Join(info.Programs, ", "))
	}
	return strings.TrimSpace(sb.String())
}

// positionURL turns "path:line" into a nixpkgs source link.
func positionURL(position string) string {
	path, line, hasLine := strings.Cut(position, ":")
	url := nixpkgsSourceBase + path
	if hasLine {
		url += "#L" + line
	}
	return url
}

// NixOSOptions renders a NixOS option search result. Descriptions may
// carry the restricted HTML dialect, rendered here.
func NixOSOptions(query string, res nixos.OptionsResult) string {
	if res.Error != "" {
		return fmt.Sprintf("Error searching options for %q: %s", query, res.Error)
	}
	if res.Count == 0 {
		return fmt.Sprintf("No options found for %q.", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d options for %q:\n\n", res.Count, query)
	for _, opt := range res.Options {
		fmt.Fprintf(&sb, "## %s\n", opt.Name)
		writeField(&sb, "Type", opt.Type)
		if opt.Description != "" {
			sb.WriteString(text.RenderOptionHTML(opt.Description))
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	return strings.TrimSpace(sb.String())
}

// NixOSOptionInfo renders a single-option lookup with related options
// and, on a service-path miss, suggested patterns.
func NixOSOptionInfo(info nixos.OptionInfo) string {
	if !info.Found {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Option %q not found.\n", info.Name)
		if info.IsServicePath && info.ServiceName != "" {
			fmt.Fprintf(&sb, "\nTry common patterns for the %s service:\n", info.ServiceName)
			fmt.Fprintf(&sb, "- services.%s.enable\n", info.ServiceName)
			fmt.Fprintf(&sb, "- services.%s.package\n", info.ServiceName)
		} else if info.Error != "" {
			fmt.Fprintf(&sb, "%s\n", info.Error)
		}
		return strings.TrimSpace(sb.String())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", info.Name)
	writeField(&sb, "Type", info.Type)
	writeField(&sb, "Default", codeSpan(info.Default))
	writeField(&sb, "Example", codeSpan(info.Example))
	if info.Description != "" {
		fmt.Fprintf(&sb, "\n%s\n", text.RenderOptionHTML(info.Description))
	}
	if info.Type != "" {
		fmt.Fprintf(&sb, "\nExample value: %s\n", exampleForType(info.Type))
	}
	if len(info.RelatedOptions) > 0 {
		fmt.Fprintf(&sb, "\n## Related options for %s\n", info.ServiceName)
		for _, rel := range info.RelatedOptions {
			fmt.Fprintf(&sb, "- `%s`", rel.Name)
			if rel.Type != "" {
				fmt.Fprintf(&sb, " (%s)", rel.Type)
			}
			sb.WriteByte('\n')
		}
	}
	return strings.TrimSpace(sb.String())
}

// exampleForType picks a plausible literal for the option's Nix type.
func exampleForType(optType string) string {
	t := strings.ToLower(optType)
	switch {
	case strings.Contains(t, "boolean"):
		return "`true`"
	case strings.Contains(t, "int"):
		return "`8080`"
	case strings.Contains(t, "attribute set"):
		return "`{ }`"
	case strings.Contains(t, "list"):
		return "`[ ]`"
	case strings.Contains(t, "path"):
		return "`/etc/example`"
	default:
		return "`\"value\"`"
	}
}

// DocOptions renders a Home Manager / Darwin search result.
func DocOptions(universe, query string, res htmldocs.OptionsResult) string {
	if res.Error != "" {
		return fmt.Sprintf("Error searching %s options for %q: %s", universe, query, res.Error)
	}
	if res.Count == 0 {
		return fmt.Sprintf("No %s options found for %q.", universe, query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d %s options for %q:\n\n", res.Count, universe, query)
	for _, opt := range res.Options {
		fmt.Fprintf(&sb, "## %s\n", opt.Name)
		writeField(&sb, "Type", opt.Type)
		writeField(&sb, "Category", opt.Category)
		if opt.Description != "" {
			sb.WriteString(opt.Description)
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	return strings.TrimSpace(sb.String())
}

// DocOptionInfo renders a Home Manager / Darwin lookup.
func DocOptionInfo(universe string, info htmldocs.OptionInfo) string {
	if !info.Found {
		var sb strings.Builder
		if info.Error != "" {
			sb.WriteString(info.Error)
			sb.WriteByte('\n')
		}
		if len(info.Suggestions) > 0 {
			fmt.Fprintf(&sb, "\nDid you mean one of these?\n")
			for _, s := range info.Suggestions {
				fmt.Fprintf(&sb, "- `%s`\n", s)
			}
		}
		return strings.TrimSpace(sb.String())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", info.Name)
	writeField(&sb, "Type", info.Type)
	writeField(&sb, "Default", codeSpan(info.Default))
	writeField(&sb, "Example", codeSpan(info.Example))
	writeField(&sb, "Category", info.Category)
	writeField(&sb, "Source", info.Source)
	if info.Description != "" {
		fmt.Fprintf(&sb, "\n%s\n", info.Description)
	}
	if len(info.RelatedOptions) > 0 {
		sb.WriteString("\n## Sibling options\n")
		for _, rel := range info.RelatedOptions {
			fmt.Fprintf(&sb, "- `%s`", rel.Name)
			if rel.Type != "" {
				fmt.Fprintf(&sb, " (%s)", rel.Type)
			}
			sb.WriteByte('\n')
		}
	}
	return strings.TrimSpace(sb.String())
}

// DocStats renders universe statistics.
func DocStats(universe string, stats htmldocs.Stats) string {
	if stats.Error != "" {
		return fmt.Sprintf("Error getting %s statistics: %s", universe, stats.Error)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s statistics\n\n", universe)
	fmt.Fprintf(&sb, "- Total options: %d\n", stats.TotalOptions)
	fmt.Fprintf(&sb, "- Categories: %d\n", stats.TotalCategories)
	fmt.Fprintf(&sb, "- Option types: %d\n", stats.TotalTypes)
	if len(stats.BySource) > 0 {
		sb.WriteString("\n## By source\n")
		for source, count := range stats.BySource {
			fmt.Fprintf(&sb, "- %s: %d\n", source, count)
		}
	}
	fmt.Fprintf(&sb, "\nIndex: %d words, %d prefixes, %d hierarchical parts\n",
		stats.IndexStats.Words, stats.IndexStats.Prefixes, stats.IndexStats.HierarchicalParts)
	return strings.TrimSpace(sb.String())
}

// PackageStats renders the aggregate package statistics.
func PackageStats(stats nixos.PackageStats) string {
	if stats.Error != "" {
		return fmt.Sprintf("Error getting package statistics: %s", stats.Error)
	}

	var sb strings.Builder
	sb.WriteString("# Package statistics\n")
	writeBuckets(&sb, "Channels", stats.Channels)
	writeBuckets(&sb, "Licenses", stats.Licenses)
	writeBuckets(&sb, "Platforms", stats.Platforms)
	return strings.TrimSpace(sb.String())
}

// PrefixResult renders an options-by-prefix reply.
func PrefixResult(universe string, res htmldocs.PrefixResult) string {
	if res.Error != "" {
		return fmt.Sprintf("Error listing %s options under %q: %s", universe, res.Prefix, res.Error)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d %s options under %q.\n", res.Count, universe, res.Prefix)
	if len(res.EnableOptions) > 0 {
		sb.WriteString("\n## Enable toggles\n")
		for _, e := range res.EnableOptions {
			fmt.Fprintf(&sb, "- `%s`\n", e.Name)
		}
	}
	if len(res.Names) > 0 {
		sb.WriteString("\n## Options\n")
		for _, name := range res.Names {
			fmt.Fprintf(&sb, "- `%s`\n", name)
		}
	}
	return strings.TrimSpace(sb.String())
}

func writeField(sb *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(sb, "**%s:** %s\n", label, value)
	}
}

func codeSpan(value string) string {
	if value == "" {
		return ""
	}
	return "`" + value + "`"
}

func writeBuckets(sb *strings.Builder, label string, buckets []nixos.Bucket) {
	if len(buckets) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n## %s\n", label)
	for _, b := range buckets {
		fmt.Fprintf(sb, "- %s: %d\n", b.Key, b.Count)
	}
}
