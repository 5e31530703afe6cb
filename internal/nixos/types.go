// Package nixos is the client for the search.nixos.org Elasticsearch
// backend: query DSL construction, channel routing, hit parsing, and
// aggregate statistics. Failures never escape the public boundary; every
// method returns a structured result with an Error field.
package nixos

import (
	"encoding/json"
	"strconv"
)

// License is one normalised license entry.
type License struct {
	FullName string `json:"fullName,omitempty"`
	URL      string `json:"url,omitempty"`
}

// LicenseValue tolerates the three upstream shapes: a bare string, an
// object with fullName, or a list of either. The raw shape never leaks
// past this package.
type LicenseValue []License

// UnmarshalJSON accepts string | object | list of either.
func (l *LicenseValue) UnmarshalJSON(data []byte) error {
	*l = nil
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "" {
			*l = LicenseValue{{FullName: s}}
		}
		return nil
	}

	var one License
	if err := json.Unmarshal(data, &one); err == nil && (one.FullName != "" || one.URL != "") {
		*l = LicenseValue{one}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err == nil {
		out := make(LicenseValue, 0, len(items))
		for _, item := range items {
			var is string
			if err := json.Unmarshal(item, &is); err == nil {
				out = append(out, License{FullName: is})
				continue
			}
			var io License
			if err := json.Unmarshal(item, &io); err == nil {
				out = append(out, io)
			}
		}
		*l = out
		return nil
	}
	// Unknown shape: treat as absent rather than failing the whole hit.
	return nil
}

// Names returns the license display names.
func (l LicenseValue) Names() []string {
	out := make([]string, 0, len(l))
	for _, lic := range l {
		if lic.FullName != "" {
			out = append(out, lic.FullName)
		}
	}
	return out
}

// FlexString unmarshals any JSON scalar into its string form; composite
// values keep their raw JSON text. Option defaults and examples arrive
// in all of these shapes.
type FlexString string

// UnmarshalJSON implements the tolerant decoding.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = FlexString(strconv.FormatBool(b))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	*f = FlexString(data)
	return nil
}

// Maintainer is one package maintainer entry.
type Maintainer struct {
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Github string `json:"github,omitempty"`
}

// Package is a search hit projected to the record shape. Name is the
// attribute path and the authoritative identity; PName is the display
// name.
type Package struct {
	Name            string       `json:"name"`
	PName           string       `json:"pname,omitempty"`
	Version         string       `json:"version,omitempty"`
	Description     string       `json:"description,omitempty"`
	LongDescription string       `json:"long_description,omitempty"`
	Channel         string       `json:"channel,omitempty"`
	Score           float64      `json:"score,omitempty"`
	Programs        []string     `json:"programs,omitempty"`
	License         LicenseValue `json:"license,omitempty"`
	Homepage        []string     `json:"homepage,omitempty"`
	Maintainers     []Maintainer `json:"maintainers,omitempty"`
	Platforms       []string     `json:"platforms,omitempty"`
	Position        string       `json:"position,omitempty"`
	Outputs         []string     `json:"outputs,omitempty"`
}

// Option is a NixOS module option search hit. Description may carry the
// restricted HTML dialect rendered by collaborators.
type Option struct {
	Name              string   `json:"name"`
	Description       string   `json:"description,omitempty"`
	Type              string   `json:"type,omitempty"`
	Default           string   `json:"default,omitempty"`
	Example           string   `json:"example,omitempty"`
	Declarations      []string `json:"declarations,omitempty"`
	ReadOnly          bool     `json:"read_only,omitempty"`
	ManualURL         string   `json:"manual_url,omitempty"`
	IntroducedVersion string   `json:"introduced_version,omitempty"`
	DeprecatedVersion string   `json:"deprecated_version,omitempty"`
	Score             float64  `json:"score,omitempty"`
}

// PackagesResult is the uniform search reply for packages and programs.
type PackagesResult struct {
	Count    int       `json:"count"`
	Packages []Package `json:"packages"`
	Error    string    `json:"error,omitempty"`
}

// OptionsResult is the uniform search reply for options.
type OptionsResult struct {
	Count   int      `json:"count"`
	Options []Option `json:"options"`
	Error   string   `json:"error,omitempty"`
}

// PackageInfo is the lookup reply for a single package.
type PackageInfo struct {
	Package
	Found bool   `json:"found"`
	Error string `json:"error,omitempty"`
}

// OptionInfo is the lookup reply for a single option. For misses on a
// service path the ServiceName is carried so collaborators can suggest
// common patterns.
type OptionInfo struct {
	Option
	Found          bool     `json:"found"`
	IsServicePath  bool     `json:"is_service_path,omitempty"`
	ServiceName    string   `json:"service_name,omitempty"`
	RelatedOptions []Option `json:"related_options,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Bucket is one terms-aggregation bucket.
type Bucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// PackageStats aggregates the package universe of the current channel.
type PackageStats struct {
	Channels  []Bucket `json:"channels,omitempty"`
	Licenses  []Bucket `json:"licenses,omitempty"`
	Platforms []Bucket `json:"platforms,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// CountResult is the option-count reply.
type CountResult struct {
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}
