package nixos

import "encoding/json"

// esResponse is the slice of the Elasticsearch reply we read: hits with
// their _source and _score, plus terms aggregations when requested.
type esResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []esHit `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]esAggregation `json:"aggregations"`
}

type esHit struct {
	Score  float64         `json:"_score"`
	Source json.RawMessage `json:"_source"`
}

type esAggregation struct {
	Buckets []struct {
		Key      any `json:"key"`
		DocCount int `json:"doc_count"`
	} `json:"buckets"`
}

// packageSource mirrors the upstream package document fields.
type packageSource struct {
	AttrName        string       `json:"package_attr_name"`
	PName           string       `json:"package_pname"`
	Version         string       `json:"package_version"`
	// PVersion is the historical alias still present in older indices.
	PVersion        string       `json:"package_pversion"`
	Description     string       `json:"package_description"`
	LongDescription string       `json:"package_longDescription"`
	Channel         string       `json:"package_channel"`
	Programs        []string     `json:"package_programs"`
	License         LicenseValue `json:"package_license"`
	Homepage        flexStrings  `json:"package_homepage"`
	Maintainers     []Maintainer `json:"package_maintainers"`
	Platforms       []string     `json:"package_platforms"`
	Position        string       `json:"package_position"`
	Outputs         []string     `json:"package_outputs"`
}

// flexStrings accepts a string or a list of strings.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "" {
			*f = flexStrings{s}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = flexStrings(list)
	}
	return nil
}

// optionSource mirrors the upstream option document fields.
type optionSource struct {
	Type              string     `json:"type"`
	Name              string     `json:"option_name"`
	Description       string     `json:"option_description"`
	OptionType        string     `json:"option_type"`
	Default           FlexString `json:"option_default"`
	Example           FlexString `json:"option_example"`
	Source            string     `json:"option_source"`
	Declarations      []string   `json:"option_declarations"`
	ReadOnly          bool       `json:"option_read_only"`
	ManualURL         string     `json:"option_manual_url"`
	IntroducedVersion string     `json:"option_added_in"`
	DeprecatedVersion string     `json:"option_deprecated_in"`
}

// parsePackageHit projects one hit onto the Package record. Packages
// carry no type filter; every hit is accepted.
func parsePackageHit(hit esHit, channel string) (Package, bool) {
	var src packageSource
	if err := json.Unmarshal(hit.Source, &src); err != nil {
		return Package{}, false
	}
	version := src.Version
	if version == "" {
		version = src.PVersion
	}
	ch := src.Channel
	if ch == "" {
		ch = channel
	}
	return Package{
		Name:            src.AttrName,
		PName:           src.PName,
		Version:         version,
		Description:     src.Description,
		LongDescription: src.LongDescription,
		Channel:         ch,
		Score:           hit.Score,
		Programs:        src.Programs,
		License:         src.License,
		Homepage:        []string(src.Homepage),
		Maintainers:     src.Maintainers,
		Platforms:       src.Platforms,
		Position:        src.Position,
		Outputs:         src.Outputs,
	}, true
}

// parseOptionHit projects one hit onto the Option record, dropping
// documents that are not of type "option".
func parseOptionHit(hit esHit) (Option, bool) {
	var src optionSource
	if err := json.Unmarshal(hit.Source, &src); err != nil {
		return Option{}, false
	}
	if src.Type != "option" {
		return Option{}, false
	}
	declarations := src.Declarations
	if len(declarations) == 0 && src.Source != "" {
		declarations = []string{src.Source}
	}
	return Option{
		Name:              src.Name,
		Description:       src.Description,
		Type:              src.OptionType,
		Default:           string(src.Default),
		Example:           string(src.Example),
		Declarations:      declarations,
		ReadOnly:          src.ReadOnly,
		ManualURL:         src.ManualURL,
		IntroducedVersion: src.IntroducedVersion,
		DeprecatedVersion: src.DeprecatedVersion,
		Score:             hit.Score,
	}, true
}

// parseBuckets converts aggregation buckets, stringifying numeric keys.
func parseBuckets(agg esAggregation) []Bucket {
	out := make([]Bucket, 0, len(agg.Buckets))
	for _, b := range agg.Buckets {
		key, _ := b.Key.(string)
		if key == "" {
			raw, err := json.Marshal(b.Key)
			if err == nil {
				key = string(raw)
			}
		}
		out = append(out, Bucket{Key: key, Count: b.DocCount})
	}
	return out
}
