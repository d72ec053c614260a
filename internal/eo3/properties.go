package eo3

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Properties holds the flat STAC-style property map of a dataset, keyed
// by names such as "eo:platform" or "odc:product_family".
type Properties map[string]interface{}

// String returns the named property as a string, or "" when absent.
func (p Properties) String(key string) string {
	if v, ok := p[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// Datetime returns the named property parsed as a UTC time.
func (p Properties) Datetime(key string) (time.Time, bool) {
	v, ok := p[key]
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// Platform spelling is normalised to lowercase with underscores, as in
// "landsat_8" or "sentinel_2a".
func (p Properties) Platform() string {
	return strings.ReplaceAll(strings.ToLower(p.String("eo:platform")), "-", "_")
}

// PlatformAbbreviated gives the short platform code used in product and
// dataset names, e.g. "ls8" for landsat_8.
func (p Properties) PlatformAbbreviated() string {
	platform := p.Platform()
	switch {
	case strings.HasPrefix(platform, "landsat"):
		return "ls" + platform[strings.LastIndex(platform, "_")+1:]
	case strings.HasPrefix(platform, "sentinel_"):
		return "s" + platform[len("sentinel_"):]
	default:
		return strings.ReplaceAll(platform, "_", "")
	}
}

// Landsat instrument codes as used in product names. The combined
// OLI_TIRS sensor is "c".
var landsatInstrumentCodes = map[string]string{
	"etm":      "e",
	"etm+":     "e",
	"mss":      "m",
	"oli":      "o",
	"oli_tirs": "c",
	"tirs":     "t",
	"tm":       "t",
}

// InstrumentAbbreviated gives the short instrument code used in product
// and dataset names, e.g. "c" for OLI_TIRS.
func (p Properties) InstrumentAbbreviated() string {
	instrument := strings.ToLower(p.String("eo:instrument"))
	if instrument == "" {
		return ""
	}
	if strings.HasPrefix(p.Platform(), "landsat") {
		if code, ok := landsatInstrumentCodes[instrument]; ok {
			return code
		}
	}
	return instrument[:1]
}

// ProducerAbbreviated maps a producer domain to its short code.
func (p Properties) ProducerAbbreviated() string {
	switch p.String("odc:producer") {
	case "ga.gov.au":
		return "ga"
	case "usgs.gov":
		return "usgs"
	case "sinergise.com":
		return "sinergise"
	case "esa.int":
		return "esa"
	default:
		return strings.SplitN(p.String("odc:producer"), ".", 2)[0]
	}
}

// Nested expands the flat map into nested maps on the ":" separator, so
// "eo:platform" becomes properties["eo"]["platform"]. Keys without a
// separator stay at the top level.
func (p Properties) Nested() map[string]interface{} {
	out := map[string]interface{}{}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts := strings.Split(k, ":")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]interface{})
			if !ok {
				child = map[string]interface{}{}
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = p[k]
	}
	return out
}
