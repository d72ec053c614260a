package documents

import (
	"fmt"
	"os"
	"sort"

	"github.com/ctessum/geom"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"gopkg.in/yaml.v2"

	"github.com/earth-archive/eo3pack/internal/eo3"
)

// MarshalDataset renders an eo3 document as YAML. Section order follows
// the convention existing tooling expects: schema, identity, geometry,
// grids, properties, measurements, accessories, lineage.
func MarshalDataset(doc *eo3.DatasetDoc) ([]byte, error) {
	out := yaml.MapSlice{
		{Key: "$schema", Value: eo3.SchemaURL},
		{Key: "id", Value: doc.ID.String()},
	}
	if doc.Label != "" {
		out = append(out, yaml.MapItem{Key: "label", Value: doc.Label})
	}
	if doc.Product.Name != "" || doc.Product.Href != "" {
		product := yaml.MapSlice{}
		if doc.Product.Name != "" {
			product = append(product, yaml.MapItem{Key: "name", Value: doc.Product.Name})
		}
		if doc.Product.Href != "" {
			product = append(product, yaml.MapItem{Key: "href", Value: doc.Product.Href})
		}
		out = append(out, yaml.MapItem{Key: "product", Value: product})
	}
	if doc.CRS != "" {
		out = append(out, yaml.MapItem{Key: "crs", Value: doc.CRS})
	}
	if len(doc.Geometry) > 0 {
		out = append(out, yaml.MapItem{Key: "geometry", Value: geometryDoc(doc.Geometry)})
	}
	if len(doc.Grids) > 0 {
		grids := yaml.MapSlice{}
		for _, name := range sortedKeysGrid(doc.Grids) {
			g := doc.Grids[name]
			grids = append(grids, yaml.MapItem{Key: name, Value: yaml.MapSlice{
				{Key: "shape", Value: []int{g.Shape[0], g.Shape[1]}},
				{Key: "transform", Value: g.Transform[:]},
			}})
		}
		out = append(out, yaml.MapItem{Key: "grids", Value: grids})
	}

	properties := yaml.MapSlice{}
	for _, k := range sortedKeysAny(doc.Properties) {
		properties = append(properties, yaml.MapItem{Key: k, Value: doc.Properties[k]})
	}
	out = append(out, yaml.MapItem{Key: "properties", Value: properties})

	if len(doc.Measurements) > 0 {
		measurements := yaml.MapSlice{}
		names := make([]string, 0, len(doc.Measurements))
		for name := range doc.Measurements {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			measurements = append(measurements, yaml.MapItem{Key: name, Value: measurementDoc(doc.Measurements[name])})
		}
		out = append(out, yaml.MapItem{Key: "measurements", Value: measurements})
	}

	if len(doc.Accessories) > 0 {
		accessories := yaml.MapSlice{}
		names := make([]string, 0, len(doc.Accessories))
		for name := range doc.Accessories {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			accessories = append(accessories, yaml.MapItem{Key: name, Value: yaml.MapSlice{
				{Key: "path", Value: doc.Accessories[name].Path},
			}})
		}
		out = append(out, yaml.MapItem{Key: "accessories", Value: accessories})
	}

	if len(doc.Lineage) > 0 {
		lineage := yaml.MapSlice{}
		classifiers := make([]string, 0, len(doc.Lineage))
		for c := range doc.Lineage {
			classifiers = append(classifiers, c)
		}
		sort.Strings(classifiers)
		for _, c := range classifiers {
			ids := make([]string, 0, len(doc.Lineage[c]))
			for _, id := range doc.Lineage[c] {
				ids = append(ids, id.String())
			}
			lineage = append(lineage, yaml.MapItem{Key: c, Value: ids})
		}
		out = append(out, yaml.MapItem{Key: "lineage", Value: lineage})
	}

	// Free-form sections recorded by the producer, e.g. wagl or fmask
	// summaries, appear after the structured document.
	for _, section := range sortedKeysAny(doc.UserData) {
		out = append(out, yaml.MapItem{Key: section, Value: doc.UserData[section]})
	}

	return yaml.Marshal(out)
}

// WriteDataset writes the document to path as YAML.
func WriteDataset(path string, doc *eo3.DatasetDoc) error {
	data, err := MarshalDataset(doc)
	if err != nil {
		return fmt.Errorf("serialising dataset document: %w", err)
	}
	if err := os.WriteFile(path, append([]byte("---\n"), data...), 0o644); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	return nil
}

func measurementDoc(m eo3.Measurement) yaml.MapSlice {
	doc := yaml.MapSlice{{Key: "path", Value: m.Path}}
	if m.Band != 0 {
		doc = append(doc, yaml.MapItem{Key: "band", Value: m.Band})
	}
	if grid := m.GridOrDefault(); grid != "default" {
		doc = append(doc, yaml.MapItem{Key: "grid", Value: grid})
	}
	return doc
}

// geometryDoc renders the footprint as a GeoJSON-shaped mapping, closing
// each ring as GeoJSON requires.
func geometryDoc(p geom.Polygon) yaml.MapSlice {
	rings := toOrb(p)
	coordinates := make([][][2]float64, len(rings))
	for i, ring := range rings {
		coords := make([][2]float64, len(ring))
		for j, pt := range ring {
			coords[j] = [2]float64{pt.X(), pt.Y()}
		}
		coordinates[i] = coords
	}
	return yaml.MapSlice{
		{Key: "type", Value: "Polygon"},
		{Key: "coordinates", Value: coordinates},
	}
}

// toOrb converts the footprint into an orb polygon with closed rings.
func toOrb(p geom.Polygon) orb.Polygon {
	out := make(orb.Polygon, len(p))
	for i, ring := range p {
		r := make(orb.Ring, 0, len(ring)+1)
		for _, pt := range ring {
			r = append(r, orb.Point{pt.X, pt.Y})
		}
		if len(r) > 0 && r[0] != r[len(r)-1] {
			r = append(r, r[0])
		}
		out[i] = r
	}
	return out
}

func sortedKeysGrid(m map[string]eo3.GridSpec) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysAny(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// rawDataset is the subset of an eo3 document needed when inheriting
// from a source dataset.
type rawDataset struct {
	Schema     string                 `yaml:"$schema"`
	ID         string                 `yaml:"id"`
	Label      string                 `yaml:"label"`
	Product    eo3.ProductDoc         `yaml:"product"`
	CRS        string                 `yaml:"crs"`
	Properties map[string]interface{} `yaml:"properties"`
}

// UnmarshalDataset parses the identity, product and properties of an
// existing eo3 document, e.g. a level-1 source being repackaged.
func UnmarshalDataset(data []byte) (*eo3.DatasetDoc, error) {
	var raw rawDataset
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing dataset document: %w", err)
	}
	id, err := uuid.Parse(raw.ID)
	if err != nil {
		return nil, fmt.Errorf("parsing dataset id %q: %w", raw.ID, err)
	}
	return &eo3.DatasetDoc{
		ID:         id,
		Label:      raw.Label,
		Product:    raw.Product,
		CRS:        raw.CRS,
		Properties: eo3.Properties(raw.Properties),
	}, nil
}

// ReadDataset loads and parses an eo3 document from disk.
func ReadDataset(path string) (*eo3.DatasetDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	return UnmarshalDataset(data)
}
