// Package wagl packages ARD granules from wagl HDF5 outputs, together
// with their sibling fmask and gqa documents.
package wagl

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"

	"github.com/earth-archive/eo3pack/internal/assemble"
	"github.com/earth-archive/eo3pack/internal/documents"
	"github.com/earth-archive/eo3pack/internal/eo3"
	"github.com/earth-archive/eo3pack/internal/raster"
)

// DefaultProducts are the standardised surface-reflectance products
// packaged when none are named. LAMBERTIAN and SBT also exist in wagl
// outputs but are not packaged by default.
var DefaultProducts = []string{"NBAR", "NBART"}

// From the internal dataset name (after normalisation) to the package
// measurement name.
var measurementTranslation = map[string]string{
	"exiting":  "exiting_angle",
	"incident": "incident_angle",
}

// Observation-attribute datasets packaged from the regular-resolution
// group, by their section.
var observationSections = []struct {
	section  string
	datasets []string
}{
	{"SATELLITE-SOLAR", []string{
		"SATELLITE-VIEW", "SATELLITE-AZIMUTH", "SOLAR-ZENITH",
		"SOLAR-AZIMUTH", "RELATIVE-AZIMUTH", "TIMEDELTA",
	}},
	{"INCIDENT-ANGLES", []string{"INCIDENT", "AZIMUTHAL-INCIDENT"}},
	{"EXITING-ANGLES", []string{"EXITING", "AZIMUTHAL-EXITING"}},
	{"RELATIVE-SLOPE", []string{"RELATIVE-SLOPE"}},
	{"SHADOW-MASKS", []string{"COMBINED-TERRAIN-SHADOW"}},
}

var (
	productSuiteFromGranule = regexp.MustCompile(`L1[GTPCS]{1,2}`)
	landsatReferenceCode    = regexp.MustCompile(`^L\w\d(\d{6})`)
	sentinelReferenceCode   = regexp.MustCompile(`_T(\d{1,2}[A-Z]{3})_`)
	resGroup                = regexp.MustCompile(`RES-GROUP-(\d+)`)
)

// SubdatasetLister enumerates the image datasets of an HDF5 container.
// The default is GDAL's subdataset listing.
type SubdatasetLister func(location string) ([]string, error)

// Options configures one granule packaging run.
type Options struct {
	// HDF5Path is the wagl output file.
	HDF5Path string
	// Level1MetadataPath points at the source level-1 eo3 document, or a
	// dataset path its document can be found from.
	Level1MetadataPath string
	// OutputDir is the collection root the package is created under.
	OutputDir string

	// GranuleName overrides granule detection from the HDF5 filename.
	GranuleName string
	// Products to package; DefaultProducts when empty.
	Products []string

	// FmaskImage, FmaskDoc and GQADoc default to granule-named siblings
	// of the HDF5 file and must exist.
	FmaskImage string
	FmaskDoc   string
	GQADoc     string
	// WaglDoc optionally attaches the wagl processing metadata extracted
	// upstream.
	WaglDoc string

	// IncludeOA packages the observation-attribute datasets as
	// supplementary measurements.
	IncludeOA bool

	Opener eo3.RasterOpener
	Lister SubdatasetLister

	// Assemble options applied to the package assembler, e.g. a custom
	// collection URI or checksum pool size.
	Assemble []assemble.Option
}

// GranuleFromFilename extracts the granule name from a wagl filename
// such as "LT50910841993188ASA00.wagl.h5".
func GranuleFromFilename(path string) (string, error) {
	stem := strings.SplitN(filepath.Base(path), ".", 2)[0]
	if !strings.HasPrefix(stem, "L") {
		return "", fmt.Errorf("no granule specified, and cannot find it on input filename %q", stem)
	}
	return stem, nil
}

// L1ToARD renames a level-1 granule to its ARD equivalent, replacing the
// product suite token.
func L1ToARD(granule string) string {
	return productSuiteFromGranule.ReplaceAllString(granule, "ARD")
}

// BandName normalises a wagl dataset name to the package band naming:
// numeric ids become "band01"-style names, everything else is lowercased
// with dashes replaced.
func BandName(id string) string {
	trimmed := strings.TrimPrefix(strings.ToUpper(id), "BAND-")
	if n, err := strconv.Atoi(trimmed); err == nil {
		return fmt.Sprintf("band%02d", n)
	}
	return strings.ReplaceAll(strings.ToLower(id), "-", "_")
}

// ProviderReferenceCode extracts the provider's scene reference from a
// granule name: WRS path/row for Landsat, the MGRS tile for Sentinel-2.
func ProviderReferenceCode(platform, granule string) (string, bool) {
	var matches []string
	switch {
	case strings.HasPrefix(platform, "landsat"):
		matches = landsatReferenceCode.FindStringSubmatch(granule)
	case strings.HasPrefix(platform, "sentinel-2"), strings.HasPrefix(platform, "sentinel_2"):
		matches = sentinelReferenceCode.FindStringSubmatch(granule)
	}
	if len(matches) != 2 {
		return "", false
	}
	return matches[1], true
}

// Package converts one wagl granule into an eo3 ARD package, returning
// the dataset ID and metadata path.
func Package(opts Options) (uuid.UUID, string, error) {
	if opts.Opener == nil {
		opts.Opener = raster.NewOpener()
	}
	if opts.Lister == nil {
		opts.Lister = raster.Subdatasets
	}
	if len(opts.Products) == 0 {
		opts.Products = DefaultProducts
	}

	granule := opts.GranuleName
	if granule == "" {
		var err error
		if granule, err = GranuleFromFilename(opts.HDF5Path); err != nil {
			return uuid.Nil, "", err
		}
	}
	if err := resolveSiblings(&opts, granule); err != nil {
		return uuid.Nil, "", err
	}

	if p, ok := documents.FindMetadataPath(opts.Level1MetadataPath); ok {
		opts.Level1MetadataPath = p
	}
	level1, err := documents.ReadDataset(opts.Level1MetadataPath)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("reading level-1 document: %w", err)
	}

	subdatasets, err := opts.Lister(opts.HDF5Path)
	if err != nil {
		return uuid.Nil, "", err
	}
	granuleSets := filterGranule(subdatasets, granule)
	if len(granuleSets) == 0 {
		return uuid.Nil, "", fmt.Errorf("granule %q not found in %q", granule, opts.HDF5Path)
	}

	a := assemble.New(opts.HDF5Path, opts.Opener, opts.Assemble...)
	a.AddSourceDataset("level1", level1)
	a.SetProperty("odc:producer", "ga.gov.au")
	a.SetProperty("odc:product_family", "ard")
	a.SetProperty("dea:dataset_maturity", "final")
	a.SetProperty("dea:processing_level", "level-2")
	if level1.CRS != "" {
		a.SetCRS(level1.CRS)
	}

	// GA's collection 3 processes USGS collection 1.
	if collection, ok := a.Properties()["landsat:collection_number"]; ok {
		if fmt.Sprintf("%v", collection) != "1" {
			return uuid.Nil, "", fmt.Errorf("unsupported landsat collection number %v", collection)
		}
	}
	a.SetProperty("odc:dataset_version", "3.0.0")

	if code, ok := ProviderReferenceCode(a.Properties().Platform(), granule); ok {
		a.SetProperty("odc:reference_code", code)
	}

	for _, product := range opts.Products {
		for _, sds := range granuleSets {
			if !strings.Contains(sds, "/"+product+"/") {
				continue
			}
			name := strings.ToLower(product) + ":" + BandName(lastPathElement(sds))
			a.NoteMeasurementAt(name, sds, 0)
		}
	}

	if opts.IncludeOA {
		noteObservationAttributes(a, granuleSets)
		if err := a.WriteSupplementaryMeasurement(opts.OutputDir, "oa:fmask", opts.FmaskImage); err != nil {
			return uuid.Nil, "", err
		}
		if err := extendFromYAML(a, "fmask", opts.FmaskDoc); err != nil {
			return uuid.Nil, "", err
		}
	}
	if err := extendFromYAML(a, "gqa", opts.GQADoc); err != nil {
		return uuid.Nil, "", err
	}
	if opts.WaglDoc != "" {
		if err := extendFromYAML(a, "wagl", opts.WaglDoc); err != nil {
			return uuid.Nil, "", err
		}
	}

	return a.Done(opts.OutputDir)
}

// resolveSiblings fills in the fmask and gqa paths next to the HDF5 file
// and checks they exist.
func resolveSiblings(opts *Options, granule string) error {
	dir := filepath.Dir(opts.HDF5Path)
	if opts.FmaskImage == "" {
		opts.FmaskImage = filepath.Join(dir, granule+".fmask.img")
	}
	if opts.FmaskDoc == "" {
		opts.FmaskDoc = strings.TrimSuffix(opts.FmaskImage, filepath.Ext(opts.FmaskImage)) + ".yaml"
	}
	if opts.GQADoc == "" {
		opts.GQADoc = filepath.Join(dir, granule+".gqa.yaml")
	}
	if opts.IncludeOA {
		for _, required := range []string{opts.FmaskImage, opts.FmaskDoc} {
			if _, err := os.Stat(required); err != nil {
				return fmt.Errorf("fmask not found: %q", required)
			}
		}
	}
	if _, err := os.Stat(opts.GQADoc); err != nil {
		return fmt.Errorf("gqa not found: %q", opts.GQADoc)
	}
	return nil
}

// noteObservationAttributes records the supplementary angle and shadow
// datasets of the regular-resolution group. Resolution groups descend in
// pixel size, so the last one holds the non-panchromatic bands.
func noteObservationAttributes(a *assemble.Assembler, granuleSets []string) {
	groups := map[int]bool{}
	for _, sds := range granuleSets {
		if m := resGroup.FindStringSubmatch(sds); m != nil {
			n, _ := strconv.Atoi(m[1])
			groups[n] = true
		}
	}
	if len(groups) == 0 {
		return
	}
	numbers := make([]int, 0, len(groups))
	for n := range groups {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	regular := fmt.Sprintf("RES-GROUP-%d", numbers[len(numbers)-1])

	for _, section := range observationSections {
		for _, dataset := range section.datasets {
			suffix := fmt.Sprintf("/%s/%s/%s", regular, section.section, dataset)
			for _, sds := range granuleSets {
				if !strings.HasSuffix(sds, suffix) {
					continue
				}
				name := strings.ReplaceAll(strings.ToLower(dataset), "-", "_")
				if translated, ok := measurementTranslation[name]; ok {
					name = translated
				}
				a.NoteSupplementaryAt("oa:"+name, sds, 0)
			}
		}
	}
}

func filterGranule(subdatasets []string, granule string) []string {
	var out []string
	for _, sds := range subdatasets {
		if strings.Contains(sds, "/"+granule+"/") {
			out = append(out, sds)
		}
	}
	return out
}

func lastPathElement(sds string) string {
	parts := strings.Split(sds, "/")
	return parts[len(parts)-1]
}

func extendFromYAML(a *assemble.Assembler, section, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s document %q: %w", section, path, err)
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s document %q: %w", section, path, err)
	}
	a.ExtendUserMetadata(section, doc)
	return nil
}
