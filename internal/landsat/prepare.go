package landsat

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/earth-archive/eo3pack/internal/assemble"
	"github.com/earth-archive/eo3pack/internal/eo3"
)

// usgsUUIDNamespace generates deterministic dataset IDs from USGS product
// IDs, which change whenever USGS reprocesses a scene.
var usgsUUIDNamespace = uuid.MustParse("276af61d-99f8-4aa3-b2fb-d7df68c5e28f")

// MTL fields copied verbatim into landsat: properties.
var copyableMTLFields = []struct {
	section string
	fields  []string
}{
	{"level1_processing_record", []string{
		"landsat_scene_id",
		"landsat_product_id",
		"processing_software_version",
		"ground_control_points_version",
		"ground_control_points_model",
		"geometric_rmse_model_x",
		"geometric_rmse_model_y",
		"ground_control_points_verify",
		"geometric_rmse_verify",
	}},
	{"product_contents", []string{"collection_category"}},
	{"image_attributes", []string{"station_id", "wrs_path", "wrs_row"}},
}

// bandConfig names a Level-2 band and its declared nodata.
type bandConfig struct {
	outputName string
	nodata     float64
}

var bandConfigurations = map[string]bandConfig{
	"band_1":                            {"b1", 0},
	"band_2":                            {"b2", 0},
	"band_3":                            {"b3", 0},
	"band_4":                            {"b4", 0},
	"band_5":                            {"b5", 0},
	"band_6":                            {"b6", 0},
	"band_7":                            {"b7", 0},
	"band_st_b10":                       {"b10", 0},
	"thermal_radiance":                  {"thermal_radiance", -9999},
	"upwell_radiance":                   {"upwell_radiance", -9999},
	"downwell_radiance":                 {"downwell_radiance", -9999},
	"atmospheric_transmittance":         {"atmospheric_transmittance", -9999},
	"emissivity":                        {"emissivity", -9999},
	"emissivity_stdev":                  {"emissivity_stdev", -9999},
	"cloud_distance":                    {"cloud_distance", -9999},
	"quality_l2_aerosol":                {"quality_l2_aerosol", 0},
	"quality_l2_surface_temperature":    {"quality_l2_surface_temperature", -9999},
	"quality_l1_pixel":                  {"quality_l1_pixel", 0},
	"quality_l1_radiometric_saturation": {"quality_l1_radiometric_saturation", 0},
}

// Prepare reads a Level-2 dataset's MTL document and writes an eo3
// package for it under outputDir. producer is the organisation that
// produced the data, usually "usgs.gov" or "ga.gov.au".
func Prepare(datasetPath, outputDir, producer string, opener eo3.RasterOpener, opts ...assemble.Option) (uuid.UUID, string, error) {
	mtlData, mtlName, err := FindMTL(datasetPath)
	if err != nil {
		return uuid.Nil, "", err
	}
	mtl, err := ParseMTL(bytes.NewReader(mtlData), "landsat_metadata_file")
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("parsing MTL of %q: %w", datasetPath, err)
	}

	contents := mtl.Section("product_contents")
	imageAttrs := mtl.Section("image_attributes")
	projection := mtl.Section("projection_attributes")
	if contents == nil || imageAttrs == nil || projection == nil {
		return uuid.Nil, "", fmt.Errorf("MTL of %q is missing required groups", datasetPath)
	}

	usgsCollectionNumber, ok := contents.Int("collection_number")
	if !ok {
		return uuid.Nil, "", fmt.Errorf("dataset %q has no collection number: pre-collection data is not supported", datasetPath)
	}
	if format := contents.String("output_format"); !strings.EqualFold(format, "GEOTIFF") {
		return uuid.Nil, "", fmt.Errorf("only GeoTIFF datasets are supported, got %q", format)
	}
	gsd, err := groundSampleDistance(projection)
	if err != nil {
		return uuid.Nil, "", err
	}

	a := assemble.New(datasetPath, opener, opts...)
	a.SetID(uuid.NewSHA1(usgsUUIDNamespace, []byte(contents.String("landsat_product_id"))))

	a.SetProperty("eo:platform", strings.ToLower(imageAttrs.String("spacecraft_id")))
	a.SetProperty("eo:instrument", imageAttrs.String("sensor_id"))
	a.SetProperty("odc:product_family", "level2")
	a.SetProperty("odc:producer", producer)
	a.SetProperty("odc:file_format", "GeoTIFF")
	a.SetProperty("datetime", fmt.Sprintf("%sT%s",
		imageAttrs.String("date_acquired"), imageAttrs.String("scene_center_time")))
	a.SetProperty("eo:gsd", gsd)
	a.SetProperty("eo:cloud_cover", imageAttrs["cloud_cover"])
	a.SetProperty("eo:sun_azimuth", imageAttrs["sun_azimuth"])
	a.SetProperty("eo:sun_elevation", imageAttrs["sun_elevation"])
	a.SetProperty("landsat:collection_number", usgsCollectionNumber)
	for _, group := range copyableMTLFields {
		section := mtl.Section(group.section)
		if section == nil {
			continue
		}
		for _, field := range group.fields {
			if value, ok := section[field]; ok {
				a.SetProperty("landsat:"+field, value)
			}
		}
	}
	if zone, ok := projection.Int("utm_zone"); ok {
		// Northern-hemisphere UTM zones are 326xx, southern 327xx.
		base := 32600
		if lat, isFloat := projection["corner_ul_lat_product"].(float64); isFloat && lat < 0 {
			base = 32700
		}
		a.SetCRS(fmt.Sprintf("epsg:%d", base+zone))
	}

	wrsPath, _ := imageAttrs.Int("wrs_path")
	wrsRow, _ := imageAttrs.Int("wrs_row")
	a.SetProperty("odc:region_code", fmt.Sprintf("%03d%03d", wrsPath, wrsRow))

	processed, err := processedTime(mtl)
	if err != nil {
		return uuid.Nil, "", err
	}
	a.SetProperty("odc:processing_datetime", processed.Format(time.RFC3339))
	a.SetProperty("odc:dataset_version",
		fmt.Sprintf("%d.0.%s", organisationCollectionNumber(producer, usgsCollectionNumber), processed.Format("20060102")))
	a.SetProperty("dea:dataset_maturity", "final")

	if err := a.WriteAccessoryBytes(outputDir, "metadata:landsat_mtl", path.Base(mtlName), mtlData); err != nil {
		return uuid.Nil, "", err
	}

	// Bands are written in sorted order so grid naming is stable between
	// runs of the same dataset.
	bands := bandPaths(contents)
	ids := make([]string, 0, len(bands))
	for id := range bands {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	info, err := os.Stat(datasetPath)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("stat %q: %w", datasetPath, err)
	}
	for _, usgsBandID := range ids {
		config, ok := bandConfigurations[usgsBandID]
		if !ok {
			continue
		}
		if err := writeBand(a, datasetPath, outputDir, config.outputName, bands[usgsBandID], info.IsDir()); err != nil {
			return uuid.Nil, "", err
		}
	}

	return a.Done(outputDir)
}

// writeBand copies one band file into the package, extracting it first
// when the dataset is a tar bundle.
func writeBand(a *assemble.Assembler, datasetPath, outputDir, name, location string, isDir bool) error {
	if isDir {
		return a.WriteMeasurement(outputDir, name, filepath.Join(datasetPath, location))
	}
	data, err := readTarMember(datasetPath, location)
	if err != nil {
		return err
	}
	return a.WriteMeasurementBytes(outputDir, name, data)
}

// bandPaths extracts the USGS band id to file location mapping from the
// product_contents group, TIF files only.
func bandPaths(contents MTLDoc) map[string]string {
	const prefix = "file_name_"
	bands := map[string]string{}
	for name, value := range contents {
		location, ok := value.(string)
		if !ok || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(location, ".TIF") {
			continue
		}
		bands[name[len(prefix):]] = location
	}
	return bands
}

// groundSampleDistance is the smallest grid cell size; reflective and
// thermal bands must agree on their cell size.
func groundSampleDistance(projection MTLDoc) (float64, error) {
	reflective, thermal := projection["grid_cell_size_reflective"], projection["grid_cell_size_thermal"]
	if reflective != nil && thermal != nil && fmt.Sprintf("%v", reflective) != fmt.Sprintf("%v", thermal) {
		return 0, fmt.Errorf("reflective and thermal bands have different cell sizes")
	}
	gsd := math.Inf(1)
	for name, value := range projection {
		if !strings.HasPrefix(name, "grid_cell_size_") {
			continue
		}
		switch v := value.(type) {
		case float64:
			gsd = math.Min(gsd, v)
		case int64:
			gsd = math.Min(gsd, float64(v))
		}
	}
	if math.IsInf(gsd, 1) {
		return 0, fmt.Errorf("MTL document declares no grid cell sizes")
	}
	return gsd, nil
}

// organisationCollectionNumber is 3 for GA-produced collections and the
// USGS collection number otherwise.
func organisationCollectionNumber(producer string, usgsCollectionNumber int) int {
	if producer == "ga.gov.au" {
		return 3
	}
	return usgsCollectionNumber
}

func processedTime(mtl MTLDoc) (time.Time, error) {
	record := mtl.Section("level2_processing_record")
	if record == nil {
		record = mtl.Section("level1_processing_record")
	}
	if record == nil {
		return time.Time{}, fmt.Errorf("MTL document has no processing record")
	}
	raw := record.String("date_product_generated")
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable product generation date %q", raw)
}
