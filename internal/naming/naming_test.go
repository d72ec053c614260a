package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/earth-archive/eo3pack/internal/eo3"
)

func ardProperties() eo3.Properties {
	return eo3.Properties{
		"datetime":             "2019-07-04T13:07:55Z",
		"eo:platform":          "landsat-8",
		"eo:instrument":        "OLI_TIRS",
		"odc:producer":         "ga.gov.au",
		"odc:product_family":   "ard",
		"odc:dataset_version":  "3.0.0",
		"odc:reference_code":   "090084",
		"dea:dataset_maturity": "final",
	}
}

func TestProductName(t *testing.T) {
	c := Conventions{Properties: ardProperties()}
	assert.Equal(t, "ga_ls8c_ard_3", c.ProductName())

	usgs := ardProperties()
	usgs["odc:producer"] = "usgs.gov"
	usgs["odc:product_family"] = "level2"
	usgs["odc:dataset_version"] = "1.0.20190704"
	assert.Equal(t, "usgs_ls8c_level2_1", Conventions{Properties: usgs}.ProductName())
}

func TestProductURI(t *testing.T) {
	c := Conventions{Properties: ardProperties(), BaseURI: DefaultURIPrefix}
	assert.Equal(t, "https://collections.dea.ga.gov.au/product/ga_ls8c_ard_3", c.ProductURI())
	assert.Equal(t, "ga_ls8c_ard_3", c.Product().Name)

	assert.Empty(t, Conventions{Properties: ardProperties()}.ProductURI())
}

func TestDatasetLabel(t *testing.T) {
	c := Conventions{Properties: ardProperties()}
	assert.Equal(t, "ga_ls8c_ard_3-0-0_090084_2019-07-04_final", c.DatasetLabel())
}

func TestDatasetLabelVersionSuffix(t *testing.T) {
	// The collection number is the version's major component; it appears
	// once, in the product name, never again in the version suffix.
	p := ardProperties()
	p["odc:producer"] = "usgs.gov"
	p["odc:product_family"] = "level2"
	p["odc:dataset_version"] = "1.0.20190704"
	assert.Equal(t, "usgs_ls8c_level2_1-0-20190704_090084_2019-07-04_final",
		Conventions{Properties: p}.DatasetLabel())

	p["odc:dataset_version"] = "3"
	assert.Equal(t, "usgs_ls8c_level2_3-3_090084_2019-07-04_final",
		Conventions{Properties: p}.DatasetLabel())
}

func TestFilenames(t *testing.T) {
	c := Conventions{Properties: ardProperties()}
	assert.Equal(t, "ga_ls8c_ard_3-0-0_090084_2019-07-04_final.odc-metadata.yaml", c.MetadataFilename())
	assert.Equal(t, "ga_ls8c_ard_3-0-0_090084_2019-07-04_final.sha1", c.ChecksumFilename())
	assert.Equal(t, "ga_ls8c_ard_3-0-0_090084_2019-07-04_final_thumbnail.png", c.ThumbnailFilename())
}

func TestMeasurementFilename(t *testing.T) {
	c := Conventions{Properties: ardProperties()}

	// Subgroup measurements take the subgroup's product name.
	assert.Equal(t, "ga_ls8c_nbar_3-0-0_090084_2019-07-04_final_band08.tif",
		c.MeasurementFilename("nbar:band08", "tif"))

	// Underscores in band names become dashes in file names.
	assert.Equal(t, "ga_ls8c_ard_3-0-0_090084_2019-07-04_final_quality-flags.tif",
		c.MeasurementFilename("quality_flags", "tif"))
}
