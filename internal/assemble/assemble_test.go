package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earth-archive/eo3pack/internal/documents"
	"github.com/earth-archive/eo3pack/internal/eo3"
)

var identity = [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

type memRaster struct {
	rows, cols int
	transform  [9]float64
	data       []float64
}

func (r *memRaster) Shape() (int, int)     { return r.rows, r.cols }
func (r *memRaster) Transform() [9]float64 { return r.transform }
func (r *memRaster) Bands() int            { return 1 }
func (r *memRaster) Close() error          { return nil }

func (r *memRaster) NoData(band int) (float64, bool) { return 0, true }

func (r *memRaster) ReadBand(band int) ([]float64, error) {
	if band != 1 {
		return nil, fmt.Errorf("band %d out of range", band)
	}
	return r.data, nil
}

// anyRaster serves the same synthetic raster for every location.
func anyRaster(rows, cols int) eo3.RasterOpener {
	return eo3.RasterOpenerFunc(func(location string) (eo3.Raster, error) {
		data := make([]float64, rows*cols)
		for i := range data {
			data[i] = float64(i%250) + 1
		}
		return &memRaster{rows: rows, cols: cols, transform: identity, data: data}, nil
	})
}

func writeSourceFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func ardAssembler(t *testing.T, source string, opts ...Option) *Assembler {
	t.Helper()
	a := New(source, anyRaster(4, 4), opts...)
	a.SetCRS("epsg:32655")
	a.SetProperty("datetime", "2019-07-04T13:07:55Z")
	a.SetProperty("eo:platform", "landsat-8")
	a.SetProperty("eo:instrument", "OLI_TIRS")
	a.SetProperty("odc:producer", "ga.gov.au")
	a.SetProperty("odc:product_family", "ard")
	a.SetProperty("odc:dataset_version", "3.0.0")
	a.SetProperty("odc:reference_code", "090084")
	a.SetProperty("dea:dataset_maturity", "final")
	return a
}

func TestAssemblerPackagesDataset(t *testing.T) {
	source := t.TempDir()
	output := t.TempDir()
	redSrc := writeSourceFile(t, source, "red_raw.tif", "red pixels")
	mtl := writeSourceFile(t, source, "LC08_MTL.txt", "GROUP = L1\nEND")

	a := ardAssembler(t, source)
	a.SetID(uuid.MustParse("d9221c40-24c3-5356-ab22-4dcac2bf2d70"))

	require.NoError(t, a.WriteMeasurement(output, "nbar:red", redSrc))
	a.NoteMeasurement("oa:fmask", "fmask.img", 1)
	require.NoError(t, a.CopyAccessoryFile(output, "metadata:landsat_mtl", mtl))
	a.ExtendUserMetadata("fmask", map[string]interface{}{"cloud": 2.3})

	id, metadataPath, err := a.Done(output)
	require.NoError(t, err)
	assert.Equal(t, "d9221c40-24c3-5356-ab22-4dcac2bf2d70", id.String())

	packageDir := filepath.Join(output, "ga_ls8c_ard_3-0-0_090084_2019-07-04_final")
	assert.Equal(t, filepath.Join(packageDir, "ga_ls8c_ard_3-0-0_090084_2019-07-04_final.odc-metadata.yaml"), metadataPath)

	// Written measurement landed under its conventional name.
	copied := filepath.Join(packageDir, "ga_ls8c_nbar_3-0-0_090084_2019-07-04_final_red.tif")
	contents, err := os.ReadFile(copied)
	require.NoError(t, err)
	assert.Equal(t, "red pixels", string(contents))

	doc, err := documents.ReadDataset(metadataPath)
	require.NoError(t, err)
	assert.Equal(t, "ga_ls8c_ard_3", doc.Product.Name)
	assert.Equal(t, "ga_ls8c_ard_3-0-0_090084_2019-07-04_final", doc.Label)
	assert.Equal(t, "epsg:32655", doc.CRS)

	raw, err := os.ReadFile(metadataPath)
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, "nbar:red")
	assert.Contains(t, text, "path: ga_ls8c_nbar_3-0-0_090084_2019-07-04_final_red.tif")
	assert.Contains(t, text, "path: fmask.img")
	assert.Contains(t, text, "checksum:sha1")
	assert.Contains(t, text, "path: LC08_MTL.txt")
	assert.Contains(t, text, "fmask:")
	assert.Contains(t, text, "cloud: 2.3")

	// Every packaged file verifies against the manifest, and the metadata
	// document is itself listed.
	manifest := filepath.Join(packageDir, "ga_ls8c_ard_3-0-0_090084_2019-07-04_final.sha1")
	mismatched, err := documents.VerifyManifest(manifest)
	require.NoError(t, err)
	assert.Empty(t, mismatched)

	manifestText, err := os.ReadFile(manifest)
	require.NoError(t, err)
	assert.Contains(t, string(manifestText), "ga_ls8c_ard_3-0-0_090084_2019-07-04_final.odc-metadata.yaml")
}

func TestAssemblerWriteMeasurementBytes(t *testing.T) {
	output := t.TempDir()
	a := ardAssembler(t, t.TempDir())
	require.NoError(t, a.WriteMeasurementBytes(output, "nbar:blue", []byte("blue pixels")))

	_, metadataPath, err := a.Done(output)
	require.NoError(t, err)

	packageDir := filepath.Dir(metadataPath)
	contents, err := os.ReadFile(filepath.Join(packageDir, "ga_ls8c_nbar_3-0-0_090084_2019-07-04_final_blue.tif"))
	require.NoError(t, err)
	assert.Equal(t, "blue pixels", string(contents))

	raw, err := os.ReadFile(metadataPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "path: ga_ls8c_nbar_3-0-0_090084_2019-07-04_final_blue.tif")
}

func TestAssemblerInheritsSourceProperties(t *testing.T) {
	a := New(t.TempDir(), anyRaster(2, 2))
	a.SetProperty("datetime", "2020-01-01T00:00:00Z")

	sourceID := uuid.MustParse("a780754e-a884-58a7-9ac0-df518a67f59d")
	a.AddSourceDataset("level1", &eo3.DatasetDoc{
		ID: sourceID,
		Properties: eo3.Properties{
			"datetime":         "1999-01-01T00:00:00Z",
			"eo:platform":      "landsat-8",
			"eo:cloud_cover":   23.5,
			"landsat:wrs_path": 90,
			"not:inheritable":  "x",
		},
	})

	// Already-set properties win; the inheritable subset is copied.
	assert.Equal(t, "2020-01-01T00:00:00Z", a.Properties().String("datetime"))
	assert.Equal(t, "landsat-8", a.Properties().String("eo:platform"))
	assert.Equal(t, 23.5, a.Properties()["eo:cloud_cover"])
	assert.NotContains(t, a.Properties(), "not:inheritable")
	assert.Equal(t, []uuid.UUID{sourceID}, a.lineage["level1"])
}

func TestAssemblerThumbnail(t *testing.T) {
	source := t.TempDir()
	output := t.TempDir()
	for _, name := range []string{"red.tif", "green.tif", "blue.tif"} {
		writeSourceFile(t, source, name, name)
	}

	a := ardAssembler(t, source, WithThumbnail("nbar:red", "nbar:green", "nbar:blue"))
	a.NoteMeasurement("nbar:red", "red.tif", 1)
	a.NoteMeasurement("nbar:green", "green.tif", 1)
	a.NoteMeasurement("nbar:blue", "blue.tif", 1)

	_, metadataPath, err := a.Done(output)
	require.NoError(t, err)

	packageDir := filepath.Dir(metadataPath)
	thumb := filepath.Join(packageDir, "ga_ls8c_ard_3-0-0_090084_2019-07-04_final_thumbnail.png")
	info, err := os.Stat(thumb)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	raw, err := os.ReadFile(metadataPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "thumbnail")
}

func TestAssemblerReconciliationFailureAborts(t *testing.T) {
	a := ardAssembler(t, t.TempDir())
	_, _, err := a.Done(t.TempDir())
	require.Error(t, err)
	var inputErr *eo3.InputError
	assert.ErrorAs(t, err, &inputErr)
}
