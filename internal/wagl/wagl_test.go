package wagl

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

func TestGranuleFromFilename(t *testing.T) {
	granule, err := GranuleFromFilename("/data/LT50910841993188ASA00.wagl.h5")
	require.NoError(t, err)
	assert.Equal(t, "LT50910841993188ASA00", granule)

	_, err = GranuleFromFilename("/data/my-test-granule.h5")
	assert.Error(t, err)
}

func TestL1ToARD(t *testing.T) {
	assert.Equal(t, "LC80900842019185ARD00", L1ToARD("LC80900842019185L1TP00"))
	assert.Equal(t, "no_suite_here", L1ToARD("no_suite_here"))
}

func TestBandName(t *testing.T) {
	assert.Equal(t, "band01", BandName("BAND-1"))
	assert.Equal(t, "band08", BandName("8"))
	assert.Equal(t, "blue", BandName("BLUE"))
	assert.Equal(t, "azimuthal_exiting", BandName("AZIMUTHAL-EXITING"))
}

func TestProviderReferenceCode(t *testing.T) {
	code, ok := ProviderReferenceCode("landsat_8", "LC80900842019185LGN00")
	require.True(t, ok)
	assert.Equal(t, "090084", code)

	code, ok = ProviderReferenceCode("sentinel_2a", "S2A_OPER_MSI_L1C_TL_EPA__20161011T190045_A003137_T55HBD_N02.04")
	require.True(t, ok)
	assert.Equal(t, "55HBD", code)

	_, ok = ProviderReferenceCode("landsat_8", "not-a-granule")
	assert.False(t, ok)
}

type memRaster struct{ data []float64 }

func (r *memRaster) Shape() (int, int) { return 4, 4 }
func (r *memRaster) Transform() [9]float64 {
	return [9]float64{30, 0, 600000, 0, -30, 7200000, 0, 0, 1}
}
func (r *memRaster) Bands() int                      { return 1 }
func (r *memRaster) Close() error                    { return nil }
func (r *memRaster) NoData(band int) (float64, bool) { return 0, true }
func (r *memRaster) ReadBand(band int) ([]float64, error) {
	if band != 1 {
		return nil, fmt.Errorf("band %d out of range", band)
	}
	return r.data, nil
}

func fakeOpener() eo3.RasterOpener {
	return eo3.RasterOpenerFunc(func(location string) (eo3.Raster, error) {
		data := make([]float64, 16)
		for i := range data {
			data[i] = 500
		}
		return &memRaster{data: data}, nil
	})
}

const granule = "LC80900842019185LGN00"

func subdataset(h5 string, elements ...string) string {
	path := ""
	for _, e := range elements {
		path += "/" + e
	}
	return fmt.Sprintf("HDF5:\"%s\":/%s/%s%s", h5, granule, granule, path)
}

func fakeLister(h5 string) SubdatasetLister {
	sets := []string{
		subdataset(h5, "RES-GROUP-1", "STANDARDISED-PRODUCTS", "NBAR", "BAND-1"),
		subdataset(h5, "RES-GROUP-1", "STANDARDISED-PRODUCTS", "NBAR", "BAND-2"),
		subdataset(h5, "RES-GROUP-1", "STANDARDISED-PRODUCTS", "NBART", "BAND-1"),
		subdataset(h5, "RES-GROUP-1", "STANDARDISED-PRODUCTS", "LAMBERTIAN", "BAND-1"),
		subdataset(h5, "RES-GROUP-0", "SATELLITE-SOLAR", "SATELLITE-VIEW"),
		subdataset(h5, "RES-GROUP-1", "SATELLITE-SOLAR", "SATELLITE-VIEW"),
		subdataset(h5, "RES-GROUP-1", "EXITING-ANGLES", "EXITING"),
	}
	return func(location string) ([]string, error) {
		if location != h5 {
			return nil, fmt.Errorf("unexpected container %q", location)
		}
		return sets, nil
	}
}

func writeLevel1Doc(t *testing.T, dir string) string {
	t.Helper()
	doc := &eo3.DatasetDoc{
		ID:  uuid.MustParse("a780754e-a884-58a7-9ac0-df518a67f59d"),
		CRS: "epsg:32655",
		Properties: eo3.Properties{
			"datetime":                  "2019-07-04T23:46:59Z",
			"eo:platform":               "landsat-8",
			"eo:instrument":             "OLI_TIRS",
			"landsat:collection_number": 1,
			"landsat:landsat_scene_id":  granule,
		},
	}
	path := filepath.Join(dir, "level1.odc-metadata.yaml")
	require.NoError(t, documents.WriteDataset(path, doc))
	return path
}

func TestPackageGranule(t *testing.T) {
	workDir := t.TempDir()
	output := t.TempDir()
	h5 := filepath.Join(workDir, granule+".wagl.h5")
	require.NoError(t, os.WriteFile(h5, []byte("hdf5"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, granule+".fmask.img"), []byte("fmask"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, granule+".fmask.yaml"), []byte("cloud_cover_percentage: 2.3\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, granule+".gqa.yaml"), []byte("final_qa_count: 12\n"), 0o644))

	id, metadataPath, err := Package(Options{
		HDF5Path:           h5,
		Level1MetadataPath: writeLevel1Doc(t, workDir),
		OutputDir:          output,
		IncludeOA:          true,
		Opener:             fakeOpener(),
		Lister:             fakeLister(h5),
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	doc, err := documents.ReadDataset(metadataPath)
	require.NoError(t, err)
	assert.Equal(t, "ga_ls8c_ard_3", doc.Product.Name)
	assert.Equal(t, "epsg:32655", doc.CRS)
	assert.Equal(t, "090084", doc.Properties.String("odc:reference_code"))
	assert.Equal(t, "3.0.0", doc.Properties.String("odc:dataset_version"))

	raw, err := os.ReadFile(metadataPath)
	require.NoError(t, err)
	text := string(raw)

	// Default products only: NBAR and NBART, not LAMBERTIAN.
	assert.Contains(t, text, "nbar:band01")
	assert.Contains(t, text, "nbar:band02")
	assert.Contains(t, text, "nbart:band01")
	assert.NotContains(t, text, "lambertian")

	// Supplementary datasets come from the regular-resolution group only,
	// with their names translated.
	assert.Contains(t, text, "oa:satellite_view")
	assert.Contains(t, text, "oa:exiting_angle")
	assert.NotContains(t, text, "RES-GROUP-0")

	assert.Contains(t, text, "oa:fmask")
	assert.Contains(t, text, "cloud_cover_percentage")
	assert.Contains(t, text, "final_qa_count")

	// Lineage references the level-1 source.
	assert.Contains(t, text, "a780754e-a884-58a7-9ac0-df518a67f59d")
}

func TestPackageMissingGQA(t *testing.T) {
	workDir := t.TempDir()
	h5 := filepath.Join(workDir, granule+".wagl.h5")
	require.NoError(t, os.WriteFile(h5, []byte("hdf5"), 0o644))

	_, _, err := Package(Options{
		HDF5Path:           h5,
		Level1MetadataPath: writeLevel1Doc(t, workDir),
		OutputDir:          t.TempDir(),
		Opener:             fakeOpener(),
		Lister:             fakeLister(h5),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gqa not found")
}

func TestPackageUnknownGranule(t *testing.T) {
	workDir := t.TempDir()
	h5 := filepath.Join(workDir, granule+".wagl.h5")
	const other = "LC00000000000000XXX00"
	require.NoError(t, os.WriteFile(h5, []byte("hdf5"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, other+".gqa.yaml"), []byte("a: 1\n"), 0o644))

	_, _, err := Package(Options{
		HDF5Path:           h5,
		Level1MetadataPath: writeLevel1Doc(t, workDir),
		OutputDir:          t.TempDir(),
		GranuleName:        other,
		Opener:             fakeOpener(),
		Lister:             fakeLister(h5),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in")
}
