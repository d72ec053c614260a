// Package assemble builds eo3 dataset packages: it accumulates
// properties and measurements, reconciles their grids into a valid-data
// footprint, and writes the package directory with metadata, checksum
// manifest and an optional thumbnail.
package assemble

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/earth-archive/eo3pack/internal/documents"
	"github.com/earth-archive/eo3pack/internal/eo3"
	"github.com/earth-archive/eo3pack/internal/naming"
)

// Properties copied from a source dataset unless already set.
var inheritableProperties = []string{
	"datetime",
	"dtr:start_datetime",
	"dtr:end_datetime",
	"eo:platform",
	"eo:instrument",
	"eo:gsd",
	"eo:cloud_cover",
	"eo:sun_azimuth",
	"eo:sun_elevation",
	"landsat:landsat_scene_id",
	"landsat:wrs_path",
	"landsat:wrs_row",
	"landsat:collection_number",
	"odc:region_code",
	"odc:reference_code",
}

// measurement tracks where a band can be read from now and where it will
// be referenced from in the final document.
type measurement struct {
	name     string
	location string // openable location for reconciliation
	offset   string // document-relative path
	band     int

	// supplementary measurements are documented but do not contribute to
	// the valid-data region; pixels outside the product bounds are
	// implicitly invalid.
	supplementary bool
}

// Assembler accumulates one dataset and writes it as a package.
type Assembler struct {
	sourcePath string
	opener     eo3.RasterOpener

	id           uuid.UUID
	crs          string
	properties   eo3.Properties
	measurements []measurement
	accessories  map[string]eo3.AccessoryDoc
	lineage      map[string][]uuid.UUID
	userMetadata map[string]interface{}

	packageDir string
	written    []string // files placed in packageDir, package-relative

	baseURI    string
	regionOpts []eo3.Option
	thumbnail  *thumbnailBands
	workers    int
}

type thumbnailBands struct {
	red, green, blue string
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithBaseURI sets the collection base used for product hrefs.
func WithBaseURI(uri string) Option {
	return func(a *Assembler) { a.baseURI = uri }
}

// WithRegionOptions forwards options to the valid-region computation.
func WithRegionOptions(opts ...eo3.Option) Option {
	return func(a *Assembler) { a.regionOpts = opts }
}

// WithThumbnail renders a quicklook from three measurement names when the
// package is finished.
func WithThumbnail(red, green, blue string) Option {
	return func(a *Assembler) { a.thumbnail = &thumbnailBands{red, green, blue} }
}

// WithWorkers sets the checksum pool size.
func WithWorkers(n int) Option {
	return func(a *Assembler) { a.workers = n }
}

// New creates an assembler for a source dataset. sourcePath may be a
// directory or a tar archive; outputDir is the collection root the
// package directory is created under.
func New(sourcePath string, opener eo3.RasterOpener, opts ...Option) *Assembler {
	a := &Assembler{
		sourcePath:   sourcePath,
		opener:       opener,
		properties:   eo3.Properties{},
		accessories:  map[string]eo3.AccessoryDoc{},
		lineage:      map[string][]uuid.UUID{},
		userMetadata: map[string]interface{}{},
		baseURI:      naming.DefaultURIPrefix,
		workers:      4,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetID fixes the dataset identity. Unset, a random ID is generated.
func (a *Assembler) SetID(id uuid.UUID) { a.id = id }

// SetCRS records the coordinate reference system, e.g. "epsg:32655".
func (a *Assembler) SetCRS(crs string) { a.crs = crs }

// SetProperty records one dataset property.
func (a *Assembler) SetProperty(key string, value interface{}) {
	a.properties[key] = value
}

// Properties exposes the accumulated property map.
func (a *Assembler) Properties() eo3.Properties { return a.properties }

// AddSourceDataset records lineage under the classifier and inherits the
// standard property subset from the source where not already set.
func (a *Assembler) AddSourceDataset(classifier string, source *eo3.DatasetDoc) {
	a.lineage[classifier] = append(a.lineage[classifier], source.ID)
	for _, key := range inheritableProperties {
		if _, ok := a.properties[key]; ok {
			continue
		}
		if v, ok := source.Properties[key]; ok {
			a.properties[key] = v
		}
	}
}

// NoteMeasurement references a band file that stays where it is, located
// by its offset inside the source dataset.
func (a *Assembler) NoteMeasurement(name, offset string, band int) {
	a.measurements = append(a.measurements, measurement{
		name:     name,
		location: eo3.ResolveOffset(a.sourcePath, offset),
		offset:   offset,
		band:     band,
	})
}

// NoteMeasurementAt references a band by a fully-resolved location, such
// as an HDF5 subdataset locator.
func (a *Assembler) NoteMeasurementAt(name, location string, band int) {
	a.measurements = append(a.measurements, measurement{
		name:     name,
		location: location,
		offset:   location,
		band:     band,
	})
}

// NoteSupplementaryAt records a doc-only band that is excluded from the
// valid-data computation and assigned to the default grid.
func (a *Assembler) NoteSupplementaryAt(name, location string, band int) {
	a.measurements = append(a.measurements, measurement{
		name:          name,
		location:      location,
		offset:        location,
		band:          band,
		supplementary: true,
	})
}

// WriteMeasurement copies a band file into the package under its
// conventional name. Requires datetime, version, producer and family
// properties to already be set, since they name the file.
func (a *Assembler) WriteMeasurement(outputDir, name, sourcePath string) error {
	return a.writeMeasurement(outputDir, name, sourcePath, false)
}

// WriteSupplementaryMeasurement is WriteMeasurement for doc-only bands,
// excluded from the valid-data computation.
func (a *Assembler) WriteSupplementaryMeasurement(outputDir, name, sourcePath string) error {
	return a.writeMeasurement(outputDir, name, sourcePath, true)
}

func (a *Assembler) writeMeasurement(outputDir, name, sourcePath string, supplementary bool) error {
	if err := a.ensurePackageDir(outputDir); err != nil {
		return err
	}
	conventions := naming.Conventions{Properties: a.properties, BaseURI: a.baseURI}
	filename := conventions.MeasurementFilename(name, "tif")
	dest := filepath.Join(a.packageDir, filename)
	if err := copyFile(sourcePath, dest); err != nil {
		return fmt.Errorf("writing measurement %q: %w", name, err)
	}
	a.measurements = append(a.measurements, measurement{
		name:          name,
		location:      dest,
		offset:        filename,
		supplementary: supplementary,
	})
	a.written = append(a.written, filename)
	return nil
}

// WriteMeasurementBytes stores in-memory band contents under the
// measurement's conventional file name, used when the source band lives
// inside an archive.
func (a *Assembler) WriteMeasurementBytes(outputDir, name string, data []byte) error {
	if err := a.ensurePackageDir(outputDir); err != nil {
		return err
	}
	conventions := naming.Conventions{Properties: a.properties, BaseURI: a.baseURI}
	filename := conventions.MeasurementFilename(name, "tif")
	dest := filepath.Join(a.packageDir, filename)
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("writing measurement %q: %w", name, err)
	}
	a.measurements = append(a.measurements, measurement{
		name:     name,
		location: dest,
		offset:   filename,
	})
	a.written = append(a.written, filename)
	return nil
}

// ExtendUserMetadata attaches a free-form document section, such as the
// fmask or gqa summaries produced upstream.
func (a *Assembler) ExtendUserMetadata(section string, doc interface{}) {
	a.userMetadata[section] = doc
}

// CopyAccessoryFile copies a non-measurement file into the package and
// records it under the accessory name.
func (a *Assembler) CopyAccessoryFile(outputDir, name, sourcePath string) error {
	if err := a.ensurePackageDir(outputDir); err != nil {
		return err
	}
	filename := filepath.Base(sourcePath)
	if err := copyFile(sourcePath, filepath.Join(a.packageDir, filename)); err != nil {
		return fmt.Errorf("copying accessory %q: %w", name, err)
	}
	a.accessories[name] = eo3.AccessoryDoc{Path: filename}
	a.written = append(a.written, filename)
	return nil
}

// WriteAccessoryBytes stores in-memory contents as an accessory file,
// used when the source lives inside an archive.
func (a *Assembler) WriteAccessoryBytes(outputDir, name, filename string, data []byte) error {
	if err := a.ensurePackageDir(outputDir); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(a.packageDir, filename), data, 0o644); err != nil {
		return fmt.Errorf("writing accessory %q: %w", name, err)
	}
	a.accessories[name] = eo3.AccessoryDoc{Path: filename}
	a.written = append(a.written, filename)
	return nil
}

func (a *Assembler) ensurePackageDir(outputDir string) error {
	if a.packageDir != "" {
		return nil
	}
	conventions := naming.Conventions{Properties: a.properties, BaseURI: a.baseURI}
	a.packageDir = filepath.Join(outputDir, conventions.DatasetLabel())
	if err := os.MkdirAll(a.packageDir, 0o755); err != nil {
		return fmt.Errorf("creating package directory: %w", err)
	}
	return nil
}

// Done reconciles the measurement grids, renders the thumbnail when one
// was requested, writes the metadata document and checksums every
// packaged file, the metadata document included. It returns the dataset
// ID and the metadata path.
func (a *Assembler) Done(outputDir string) (uuid.UUID, string, error) {
	if err := a.ensurePackageDir(outputDir); err != nil {
		return uuid.Nil, "", err
	}
	conventions := naming.Conventions{Properties: a.properties, BaseURI: a.baseURI}

	recon := make([]eo3.Measurement, 0, len(a.measurements))
	for _, m := range a.measurements {
		if m.supplementary {
			continue
		}
		recon = append(recon, eo3.Measurement{Name: m.name, Path: m.location, Band: m.band})
	}
	region, err := eo3.ComputeValidRegion(a.opener, "", recon, a.regionOpts...)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("reconciling grids: %w", err)
	}

	if a.thumbnail != nil {
		name := conventions.ThumbnailFilename()
		if err := a.writeThumbnail(filepath.Join(a.packageDir, name)); err != nil {
			return uuid.Nil, "", err
		}
		a.accessories["thumbnail"] = eo3.AccessoryDoc{Path: name}
		a.written = append(a.written, name)
	}

	checksumName := conventions.ChecksumFilename()
	a.accessories["checksum:sha1"] = eo3.AccessoryDoc{Path: checksumName}

	id := a.id
	if id == uuid.Nil {
		id = uuid.New()
	}
	doc := &eo3.DatasetDoc{
		ID:           id,
		Label:        conventions.DatasetLabel(),
		Product:      conventions.Product(),
		CRS:          a.crs,
		Geometry:     region.Footprint,
		Grids:        region.Grids,
		Properties:   a.properties,
		Measurements: map[string]eo3.Measurement{},
		Accessories:  a.accessories,
		Lineage:      a.lineage,
	}
	if len(a.userMetadata) > 0 {
		doc.UserData = a.userMetadata
	}
	for _, m := range a.measurements {
		grid, ok := region.Assignments[m.name]
		if !ok {
			grid = "default"
		}
		doc.Measurements[m.name] = eo3.Measurement{
			Name: m.name,
			Path: m.offset,
			Band: m.band,
			Grid: grid,
		}
	}

	metadataPath := filepath.Join(a.packageDir, conventions.MetadataFilename())
	if err := documents.WriteDataset(metadataPath, doc); err != nil {
		return uuid.Nil, "", err
	}

	// The manifest is written last so the metadata document itself is
	// covered by it.
	a.written = append(a.written, conventions.MetadataFilename())
	if err := a.checksumPackage(filepath.Join(a.packageDir, checksumName)); err != nil {
		return uuid.Nil, "", err
	}
	return id, metadataPath, nil
}

// checksumPackage hashes every written file concurrently and stores the
// manifest at manifestPath.
func (a *Assembler) checksumPackage(manifestPath string) error {
	manifest := documents.NewChecksumManifest(a.packageDir)
	bar := progressbar.Default(int64(len(a.written)), "Checksumming package")

	wp := workerpool.New(a.workers)
	errChan := make(chan error, 1)
	var failOnce sync.Once
	for _, rel := range a.written {
		path := filepath.Join(a.packageDir, rel)
		wp.Submit(func() {
			if err := manifest.AddFile(path); err != nil {
				failOnce.Do(func() { errChan <- err })
			}
			bar.Add(1)
		})
	}
	wp.StopWait()

	select {
	case err := <-errChan:
		return fmt.Errorf("checksumming package: %w", err)
	default:
	}
	return manifest.Write(manifestPath)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
