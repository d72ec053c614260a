// Package naming builds DEA-convention product names, dataset labels and
// file names from dataset properties.
package naming

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/earth-archive/eo3pack/internal/eo3"
)

// DefaultURIPrefix is where published product definitions live.
const DefaultURIPrefix = "https://collections.dea.ga.gov.au"

// Conventions derives names from a dataset's properties. The zero BaseURI
// means no product href is generated.
type Conventions struct {
	Properties eo3.Properties
	BaseURI    string
}

// ProductName is "{producer}_{platform}{instrument}_{family}_{collection}",
// e.g. "ga_ls8c_ard_3".
func (c Conventions) ProductName() string {
	return c.productGroup("")
}

func (c Conventions) productGroup(subName string) string {
	if subName == "" {
		subName = c.Properties.String("odc:product_family")
	}
	collection := strings.SplitN(c.Properties.String("odc:dataset_version"), ".", 2)[0]
	if n, err := strconv.Atoi(collection); err == nil {
		collection = strconv.Itoa(n)
	}
	return fmt.Sprintf("%s_%s%s_%s_%s",
		c.Properties.ProducerAbbreviated(),
		c.Properties.PlatformAbbreviated(),
		c.Properties.InstrumentAbbreviated(),
		subName,
		collection,
	)
}

// ProductURI points at the product definition under BaseURI, or "" when
// no base is configured.
func (c Conventions) ProductURI() string {
	if c.BaseURI == "" {
		return ""
	}
	return c.BaseURI + "/product/" + c.ProductName()
}

// Product returns the dataset's product reference.
func (c Conventions) Product() eo3.ProductDoc {
	return eo3.ProductDoc{Name: c.ProductName(), Href: c.ProductURI()}
}

// DatasetLabel is the human-readable dataset identity, e.g.
// "ga_ls8c_ard_3-0-0_090084_2019-07-04_final".
func (c Conventions) DatasetLabel() string {
	return strings.Join([]string{
		c.ProductName() + "-" + c.versionSuffix(),
		c.referenceCode(),
		c.datasetDate(),
		c.Properties.String("dea:dataset_maturity"),
	}, "_")
}

// MetadataFilename names the eo3 document inside the package.
func (c Conventions) MetadataFilename() string {
	return c.DatasetLabel() + ".odc-metadata.yaml"
}

// ChecksumFilename names the SHA1 manifest inside the package.
func (c Conventions) ChecksumFilename() string {
	return c.file("", "sha1", "")
}

// ThumbnailFilename names the quicklook image inside the package.
func (c Conventions) ThumbnailFilename() string {
	return c.file("thumbnail", "png", "")
}

// MeasurementFilename names a band file. Measurement names may carry a
// product subgroup prefix, as in "nbar:band08", which selects the
// subgroup's product name:
// "ga_ls8c_nbar_3-0-0_090084_2019-07-04_final_band08.tif".
func (c Conventions) MeasurementFilename(measurement, suffix string) string {
	subGroup, name, found := strings.Cut(measurement, ":")
	if !found {
		subGroup, name = "", measurement
	}
	return c.file(name, suffix, subGroup)
}

func (c Conventions) file(fileID, suffix, subName string) string {
	maturity := c.Properties.String("dea:dataset_maturity")

	end := maturity + "." + suffix
	if fileID != "" {
		end = maturity + "_" + strings.ReplaceAll(fileID, "_", "-") + "." + suffix
	}
	return strings.Join([]string{
		c.productGroup(subName) + "-" + c.versionSuffix(),
		c.referenceCode(),
		c.datasetDate(),
		end,
	}, "_")
}

// versionSuffix renders the dataset version for labels and file names.
// The product name already ends with the collection number, which is the
// version's major component, so only the remaining components are
// appended: "3.0.0" contributes "0-0".
func (c Conventions) versionSuffix() string {
	parts := strings.Split(c.Properties.String("odc:dataset_version"), ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.Join(parts, "-")
}

// referenceCode prefers the explicit reference code, falling back to the
// dataset's region code (e.g. a WRS path/row).
func (c Conventions) referenceCode() string {
	if code := c.Properties.String("odc:reference_code"); code != "" {
		return code
	}
	return c.Properties.String("odc:region_code")
}

func (c Conventions) datasetDate() string {
	t, ok := c.Properties.Datetime("datetime")
	if !ok {
		return "unknown-date"
	}
	return t.Format("2006-01-02")
}
