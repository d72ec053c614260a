// Package documents reads and writes eo3 metadata documents, finds them
// on disk, and maintains checksum manifests for packaged datasets.
package documents

import (
	"os"
	"path/filepath"
	"strings"
)

// Suffixes a metadata document may carry, optionally gzipped.
var metadataSuffixes = map[string]bool{
	".yaml": true,
	".yml":  true,
	".json": true,
}

// FindMetadataPath locates the metadata document for a dataset path. A
// metadata file can be given directly; a dataset directory holds an
// internal "ga-metadata" or "agdc-metadata" file; any other file may have
// a sibling named "<file>.ga-md.*" or "<file>.agdc-md.*".
func FindMetadataPath(datasetPath string) (string, bool) {
	info, err := os.Stat(datasetPath)
	if err != nil {
		return "", false
	}

	if info.IsDir() {
		for _, stem := range []string{"ga-metadata", "agdc-metadata"} {
			if p, ok := findAnyMetadataSuffix(filepath.Join(datasetPath, stem)); ok {
				return p, true
			}
		}
		return "", false
	}

	if isMetadataName(datasetPath) {
		return datasetPath, true
	}
	for _, stem := range []string{".ga-md", ".agdc-md"} {
		if p, ok := findAnyMetadataSuffix(datasetPath + stem); ok {
			return p, true
		}
	}
	return "", false
}

// findAnyMetadataSuffix returns the first file matching base with a
// metadata suffix appended, in directory order.
func findAnyMetadataSuffix(base string) (string, bool) {
	matches, err := filepath.Glob(base + ".*")
	if err != nil {
		return "", false
	}
	for _, m := range matches {
		if isMetadataName(m) {
			return m, true
		}
	}
	return "", false
}

func isMetadataName(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	name = strings.TrimSuffix(name, ".gz")
	return metadataSuffixes[filepath.Ext(name)]
}
