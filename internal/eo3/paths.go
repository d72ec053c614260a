package eo3

import (
	"path"
	"path/filepath"
	"strings"
)

// ResolveOffset expands a measurement offset recorded in a dataset
// document into a location that raster readers can open. When the
// dataset is itself a tar archive, members are addressed with the
// "tar:<archive>!<member>" locator form; otherwise the offset is joined
// under the dataset root.
func ResolveOffset(datasetPath, offset string) string {
	if datasetPath == "" || filepath.IsAbs(offset) {
		return offset
	}
	root := filepath.ToSlash(datasetPath)
	if isTarPath(root) {
		return "tar:" + root + "!" + offset
	}
	return path.Join(root, offset)
}

// ResolveOffsetFor is ResolveOffset with a target document path: when the
// metadata document being written lives inside the dataset, offsets stay
// relative so the package remains relocatable.
func ResolveOffsetFor(datasetPath, offset, targetPath string) string {
	if targetPath != "" && strings.HasPrefix(filepath.ToSlash(targetPath), filepath.ToSlash(datasetPath)) {
		return offset
	}
	return ResolveOffset(datasetPath, offset)
}

func isTarPath(p string) bool {
	name := path.Base(p)
	return strings.HasSuffix(name, ".tar") || strings.Contains(name, ".tar.")
}
