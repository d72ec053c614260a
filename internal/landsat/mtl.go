// Package landsat prepares eo3 metadata for USGS Landsat Level-2
// datasets, delivered either as directories or tar bundles.
package landsat

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// MTLDoc is a parsed MTL (ODL) document: nested groups of lowercased
// field names to scalar values.
type MTLDoc map[string]interface{}

// Section returns a nested group, or nil when absent.
func (d MTLDoc) Section(name string) MTLDoc {
	if sub, ok := d[name].(MTLDoc); ok {
		return sub
	}
	return nil
}

// String returns a field as a string, "" when absent.
func (d MTLDoc) String(key string) string {
	if v, ok := d[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// Int returns a field as an int.
func (d MTLDoc) Int(key string) (int, bool) {
	switch v := d[key].(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n, true
		}
	}
	return 0, false
}

// ParseMTL reads an ODL-formatted MTL document, returning the contents
// of the given root group. Group and field names are lowercased; values
// are unquoted strings, integers or floats.
func ParseMTL(r io.Reader, rootElement string) (MTLDoc, error) {
	root := MTLDoc{}
	stack := []MTLDoc{root}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "END" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "group":
			group := MTLDoc{}
			stack[len(stack)-1][strings.ToLower(value)] = group
			stack = append(stack, group)
		case "end_group":
			if len(stack) == 1 {
				return nil, fmt.Errorf("unbalanced END_GROUP %q", value)
			}
			stack = stack[:len(stack)-1]
		default:
			stack[len(stack)-1][key] = parseMTLValue(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading MTL document: %w", err)
	}

	doc := root.Section(rootElement)
	if doc == nil {
		return nil, fmt.Errorf("MTL document has no %q group", rootElement)
	}
	return doc, nil
}

func parseMTLValue(raw string) interface{} {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1]
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// FindMTL locates and reads the *_MTL.txt document of a dataset, which
// may be a directory or a (possibly gzipped) tar bundle. It returns the
// document contents and the MTL's offset inside the dataset.
func FindMTL(datasetPath string) ([]byte, string, error) {
	info, err := os.Stat(datasetPath)
	if err != nil {
		return nil, "", fmt.Errorf("stat %q: %w", datasetPath, err)
	}

	if info.IsDir() {
		matches, err := filepath.Glob(filepath.Join(datasetPath, "*_MTL.txt"))
		if err != nil || len(matches) == 0 {
			return nil, "", fmt.Errorf("no MTL file found in %q", datasetPath)
		}
		data, err := os.ReadFile(matches[0])
		if err != nil {
			return nil, "", fmt.Errorf("reading %q: %w", matches[0], err)
		}
		return data, filepath.Base(matches[0]), nil
	}
	return findMTLInTar(datasetPath)
}

func findMTLInTar(archivePath string) ([]byte, string, error) {
	data, name, found, err := scanTar(archivePath, func(name string) bool {
		return strings.HasSuffix(name, "_MTL.txt")
	})
	if err != nil {
		return nil, "", err
	}
	if !found {
		return nil, "", fmt.Errorf("no MTL file found in %q", archivePath)
	}
	return data, name, nil
}

// readTarMember extracts one member of a tar bundle by its offset,
// matching the base name too for bundles with a leading directory.
func readTarMember(archivePath, offset string) ([]byte, error) {
	data, _, found, err := scanTar(archivePath, func(name string) bool {
		return name == offset || filepath.Base(name) == filepath.Base(offset)
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%q not found in %q", offset, archivePath)
	}
	return data, nil
}

// scanTar walks a (possibly gzipped) tar bundle and returns the first
// regular member that match accepts.
func scanTar(archivePath string, match func(name string) bool) ([]byte, string, bool, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, "", false, fmt.Errorf("opening %q: %w", archivePath, err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(archivePath, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, "", false, fmt.Errorf("decompressing %q: %w", archivePath, err)
		}
		defer gz.Close()
		reader = gz
	}

	tr := tar.NewReader(reader)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", false, fmt.Errorf("reading tar %q: %w", archivePath, err)
		}
		if header.Typeflag != tar.TypeReg || !match(header.Name) {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, "", false, fmt.Errorf("reading %q from %q: %w", header.Name, archivePath, err)
		}
		return data, header.Name, true, nil
	}
	return nil, "", false, nil
}
