package documents

import (
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ChecksumManifest accumulates SHA1 digests of packaged files, keyed by
// path relative to the package root. Safe for concurrent AddFile calls.
type ChecksumManifest struct {
	root string

	mu      sync.Mutex
	entries map[string]string
}

func NewChecksumManifest(root string) *ChecksumManifest {
	return &ChecksumManifest{root: root, entries: map[string]string{}}
}

// AddFile hashes the file and records it under its package-relative path.
func (c *ChecksumManifest) AddFile(path string) error {
	digest, err := HashFile(path)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		return fmt.Errorf("file %q is outside package root %q: %w", path, c.root, err)
	}
	c.mu.Lock()
	c.entries[filepath.ToSlash(rel)] = digest
	c.mu.Unlock()
	return nil
}

// Len returns how many files have been recorded.
func (c *ChecksumManifest) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Write stores the manifest at path, one "<sha1>\t<relative path>" line
// per file, sorted by path.
func (c *ChecksumManifest) Write(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	paths := make([]string, 0, len(c.entries))
	for p := range c.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var sb strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&sb, "%s\t%s\n", c.entries[p], p)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("writing checksum manifest %q: %w", path, err)
	}
	return nil
}

// HashFile returns the hex SHA1 digest of the file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %q for checksum: %w", path, err)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %q: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyManifest re-hashes every file listed in a manifest and returns
// the relative paths whose contents no longer match.
func VerifyManifest(manifestPath string) ([]string, error) {
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("opening manifest %q: %w", manifestPath, err)
	}
	defer f.Close()

	root := filepath.Dir(manifestPath)
	var mismatched []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		expected, rel, found := strings.Cut(line, "\t")
		if !found {
			return nil, fmt.Errorf("malformed manifest line %q", line)
		}
		actual, err := HashFile(filepath.Join(root, rel))
		if err != nil {
			return nil, err
		}
		if actual != expected {
			mismatched = append(mismatched, rel)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading manifest %q: %w", manifestPath, err)
	}
	return mismatched, nil
}
