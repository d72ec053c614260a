package documents

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}
	return root
}

func TestFindMetadataPath(t *testing.T) {
	root := writeFiles(t,
		"directory_dataset/file1.txt",
		"directory_dataset/file2.txt",
		"directory_dataset/ga-metadata.yaml.gz",
		"file_dataset.tif",
		"file_dataset.tif.agdc-md.yaml",
		"dataset_metadata.yaml",
		"no_metadata.tif",
	)

	// A metadata file can be specified directly.
	path, ok := FindMetadataPath(filepath.Join(root, "dataset_metadata.yaml"))
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "dataset_metadata.yaml"), path)

	// A dataset directory holds an internal metadata file.
	path, ok = FindMetadataPath(filepath.Join(root, "directory_dataset"))
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "directory_dataset", "ga-metadata.yaml.gz"), path)

	// Other files can have a sibling metadata document.
	path, ok = FindMetadataPath(filepath.Join(root, "file_dataset.tif"))
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "file_dataset.tif.agdc-md.yaml"), path)

	_, ok = FindMetadataPath(filepath.Join(root, "no_metadata.tif"))
	assert.False(t, ok)

	_, ok = FindMetadataPath(filepath.Join(root, "missing-dataset.tif"))
	assert.False(t, ok)
}

func TestFindAnyMetadataSuffix(t *testing.T) {
	root := writeFiles(t,
		"directory_dataset/agdc-metadata.json.gz",
		"file_dataset.tif.ga-md.yaml",
		"no_metadata.tif",
	)

	path, ok := findAnyMetadataSuffix(filepath.Join(root, "directory_dataset", "agdc-metadata"))
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "directory_dataset", "agdc-metadata.json.gz"), path)

	path, ok = findAnyMetadataSuffix(filepath.Join(root, "file_dataset.tif.ga-md"))
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "file_dataset.tif.ga-md.yaml"), path)

	_, ok = findAnyMetadataSuffix(filepath.Join(root, "no_metadata"))
	assert.False(t, ok)
}
