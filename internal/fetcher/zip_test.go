package fetcher

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenZIPMember(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"readme.txt":      "not this one",
		"cities15000.txt": "1\tSeoul\n",
	})

	rc, err := OpenZIPMember(zipPath, "cities15000.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "1\tSeoul\n", string(data))
}

func TestOpenZIPMember_BaseNameMatch(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"dump/alternateNamesV2.txt": "row",
	})

	rc, err := OpenZIPMember(zipPath, "alternateNamesV2.txt")
	require.NoError(t, err)
	defer rc.Close() //nolint:errcheck
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "row", string(data))
}

func TestOpenZIPMember_Missing(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"a.txt": "a"})

	_, err := OpenZIPMember(zipPath, "cities15000.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in archive")
}

func TestOpenZIPMember_NotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.zip")
	require.NoError(t, writeTestFile(path, "this is not a zip"))

	_, err := OpenZIPMember(path, "x.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip: open archive")
}

func TestOpenSource_PlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "places.txt")
	require.NoError(t, writeTestFile(path, "plain"))

	rc, err := OpenSource(path, "")
	require.NoError(t, err)
	defer rc.Close() //nolint:errcheck
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "plain", string(data))
}
