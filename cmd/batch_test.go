package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketledger/expense-cli/internal/model"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "receipt.jpg"), []byte{0xFF, 0xD8}, 0644))

	path := writeManifest(t, dir, `[
		{"method": "text", "text": "coffee 35 CNY"},
		{"method": "receipt", "file": "receipt.jpg"}
	]`)

	items, err := loadManifest(path)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, model.InputText, items[0].Method)
	assert.Equal(t, []byte("coffee 35 CNY"), items[0].Payload)
	assert.Equal(t, model.InputReceipt, items[1].Method)
	assert.Equal(t, []byte{0xFF, 0xD8}, items[1].Payload)
}

func TestLoadManifestInvalidMethod(t *testing.T) {
	path := writeManifest(t, t.TempDir(), `[{"method": "fax", "text": "x"}]`)

	_, err := loadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid method")
}

func TestLoadManifestMissingPayload(t *testing.T) {
	path := writeManifest(t, t.TempDir(), `[{"method": "text"}]`)

	_, err := loadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "either text or file is required")
}

func TestLoadManifestMissingFile(t *testing.T) {
	path := writeManifest(t, t.TempDir(), `[{"method": "receipt", "file": "nope.jpg"}]`)

	_, err := loadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read file")
}

func TestLoadManifestBadJSON(t *testing.T) {
	path := writeManifest(t, t.TempDir(), `{not json`)

	_, err := loadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse manifest")
}
