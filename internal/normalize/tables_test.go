package normalize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTablesMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
category_synonyms:
  groceries: Food
reimbursement_keywords: [expense report]
`), 0o644))

	tables, err := LoadTables(path)
	require.NoError(t, err)

	// New synonym merged, built-in synonyms kept.
	assert.Equal(t, CategoryFood, tables.CategorySynonyms["groceries"])
	assert.Equal(t, CategoryFood, tables.CategorySynonyms["餐饮"])

	// Reimbursement list fully replaced.
	assert.Equal(t, []string{"expense report"}, tables.ReimbursementKeywords)

	// Untouched sections keep defaults.
	assert.NotEmpty(t, tables.MerchantSuffixes)
	assert.NotEmpty(t, tables.MerchantRules)
}

func TestLoadTablesMissingFile(t *testing.T) {
	_, err := LoadTables("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestLoadTablesBadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte("category_synonyms: [not a map"), 0o644))

	_, err := LoadTables(path)
	assert.Error(t, err)
}

func TestCanonical(t *testing.T) {
	assert.True(t, Canonical(CategoryFood))
	assert.True(t, Canonical(CategoryOther))
	assert.False(t, Canonical("food"))
	assert.False(t, Canonical("Snacks"))
}
