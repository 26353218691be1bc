package catalog

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gifts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validCatalog = `gifts:
  - id: coffee-kit
    title: Coffee Kit
    description: Beans and a grinder
    image: /img/coffee.jpg
    stock: 10
  - id: tote-bag
    title: Tote Bag
    stock: 25
`

func TestLoad(t *testing.T) {
	cat, err := Load(writeCatalog(t, validCatalog), testLogger())
	require.NoError(t, err)

	gifts := cat.Gifts()
	require.Len(t, gifts, 2)
	assert.Equal(t, "coffee-kit", gifts[0].ID)
	assert.Equal(t, "Coffee Kit", gifts[0].Title)
	assert.Equal(t, 10, gifts[0].Stock)

	g, ok := cat.Get("tote-bag")
	require.True(t, ok)
	assert.Equal(t, "Tote Bag", g.Title)

	_, ok = cat.Get("pony")
	assert.False(t, ok)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), testLogger())
	assert.Error(t, err)
}

func TestLoad_EmptyCatalog(t *testing.T) {
	_, err := Load(writeCatalog(t, "gifts: []\n"), testLogger())
	assert.Error(t, err)
}

func TestLoad_DuplicateID(t *testing.T) {
	_, err := Load(writeCatalog(t, `gifts:
  - id: coffee-kit
    title: Coffee Kit
  - id: coffee-kit
    title: Another Coffee Kit
`), testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoad_MissingTitle(t *testing.T) {
	_, err := Load(writeCatalog(t, `gifts:
  - id: coffee-kit
`), testLogger())
	assert.Error(t, err)
}

func TestReload_KeepsOldSnapshotOnBadEdit(t *testing.T) {
	path := writeCatalog(t, validCatalog)
	cat, err := Load(path, testLogger())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("gifts: [\n"), 0o644))
	assert.Error(t, cat.Reload())
	assert.Len(t, cat.Gifts(), 2, "bad edit must not clobber the loaded catalog")
}

func TestReload_PicksUpChanges(t *testing.T) {
	path := writeCatalog(t, validCatalog)
	cat, err := Load(path, testLogger())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`gifts:
  - id: mug
    title: Mug
    stock: 3
`), 0o644))
	require.NoError(t, cat.Reload())

	gifts := cat.Gifts()
	require.Len(t, gifts, 1)
	assert.Equal(t, "mug", gifts[0].ID)
}
