package demmosaic

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/charmbracelet/log"
)

func writeZip(t *testing.T, path string, members map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	assert.NoError(t, err)
	w := zip.NewWriter(f)
	for name, data := range members {
		member, err := w.Create(name)
		assert.NoError(t, err)
		_, err = member.Write(data)
		assert.NoError(t, err)
	}
	assert.NoError(t, w.Close())
	assert.NoError(t, f.Close())
}

func zipBytes(t *testing.T, members map[string][]byte) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inner.zip")
	writeZip(t, path, members)
	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	return data
}

func testDEMDoc() []byte {
	env := Envelope{LatMin: 35.09, LatMax: 35.10, LonMin: 139.00, LonMax: 139.01}
	return []byte(demDocument(env, 0, 0, 1, 1, gridTuples([]float64{1, 2, 3, 4})))
}

func TestCollectDocuments(t *testing.T) {
	dir := t.TempDir()
	workDir := t.TempDir()
	doc := testDEMDoc()

	// A plain folder with one document and one metadata file.
	folder := filepath.Join(dir, "tiles")
	assert.NoError(t, os.MkdirAll(folder, 0o755))
	assert.NoError(t, os.WriteFile(filepath.Join(folder, "FG-GML-5339-45-DEM5A-20161001.xml"), doc, 0o644))
	assert.NoError(t, os.WriteFile(filepath.Join(folder, "FG-GML-5339-45-metadata.xml"), []byte("<meta/>"), 0o644))

	// An archive with a document, a nested archive with another, and
	// noise that must not be extracted.
	inner := zipBytes(t, map[string][]byte{
		"deep/FG-GML-5339-46-DEM5A-20161001.xml": doc,
	})
	outer := filepath.Join(dir, "outer.zip")
	writeZip(t, outer, map[string][]byte{
		"FG-GML-5339-47-DEM5A-20161001.xml": doc,
		"fmdid_something.xml":               []byte("<meta/>"),
		"notes.txt":                         []byte("not a tile"),
		"inner.zip":                         inner,
	})

	cfg := DefaultConfig()
	docs, err := CollectDocuments(t.Context(), []string{folder, outer}, workDir, cfg, log.New(io.Discard))
	assert.NoError(t, err)
	assert.Equal(t, 3, len(docs))

	// Input order first, lexical order within each input.
	assert.Equal(t, filepath.Join(folder, "FG-GML-5339-45-DEM5A-20161001.xml"), docs[0])
	assert.Equal(t, "FG-GML-5339-47-DEM5A-20161001.xml", filepath.Base(docs[1]))
	assert.Equal(t, "FG-GML-5339-46-DEM5A-20161001.xml", filepath.Base(docs[2]))
}

func TestCollectDocuments_DepthBound(t *testing.T) {
	doc := testDEMDoc()
	level2 := zipBytes(t, map[string][]byte{"FG-GML-0000-01-DEM5A.xml": doc})
	level1 := zipBytes(t, map[string][]byte{"level2.zip": level2})
	outer := filepath.Join(t.TempDir(), "outer.zip")
	writeZip(t, outer, map[string][]byte{
		"FG-GML-0000-00-DEM5A.xml": doc,
		"level1.zip":               level1,
	})

	cfg := DefaultConfig()
	cfg.MaxArchiveDepth = 2 // outer counts as depth 0
	docs, err := CollectDocuments(t.Context(), []string{outer}, t.TempDir(), cfg, log.New(io.Discard))
	assert.NoError(t, err)

	// The document two archives deep is dropped by the depth bound.
	assert.Equal(t, 1, len(docs))
	assert.Equal(t, "FG-GML-0000-00-DEM5A.xml", filepath.Base(docs[0]))
}

func TestCollectDocuments_ByteBudget(t *testing.T) {
	doc := testDEMDoc()
	outer := filepath.Join(t.TempDir(), "outer.zip")
	writeZip(t, outer, map[string][]byte{
		"FG-GML-0000-00-DEM5A.xml": doc,
	})

	cfg := DefaultConfig()
	cfg.MaxExtractBytes = 16 // far below the document size
	docs, err := CollectDocuments(t.Context(), []string{outer}, t.TempDir(), cfg, log.New(io.Discard))
	assert.NoError(t, err)
	assert.Equal(t, 0, len(docs))
}

func TestCollectDocuments_CorruptArchiveSkipped(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.zip")
	assert.NoError(t, os.WriteFile(corrupt, []byte("definitely not a zip"), 0o644))

	folder := filepath.Join(dir, "tiles")
	assert.NoError(t, os.MkdirAll(folder, 0o755))
	assert.NoError(t, os.WriteFile(filepath.Join(folder, "FG-GML-0000-00-DEM5A.xml"), testDEMDoc(), 0o644))

	docs, err := CollectDocuments(t.Context(), []string{corrupt, folder}, t.TempDir(), DefaultConfig(), log.New(io.Discard))
	assert.NoError(t, err)
	assert.Equal(t, 1, len(docs))
}
