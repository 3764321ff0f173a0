package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/mudozzal/internal/domain"
)

func testStore(t *testing.T) *ContentStore {
	t.Helper()

	dir := t.TempDir()
	return New(Paths{
		ImagesDir:     filepath.Join(dir, "raw", "images"),
		Manifest:      filepath.Join(dir, "raw", "manifest.json"),
		Analysis:      filepath.Join(dir, "raw", "analyzed.json"),
		Published:     filepath.Join(dir, "data", "memes.json"),
		PublishedMeta: filepath.Join(dir, "raw", "memes_with_meta.json"),
		PublicAssets:  filepath.Join(dir, "public", "memes"),
	})
}

func TestLoad_MissingFilesReturnDefaults(t *testing.T) {
	s := testStore(t)

	m, err := s.LoadManifest()
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
	assert.False(t, m.HasHash("abc"))

	set, err := s.LoadAnalysis()
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())

	memes, err := s.LoadPublished()
	require.NoError(t, err)
	assert.Empty(t, memes)

	images, err := s.ListImages()
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestManifest_RoundTripKeepsDedupIndex(t *testing.T) {
	s := testStore(t)

	m := domain.NewManifest()
	require.NoError(t, m.Add(domain.ManifestEntry{
		Filename:     "mudo_1_aaaaaaaa.jpg",
		Hash:         "aaaaaaaa11",
		Keyword:      "무야호",
		DownloadedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}))
	require.NoError(t, s.SaveManifest(m))

	loaded, err := s.LoadManifest()
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
	assert.True(t, loaded.HasHash("aaaaaaaa11"))
	require.NotNil(t, loaded.Find("mudo_1_aaaaaaaa.jpg"))
	assert.Equal(t, "무야호", loaded.Find("mudo_1_aaaaaaaa.jpg").Keyword)

	err = loaded.Add(domain.ManifestEntry{Filename: "other.jpg", Hash: "aaaaaaaa11"})
	assert.Error(t, err)
}

func TestManifest_ReadsOriginalFormat(t *testing.T) {
	s := testStore(t)

	raw := `{
  "images": [
    {"filename": "mudo_1700000000000_abcdef12.png", "sourceUrl": "https://x/y.png", "sourceTitle": "", "sourceSite": "",
     "keyword": "manual", "hash": "abcdef1234", "downloadedAt": "2024-05-01T10:00:00.000Z", "analyzed": true}
  ],
  "hashes": []
}`
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Paths().Manifest), 0755))
	require.NoError(t, os.WriteFile(s.Paths().Manifest, []byte(raw), 0644))

	m, err := s.LoadManifest()
	require.NoError(t, err)
	assert.True(t, m.HasHash("abcdef1234"), "hashes of entries are indexed even if the list is stale")
	assert.Equal(t, domain.ImageStatusRejected, m.Images[0].Status, "analyzed without an analysis entry")
}

func TestLoadManifest_BackfillsStatusFromAnalysis(t *testing.T) {
	s := testStore(t)

	raw := `{"images": [
    {"filename": "a.jpg", "hash": "h1", "analyzed": true},
    {"filename": "b.jpg", "hash": "h2", "analyzed": true},
    {"filename": "c.jpg", "hash": "h3", "analyzed": false}
  ], "hashes": ["h1", "h2", "h3"]}`
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Paths().Manifest), 0755))
	require.NoError(t, os.WriteFile(s.Paths().Manifest, []byte(raw), 0644))
	require.NoError(t, s.SaveAnalysis(domain.NewAnalysisSet([]domain.AnalysisEntry{{Filename: "a.jpg", Relevant: true}})))

	m, err := s.LoadManifest()
	require.NoError(t, err)
	assert.Equal(t, domain.ImageStatusAccepted, m.Find("a.jpg").Status)
	assert.Equal(t, domain.ImageStatusRejected, m.Find("b.jpg").Status)
	assert.Equal(t, domain.ImageStatusPending, m.Find("c.jpg").Status)

	require.NoError(t, s.SaveManifest(m))
	saved, err := os.ReadFile(s.Paths().Manifest)
	require.NoError(t, err)
	assert.Contains(t, string(saved), `"status": "rejected"`)
}

func TestLoadManifest_MalformedIsError(t *testing.T) {
	s := testStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Paths().Manifest), 0755))
	require.NoError(t, os.WriteFile(s.Paths().Manifest, []byte("{not json"), 0644))

	_, err := s.LoadManifest()
	assert.Error(t, err)
}

func TestSavePublished_StripsProvenanceFromPublicFile(t *testing.T) {
	s := testStore(t)

	memes := []domain.PublishedMeme{{
		ID:         "1",
		Title:      "무야호~",
		Tags:       []string{"놀람"},
		ImageURL:   "/memes/meme_1.jpg",
		Member:     "유재석",
		Episode:    domain.DefaultUnknown,
		SourceFile: "a.jpg",
	}}
	require.NoError(t, s.SavePublished(memes))

	public, err := os.ReadFile(s.Paths().Published)
	require.NoError(t, err)
	assert.NotContains(t, string(public), "_sourceFile")
	assert.Contains(t, string(public), "무야호~")

	meta, err := os.ReadFile(s.Paths().PublishedMeta)
	require.NoError(t, err)
	assert.Contains(t, string(meta), `"_sourceFile": "a.jpg"`)

	loaded, err := s.LoadPublished()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "a.jpg", loaded[0].SourceFile)
}

func TestLoadPublished_FallsBackToPublicFile(t *testing.T) {
	s := testStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Paths().Published), 0755))
	require.NoError(t, os.WriteFile(s.Paths().Published, []byte(`[{"id":"7","title":"t","tags":[],"imageUrl":"/memes/meme_7.jpg"}]`), 0644))

	memes, err := s.LoadPublished()
	require.NoError(t, err)
	require.Len(t, memes, 1)
	assert.Equal(t, 8, domain.NextID(memes))
}

func TestWriteJSON_LeavesNoTempFiles(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.SaveAnalysis(domain.NewAnalysisSet(nil)))

	entries, err := os.ReadDir(filepath.Dir(s.Paths().Analysis))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "unexpected temp file %s", e.Name())
	}

	data, err := os.ReadFile(s.Paths().Analysis)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestImagesAndAssets(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.WriteImage("b.png", []byte("png-bytes")))
	require.NoError(t, s.WriteImage("a.jpg", []byte("jpg-bytes")))
	require.NoError(t, os.WriteFile(filepath.Join(s.Paths().ImagesDir, ".DS_Store"), []byte("x"), 0644))

	names, err := s.ListImages()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.png"}, names)
	assert.True(t, s.ImageExists("a.jpg"))
	assert.False(t, s.ImageExists("missing.jpg"))

	dest := s.AssetPath("meme_1.jpg")
	require.NoError(t, s.CopyAsset(s.ImagePath("a.jpg"), dest))
	copied, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "jpg-bytes", string(copied))
}
