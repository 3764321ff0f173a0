package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifest_AddRejectsDuplicates(t *testing.T) {
	m := NewManifest()
	require.NoError(t, m.Add(ManifestEntry{Filename: "a.jpg", Hash: "h1"}))
	assert.Error(t, m.Add(ManifestEntry{Filename: "b.jpg", Hash: "h1"}), "same hash")
	assert.Error(t, m.Add(ManifestEntry{Filename: "a.jpg", Hash: "h2"}), "same filename")
	assert.Error(t, m.Add(ManifestEntry{Filename: "c.jpg"}), "no hash")

	assert.Equal(t, 1, m.Len())
	assert.True(t, m.HasHash("h1"))
	assert.False(t, m.HasHash("h2"))
	assert.True(t, m.HasFilename("a.jpg"))
	require.NotNil(t, m.Find("a.jpg"))
	assert.Nil(t, m.Find("c.jpg"))
}

func TestManifest_UnmarshalRebuildsIndexes(t *testing.T) {
	data := `{"images":[
		{"filename":"a.jpg","hash":"h1","analyzed":true},
		{"filename":"b.jpg","hash":"h2","analyzed":false}
	],"hashes":["h1"]}`

	var m Manifest
	require.NoError(t, json.Unmarshal([]byte(data), &m))
	assert.True(t, m.HasHash("h2"), "entry hashes missing from the list are indexed")
	assert.Equal(t, []string{"h1", "h2"}, m.Hashes)
	assert.True(t, m.HasFilename("b.jpg"))

	m.Find("b.jpg").MarkRejected()
	assert.Equal(t, ImageStatusRejected, m.Images[1].CurrentStatus(nil))
}

func TestManifestEntry_LegacyStatusUsesAnalysis(t *testing.T) {
	withResult := NewAnalysisSet([]AnalysisEntry{{Filename: "a.jpg", Relevant: true}})

	e := ManifestEntry{Filename: "a.jpg", Analyzed: true}
	assert.Equal(t, ImageStatusAccepted, e.CurrentStatus(withResult))
	assert.Equal(t, ImageStatusRejected, e.CurrentStatus(NewAnalysisSet(nil)), "analyzed without a result")
	assert.Equal(t, ImageStatusRejected, e.CurrentStatus(nil))

	e = ManifestEntry{Filename: "b.jpg"}
	assert.Equal(t, ImageStatusPending, e.CurrentStatus(withResult))
	e.MarkAccepted()
	assert.True(t, e.Analyzed)
	assert.Equal(t, ImageStatusAccepted, e.CurrentStatus(nil))
}

func TestManifest_BackfillStatus(t *testing.T) {
	data := `{"images":[
		{"filename":"a.jpg","hash":"h1","analyzed":true},
		{"filename":"b.jpg","hash":"h2","analyzed":true},
		{"filename":"c.jpg","hash":"h3","analyzed":false},
		{"filename":"d.jpg","hash":"h4","analyzed":true,"status":"rejected"}
	]}`
	var m Manifest
	require.NoError(t, json.Unmarshal([]byte(data), &m))
	require.True(t, m.NeedsStatus())

	n := m.BackfillStatus(NewAnalysisSet([]AnalysisEntry{{Filename: "a.jpg", Relevant: true}}))
	assert.Equal(t, 3, n)
	assert.False(t, m.NeedsStatus())
	assert.Equal(t, ImageStatusAccepted, m.Images[0].Status)
	assert.Equal(t, ImageStatusRejected, m.Images[1].Status)
	assert.Equal(t, ImageStatusPending, m.Images[2].Status)
	assert.Equal(t, ImageStatusRejected, m.Images[3].Status)
}

func TestAnalysisEntry_MissingRelevantDefaultsTrue(t *testing.T) {
	var entries []AnalysisEntry
	require.NoError(t, json.Unmarshal([]byte(`[{"filename":"a.jpg"},{"filename":"b.jpg","relevant":false}]`), &entries))
	assert.True(t, entries[0].Relevant)
	assert.False(t, entries[1].Relevant)
}

func TestAnalysisSet_UpsertReplaces(t *testing.T) {
	s := NewAnalysisSet([]AnalysisEntry{
		{Filename: "a.jpg", Relevant: true, Title: "old"},
		{Filename: "b.jpg", Relevant: false},
		{Filename: "a.jpg", Relevant: true, Title: "dup wins"},
	})
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "dup wins", s.Get("a.jpg").Title)

	s.Upsert(AnalysisEntry{Filename: "b.jpg", Relevant: true, Title: "new"})
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "b.jpg", s.Entries[1].Filename, "replaced entry moves to the end")
	assert.Len(t, s.Relevant(), 2)
	assert.Contains(t, s.Filenames(), "a.jpg")
	assert.False(t, s.Has("c.jpg"))
}

func TestPublished_NextIDAndProvenance(t *testing.T) {
	assert.Equal(t, 1, NextID(nil))

	memes := []PublishedMeme{
		{ID: "3", SourceFile: "a.jpg"},
		{ID: "x"},
		{ID: "12", SourceFile: "b.jpg"},
	}
	assert.Equal(t, 13, NextID(memes))

	stripped := StripProvenance(memes)
	assert.Empty(t, stripped[0].SourceFile)
	assert.Equal(t, "a.jpg", memes[0].SourceFile, "input untouched")

	sources := PublishedSources(memes)
	assert.Len(t, sources, 2)
	assert.Contains(t, sources, "b.jpg")

	out, err := json.Marshal(stripped[0])
	require.NoError(t, err)
	assert.NotContains(t, string(out), "_sourceFile")
}
