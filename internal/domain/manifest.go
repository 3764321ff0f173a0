package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ImageStatus records the classification outcome of a collected image.
// Values include ImageStatusPending, ImageStatusAccepted, and ImageStatusRejected.
type ImageStatus string

const (
	ImageStatusPending  ImageStatus = "pending"
	ImageStatusAccepted ImageStatus = "accepted"
	ImageStatusRejected ImageStatus = "rejected"
)

// Keywords recorded for entries that did not come from a search.
const (
	KeywordManual = "manual"
	KeywordLocal  = "local"
)

// ManifestEntry is one collected image candidate.
type ManifestEntry struct {
	Filename     string      `json:"filename"`
	SourceURL    string      `json:"sourceUrl"`
	SourceTitle  string      `json:"sourceTitle"`
	SourceSite   string      `json:"sourceSite"`
	Keyword      string      `json:"keyword"`
	Hash         string      `json:"hash"`
	Width        int         `json:"width,omitempty"`
	Height       int         `json:"height,omitempty"`
	DownloadedAt time.Time   `json:"downloadedAt"`
	Analyzed     bool        `json:"analyzed"`
	Status       ImageStatus `json:"status,omitempty"`
}

// CurrentStatus returns the entry status. Entries written before status was
// recorded derive it from Analyzed and the analysis set: an analyzed image
// with a result was accepted, one without was rejected.
func (e *ManifestEntry) CurrentStatus(analysis *AnalysisSet) ImageStatus {
	if e.Status != "" {
		return e.Status
	}
	if !e.Analyzed {
		return ImageStatusPending
	}
	if analysis != nil && analysis.Has(e.Filename) {
		return ImageStatusAccepted
	}
	return ImageStatusRejected
}

// MarkAccepted flags the entry as analyzed with an accepted outcome.
func (e *ManifestEntry) MarkAccepted() {
	e.Analyzed = true
	e.Status = ImageStatusAccepted
}

// MarkRejected flags the entry as analyzed with a rejected outcome.
func (e *ManifestEntry) MarkRejected() {
	e.Analyzed = true
	e.Status = ImageStatusRejected
}

// Manifest is the ledger of every collected image. Hashes is the dedup index.
type Manifest struct {
	Images []ManifestEntry `json:"images"`
	Hashes []string        `json:"hashes"`

	hashSet   map[string]struct{}
	fileIndex map[string]int
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	m := &Manifest{
		Images: []ManifestEntry{},
		Hashes: []string{},
	}
	m.reindex()
	return m
}

// UnmarshalJSON decodes a manifest file and rebuilds the in-memory indexes.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	type rawManifest Manifest
	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Images = raw.Images
	m.Hashes = raw.Hashes
	if m.Images == nil {
		m.Images = []ManifestEntry{}
	}
	if m.Hashes == nil {
		m.Hashes = []string{}
	}
	m.reindex()
	return nil
}

// reindex rebuilds the hash set and filename index. Hashes of entries that
// are missing from the Hashes list are added to it.
func (m *Manifest) reindex() {
	m.hashSet = make(map[string]struct{}, len(m.Hashes))
	for _, h := range m.Hashes {
		m.hashSet[h] = struct{}{}
	}
	m.fileIndex = make(map[string]int, len(m.Images))
	for i, img := range m.Images {
		m.fileIndex[img.Filename] = i
		if img.Hash == "" {
			continue
		}
		if _, ok := m.hashSet[img.Hash]; !ok {
			m.hashSet[img.Hash] = struct{}{}
			m.Hashes = append(m.Hashes, img.Hash)
		}
	}
}

// HasHash reports whether an image with the given content hash was collected.
func (m *Manifest) HasHash(hash string) bool {
	_, ok := m.hashSet[hash]
	return ok
}

// HasFilename reports whether the filename is already taken.
func (m *Manifest) HasFilename(filename string) bool {
	_, ok := m.fileIndex[filename]
	return ok
}

// Add appends an entry. It fails if the hash or filename already exists.
func (m *Manifest) Add(entry ManifestEntry) error {
	if entry.Hash == "" {
		return fmt.Errorf("manifest entry %q has no hash", entry.Filename)
	}
	if m.HasHash(entry.Hash) {
		return fmt.Errorf("duplicate hash %s", entry.Hash)
	}
	if m.HasFilename(entry.Filename) {
		return fmt.Errorf("duplicate filename %s", entry.Filename)
	}
	if m.hashSet == nil {
		m.reindex()
	}

	m.Images = append(m.Images, entry)
	m.Hashes = append(m.Hashes, entry.Hash)
	m.hashSet[entry.Hash] = struct{}{}
	m.fileIndex[entry.Filename] = len(m.Images) - 1
	return nil
}

// Find returns the entry for filename, or nil.
func (m *Manifest) Find(filename string) *ManifestEntry {
	idx, ok := m.fileIndex[filename]
	if !ok {
		return nil
	}
	return &m.Images[idx]
}

// NeedsStatus reports whether any entry predates the status field.
func (m *Manifest) NeedsStatus() bool {
	for i := range m.Images {
		if m.Images[i].Status == "" {
			return true
		}
	}
	return false
}

// BackfillStatus records the derived status on entries that have none and
// returns how many were updated.
func (m *Manifest) BackfillStatus(analysis *AnalysisSet) int {
	n := 0
	for i := range m.Images {
		if m.Images[i].Status == "" {
			m.Images[i].Status = m.Images[i].CurrentStatus(analysis)
			n++
		}
	}
	return n
}

// Len returns the number of collected images.
func (m *Manifest) Len() int {
	return len(m.Images)
}
