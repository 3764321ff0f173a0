// Package store persists the pipeline's collections as flat JSON files and
// manages the raw and public image directories.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/timmy/mudozzal/internal/domain"
)

// Paths locates every file and directory the pipeline reads or writes.
type Paths struct {
	ImagesDir     string // raw downloaded images
	Manifest      string // download manifest
	Analysis      string // analysis result set
	Published     string // public dataset, no provenance
	PublishedMeta string // dataset with provenance for incremental merges
	PublicAssets  string // public image directory
}

// ContentStore reads and rewrites the pipeline collections.
// Every save rewrites the whole file; concurrent writers are not supported.
type ContentStore struct {
	paths Paths
}

// New creates a ContentStore over paths.
// Parameters:
//   - paths: locations of the collection files and image directories.
//
// Returns:
//   - *ContentStore: store that creates missing directories on first write.
func New(paths Paths) *ContentStore {
	return &ContentStore{paths: paths}
}

// Paths returns the configured locations.
func (s *ContentStore) Paths() Paths {
	return s.paths
}

// LoadManifest reads the manifest, returning an empty one when the file is missing.
// Entries without a recorded status get one derived from the analysis set,
// so the next save writes it.
func (s *ContentStore) LoadManifest() (*domain.Manifest, error) {
	m := domain.NewManifest()
	found, err := readJSON(s.paths.Manifest, m)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	if !found {
		return domain.NewManifest(), nil
	}
	if m.NeedsStatus() {
		analysis, err := s.LoadAnalysis()
		if err != nil {
			return nil, err
		}
		m.BackfillStatus(analysis)
	}
	return m, nil
}

// SaveManifest rewrites the manifest file.
func (s *ContentStore) SaveManifest(m *domain.Manifest) error {
	if err := writeJSON(s.paths.Manifest, m); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	return nil
}

// LoadAnalysis reads the analysis set, returning an empty set when the file is missing.
func (s *ContentStore) LoadAnalysis() (*domain.AnalysisSet, error) {
	var entries []domain.AnalysisEntry
	if _, err := readJSON(s.paths.Analysis, &entries); err != nil {
		return nil, fmt.Errorf("failed to load analysis set: %w", err)
	}
	return domain.NewAnalysisSet(entries), nil
}

// SaveAnalysis rewrites the analysis file.
func (s *ContentStore) SaveAnalysis(set *domain.AnalysisSet) error {
	entries := set.Entries
	if entries == nil {
		entries = []domain.AnalysisEntry{}
	}
	if err := writeJSON(s.paths.Analysis, entries); err != nil {
		return fmt.Errorf("failed to save analysis set: %w", err)
	}
	return nil
}

// LoadPublished reads the dataset with provenance. When that file does not
// exist the public dataset is read instead so id numbering continues.
func (s *ContentStore) LoadPublished() ([]domain.PublishedMeme, error) {
	var memes []domain.PublishedMeme
	found, err := readJSON(s.paths.PublishedMeta, &memes)
	if err != nil {
		return nil, fmt.Errorf("failed to load published dataset: %w", err)
	}
	if !found {
		if _, err := readJSON(s.paths.Published, &memes); err != nil {
			return nil, fmt.Errorf("failed to load published dataset: %w", err)
		}
	}
	if memes == nil {
		memes = []domain.PublishedMeme{}
	}
	return memes, nil
}

// SavePublished writes the public dataset without provenance and the
// internal dataset with it.
func (s *ContentStore) SavePublished(memes []domain.PublishedMeme) error {
	if memes == nil {
		memes = []domain.PublishedMeme{}
	}
	if err := writeJSON(s.paths.Published, domain.StripProvenance(memes)); err != nil {
		return fmt.Errorf("failed to save public dataset: %w", err)
	}
	if err := writeJSON(s.paths.PublishedMeta, memes); err != nil {
		return fmt.Errorf("failed to save dataset with provenance: %w", err)
	}
	return nil
}

// ImagePath returns the path of a raw image.
func (s *ContentStore) ImagePath(filename string) string {
	return filepath.Join(s.paths.ImagesDir, filename)
}

// AssetPath returns the path of a public asset.
func (s *ContentStore) AssetPath(filename string) string {
	return filepath.Join(s.paths.PublicAssets, filename)
}

// ImageExists reports whether a raw image file is present.
func (s *ContentStore) ImageExists(filename string) bool {
	info, err := os.Stat(s.ImagePath(filename))
	return err == nil && !info.IsDir()
}

// WriteImage stores raw image bytes under filename.
func (s *ContentStore) WriteImage(filename string, data []byte) error {
	if err := EnsureDir(s.paths.ImagesDir); err != nil {
		return err
	}
	if err := os.WriteFile(s.ImagePath(filename), data, 0644); err != nil {
		return fmt.Errorf("failed to write image %s: %w", filename, err)
	}
	return nil
}

// ReadImage returns the raw bytes of an image.
func (s *ContentStore) ReadImage(filename string) ([]byte, error) {
	return os.ReadFile(s.ImagePath(filename))
}

// ListImages returns the non-hidden files in the images directory, sorted.
// A missing directory yields an empty list.
func (s *ContentStore) ListImages() ([]string, error) {
	entries, err := os.ReadDir(s.paths.ImagesDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// CopyAsset copies a file from srcPath to destPath, creating the destination directory.
func (s *ContentStore) CopyAsset(srcPath, destPath string) error {
	return CopyFile(srcPath, destPath)
}

// CopyFile copies srcPath to destPath, creating the destination directory.
func CopyFile(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", srcPath, err)
	}
	defer src.Close()

	if err := EnsureDir(filepath.Dir(destPath)); err != nil {
		return err
	}

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to copy %s: %w", srcPath, err)
	}
	return dst.Close()
}

// EnsureDir creates path and its parents if needed.
func EnsureDir(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// readJSON decodes path into v. It reports false without error when the file does not exist.
func readJSON(path string, v interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	return true, nil
}

// writeJSON serialises v with two-space indentation into a temp file next to
// path and renames it over path.
func writeJSON(path string, v interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
