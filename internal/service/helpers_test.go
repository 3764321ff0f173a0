package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/timmy/mudozzal/internal/source"
	"github.com/timmy/mudozzal/internal/store"
)

func newTestStore(t *testing.T) *store.ContentStore {
	t.Helper()
	dir := t.TempDir()
	return store.New(store.Paths{
		ImagesDir:     filepath.Join(dir, "raw", "images"),
		Manifest:      filepath.Join(dir, "raw", "manifest.json"),
		Analysis:      filepath.Join(dir, "raw", "analyzed.json"),
		Published:     filepath.Join(dir, "data", "memes.json"),
		PublishedMeta: filepath.Join(dir, "raw", "memes_with_meta.json"),
		PublicAssets:  filepath.Join(dir, "public", "memes"),
	})
}

// fakeSearcher returns canned results per keyword.
type fakeSearcher struct {
	results map[string][]source.Candidate
	errs    map[string]error
	calls   []string
}

func (f *fakeSearcher) GetSourceID() string { return "fake" }

func (f *fakeSearcher) Search(_ context.Context, keyword string) ([]source.Candidate, error) {
	f.calls = append(f.calls, keyword)
	if err := f.errs[keyword]; err != nil {
		return nil, err
	}
	return f.results[keyword], nil
}

// fakeFetcher serves bytes from a map; unknown URLs fail.
type fakeFetcher struct {
	mu    sync.Mutex
	data  map[string][]byte
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	b, ok := f.data[url]
	if !ok {
		return nil, fmt.Errorf("HTTP 404")
	}
	return b, nil
}

// fakeClassifier answers from a queue of replies; an error reply is returned as the call error.
type fakeClassifier struct {
	replies []fakeReply
	prompts []string
	mimes   []string
}

type fakeReply struct {
	text string
	err  error
}

func (f *fakeClassifier) Classify(_ context.Context, _ []byte, mimeType, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.mimes = append(f.mimes, mimeType)
	if len(f.replies) == 0 {
		return `{"relevant": false}`, nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.text, r.err
}

// pngBytes encodes a w×h PNG whose pixels depend on seed, so different
// seeds produce different content hashes.
func pngBytes(t *testing.T, w, h int, seed uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: seed, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// filledBytes returns n bytes of value b.
func filledBytes(n int, b byte) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func removeFile(path string) error {
	return os.Remove(path)
}
