package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/mudozzal/internal/config"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// writeConfig points every store path into dir and disables all delays.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	for _, key := range []string{"SERPAPI_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY", "VLM_API_KEY", "VLM_PROVIDER", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Chdir(dir)

	yaml := fmt.Sprintf(`paths:
  images_dir: %[1]s/raw/images
  manifest: %[1]s/raw/manifest.json
  analysis: %[1]s/raw/analyzed.json
  published: %[1]s/data/memes.json
  published_meta: %[1]s/raw/memes_with_meta.json
  public_assets: %[1]s/public/memes
collect:
  url_interval: 0s
  keyword_interval: 0s
classify:
  interval: 0s
log:
  level: error
`, filepath.ToSlash(dir))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	return path
}

func TestVersionFlag(t *testing.T) {
	var err error
	output := captureOutput(t, func() {
		err = RunWithArgs("0.1.0-test", []string{"--version"})
	})
	assert.NoError(t, err)
	assert.Equal(t, "mudozzal 0.1.0-test\n", output)
}

func TestUnknownSubcommand(t *testing.T) {
	err := RunWithArgs("test", []string{"frobnicate"})
	assert.Error(t, err)
}

func TestCollect_RequiresExactlyOneMode(t *testing.T) {
	assert.Error(t, RunWithArgs("test", []string{"collect"}))
	assert.Error(t, RunWithArgs("test", []string{"collect", "--search", "--urls", "x.txt"}))
}

func TestCollect_SearchRequiresKey(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir())
	err := RunWithArgs("test", []string{"--config", cfgPath, "collect", "--search"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrMissingCredentials))
}

func TestAnalyze_RequiresKey(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir())
	err := RunWithArgs("test", []string{"--config", cfgPath, "analyze", "--limit", "3"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrMissingCredentials))
}

func TestAnalyze_NothingToDo(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir())
	t.Setenv("GEMINI_API_KEY", "test-key")

	var err error
	output := captureOutput(t, func() {
		err = RunWithArgs("test", []string{"--config", cfgPath, "analyze"})
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Analyzed 0 images")
}

func TestCollectURLsThenPublishDryRun(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("same bytes"))
	}))
	defer srv.Close()

	urls := filepath.Join(dir, "urls.txt")
	require.NoError(t, os.WriteFile(urls, []byte(srv.URL+"/a.png\n"+srv.URL+"/b.png\n"), 0644))

	var err error
	output := captureOutput(t, func() {
		err = RunWithArgs("test", []string{"--config", cfgPath, "collect", "--urls", urls, "--append"})
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Collected 1 new images (duplicates 1")

	entries, err := os.ReadDir(filepath.Join(dir, "raw", "images"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	output = captureOutput(t, func() {
		err = RunWithArgs("test", []string{"--config", cfgPath, "publish", "--dry-run"})
	})
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "data", "memes.json"))
}

func TestPublish_EmptyStore(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	var err error
	output := captureOutput(t, func() {
		err = RunWithArgs("test", []string{"--config", cfgPath, "publish", "--rebuild"})
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Published 0 new memes")
}
