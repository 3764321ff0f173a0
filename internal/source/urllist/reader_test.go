package urllist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "# 무야호 모음\nhttps://a.example/1.jpg\n\n   https://b.example/2.png  \n#https://skip.example/3.gif\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	urls, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/1.jpg", "https://b.example/2.png"}, urls)
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
