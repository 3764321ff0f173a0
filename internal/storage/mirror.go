package storage

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// AssetMirror keeps a remote copy of the public meme assets.
type AssetMirror interface {
	// Prepare verifies the target bucket, creating it where the provider allows.
	Prepare(ctx context.Context) error

	// Has reports whether key is already mirrored.
	Has(ctx context.Context, key string) (bool, error)

	// Put writes body under key, replacing any existing object.
	Put(ctx context.Context, key string, body io.ReadSeeker, contentType string) error

	// URL returns the public address of key.
	URL(key string) string
}

// ObjectKey places an asset filename under the mirror prefix.
func ObjectKey(prefix, filename string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return filename
	}
	return path.Join(prefix, filename)
}

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
}

// ContentType returns the MIME type stored with a mirrored asset.
func ContentType(filename string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}
