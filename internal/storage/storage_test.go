package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProvider(t *testing.T) {
	assert.Equal(t, ProviderR2, detectProvider(endpointHost("https://abc.r2.cloudflarestorage.com")))
	assert.Equal(t, ProviderAWS, detectProvider("s3.ap-northeast-2.amazonaws.com"))
	assert.Equal(t, ProviderAWS, detectProvider(""))
	assert.Equal(t, ProviderGeneric, detectProvider("localhost:9000"))
}

func TestEndpointHost(t *testing.T) {
	assert.Equal(t, "localhost:9000", endpointHost("http://localhost:9000/"))
	assert.Equal(t, "abc.r2.cloudflarestorage.com", endpointHost("https://abc.r2.cloudflarestorage.com/bucket/x"))
	assert.Equal(t, "", endpointHost(""))
}

func TestResolveRegion(t *testing.T) {
	assert.Equal(t, "auto", resolveRegion(ProviderR2, ""))
	assert.Equal(t, "us-east-1", resolveRegion(ProviderGeneric, ""))
	assert.Equal(t, "ap-northeast-2", resolveRegion(ProviderAWS, "ap-northeast-2"))
}

func TestObjectKeyAndContentType(t *testing.T) {
	assert.Equal(t, "memes/meme_1.jpg", ObjectKey("/memes/", "meme_1.jpg"))
	assert.Equal(t, "meme_1.jpg", ObjectKey("", "meme_1.jpg"))
	assert.Equal(t, "image/jpeg", ContentType("meme_1.JPG"))
	assert.Equal(t, "image/svg+xml", ContentType("meme_2.svg"))
	assert.Equal(t, "application/octet-stream", ContentType("meme_3"))
}

func TestNewMirror_PublicURL(t *testing.T) {
	m, err := NewMirror(&S3Config{
		Endpoint:  "https://abc.r2.cloudflarestorage.com",
		AccessKey: "ak",
		SecretKey: "sk",
		UseSSL:    true,
		Bucket:    "mudo",
		PublicURL: "https://cdn.example.com/",
	})
	require.NoError(t, err)
	assert.Equal(t, ProviderR2, m.Provider())
	assert.Equal(t, "https://cdn.example.com/memes/meme_1.png", m.URL(ObjectKey("memes", "meme_1.png")))

	m, err = NewMirror(&S3Config{Endpoint: "localhost:9000", AccessKey: "ak", SecretKey: "sk", Bucket: "mudo"})
	require.NoError(t, err)
	assert.Equal(t, ProviderGeneric, m.Provider())
	assert.Equal(t, "http://localhost:9000/mudo/a.png", m.URL("a.png"))

	m, err = NewMirror(&S3Config{AccessKey: "ak", SecretKey: "sk", Bucket: "mudo"})
	require.NoError(t, err)
	assert.Equal(t, "https://mudo.s3.amazonaws.com/a.png", m.URL("a.png"))

	_, err = NewMirror(&S3Config{})
	assert.Error(t, err)
}
