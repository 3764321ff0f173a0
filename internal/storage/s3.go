package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Provider names an S3-compatible object store.
type Provider string

const (
	ProviderAWS     Provider = "s3"
	ProviderR2      Provider = "r2"
	ProviderGeneric Provider = "s3compatible"
)

// assetCacheControl is sent with every upload. Asset names only change
// content on a rebuild, which re-uploads them.
const assetCacheControl = "public, max-age=86400"

// S3Config configures the bucket that mirrors published assets.
type S3Config struct {
	Provider  Provider // detected from Endpoint when empty
	Endpoint  string   // host[:port], scheme optional; empty for AWS
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
	PublicURL string // CDN or r2.dev prefix for asset URLs
}

// S3Mirror mirrors assets into an S3-compatible bucket.
type S3Mirror struct {
	client    *s3.Client
	bucket    string
	provider  Provider
	publicURL string
}

// NewMirror builds an S3Mirror from cfg.
func NewMirror(cfg *S3Config) (*S3Mirror, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("mirror bucket is required")
	}
	host := endpointHost(cfg.Endpoint)
	provider := cfg.Provider
	if provider == "" {
		provider = detectProvider(host)
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(resolveRegion(provider, cfg.Region)),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	base := ""
	if host != "" {
		base = scheme(cfg.UseSSL) + "://" + host
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if base != "" {
			o.BaseEndpoint = aws.String(base)
			o.UsePathStyle = true
		}
	})

	publicURL := strings.TrimSuffix(cfg.PublicURL, "/")
	switch {
	case publicURL != "":
	case base == "":
		publicURL = fmt.Sprintf("https://%s.s3.amazonaws.com", cfg.Bucket)
	default:
		publicURL = base + "/" + cfg.Bucket
	}

	return &S3Mirror{
		client:    client,
		bucket:    cfg.Bucket,
		provider:  provider,
		publicURL: publicURL,
	}, nil
}

// Provider returns the detected or configured provider.
func (m *S3Mirror) Provider() Provider {
	return m.provider
}

// Prepare checks that the bucket is reachable and creates it when missing.
// R2 buckets must be created from the Cloudflare dashboard.
func (m *S3Mirror) Prepare(ctx context.Context) error {
	if _, err := m.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(m.bucket)}); err == nil {
		return nil
	}
	if m.provider == ProviderR2 {
		return fmt.Errorf("bucket %s not found; create it in the R2 dashboard", m.bucket)
	}
	if _, err := m.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(m.bucket)}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", m.bucket, err)
	}
	return nil
}

// Has reports whether key exists in the bucket.
func (m *S3Mirror) Has(ctx context.Context, key string) (bool, error) {
	_, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) || strings.Contains(err.Error(), "StatusCode: 404") {
		return false, nil
	}
	return false, fmt.Errorf("failed to check %s: %w", key, err)
}

// Put uploads body under key.
func (m *S3Mirror) Put(ctx context.Context, key string, body io.ReadSeeker, contentType string) error {
	size, err := body.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return err
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String(assetCacheControl),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// URL returns the public address of key.
func (m *S3Mirror) URL(key string) string {
	return m.publicURL + "/" + key
}

func detectProvider(host string) Provider {
	host = strings.ToLower(host)
	switch {
	case strings.HasSuffix(host, ".r2.cloudflarestorage.com"):
		return ProviderR2
	case host == "" || strings.HasSuffix(host, ".amazonaws.com"):
		return ProviderAWS
	default:
		return ProviderGeneric
	}
}

func resolveRegion(provider Provider, region string) string {
	if region != "" {
		return region
	}
	if provider == ProviderR2 {
		return "auto"
	}
	return "us-east-1"
}

// endpointHost strips the scheme and any path from endpoint.
func endpointHost(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	host, _, _ := strings.Cut(endpoint, "/")
	return host
}

func scheme(useSSL bool) string {
	if useSSL {
		return "https"
	}
	return "http"
}
