package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/timmy/mudozzal/internal/domain"
	"github.com/timmy/mudozzal/internal/logger"
	"github.com/timmy/mudozzal/internal/source"
	"github.com/timmy/mudozzal/internal/store"
)

// allowedExtensions are kept from the source URL; anything else is stored as .jpg.
var allowedExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".svg": {},
}

const defaultExtension = ".jpg"

// CollectService gathers candidate images into the raw image store.
type CollectService struct {
	store    *store.ContentStore
	searcher source.ImageSearcher
	fetcher  Fetcher
	cfg      CollectConfig
	now      func() time.Time
}

// CollectConfig holds configuration for the collector.
type CollectConfig struct {
	MinBytes        int
	MaxBytes        int
	KeywordInterval time.Duration
	URLInterval     time.Duration
	FilenamePrefix  string
}

// CollectStats holds statistics for a collection run.
type CollectStats struct {
	Keywords   int
	Candidates int
	Collected  int
	Duplicates int
	Filtered   int
	Failed     int
	Total      int // manifest size after the run
}

// NewCollectService creates a collector.
// Parameters:
//   - st: content store for the manifest and raw images.
//   - searcher: keyword image search; may be nil when only URL mode is used.
//   - fetcher: image downloader.
//   - cfg: size filter, pacing and filename prefix.
//
// Returns:
//   - *CollectService: collector ready for either intake mode.
func NewCollectService(st *store.ContentStore, searcher source.ImageSearcher, fetcher Fetcher, cfg CollectConfig) *CollectService {
	if cfg.FilenamePrefix == "" {
		cfg.FilenamePrefix = "mudo"
	}
	return &CollectService{
		store:    st,
		searcher: searcher,
		fetcher:  fetcher,
		cfg:      cfg,
		now:      time.Now,
	}
}

// CollectFromSearch searches every keyword and stores each new image.
// Search or download failures are logged and skipped; only store errors are returned.
// Parameters:
//   - ctx: run context; cancellation stops after the current keyword.
//   - keywords: search terms in processing order.
//
// Returns:
//   - *CollectStats: counts for the run and the manifest size after it.
//   - error: non-nil when no searcher is configured or the store fails.
func (s *CollectService) CollectFromSearch(ctx context.Context, keywords []string) (*CollectStats, error) {
	if s.searcher == nil {
		return nil, fmt.Errorf("no image searcher configured")
	}
	ctx = logger.SetStage(ctx, "collect")
	log := logger.FromContext(ctx)

	manifest, err := s.store.LoadManifest()
	if err != nil {
		return nil, err
	}

	stats := &CollectStats{}
	th := newThrottle(s.cfg.KeywordInterval)

	log.WithFields(logger.Fields{
		logger.FieldCount: len(keywords),
		"existing":        manifest.Len(),
		"source":          s.searcher.GetSourceID(),
	}).Info("Starting keyword collection")

	for i, keyword := range keywords {
		if err := th.Wait(ctx); err != nil {
			log.Warn("Collection canceled")
			break
		}
		stats.Keywords++
		kwLog := log.WithFields(logger.Fields{
			logger.FieldKeyword: keyword,
			"progress":          fmt.Sprintf("%d/%d", i+1, len(keywords)),
		})

		candidates, err := s.searcher.Search(ctx, keyword)
		if err != nil {
			kwLog.WithError(err).Warn("Search failed, moving to next keyword")
			continue
		}
		stats.Candidates += len(candidates)

		added := 0
		for _, c := range candidates {
			if ctx.Err() != nil {
				break
			}
			if c.URL == "" {
				continue
			}
			entry := domain.ManifestEntry{
				SourceURL:   c.URL,
				SourceTitle: c.Title,
				SourceSite:  c.Source,
				Keyword:     keyword,
				Width:       c.Width,
				Height:      c.Height,
			}
			switch s.collectOne(ctx, manifest, entry, true, stats) {
			case outcomeAdded:
				added++
			case outcomeFailed:
				kwLog.WithField("url", c.URL).Debug("Download failed")
			}
		}

		if err := s.store.SaveManifest(manifest); err != nil {
			return stats, err
		}
		kwLog.WithFields(logger.Fields{
			"added":     added,
			"collected": stats.Collected,
			"total":     manifest.Len(),
		}).Info("Keyword done")

		if ctx.Err() != nil {
			log.Warn("Collection canceled")
			break
		}
	}

	stats.Total = manifest.Len()
	log.WithFields(logger.Fields{
		"keywords":   stats.Keywords,
		"candidates": stats.Candidates,
		"collected":  stats.Collected,
		"duplicates": stats.Duplicates,
		"filtered":   stats.Filtered,
		"failed":     stats.Failed,
		"total":      stats.Total,
	}).Info("Keyword collection completed")
	return stats, nil
}

// CollectFromURLs downloads an explicit URL list. No size filter applies.
// Parameters:
//   - ctx: run context; the manifest is still saved on cancellation.
//   - urls: image URLs in processing order.
//
// Returns:
//   - *CollectStats: counts for the run and the manifest size after it.
//   - error: non-nil only when the store fails.
func (s *CollectService) CollectFromURLs(ctx context.Context, urls []string) (*CollectStats, error) {
	ctx = logger.SetStage(ctx, "collect")
	log := logger.FromContext(ctx)

	manifest, err := s.store.LoadManifest()
	if err != nil {
		return nil, err
	}

	stats := &CollectStats{}
	th := newThrottle(s.cfg.URLInterval)

	log.WithFields(logger.Fields{
		logger.FieldCount: len(urls),
		"existing":        manifest.Len(),
	}).Info("Starting URL collection")

	for i, u := range urls {
		if err := th.Wait(ctx); err != nil {
			log.Warn("Collection canceled")
			break
		}
		stats.Candidates++
		urlLog := log.WithFields(logger.Fields{
			"url":      u,
			"progress": fmt.Sprintf("%d/%d", i+1, len(urls)),
		})

		entry := domain.ManifestEntry{SourceURL: u, Keyword: domain.KeywordManual}
		switch s.collectOne(ctx, manifest, entry, false, stats) {
		case outcomeAdded:
			urlLog.WithField(logger.FieldFilename, manifest.Images[manifest.Len()-1].Filename).Info("Saved")
		case outcomeDuplicate:
			urlLog.Info("Duplicate image, skipped")
		case outcomeFailed:
			urlLog.Warn("Download failed")
		}
	}

	if err := s.store.SaveManifest(manifest); err != nil {
		return stats, err
	}

	stats.Total = manifest.Len()
	log.WithFields(logger.Fields{
		"collected":  stats.Collected,
		"duplicates": stats.Duplicates,
		"failed":     stats.Failed,
		"total":      stats.Total,
	}).Info("URL collection completed")
	return stats, nil
}

type collectOutcome int

const (
	outcomeAdded collectOutcome = iota
	outcomeDuplicate
	outcomeFiltered
	outcomeFailed
)

// collectOne downloads entry.SourceURL and, when new, writes the image and
// appends entry to manifest.
func (s *CollectService) collectOne(ctx context.Context, manifest *domain.Manifest, entry domain.ManifestEntry, sizeFilter bool, stats *CollectStats) collectOutcome {
	data, err := s.fetcher.Fetch(ctx, entry.SourceURL)
	if err != nil {
		stats.Failed++
		return outcomeFailed
	}

	if sizeFilter && (len(data) < s.cfg.MinBytes || (s.cfg.MaxBytes > 0 && len(data) > s.cfg.MaxBytes)) {
		stats.Filtered++
		return outcomeFiltered
	}

	hash := hashBytes(data)
	if manifest.HasHash(hash) {
		stats.Duplicates++
		return outcomeDuplicate
	}

	entry.Hash = hash
	entry.Filename = s.uniqueFilename(manifest, hash, extensionFromURL(entry.SourceURL))
	entry.DownloadedAt = s.now().UTC()
	entry.Status = domain.ImageStatusPending

	if err := s.store.WriteImage(entry.Filename, data); err != nil {
		logger.CtxWarn(ctx, "Failed to write image %s: %v", entry.Filename, err)
		stats.Failed++
		return outcomeFailed
	}
	if err := manifest.Add(entry); err != nil {
		stats.Failed++
		return outcomeFailed
	}
	stats.Collected++
	return outcomeAdded
}

// uniqueFilename builds <prefix>_<unixMillis>_<hash8><ext>, adding a counter
// when the name is already taken in the manifest or on disk.
func (s *CollectService) uniqueFilename(manifest *domain.Manifest, hash, ext string) string {
	base := fmt.Sprintf("%s_%d_%s", s.cfg.FilenamePrefix, s.now().UnixMilli(), hash[:8])
	name := base + ext
	for n := 1; manifest.HasFilename(name) || s.store.ImageExists(name); n++ {
		name = fmt.Sprintf("%s_%d%s", base, n, ext)
	}
	return name
}

// hashBytes returns the lowercase hex MD5 of data.
func hashBytes(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// extensionFromURL returns the lowercase extension of the URL path when it
// is a known image type, otherwise .jpg.
func extensionFromURL(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if _, ok := allowedExtensions[ext]; ok {
		return ext
	}
	return defaultExtension
}
