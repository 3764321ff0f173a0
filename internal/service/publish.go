package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/timmy/mudozzal/internal/domain"
	"github.com/timmy/mudozzal/internal/logger"
	"github.com/timmy/mudozzal/internal/storage"
	"github.com/timmy/mudozzal/internal/store"
)

// ErrMissingProvenance is returned by an incremental run when published memes
// cannot be traced back to their source images.
var ErrMissingProvenance = errors.New("published dataset has no provenance")

// PublishService turns accepted analysis entries into the public dataset.
type PublishService struct {
	store  *store.ContentStore
	mirror storage.AssetMirror
	cfg    PublishConfig
}

// PublishConfig holds configuration for the publisher.
type PublishConfig struct {
	FilenamePrefix string // public asset name prefix, "meme"
	URLPrefix      string // imageUrl prefix, "/memes"
	Placeholders   bool   // compute blurhash placeholders
	MirrorPrefix   string // object key prefix for mirrored assets
}

// PublishOptions selects how a run merges into the existing dataset.
type PublishOptions struct {
	Rebuild bool // renumber from 1, ignoring the existing dataset
	DryRun  bool // compute and log only
}

// PublishStats holds statistics for a publish run.
type PublishStats struct {
	Analyzed      int
	Relevant      int
	Added         int
	MissingSource int
	Failed        int
	MirrorFailed  int
	Total         int // published dataset size after the run
	DryRun        bool
}

// NewPublishService creates a publisher.
// Parameters:
//   - st: content store with the analysis set, raw images and datasets.
//   - mirror: optional remote copy of public assets; nil disables mirroring.
//   - cfg: asset naming, URL prefix and placeholder settings.
//
// Returns:
//   - *PublishService: publisher ready to Run.
func NewPublishService(st *store.ContentStore, mirror storage.AssetMirror, cfg PublishConfig) *PublishService {
	if cfg.FilenamePrefix == "" {
		cfg.FilenamePrefix = "meme"
	}
	cfg.URLPrefix = strings.TrimSuffix(cfg.URLPrefix, "/")
	return &PublishService{
		store:  st,
		mirror: mirror,
		cfg:    cfg,
	}
}

// Run publishes relevant analysis entries that are not yet in the dataset.
// Re-running with no new entries writes nothing.
// Parameters:
//   - ctx: run context; cancellation stops at the next entry.
//   - opts: rebuild and dry-run modes.
//
// Returns:
//   - *PublishStats: counts for the run and the dataset size after it.
//   - error: non-nil when the store fails or an incremental run lacks provenance.
func (s *PublishService) Run(ctx context.Context, opts PublishOptions) (*PublishStats, error) {
	ctx = logger.SetStage(ctx, "publish")
	log := logger.FromContext(ctx)
	stats := &PublishStats{DryRun: opts.DryRun}

	analysis, err := s.store.LoadAnalysis()
	if err != nil {
		return nil, err
	}
	stats.Analyzed = analysis.Len()
	if stats.Analyzed == 0 {
		log.Info("No analysis data, nothing to build")
		return stats, nil
	}

	relevant := analysis.Relevant()
	stats.Relevant = len(relevant)

	var memes []domain.PublishedMeme
	if !opts.Rebuild {
		memes, err = s.store.LoadPublished()
		if err != nil {
			return nil, err
		}
	}
	if memes == nil {
		memes = []domain.PublishedMeme{}
	}

	recovered := 0
	if !opts.Rebuild {
		recovered, err = s.recoverProvenance(ctx, memes, relevant)
		if err != nil {
			return nil, err
		}
	}

	published := domain.PublishedSources(memes)
	toAdd := make([]domain.AnalysisEntry, 0, len(relevant))
	for _, e := range relevant {
		if _, ok := published[e.Filename]; !ok {
			toAdd = append(toAdd, e)
		}
	}

	log.WithFields(logger.Fields{
		"analyzed": stats.Analyzed,
		"relevant": stats.Relevant,
		"existing": len(memes),
		"new":      len(toAdd),
		"rebuild":  opts.Rebuild,
		"dry_run":  opts.DryRun,
	}).Info("Starting publish")

	if len(toAdd) == 0 && !opts.Rebuild {
		stats.Total = len(memes)
		if recovered > 0 && !opts.DryRun {
			if err := s.store.SavePublished(memes); err != nil {
				return stats, err
			}
		}
		log.Info("No new memes to publish")
		return stats, nil
	}

	nextID := domain.NextID(memes)
	for _, entry := range toAdd {
		if ctx.Err() != nil {
			log.Warn("Publish canceled")
			break
		}
		itemLog := log.WithField(logger.FieldFilename, entry.Filename)

		if !s.store.ImageExists(entry.Filename) {
			stats.MissingSource++
			itemLog.Warn("Source image missing, skipped")
			continue
		}

		dest := s.assetName(nextID, entry.Filename)
		if !opts.DryRun {
			if err := s.store.CopyAsset(s.store.ImagePath(entry.Filename), s.store.AssetPath(dest)); err != nil {
				stats.Failed++
				itemLog.WithError(err).Warn("Failed to copy asset, skipped")
				continue
			}
		}

		meme := s.buildMeme(nextID, dest, entry)
		if s.cfg.Placeholders {
			s.attachPlaceholder(ctx, &meme, entry.Filename)
		}
		if s.mirror != nil && !opts.DryRun {
			if err := s.mirrorAsset(ctx, dest, opts.Rebuild); err != nil {
				stats.MirrorFailed++
				itemLog.WithError(err).Warn("Failed to mirror asset")
			}
		}

		memes = append(memes, meme)
		stats.Added++
		nextID++
		itemLog.WithFields(logger.Fields{
			"id":    meme.ID,
			"title": meme.Title,
			"asset": dest,
		}).Debug("Published")
	}

	stats.Total = len(memes)
	if !opts.DryRun {
		if err := s.store.SavePublished(memes); err != nil {
			return stats, err
		}
	}

	log.WithFields(logger.Fields{
		"added":          stats.Added,
		"missing_source": stats.MissingSource,
		"failed":         stats.Failed,
		"mirror_failed":  stats.MirrorFailed,
		"total":          stats.Total,
		"dry_run":        opts.DryRun,
	}).Info("Publish completed")
	return stats, nil
}

// recoverProvenance fills SourceFile on memes read from the public dataset,
// which carries none, by matching each public asset against the raw images
// of candidates. Memes whose asset is gone cannot be matched, and an
// incremental run would publish their source again, so that is an error.
func (s *PublishService) recoverProvenance(ctx context.Context, memes []domain.PublishedMeme, candidates []domain.AnalysisEntry) (int, error) {
	var orphans []int
	for i := range memes {
		if memes[i].SourceFile == "" {
			orphans = append(orphans, i)
		}
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	sources := make(map[string]string, len(candidates))
	for _, e := range candidates {
		data, err := s.store.ReadImage(e.Filename)
		if err != nil {
			continue
		}
		if h := hashBytes(data); sources[h] == "" {
			sources[h] = e.Filename
		}
	}

	recovered, lost := 0, 0
	for _, i := range orphans {
		data, err := os.ReadFile(s.store.AssetPath(path.Base(memes[i].ImageURL)))
		if err != nil {
			lost++
			continue
		}
		if src, ok := sources[hashBytes(data)]; ok {
			memes[i].SourceFile = src
			recovered++
		}
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		"without_provenance": len(orphans),
		"recovered":          recovered,
		"asset_missing":      lost,
	}).Warn("Provenance file missing, matched public assets to source images")

	if lost > 0 {
		return recovered, fmt.Errorf("%w: %d published assets are missing; run publish --rebuild", ErrMissingProvenance, lost)
	}
	return recovered, nil
}

// assetName derives the public filename from the id and the source extension.
func (s *PublishService) assetName(id int, source string) string {
	ext := strings.ToLower(filepath.Ext(source))
	if ext == "" {
		ext = defaultExtension
	}
	return fmt.Sprintf("%s_%d%s", s.cfg.FilenamePrefix, id, ext)
}

func (s *PublishService) buildMeme(id int, dest string, e domain.AnalysisEntry) domain.PublishedMeme {
	tags := make([]string, 0, len(e.Tags))
	tags = append(tags, e.Tags...)

	return domain.PublishedMeme{
		ID:          fmt.Sprint(id),
		Title:       orDefault(e.Title, domain.DefaultTitle),
		Tags:        tags,
		Situation:   e.Situation,
		Episode:     orDefault(e.Episode, domain.DefaultUnknown),
		Description: e.Description,
		ImageURL:    s.cfg.URLPrefix + "/" + dest,
		Member:      orDefault(e.Member, domain.DefaultUnknown),
		SourceFile:  e.Filename,
	}
}

func (s *PublishService) attachPlaceholder(ctx context.Context, meme *domain.PublishedMeme, filename string) {
	data, err := s.store.ReadImage(filename)
	if err != nil {
		return
	}
	hash, err := computeBlurHash(data)
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField(logger.FieldFilename, filename).Debug("No placeholder for image")
		return
	}
	meme.BlurHash = hash
}

// mirrorAsset uploads a public asset. Existing objects are kept unless
// overwrite is set, since a rebuild can reuse a name for different content.
func (s *PublishService) mirrorAsset(ctx context.Context, dest string, overwrite bool) error {
	key := storage.ObjectKey(s.cfg.MirrorPrefix, dest)
	if !overwrite {
		exists, err := s.mirror.Has(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
	}

	f, err := os.Open(s.store.AssetPath(dest))
	if err != nil {
		return fmt.Errorf("failed to open asset: %w", err)
	}
	defer f.Close()
	return s.mirror.Put(ctx, key, f, storage.ContentType(dest))
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
