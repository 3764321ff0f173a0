package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/timmy/mudozzal/internal/domain"
	"github.com/timmy/mudozzal/internal/logger"
	"github.com/timmy/mudozzal/internal/prompts"
	"github.com/timmy/mudozzal/internal/store"
	_ "golang.org/x/image/webp"
)

// ClassifyService runs collected images through the vision model and
// records which ones are relevant memes.
type ClassifyService struct {
	store *store.ContentStore
	vlm   VisionClassifier
	cfg   ClassifyConfig
	now   func() time.Time
}

// ClassifyConfig holds configuration for the classifier.
type ClassifyConfig struct {
	Interval  time.Duration // minimum gap between model calls
	MinAspect float64       // width/height lower bound, 0 disables
	MaxAspect float64       // width/height upper bound, 0 disables
}

// ClassifyOptions selects what a run processes.
type ClassifyOptions struct {
	Limit     int  // max candidates, 0 for all
	Reanalyze bool // process every manifest entry again
}

// ClassifyStats holds statistics for a classification run.
type ClassifyStats struct {
	Candidates     int
	Accepted       int
	Rejected       int
	PreFiltered    int
	Failed         int
	Missing        int
	QuotaExhausted bool
	TotalAnalyzed  int // analysis set size after the run
}

// NewClassifyService creates a classifier.
// Parameters:
//   - st: content store holding the manifest, analysis set and raw images.
//   - vlm: vision model client.
//   - cfg: call interval and aspect ratio band.
//
// Returns:
//   - *ClassifyService: classifier ready to Run.
func NewClassifyService(st *store.ContentStore, vlm VisionClassifier, cfg ClassifyConfig) *ClassifyService {
	return &ClassifyService{
		store: st,
		vlm:   vlm,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Run classifies the selected candidates one at a time. Per-item failures
// leave the item pending for a later run. A quota signal from the model
// ends the batch early; progress is saved and Run still returns nil.
// Parameters:
//   - ctx: run context; cancellation stops at the next item.
//   - opts: limit and reanalyze selection.
//
// Returns:
//   - *ClassifyStats: per-outcome counts for the run.
//   - error: non-nil only when the store cannot be read or written.
func (s *ClassifyService) Run(ctx context.Context, opts ClassifyOptions) (*ClassifyStats, error) {
	ctx = logger.SetStage(ctx, "analyze")
	log := logger.FromContext(ctx)

	manifest, err := s.store.LoadManifest()
	if err != nil {
		return nil, err
	}
	analysis, err := s.store.LoadAnalysis()
	if err != nil {
		return nil, err
	}

	stats := &ClassifyStats{}
	candidates := selectCandidates(manifest, analysis, opts.Reanalyze)
	if len(candidates) == 0 {
		adopted, err := s.adoptOrphans(ctx, manifest, analysis)
		if err != nil {
			return nil, err
		}
		candidates = adopted
	}
	if opts.Limit > 0 && len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
	}
	stats.Candidates = len(candidates)

	if len(candidates) == 0 {
		stats.TotalAnalyzed = analysis.Len()
		log.Info("Nothing to analyze")
		return stats, nil
	}

	log.WithFields(logger.Fields{
		logger.FieldCount: len(candidates),
		"reanalyze":       opts.Reanalyze,
		"limit":           opts.Limit,
	}).Info("Starting analysis")

	th := newThrottle(s.cfg.Interval)
	for i, filename := range candidates {
		if ctx.Err() != nil {
			log.Warn("Analysis canceled")
			break
		}
		entry := manifest.Find(filename)
		itemLog := log.WithFields(logger.Fields{
			logger.FieldFilename: filename,
			"progress":           fmt.Sprintf("%d/%d", i+1, len(candidates)),
		})

		data, err := s.store.ReadImage(filename)
		if err != nil {
			itemLog.WithError(err).Warn("Image file missing, skipped")
			stats.Missing++
			continue
		}

		if w, h := s.dimensions(entry, data); !s.aspectAllowed(w, h) {
			entry.MarkRejected()
			stats.PreFiltered++
			itemLog.WithFields(logger.Fields{"width": w, "height": h}).Info("Aspect ratio out of range, rejected")
			continue
		}

		if err := th.Wait(ctx); err != nil {
			log.Warn("Analysis canceled")
			break
		}

		reply, err := s.vlm.Classify(ctx, data, mimeTypeFor(filename), prompts.Classification(promptKeyword(entry.Keyword)))
		if err != nil {
			if errors.Is(err, ErrQuotaExhausted) {
				stats.QuotaExhausted = true
				itemLog.WithError(err).Error("Vision model quota exhausted, stopping batch")
				break
			}
			if ctx.Err() != nil {
				log.Warn("Analysis canceled")
				break
			}
			stats.Failed++
			itemLog.WithError(err).Warn("Classification failed, will retry on a later run")
			continue
		}
		if strings.TrimSpace(reply) == "" {
			stats.Failed++
			itemLog.Warn("Empty model response, will retry on a later run")
			continue
		}

		v, ok := parseVerdict(reply)
		if !ok || !v.relevant() {
			entry.MarkRejected()
			stats.Rejected++
			if !ok {
				itemLog.Info("No usable JSON in model response, rejected")
			} else {
				itemLog.Info("Not relevant, rejected")
			}
			if prior := analysis.Get(filename); prior != nil {
				itemLog.WithField("title", prior.Title).Debug("Keeping earlier analysis result")
			}
			continue
		}

		analysis.Upsert(v.toEntry(entry, s.now()))
		entry.MarkAccepted()
		stats.Accepted++
		itemLog.WithFields(logger.Fields{
			"title":   v.Title,
			"member":  v.Member,
			"emotion": v.Emotion,
		}).Info("Accepted")
	}

	if err := s.store.SaveManifest(manifest); err != nil {
		return stats, err
	}
	if err := s.store.SaveAnalysis(analysis); err != nil {
		return stats, err
	}

	stats.TotalAnalyzed = analysis.Len()
	summary := log.WithFields(logger.Fields{
		"accepted":       stats.Accepted,
		"rejected":       stats.Rejected,
		"prefiltered":    stats.PreFiltered,
		"failed":         stats.Failed,
		"missing":        stats.Missing,
		"total_analyzed": stats.TotalAnalyzed,
	})
	if stats.QuotaExhausted {
		summary.Warn("Analysis stopped early: vision model quota exhausted, progress saved. Retry later")
	} else {
		summary.Info("Analysis completed")
	}
	return stats, nil
}

// selectCandidates returns the filenames needing classification, in manifest order.
func selectCandidates(manifest *domain.Manifest, analysis *domain.AnalysisSet, reanalyze bool) []string {
	out := make([]string, 0)
	done := analysis.Filenames()
	for _, img := range manifest.Images {
		if _, ok := done[img.Filename]; reanalyze || (!img.Analyzed && !ok) {
			out = append(out, img.Filename)
		}
	}
	return out
}

// adoptOrphans adds image files that are in neither the manifest nor the
// analysis set to the manifest, so their outcome can be recorded.
func (s *ClassifyService) adoptOrphans(ctx context.Context, manifest *domain.Manifest, analysis *domain.AnalysisSet) ([]string, error) {
	files, err := s.store.ListImages()
	if err != nil {
		return nil, err
	}

	var adopted []string
	for _, name := range files {
		if manifest.HasFilename(name) || analysis.Has(name) {
			continue
		}
		data, err := s.store.ReadImage(name)
		if err != nil {
			continue
		}
		hash := hashBytes(data)
		if manifest.HasHash(hash) {
			logger.CtxDebug(ctx, "Orphan file %s duplicates a known image, ignored", name)
			continue
		}
		entry := domain.ManifestEntry{
			Filename:     name,
			Keyword:      domain.KeywordLocal,
			Hash:         hash,
			DownloadedAt: s.now().UTC(),
			Status:       domain.ImageStatusPending,
		}
		if err := manifest.Add(entry); err != nil {
			continue
		}
		adopted = append(adopted, name)
	}
	if len(adopted) > 0 {
		logger.CtxInfo(ctx, "Adopted %d image files missing from manifest", len(adopted))
	}
	return adopted, nil
}

// dimensions returns the known size of the image, decoding the header when
// the manifest does not record it. Zero means unknown.
func (s *ClassifyService) dimensions(entry *domain.ManifestEntry, data []byte) (int, int) {
	if entry.Width > 0 && entry.Height > 0 {
		return entry.Width, entry.Height
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func (s *ClassifyService) aspectAllowed(w, h int) bool {
	if w <= 0 || h <= 0 {
		return true
	}
	ratio := float64(w) / float64(h)
	if s.cfg.MinAspect > 0 && ratio < s.cfg.MinAspect {
		return false
	}
	if s.cfg.MaxAspect > 0 && ratio > s.cfg.MaxAspect {
		return false
	}
	return true
}

// promptKeyword drops placeholder keywords that carry no search context.
func promptKeyword(keyword string) string {
	switch keyword {
	case domain.KeywordManual, domain.KeywordLocal:
		return ""
	}
	return keyword
}

// verdict is the model's answer. Fields the model sometimes returns in the
// wrong shape are decoded leniently.
type verdict struct {
	Relevant    *bool       `json:"relevant"`
	Title       flexString  `json:"title"`
	Tags        flexStrings `json:"tags"`
	Situation   flexString  `json:"situation"`
	Description flexString  `json:"description"`
	Member      flexString  `json:"member"`
	Episode     flexString  `json:"episode"`
	Emotion     flexString  `json:"emotion"`
}

func parseVerdict(text string) (*verdict, bool) {
	var v verdict
	if !DecodeJSONObject(text, &v) {
		return nil, false
	}
	return &v, true
}

func (v *verdict) relevant() bool {
	return v.Relevant != nil && *v.Relevant
}

func (v *verdict) toEntry(img *domain.ManifestEntry, now time.Time) domain.AnalysisEntry {
	return domain.AnalysisEntry{
		Filename:    img.Filename,
		Relevant:    true,
		Title:       string(v.Title),
		Tags:        []string(v.Tags),
		Situation:   string(v.Situation),
		Description: string(v.Description),
		Member:      string(v.Member),
		Episode:     string(v.Episode),
		Emotion:     string(v.Emotion),
		SourceURL:   img.SourceURL,
		Keyword:     img.Keyword,
		AnalyzedAt:  now.UTC(),
	}
}

// flexString accepts a JSON string, a list of strings (joined with ", ")
// or a scalar.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = flexString(strings.Join(trimAll(list), ", "))
		return nil
	}
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*f = ""
		return nil
	}
	*f = flexString(fmt.Sprint(raw))
	return nil
}

// flexStrings accepts a JSON list of strings or a single comma separated string.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = trimAll(list)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		if string(bytes.TrimSpace(data)) == "null" {
			*f = nil
			return nil
		}
		return err
	}
	*f = trimAll(strings.Split(s, ","))
	return nil
}

// trimAll trims each value and drops empty ones.
func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
