package cli

import (
	"fmt"

	"github.com/timmy/mudozzal/internal/service"
	"github.com/timmy/mudozzal/internal/storage"
)

// Execute implements the go-flags Commander interface for PublishCommand.
func (c *PublishCommand) Execute(args []string) error {
	env, err := setup(c.globals, "publish")
	if err != nil {
		return err
	}
	defer env.close()
	cfg := env.cfg

	var mirror storage.AssetMirror
	if cfg.Publish.Mirror.Enabled && !c.DryRun {
		if err := cfg.RequireMirror(); err != nil {
			return err
		}
		m := cfg.Publish.Mirror
		s3m, err := storage.NewMirror(&storage.S3Config{
			Provider:  storage.Provider(m.Type),
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			UseSSL:    m.UseSSL,
			Bucket:    m.Bucket,
			Region:    m.Region,
			PublicURL: m.PublicURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize asset mirror: %w", err)
		}
		if err := s3m.Prepare(env.ctx); err != nil {
			return fmt.Errorf("failed to prepare mirror bucket: %w", err)
		}
		env.log.WithField("provider", s3m.Provider()).Infof("Mirroring published assets to %s", s3m.URL(m.KeyPrefix))
		mirror = s3m
	}

	svc := service.NewPublishService(env.store, mirror, service.PublishConfig{
		FilenamePrefix: cfg.Publish.FilenamePrefix,
		URLPrefix:      cfg.Paths.PublicURLPrefix,
		Placeholders:   cfg.Publish.Placeholders,
		MirrorPrefix:   cfg.Publish.Mirror.KeyPrefix,
	})
	stats, err := svc.Run(env.ctx, service.PublishOptions{
		Rebuild: c.Rebuild,
		DryRun:  c.DryRun,
	})
	if err != nil {
		return err
	}

	env.finish(stats.Added)
	prefix := ""
	if stats.DryRun {
		prefix = "[dry-run] "
	}
	fmt.Printf("%sPublished %d new memes (missing source %d). Dataset total: %d\n",
		prefix, stats.Added, stats.MissingSource, stats.Total)
	return nil
}
