package cli

import (
	"errors"
	"fmt"

	"github.com/timmy/mudozzal/internal/service"
	"github.com/timmy/mudozzal/internal/source/serpapi"
	"github.com/timmy/mudozzal/internal/source/urllist"
)

// Execute implements the go-flags Commander interface for CollectCommand.
func (c *CollectCommand) Execute(args []string) error {
	if c.Search == (c.URLs != "") {
		return errors.New("exactly one of --search or --urls <path> is required")
	}

	env, err := setup(c.globals, "collect")
	if err != nil {
		return err
	}
	defer env.close()
	cfg := env.cfg

	if c.Append {
		env.log.Info("Append mode: new images are added to the existing manifest")
	}

	fetcher := service.NewHTTPFetcher(&service.FetcherConfig{
		Timeout:   cfg.Collect.DownloadTimeout,
		UserAgent: cfg.Collect.UserAgent,
		MaxBytes:  max(cfg.Collect.DownloadLimit, cfg.Collect.MaxBytes),
	})
	collectCfg := service.CollectConfig{
		MinBytes:        cfg.Collect.MinBytes,
		MaxBytes:        cfg.Collect.MaxBytes,
		KeywordInterval: cfg.Collect.KeywordInterval,
		URLInterval:     cfg.Collect.URLInterval,
		FilenamePrefix:  cfg.Collect.FilenamePrefix,
	}

	var stats *service.CollectStats
	if c.Search {
		if err := cfg.RequireSearchKey(); err != nil {
			return err
		}
		keywords, err := cfg.LoadKeywords()
		if err != nil {
			return err
		}
		searcher := serpapi.NewClient(&serpapi.Config{
			APIKey:  cfg.Search.APIKey,
			BaseURL: cfg.Search.BaseURL,
			Engine:  cfg.Search.Engine,
			Results: cfg.Search.Results,
			Timeout: cfg.Search.Timeout,
		})
		svc := service.NewCollectService(env.store, searcher, fetcher, collectCfg)
		stats, err = svc.CollectFromSearch(env.ctx, keywords)
		if err != nil {
			return err
		}
	} else {
		urls, err := urllist.Read(c.URLs)
		if err != nil {
			return err
		}
		svc := service.NewCollectService(env.store, nil, fetcher, collectCfg)
		stats, err = svc.CollectFromURLs(env.ctx, urls)
		if err != nil {
			return err
		}
	}

	env.finish(stats.Collected)
	fmt.Printf("Collected %d new images (duplicates %d, filtered %d, failed %d). Manifest total: %d\n",
		stats.Collected, stats.Duplicates, stats.Filtered, stats.Failed, stats.Total)
	return nil
}
