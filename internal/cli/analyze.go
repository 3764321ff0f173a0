package cli

import (
	"fmt"

	"github.com/timmy/mudozzal/internal/logger"
	"github.com/timmy/mudozzal/internal/service"
)

// Execute implements the go-flags Commander interface for AnalyzeCommand.
func (c *AnalyzeCommand) Execute(args []string) error {
	env, err := setup(c.globals, "analyze")
	if err != nil {
		return err
	}
	defer env.close()
	cfg := env.cfg

	if err := cfg.RequireVLMKey(); err != nil {
		return err
	}

	vlm := service.NewVLMService(&service.VLMConfig{
		Provider:    cfg.VLM.Provider,
		Model:       cfg.VLM.Model,
		APIKey:      cfg.VLM.APIKey,
		BaseURL:     cfg.VLM.BaseURL,
		Temperature: cfg.VLM.Temperature,
		MaxTokens:   cfg.VLM.MaxTokens,
		Timeout:     cfg.VLM.Timeout,
	})
	env.log.WithFields(logger.Fields{
		"provider": vlm.GetProvider(),
		"model":    vlm.GetModel(),
	}).Debug("Vision model configured")

	svc := service.NewClassifyService(env.store, vlm, service.ClassifyConfig{
		Interval:  cfg.Classify.Interval,
		MinAspect: cfg.Classify.MinAspect,
		MaxAspect: cfg.Classify.MaxAspect,
	})
	stats, err := svc.Run(env.ctx, service.ClassifyOptions{
		Limit:     c.Limit,
		Reanalyze: c.Reanalyze,
	})
	if err != nil {
		return err
	}

	env.finish(stats.Accepted + stats.Rejected + stats.PreFiltered)
	fmt.Printf("Analyzed %d images: %d accepted, %d rejected, %d pre-filtered, %d failed. Analysis total: %d\n",
		stats.Candidates, stats.Accepted, stats.Rejected, stats.PreFiltered, stats.Failed, stats.TotalAnalyzed)
	if stats.QuotaExhausted {
		fmt.Println("Vision model quota exhausted. Progress was saved; run analyze again later.")
	}
	return nil
}
