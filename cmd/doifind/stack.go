package main

import (
	"log/slog"
	"os"

	"doifind/internal/config"
	"doifind/internal/job"
	"doifind/internal/logging"
	"doifind/internal/match"
	"doifind/internal/resolve"
	"doifind/internal/source"
)

// loadStack builds the pieces every subcommand shares: config, logger,
// and the resolution pipeline.
func loadStack() (*config.Config, *slog.Logger, *resolve.Resolver, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, withExitCode(ExitConfigError, err)
	}
	logger, err := logging.New(os.Stderr, logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, nil, nil, withExitCode(ExitConfigError, err)
	}

	crOpts := []source.CrossRefOption{source.WithCrossRefRate(cfg.Sources.CrossRefRPS)}
	if cfg.Sources.Mailto != "" {
		crOpts = append(crOpts, source.WithCrossRefMailto(cfg.Sources.Mailto))
	}
	sources := []source.Source{
		source.NewPubMed(source.WithPubMedRate(cfg.Sources.PubMedRPS)),
		source.NewCrossRef(crOpts...),
	}

	resolver := resolve.New(match.NewScorer(cfg.Pipeline.Threshold), logger, sources)
	return cfg, logger, resolver, nil
}

// openStore picks the configured job store backend. The returned cleanup
// is a no-op for the memory store.
func openStore(cfg *config.Config) (job.Store, func() error, error) {
	if cfg.Store.Backend == "sqlite" {
		s, err := job.OpenSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return job.NewMemoryStore(), func() error { return nil }, nil
}
