package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"S3ArchiveBuilder/internal/config"
	"S3ArchiveBuilder/internal/logger"
	"S3ArchiveBuilder/internal/s3"
)

func loadConfig(checkPerms bool) (*config.Config, error) {
	v, err := config.Load(configPath, checkPerms)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Unmarshal(v)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	opts := logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File}
	if logLevel != "" {
		opts.Level = logLevel
	}
	return logger.New(opts)
}

func resolveRole(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	return cfg.Role
}

func newSourceClient(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("%w: source", config.ErrMissingField)
	}
	c, err := s3.New(ctx, s3.OptionsFrom(cfg.Source))
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	return c, nil
}

func newTargetClient(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	if cfg.Target == nil {
		return nil, fmt.Errorf("%w: target", config.ErrMissingField)
	}
	c, err := s3.New(ctx, s3.OptionsFrom(&cfg.Target.S3Config))
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	return c, nil
}
