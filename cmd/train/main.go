// Command train fits a multiclass gradient boosting model on the wine data
// and records the run on the configured tracking backend.
//
// Settings come from the environment (see package config):
//
//	TRACKING_PROJECT, TRACKING_API_TOKEN, TRACKING_URL  sync backend
//	TRACKING_MODE        sync | offline | debug
//	TRACKING_CONFIG      optional YAML file with the same settings
//	SPLIT_SEED           fixes the train/test split
//	CI                   "true" tags the run and writes experiment_id.txt
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/scigo-wine/config"
	"github.com/YuminosukeSato/scigo-wine/pipeline"
	"github.com/YuminosukeSato/scigo-wine/pkg/errors"
	"github.com/YuminosukeSato/scigo-wine/pkg/log"
	"github.com/YuminosukeSato/scigo-wine/sklearn/datasets"
	"github.com/YuminosukeSato/scigo-wine/tracking"
)

func main() {
	if err := run(); err != nil {
		log.GetLogger().Error("Training run failed", err)
		os.Exit(1)
	}
}

func run() error {
	env, err := config.LoadEnv()
	if err != nil {
		return errors.Wrap(err, "load environment")
	}
	if err := log.Setup(env.LogLevel, env.LogFormat, os.Stderr); err != nil {
		return errors.Wrap(err, "configure logging")
	}
	logger := log.GetLoggerWithName("train")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := tracking.Open(ctx, tracking.Options{
		Mode:       env.Mode,
		Project:    env.Project,
		APIToken:   env.APIToken,
		URL:        env.URL,
		OfflineDir: env.OfflineDir,
		Timeout:    env.Timeout,
	})
	if err != nil {
		return errors.Wrap(err, "open tracking session")
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Warn("Failed to close tracking session", log.ErrorTypeKey, cerr.Error())
		}
	}()

	res, err := pipeline.Run(ctx, session, pipeline.Options{
		Params:        config.Default(),
		NumBoostRound: config.NumBoostRound,
		TestSize:      config.TestSize,
		RunName:       config.ExperimentName,
		Seed:          env.SplitSeed,
		CI:            env.CI,
		DataOptions:   []datasets.Option{datasets.WithDataHome(env.DataHome)},
	})
	if err != nil {
		return err
	}

	logger.Info("Training run complete",
		log.RunIDKey, res.RunID,
		log.BackendKey, env.Mode,
		log.AccuracyKey, res.Scores.Accuracy,
		log.F1ScoreKey, res.Scores.F1Macro,
	)
	return nil
}
