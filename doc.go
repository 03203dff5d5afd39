// Package scigowine trains a gradient boosting classifier on the wine
// recognition dataset and records the run on an experiment tracker.
//
// # Overview
//
// A run loads the 178-sample wine data, holds out 25% for evaluation, fits
// a multiclass booster for ten rounds, and logs holdout accuracy, macro F1
// and three performance charts (ROC, confusion matrix, precision-recall).
// Under CI the run is tagged "ci-pipeline" and its ID is written to
// experiment_id.txt for later pipeline steps.
//
// # Packages
//
//   - config: fixed hyperparameters and environment settings
//   - sklearn/datasets: the wine data (bundled, cached or downloaded)
//   - sklearn/model_selection: random train/test split
//   - sklearn/lightgbm: histogram-based gradient boosting, multiclass softmax
//   - metrics: accuracy, F1, ROC and precision-recall curves
//   - plots: chart construction and PNG rendering with gonum/plot
//   - tracking: experiment tracking backends (HTTP, offline files, memory)
//   - pipeline: one tracked training run end to end
//   - pkg/errors, pkg/log: typed errors and structured logging
//
// # Quick Start
//
//	TRACKING_PROJECT=team/wine TRACKING_API_TOKEN=... TRACKING_URL=https://tracker.example.com \
//	    go run ./cmd/train
//
// Without a tracking server, TRACKING_MODE=offline writes the run to
// .tracking/<run-id>/run.yaml and TRACKING_MODE=debug keeps it in memory.
//
// From Go:
//
//	session, err := tracking.Open(ctx, tracking.Options{Mode: tracking.ModeOffline})
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//	res, err := pipeline.Run(ctx, session, pipeline.Options{})
//
// # Error Handling
//
// Errors are built on github.com/cockroachdb/errors and carry stack traces.
// Typed errors (ShapeMismatchError, InvalidParameterError,
// AuthenticationError, ConnectivityError) can be matched with errors.As.
// A run never retries; the first failure aborts it.
package scigowine
