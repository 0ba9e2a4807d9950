// Package logger provides the structured logging interface used across ighashtag.
//
// It wraps zerolog behind a small Logger interface with support for:
//   - levels (Debug, Info, Warn, Error)
//   - structured fields via WithField / WithFields / WithError
//   - pretty console output, optionally mirrored to a file
//   - a global instance for the CLI and an in-memory TestLogger for tests
//
// Basic usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.ForInvocation(logger.GetLogger(), invocationID)
//	log.WithField("run_id", runID).Info("Run started")
package logger
