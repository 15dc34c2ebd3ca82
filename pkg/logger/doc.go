// Package logger provides structured logging for pixscrape.
//
// It wraps zerolog behind the Logger interface so components can take an
// injected logger and tests can swap in NewTestLogger or NewNopLogger.
//
// Basic Usage:
//
//	logger.Initialize(&cfg.Logging)
//	logger.GetLogger().Info("harvest started")
//
// Components receive a Logger and attach their own fields:
//
//	log := logger.GetLogger().WithField("run_id", runID)
//	log.InfoWithFields("page fetched", map[string]interface{}{
//	    "page":    2,
//	    "fetched": 200,
//	})
package logger
