// Package logger builds the zap logger shared by every judgebox component.
//
// Entries go to stderr in both modes so that stdout stays free for the MCP
// stdio transport. Components derive named children:
//
//	log, err := logger.NewFromConfig(cfg)
//	if err != nil {
//	    return err
//	}
//	log = log.Named("pipeline")
//	log.Info("pipeline started", zap.Int("workers", 2))
package logger
