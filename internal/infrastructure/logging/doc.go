// Package logging provides structured logging for itemkeeper.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same shape and default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "itemkeeper", "1.0.0")
//	logger.Info("starting service", "port", 3000)
//
// # Security
//
// Never log secrets, tokens or passwords. Log the user id, not the email,
// when recording authentication failures.
package logging
