// Package config handles loading and validating itemkeeper configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Overriding with ITEMKEEPER_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The JWT signing secret should be set via ITEMKEEPER_JWT_SECRET
//   - The service refuses to start without a secret of at least 32 characters
//   - The default seed user is a demo account; replace it outside development
//
// Usage:
//
//	cfg, err := config.Load("configs/itemkeeper.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ttl, _ := cfg.TokenTTL()
package config
