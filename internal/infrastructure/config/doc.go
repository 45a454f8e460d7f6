// Package config loads and validates the area core configuration.
//
// Load order is defaults, then the YAML file, then AREACORE_* environment
// variables. Secrets (JWT key, storage credentials, broker passwords) are
// expected to arrive through the environment.
//
// Usage:
//
//	cfg, err := config.Load("configs/areacore.yaml")
//	if err != nil {
//	    return err
//	}
package config
