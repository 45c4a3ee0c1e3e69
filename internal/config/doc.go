// Package config loads, normalizes, and validates submux configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SUBMUX_API_TOKEN. The Config type centralizes every knob the service and
// CLI need, so download directories, encoder resources, and API credentials
// are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
