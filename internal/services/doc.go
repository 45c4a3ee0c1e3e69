// Package services defines shared utilities consumed by the mux pipeline and
// its adapters.
//
// Key responsibilities:
//   - Context helpers that stamp user IDs, job IDs, mux modes, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures with errors.Is and pick the right user-facing message.
//
// Use these helpers when wiring new pipeline logic so error handling and
// observability stay uniform.
package services
