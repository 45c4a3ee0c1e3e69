// Package notifications sends operator alerts through ntfy.
//
// The mux pipeline publishes job completion and failure events here; when no
// ntfy topic is configured, NewService returns a no-op implementation so
// callers never need to check configuration themselves.
package notifications
