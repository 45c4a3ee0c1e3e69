// Package api serves the HTTP interface that remote clients use to upload
// media, tune encoding preferences, start and cancel mux jobs, read status
// messages, and download finished files.
//
// Routes are registered on a gorilla/mux router. Every /api route passes
// through request-id tagging, Prometheus instrumentation, bearer-token
// authentication when api.token is set, and the user allow-list. Handlers
// translate service errors to HTTP statuses by their services marker.
package api
