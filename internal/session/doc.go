// Package session persists per-user mux sessions in SQLite.
//
// A session records the uploaded video and subtitle assets, the name the
// muxed output will be delivered under, and the user's encoding preferences.
// The Store is safe for concurrent use by many users: every mutation is a
// single upsert, WAL mode lets readers proceed alongside writers, and
// concurrent writes to the same user resolve last-writer-wins.
//
// Preferences are stored as explicit optional fields and resolved against
// repository defaults through Preferences.Resolve, so the store stays the only
// source of truth for what a user picked.
package session
