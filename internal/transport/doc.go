// Package transport delivers status text and finished files to remote users.
//
// A Transport sends messages, edits previously sent messages, and delivers
// files. StatusMessage layers a single editable status line on top of a
// Transport so that encoder progress replaces itself instead of flooding the
// user. Retry wraps any Transport with the one-retry policy used by mux jobs.
//
// Two implementations ship with submux: Mailbox keeps per-user message logs in
// memory and stages deliveries under the outbox directory for the HTTP API,
// and Console prints to a writer for one-shot CLI commands.
package transport
