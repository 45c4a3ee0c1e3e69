// Package daemon coordinates the long-running submux service.
//
// It wires configuration, the session store, the mailbox transport, intake,
// the job orchestrator, and the HTTP API into a single lifecycle with
// flock-based locking to prevent two instances from sharing one state
// directory. A janitor sweeps abandoned sessions, orphaned upload files,
// unclaimed deliveries, and old logs on a fixed interval.
//
// Keep orchestration logic here: job and intake behavior belongs in their
// own packages while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
