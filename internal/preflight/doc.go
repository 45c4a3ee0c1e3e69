// Package preflight provides readiness checks for the binaries, resources,
// and filesystem paths that submux depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failed check, and
//     intake calls EnsureFreeSpace before accepting an upload.
//   - The CLI "submux status" command renders the same results as a table.
//
// Optional integrations (ntfy) are only checked when configured.
package preflight
