// Package textutil normalizes user-supplied names before they reach the
// filesystem.
//
// Upload filenames arrive from arbitrary clients and may use decomposed
// Unicode, embedded path separators, or shell-hostile characters. The helpers
// here fold names into NFC, strip unsafe characters, and produce lowercase
// tokens suitable for per-user directory names.
package textutil
