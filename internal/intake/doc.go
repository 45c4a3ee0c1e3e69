// Package intake accepts uploaded videos and subtitles into a user's session.
//
// Files arrive as a local path (already downloaded by the transport), as a
// stream (multipart upload), or as an HTTP(S) URL. Every path goes through the
// same gate: the extension decides the asset kind, unsupported files are
// deleted immediately, subtitles must parse, and accepted files are moved to
// <download_dir>/<user>/<uuid>.<ext> before the session record is updated.
// A previous asset of the same kind is deleted from disk before its record is
// overwritten.
package intake
