package api

import (
	"time"

	"submux/internal/jobs"
	"submux/internal/session"
)

// AssetView describes one stored asset without exposing server paths.
type AssetView struct {
	OriginalName string `json:"original_name,omitempty"`
	Format       string `json:"format"`
}

// SessionView is the client representation of a user's session.
type SessionView struct {
	UserID     string           `json:"user_id"`
	Video      *AssetView       `json:"video,omitempty"`
	Subtitle   *AssetView       `json:"subtitle,omitempty"`
	OutputName string           `json:"output_name,omitempty"`
	Settings   session.Settings `json:"settings"`
	Missing    []string         `json:"missing,omitempty"`
	Job        *jobs.JobInfo    `json:"job,omitempty"`
	UpdatedAt  *time.Time       `json:"updated_at,omitempty"`
}

// UploadResponse reports an accepted upload.
type UploadResponse struct {
	Kind       string      `json:"kind"`
	Size       int64       `json:"size"`
	OutputName string      `json:"output_name,omitempty"`
	Warnings   []string    `json:"warnings,omitempty"`
	Session    SessionView `json:"session"`
}

// URLUploadRequest asks the service to fetch a video from a link.
type URLUploadRequest struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// URLUploadResponse acknowledges a background fetch. Progress and the
// result arrive as status messages.
type URLUploadResponse struct {
	Status string `json:"status"`
}

// OutputNameRequest renames the pending output.
type OutputNameRequest struct {
	Name string `json:"name"`
}

// PreferencesResponse lists resolved settings and the options per field.
type PreferencesResponse struct {
	Settings session.Settings    `json:"settings"`
	Options  map[string][]string `json:"options"`
}

// CycleResponse reports the value a field advanced to.
type CycleResponse struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// JobRequest starts a job.
type JobRequest struct {
	Mode string `json:"mode"`
}

// JobsResponse lists in-flight jobs.
type JobsResponse struct {
	Jobs []jobs.JobInfo `json:"jobs"`
}

// HealthResponse is served by /healthz.
type HealthResponse struct {
	Status     string `json:"status"`
	ActiveJobs int    `json:"active_jobs"`
}
