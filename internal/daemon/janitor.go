package daemon

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"submux/internal/config"
	"submux/internal/intake"
	"submux/internal/jobs"
	"submux/internal/logging"
	"submux/internal/metrics"
	"submux/internal/session"
	"submux/internal/textutil"
)

const janitorInterval = 15 * time.Minute

// SweepResult contains the outcome of one cleanup pass.
type SweepResult struct {
	Sessions []string
	Removed  []string
	Errors   []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// janitor reclaims disk space held by sessions nobody finished.
type janitor struct {
	cfg    *config.Config
	store  *session.Store
	intake *intake.Service
	jobs   *jobs.Orchestrator
	logger *slog.Logger
	now    func() time.Time
}

func newJanitor(cfg *config.Config, store *session.Store, svc *intake.Service, orch *jobs.Orchestrator, logger *slog.Logger) *janitor {
	return &janitor{
		cfg:    cfg,
		store:  store,
		intake: svc,
		jobs:   orch,
		logger: logging.NewComponentLogger(logger, "janitor"),
		now:    time.Now,
	}
}

// run sweeps immediately and then every interval until ctx ends.
func (j *janitor) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		j.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sweep discards sessions idle past intake.stale_hours, removes files no
// session references, prunes unclaimed deliveries, and applies log retention.
func (j *janitor) sweep(ctx context.Context) SweepResult {
	var result SweepResult
	cutoff := j.now().Add(-j.cfg.StaleAge())

	stale, err := j.store.ListIdleSince(ctx, cutoff)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: j.store.Path(), Error: err})
	}
	for _, sess := range stale {
		if j.jobs.Busy(sess.UserID) {
			continue
		}
		removed, err := j.intake.Discard(ctx, sess.UserID)
		if err != nil {
			if !errors.Is(err, intake.ErrJobRunning) {
				result.Errors = append(result.Errors, CleanupError{Path: sess.UserID, Error: err})
			}
			continue
		}
		if removed {
			result.Sessions = append(result.Sessions, sess.UserID)
			j.logger.Info("stale session discarded",
				logging.String(logging.FieldEventType, "session_expired"),
				logging.String(logging.FieldUserID, sess.UserID),
				logging.Duration("idle", j.now().Sub(sess.UpdatedAt)),
			)
		}
	}

	live, err := j.store.List(ctx)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: j.store.Path(), Error: err})
		j.finish(result, -1)
		return result
	}
	referenced := make(map[string]struct{})
	for _, sess := range live {
		for _, asset := range []*session.Asset{sess.Video, sess.Subtitle} {
			if path := session.AssetPath(j.cfg.Paths.DownloadDir, sess.UserID, asset); path != "" {
				referenced[path] = struct{}{}
			}
		}
	}
	busy := make(map[string]struct{})
	for _, info := range j.jobs.Active() {
		busy[textutil.SanitizeToken(info.UserID)] = struct{}{}
	}

	j.sweepTree(j.cfg.Paths.DownloadDir, cutoff, referenced, busy, &result)
	j.sweepTree(j.cfg.Paths.OutboxDir, cutoff, nil, nil, &result)

	logging.CleanupOldLogs(j.logger, j.cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:     j.cfg.Paths.LogDir,
		Pattern: "*.log*",
		Exclude: []string{filepath.Join(j.cfg.Paths.LogDir, logging.LogFileName)},
	})
	j.finish(result, len(live))
	return result
}

// sweepTree removes files older than cutoff under root/<user>/ unless they are
// referenced or belong to a user with a running job. Emptied user directories
// are removed too.
func (j *janitor) sweepTree(root string, cutoff time.Time, referenced, busy map[string]struct{}, result *SweepResult) {
	root = strings.TrimSpace(root)
	if root == "" {
		return
	}
	users, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: root, Error: err})
		}
		return
	}
	for _, userEntry := range users {
		if !userEntry.IsDir() {
			continue
		}
		if _, skip := busy[userEntry.Name()]; skip {
			continue
		}
		userDir := filepath.Join(root, userEntry.Name())
		entries, err := os.ReadDir(userDir)
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: userDir, Error: err})
			continue
		}
		kept := 0
		for _, entry := range entries {
			path := filepath.Join(userDir, entry.Name())
			if _, ok := referenced[path]; ok || entry.IsDir() {
				kept++
				continue
			}
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				kept++
				continue
			}
			if err := os.Remove(path); err != nil {
				kept++
				result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
				logging.WarnWithContext(j.logger, "failed to remove orphaned file", "orphan_cleanup_failed",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check permissions on "+root),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
				continue
			}
			result.Removed = append(result.Removed, path)
			j.logger.Info("removed orphaned file",
				logging.String(logging.FieldEventType, "orphan_cleanup"),
				logging.String("path", path),
				logging.Duration("age", j.now().Sub(info.ModTime())),
			)
		}
		if kept == 0 {
			_ = os.Remove(userDir)
		}
	}
}

func (j *janitor) finish(result SweepResult, sessions int) {
	if sessions >= 0 {
		metrics.SessionsActive.Set(float64(sessions))
	}
	if len(result.Errors) > 0 {
		logging.WarnWithContext(j.logger, "cleanup pass finished with errors", "janitor_errors",
			logging.Int("errors", len(result.Errors)),
			logging.String("first_path", result.Errors[0].Path),
			logging.Error(result.Errors[0].Error),
			logging.String(logging.FieldErrorHint, "check directory permissions and the session database"),
			logging.String(logging.FieldImpact, "some stale data was not reclaimed"),
		)
	}
	if len(result.Sessions) > 0 || len(result.Removed) > 0 {
		j.logger.Info("cleanup pass finished",
			logging.String(logging.FieldEventType, "janitor_sweep"),
			logging.Int("sessions_discarded", len(result.Sessions)),
			logging.Int("files_removed", len(result.Removed)),
		)
	}
}
