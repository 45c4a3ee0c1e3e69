package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"submux/internal/config"
	"submux/internal/fileutil"
	"submux/internal/logging"
	"submux/internal/metrics"
	"submux/internal/preflight"
	"submux/internal/services"
	"submux/internal/session"
	"submux/internal/subtitles"
)

// ErrJobRunning is returned when an upload arrives while the user's job is
// still in flight.
var ErrJobRunning = errors.New("a job is already running for this user")

// Result describes an accepted upload.
type Result struct {
	Kind       Kind
	Asset      session.Asset
	Path       string
	Size       int64
	OutputName string
	Warnings   []string
	Session    *session.Session
}

// Service moves uploads into per-user storage and records them in the
// session store.
type Service struct {
	cfg    *config.Config
	store  *session.Store
	logger *slog.Logger
	busy   func(userID string) bool
	locks  userLocks
}

// Option customizes a Service.
type Option func(*Service)

// WithJobGuard rejects uploads for users for whom busy reports true.
func WithJobGuard(busy func(userID string) bool) Option {
	return func(s *Service) { s.busy = busy }
}

// LockUser takes the per-user intake lock and returns its release. Jobs hold
// it while they register and load the session so an upload cannot replace
// an asset underneath them.
func (s *Service) LockUser(userID string) func() {
	return s.locks.lock(userID)
}

// New constructs an intake service.
func New(cfg *config.Config, store *session.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "intake"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Accept takes ownership of the file at src. originalName is the filename
// the user sent (src's base name when empty) and customName optionally
// overrides the output filename for videos. On rejection src is deleted and
// the session is left untouched.
func (s *Service) Accept(ctx context.Context, userID, src, originalName, customName string) (*Result, error) {
	return s.accept(ctx, userID, src, originalName, customName, "file")
}

// AcceptReader streams r into the user's directory and then behaves like
// Accept. The extension is checked before any bytes are written.
func (s *Service) AcceptReader(ctx context.Context, userID string, r io.Reader, originalName, customName string) (*Result, error) {
	kind, _, err := Classify(originalName)
	if err != nil {
		metrics.ObserveUpload("unknown", "file", false, 0)
		s.logRejected(ctx, userID, originalName, err)
		return nil, err
	}
	if err := s.preflight(userID, 0); err != nil {
		metrics.ObserveUpload(string(kind), "file", false, 0)
		return nil, err
	}
	tmp, err := s.tempFile(userID)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, services.Wrap(services.ErrTransient, "intake", "receive upload", "write failed", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("close upload: %w", err)
	}
	return s.accept(ctx, userID, tmp.Name(), originalName, customName, "file")
}

func (s *Service) accept(ctx context.Context, userID, src, originalName, customName, source string) (*Result, error) {
	ctx = services.WithUserID(ctx, userID)
	if strings.TrimSpace(originalName) == "" {
		originalName = filepath.Base(src)
	}

	reject := func(kind string, err error) (*Result, error) {
		if rmErr := fileutil.RemoveIfExists(src); rmErr != nil {
			logging.WarnWithContext(logging.WithContext(ctx, s.logger), "failed to delete rejected upload", "upload_cleanup_failed",
				logging.String("path", src),
				logging.Error(rmErr),
				logging.String(logging.FieldErrorHint, "remove the file manually"),
			)
		}
		metrics.ObserveUpload(kind, source, false, 0)
		s.logRejected(ctx, userID, originalName, err)
		return nil, err
	}

	if strings.TrimSpace(userID) == "" {
		return reject("unknown", services.Wrap(services.ErrValidation, "intake", "accept", "user id is required", nil))
	}
	kind, ext, err := Classify(originalName)
	if err != nil {
		return reject("unknown", err)
	}
	if s.busy != nil && s.busy(userID) {
		return reject(string(kind), services.Wrap(services.ErrValidation, "intake", "accept",
			"a job is already running; wait for it to finish", ErrJobRunning))
	}

	info, err := os.Stat(src)
	if err != nil {
		return reject(string(kind), services.Wrap(services.ErrNotFound, "intake", "accept", "uploaded file missing", err))
	}

	result := &Result{Kind: kind, Size: info.Size()}
	if kind == KindVideo {
		name, err := session.DeriveOutputName(originalName, customName)
		if err != nil {
			return reject(string(kind), services.Wrap(services.ErrValidation, "intake", "output name",
				fmt.Sprintf("custom filename must be at most %d characters", session.MaxOutputNameLength), err))
		}
		result.OutputName = name
	} else {
		format, err := subtitles.ParseFormat(ext)
		if err != nil {
			return reject(string(kind), err)
		}
		warnings, err := subtitles.ValidateFileAs(src, format)
		if err != nil {
			return reject(string(kind), err)
		}
		result.Warnings = warnings
	}

	unlock := s.locks.lock(userID)
	defer unlock()
	// A job may have registered while the file was validated; jobs load the
	// session under this same lock, so the check below is authoritative.
	if s.busy != nil && s.busy(userID) {
		return reject(string(kind), services.Wrap(services.ErrValidation, "intake", "accept",
			"a job is already running; wait for it to finish", ErrJobRunning))
	}

	userDir := session.UserDir(s.cfg.Paths.DownloadDir, userID)
	stored := uuid.NewString() + "." + ext
	target := filepath.Join(userDir, stored)
	if err := fileutil.MoveFile(src, target); err != nil {
		return reject(string(kind), services.Wrap(services.ErrTransient, "intake", "store", "move upload", err))
	}

	existing, err := s.store.Get(ctx, userID)
	if err != nil {
		_ = fileutil.RemoveIfExists(target)
		return nil, services.Wrap(services.ErrTransient, "intake", "store", "load session", err)
	}

	result.Path = target
	switch kind {
	case KindVideo:
		result.Asset = session.Asset{StoredName: stored, OriginalName: filepath.Base(originalName)}
		if existing != nil {
			s.removeAsset(ctx, userID, existing.Video)
		}
		err = s.store.PutVideo(ctx, userID, result.Asset, result.OutputName)
	case KindSubtitle:
		result.Asset = session.Asset{StoredName: stored}
		if existing != nil {
			s.removeAsset(ctx, userID, existing.Subtitle)
		}
		err = s.store.PutSubtitle(ctx, userID, result.Asset)
	}
	if err != nil {
		_ = fileutil.RemoveIfExists(target)
		return nil, services.Wrap(services.ErrTransient, "intake", "store", "record asset", err)
	}

	sess, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "intake", "store", "reload session", err)
	}
	result.Session = sess

	metrics.ObserveUpload(string(kind), source, true, result.Size)
	logging.WithContext(ctx, s.logger).Info("upload accepted",
		logging.String(logging.FieldEventType, "upload_accepted"),
		logging.String("kind", string(kind)),
		logging.String("stored_name", stored),
		logging.String("original_name", originalName),
		logging.Int64("size_bytes", result.Size),
		logging.Bool("session_complete", sess.Complete()),
	)
	return result, nil
}

func (s *Service) removeAsset(ctx context.Context, userID string, asset *session.Asset) {
	path := session.AssetPath(s.cfg.Paths.DownloadDir, userID, asset)
	if path == "" {
		return
	}
	if err := fileutil.RemoveIfExists(path); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "failed to delete replaced asset", "asset_cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the orphaned file manually"),
			logging.String(logging.FieldImpact, "disk space held by an unreferenced file"),
		)
	}
}

func (s *Service) preflight(userID string, need int64) error {
	dir := session.UserDir(s.cfg.Paths.DownloadDir, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "intake", "preflight", "create user directory", err)
	}
	return preflight.EnsureFreeSpace(dir, s.cfg.Intake.MinFreeGiB, need)
}

func (s *Service) tempFile(userID string) (*os.File, error) {
	dir := session.UserDir(s.cfg.Paths.DownloadDir, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "intake", "receive upload", "create user directory", err)
	}
	f, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "intake", "receive upload", "create temp file", err)
	}
	return f, nil
}

func (s *Service) logRejected(ctx context.Context, userID, name string, err error) {
	logging.WithContext(services.WithUserID(ctx, userID), s.logger).Info("upload rejected",
		logging.String(logging.FieldEventType, "upload_rejected"),
		logging.String("original_name", name),
		logging.String("reason", services.UserMessage(err)),
	)
}
