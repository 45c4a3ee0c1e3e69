package intake

import (
	"context"
	"strings"

	"submux/internal/logging"
	"submux/internal/services"
)

// Discard deletes the user's stored assets and erases the session. It
// reports false when there was nothing to discard. Users with a running job
// are refused with ErrJobRunning.
func (s *Service) Discard(ctx context.Context, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, services.Wrap(services.ErrValidation, "intake", "discard", "user id is required", nil)
	}
	ctx = services.WithUserID(ctx, userID)

	unlock := s.locks.lock(userID)
	defer unlock()
	if s.busy != nil && s.busy(userID) {
		return false, services.Wrap(services.ErrValidation, "intake", "discard",
			"a job is already running; cancel it first", ErrJobRunning)
	}

	sess, err := s.store.Get(ctx, userID)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "intake", "discard", "load session", err)
	}
	if sess == nil {
		return false, nil
	}
	s.removeAsset(ctx, userID, sess.Video)
	s.removeAsset(ctx, userID, sess.Subtitle)
	if err := s.store.Erase(ctx, userID); err != nil {
		return false, services.Wrap(services.ErrTransient, "intake", "discard", "erase session", err)
	}
	logging.WithContext(ctx, s.logger).Info("session discarded",
		logging.String(logging.FieldEventType, "session_discarded"),
		logging.Bool("had_video", sess.Video != nil),
		logging.Bool("had_subtitle", sess.Subtitle != nil),
	)
	return true, nil
}
