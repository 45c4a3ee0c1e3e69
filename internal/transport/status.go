package transport

import (
	"context"
	"log/slog"
	"sync"

	"submux/internal/logging"
)

// StatusMessage is a single editable status line for one user. Updates with
// text identical to the last delivered text are skipped. Failures are logged
// and dropped so a flaky transport never interrupts the caller.
type StatusMessage struct {
	transport Transport
	userID    string
	logger    *slog.Logger

	mu   sync.Mutex
	ref  MessageRef
	last string
}

// NewStatusMessage sends text as a new message and returns a handle that
// edits it on later updates.
func NewStatusMessage(ctx context.Context, t Transport, userID, text string, logger *slog.Logger) *StatusMessage {
	s := &StatusMessage{
		transport: t,
		userID:    userID,
		logger:    logging.NewComponentLogger(logger, "status"),
	}
	s.Update(ctx, text)
	return s
}

// Update replaces the status text. When the initial send failed, Update sends
// a fresh message instead of editing.
func (s *StatusMessage) Update(ctx context.Context, text string) {
	if s == nil || text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if text == s.last && !s.ref.IsZero() {
		return
	}
	if s.ref.IsZero() {
		ref, err := s.transport.Send(ctx, s.userID, text)
		if err != nil {
			s.warn(ctx, "send", err)
			return
		}
		s.ref = ref
		s.last = text
		return
	}
	if err := s.transport.Edit(ctx, s.ref, text); err != nil {
		s.warn(ctx, "edit", err)
		return
	}
	s.last = text
}

// Text returns the last text the transport accepted.
func (s *StatusMessage) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Ref returns the underlying message reference.
func (s *StatusMessage) Ref() MessageRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ref
}

func (s *StatusMessage) warn(ctx context.Context, op string, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, s.logger), "status update dropped", "status_update_failed",
		logging.String("operation", op),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check transport connectivity"),
		logging.String(logging.FieldImpact, "user sees a stale status line"),
	)
}
