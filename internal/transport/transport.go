package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"submux/internal/logging"
	"submux/internal/services"
)

// MessageRef identifies a previously sent message so it can be edited.
type MessageRef struct {
	UserID string `json:"user_id"`
	ID     string `json:"id"`
}

// IsZero reports whether the reference points at no message.
func (r MessageRef) IsZero() bool {
	return r.ID == ""
}

// UploadProgress receives the number of bytes delivered so far and the total.
type UploadProgress func(sent, total int64)

// Transport is the remote messaging surface consumed by mux jobs.
type Transport interface {
	Send(ctx context.Context, userID, text string) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, text string) error
	Deliver(ctx context.Context, userID, path, caption string, progress UploadProgress) error
}

// ErrUnknownMessage is returned when editing a message that no longer exists.
var ErrUnknownMessage = fmt.Errorf("%w: unknown message", services.ErrNotFound)

type retrying struct {
	inner  Transport
	delay  time.Duration
	logger *slog.Logger
}

// Retry wraps t so that every failed call is retried once after delay.
// A second failure is returned wrapped as services.ErrTransient.
func Retry(t Transport, delay time.Duration, logger *slog.Logger) Transport {
	if r, ok := t.(*retrying); ok {
		t = r.inner
	}
	return &retrying{inner: t, delay: delay, logger: logging.NewComponentLogger(logger, "transport")}
}

func (r *retrying) Send(ctx context.Context, userID, text string) (MessageRef, error) {
	var ref MessageRef
	err := r.do(ctx, "send", func() error {
		var err error
		ref, err = r.inner.Send(ctx, userID, text)
		return err
	})
	return ref, err
}

func (r *retrying) Edit(ctx context.Context, ref MessageRef, text string) error {
	return r.do(ctx, "edit", func() error {
		return r.inner.Edit(ctx, ref, text)
	})
}

func (r *retrying) Deliver(ctx context.Context, userID, path, caption string, progress UploadProgress) error {
	return r.do(ctx, "deliver", func() error {
		return r.inner.Deliver(ctx, userID, path, caption, progress)
	})
}

func (r *retrying) do(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if err == nil || errors.Is(err, services.ErrNotFound) {
		return err
	}
	logging.WarnWithContext(logging.WithContext(ctx, r.logger), "transport call failed; retrying once", "transport_retry",
		logging.String("operation", op),
		logging.Duration("delay", r.delay),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check transport connectivity"),
		logging.String(logging.FieldImpact, "status update or delivery delayed"),
	)
	if r.delay > 0 {
		timer := time.NewTimer(r.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	if retryErr := fn(); retryErr != nil {
		return services.Wrap(services.ErrTransient, "transport", op, "retry failed", retryErr)
	}
	return nil
}
