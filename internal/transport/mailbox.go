package transport

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"submux/internal/fileutil"
	"submux/internal/logging"
	"submux/internal/services"
	"submux/internal/textutil"
)

// DefaultMailboxCapacity bounds the messages retained per user.
const DefaultMailboxCapacity = 200

// Message is one entry in a user's message log.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Edits     int       `json:"edits"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Delivery is a staged file waiting to be downloaded once.
type Delivery struct {
	Name      string    `json:"name"`
	Caption   string    `json:"caption,omitempty"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	path      string
}

// Path returns the staged file location.
func (d Delivery) Path() string {
	return d.path
}

// ErrUnknownDelivery is returned when a delivery was never staged or has
// already been claimed.
var ErrUnknownDelivery = fmt.Errorf("%w: unknown delivery", services.ErrNotFound)

// Mailbox is an in-memory Transport backed by an outbox directory.
type Mailbox struct {
	dir      string
	capacity int
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	messages   map[string][]*Message
	deliveries map[string]map[string]Delivery
}

// NewMailbox creates a mailbox that stages deliveries beneath outboxDir.
func NewMailbox(outboxDir string, logger *slog.Logger) (*Mailbox, error) {
	if outboxDir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "transport", "mailbox", "outbox directory is not configured", nil)
	}
	if err := os.MkdirAll(outboxDir, 0o755); err != nil {
		return nil, fmt.Errorf("create outbox: %w", err)
	}
	return &Mailbox{
		dir:        outboxDir,
		capacity:   DefaultMailboxCapacity,
		logger:     logging.NewComponentLogger(logger, "mailbox"),
		now:        time.Now,
		messages:   make(map[string][]*Message),
		deliveries: make(map[string]map[string]Delivery),
	}, nil
}

// Send appends text to the user's message log.
func (m *Mailbox) Send(_ context.Context, userID, text string) (MessageRef, error) {
	now := m.now().UTC()
	msg := &Message{ID: uuid.NewString(), Text: text, CreatedAt: now, UpdatedAt: now}

	m.mu.Lock()
	defer m.mu.Unlock()
	log := append(m.messages[userID], msg)
	if len(log) > m.capacity {
		log = append([]*Message(nil), log[len(log)-m.capacity:]...)
	}
	m.messages[userID] = log
	return MessageRef{UserID: userID, ID: msg.ID}, nil
}

// Edit replaces the text of a previously sent message.
func (m *Mailbox) Edit(_ context.Context, ref MessageRef, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages[ref.UserID] {
		if msg.ID == ref.ID {
			msg.Text = text
			msg.Edits++
			msg.UpdatedAt = m.now().UTC()
			return nil
		}
	}
	return ErrUnknownMessage
}

// Deliver stages path in the user's outbox directory. The source is hard
// linked when possible and copied otherwise, so the caller may delete it
// afterwards.
func (m *Mailbox) Deliver(ctx context.Context, userID, path, caption string, progress UploadProgress) error {
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "transport", "deliver", "output file missing", err)
	}
	name := filepath.Base(path)
	userDir := filepath.Join(m.dir, textutil.SanitizeToken(userID))
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return fmt.Errorf("create user outbox: %w", err)
	}
	target := filepath.Join(userDir, name)
	if err := fileutil.RemoveIfExists(target); err != nil {
		return fmt.Errorf("replace staged delivery: %w", err)
	}

	if err := os.Link(path, target); err == nil {
		if progress != nil {
			progress(info.Size(), info.Size())
		}
	} else {
		var report fileutil.ProgressFunc
		if progress != nil {
			report = fileutil.ProgressFunc(progress)
		}
		if err := fileutil.CopyFileProgress(path, target, report); err != nil {
			return services.Wrap(services.ErrTransient, "transport", "deliver", "stage output", err)
		}
	}

	m.mu.Lock()
	if m.deliveries[userID] == nil {
		m.deliveries[userID] = make(map[string]Delivery)
	}
	m.deliveries[userID][name] = Delivery{
		Name:      name,
		Caption:   caption,
		Size:      info.Size(),
		CreatedAt: m.now().UTC(),
		path:      target,
	}
	m.mu.Unlock()

	logging.WithContext(ctx, m.logger).Info("delivery staged",
		logging.String(logging.FieldEventType, "delivery_staged"),
		logging.String(logging.FieldUserID, userID),
		logging.String("name", name),
		logging.Int64("size_bytes", info.Size()),
	)
	return nil
}

// Messages returns a copy of the user's message log, oldest first.
func (m *Mailbox) Messages(userID string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.messages[userID]
	out := make([]Message, 0, len(log))
	for _, msg := range log {
		out = append(out, *msg)
	}
	return out
}

// Deliveries lists the user's unclaimed deliveries sorted by name.
func (m *Mailbox) Deliveries(userID string) []Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Delivery, 0, len(m.deliveries[userID]))
	for _, d := range m.deliveries[userID] {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Claim removes a delivery from the registry and returns it. The caller owns
// the staged file and must remove it once served.
func (m *Mailbox) Claim(userID, name string) (Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[userID][name]
	if !ok {
		return Delivery{}, ErrUnknownDelivery
	}
	delete(m.deliveries[userID], name)
	if len(m.deliveries[userID]) == 0 {
		delete(m.deliveries, userID)
	}
	return d, nil
}

// Forget drops the user's message log and any unclaimed deliveries.
func (m *Mailbox) Forget(userID string) {
	m.mu.Lock()
	pending := m.deliveries[userID]
	delete(m.deliveries, userID)
	delete(m.messages, userID)
	m.mu.Unlock()

	for _, d := range pending {
		if err := fileutil.RemoveIfExists(d.path); err != nil {
			logging.WarnWithContext(m.logger, "failed to remove staged delivery", "delivery_cleanup_failed",
				logging.String("path", d.path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the file from the outbox manually"),
			)
		}
	}
}
