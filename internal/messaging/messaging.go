// Package messaging is the shared append-only message log.
package messaging

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"volunteerhub/internal/metrics"
	"volunteerhub/internal/model"
	"volunteerhub/internal/store"
)

// Log appends to and reads the chatMessages collection.
type Log struct {
	store *store.Store
	now   func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// NewLog creates a message log on s.
func NewLog(s *store.Store, opts ...Option) *Log {
	l := &Log{store: s, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post appends a message. Its timestamp is always later than the previous
// message's, even when the clock has not advanced.
func (l *Log) Post(ctx context.Context, senderID, senderName string, senderRole model.Role, text string) (msg model.ChatMessage, err error) {
	defer func() { metrics.Observe("messaging.post", err) }()

	if !senderRole.Valid() {
		return model.ChatMessage{}, fmt.Errorf("%w: %q", model.ErrInvalidRole, senderRole)
	}
	if strings.TrimSpace(text) == "" {
		return model.ChatMessage{}, model.ErrEmptyMessage
	}

	err = l.store.Update(ctx, func(tx *store.Tx) error {
		msgs, err := tx.Messages()
		if err != nil {
			return err
		}
		ts := l.now().UTC().Truncate(time.Millisecond)
		if n := len(msgs); n > 0 && !ts.After(msgs[n-1].Timestamp) {
			ts = msgs[n-1].Timestamp.Add(time.Millisecond)
		}
		msg = model.ChatMessage{
			ID:         uuid.NewString(),
			SenderID:   senderID,
			SenderName: senderName,
			SenderRole: senderRole,
			Text:       text,
			Timestamp:  ts,
		}
		return tx.PutMessages(append(msgs, msg))
	})
	if err != nil {
		return model.ChatMessage{}, err
	}
	return msg, nil
}

// List returns every message in insertion order.
func (l *Log) List(ctx context.Context) ([]model.ChatMessage, error) {
	return l.store.Messages(ctx)
}

// Since returns the messages posted after afterID. An empty or unknown id
// returns the whole log so a poller can resynchronise.
func (l *Log) Since(ctx context.Context, afterID string) ([]model.ChatMessage, error) {
	msgs, err := l.store.Messages(ctx)
	if err != nil {
		return nil, err
	}
	if afterID == "" {
		return msgs, nil
	}
	i := slices.IndexFunc(msgs, func(m model.ChatMessage) bool { return m.ID == afterID })
	if i < 0 {
		return msgs, nil
	}
	return msgs[i+1:], nil
}
