package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"volunteerhub/internal/credential"
	"volunteerhub/internal/metrics"
	"volunteerhub/internal/model"
)

// Collection names one of the five persisted top-level entries.
type Collection string

const (
	Users        Collection = "users"
	Events       Collection = "events"
	EventPhotos  Collection = "eventPhotos"
	Attendance   Collection = "attendance"
	ChatMessages Collection = "chatMessages"
)

var collections = []Collection{Users, Events, EventPhotos, Attendance, ChatMessages}

const (
	// AdminID is the fixed identity of the seeded administrator.
	AdminID              = "admin"
	DefaultAdminName     = "Admin User"
	DefaultAdminPassword = "admin"

	maxAttempts = 3
)

// Store is whole-collection persistence over a Backend. Update runs inside
// an exclusive section and commits with a version check, so concurrent
// writers never silently overwrite each other.
type Store struct {
	backend Backend
	mu      sync.Mutex
	logger  *slog.Logger

	adminName     string
	adminPassword string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAdmin overrides the seeded administrator's name and password.
func WithAdmin(name, password string) Option {
	return func(s *Store) {
		if name != "" {
			s.adminName = name
		}
		if password != "" {
			s.adminPassword = password
		}
	}
}

// New wraps backend and seeds it on first use.
func New(ctx context.Context, backend Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend:       backend,
		logger:        slog.New(slog.DiscardHandler),
		adminName:     DefaultAdminName,
		adminPassword: DefaultAdminPassword,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Init seeds the administrator when users were never written and
// materialises every other missing collection as empty.
func (s *Store) Init(ctx context.Context) error {
	return s.Update(ctx, func(tx *Tx) error {
		for _, c := range collections {
			e, err := tx.entry(c)
			if err != nil {
				return err
			}
			if e.blob.Version != 0 {
				continue
			}
			switch c {
			case Users:
				hash, err := credential.Hash(s.adminPassword)
				if err != nil {
					return fmt.Errorf("hash admin password: %w", err)
				}
				s.logger.InfoContext(ctx, "seeding administrator", "name", s.adminName)
				err = tx.PutUsers([]model.User{{
					ID:       AdminID,
					Role:     model.RoleAdmin,
					Name:     s.adminName,
					Password: hash,
					Approved: true,
				}})
				if err != nil {
					return err
				}
			case Events:
				if err := tx.PutEvents(nil); err != nil {
					return err
				}
			case EventPhotos:
				if err := tx.PutPhotos(nil); err != nil {
					return err
				}
			case Attendance:
				if err := tx.PutAttendance(nil); err != nil {
					return err
				}
			case ChatMessages:
				if err := tx.PutMessages(nil); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// View runs fn against a read-only snapshot.
func (s *Store) View(ctx context.Context, fn func(*Tx) error) error {
	return fn(s.begin(ctx, false))
}

// Update runs fn and commits the collections it replaced. When another
// writer committed first, fn is re-run on fresh data.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		tx := s.begin(ctx, true)
		if err := fn(tx); err != nil {
			return err
		}
		writes := tx.writes()
		if len(writes) == 0 {
			return nil
		}
		start := time.Now()
		err = s.backend.Commit(ctx, writes)
		metrics.ObserveCommit(start, err)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return fmt.Errorf("store commit: %w", err)
		}
		s.logger.WarnContext(ctx, "store commit conflict", "attempt", attempt)
	}
	return err
}

// Close releases the backend.
func (s *Store) Close() error { return s.backend.Close() }

func (s *Store) begin(ctx context.Context, writable bool) *Tx {
	return &Tx{ctx: ctx, backend: s.backend, writable: writable, entries: make(map[Collection]*entry)}
}

// Users reads the whole users collection.
func (s *Store) Users(ctx context.Context) (users []model.User, err error) {
	err = s.View(ctx, func(tx *Tx) error {
		users, err = tx.Users()
		return err
	})
	return users, err
}

// SaveUsers replaces the whole users collection.
func (s *Store) SaveUsers(ctx context.Context, users []model.User) error {
	return s.Update(ctx, func(tx *Tx) error { return tx.PutUsers(users) })
}

// Events reads the whole events collection.
func (s *Store) Events(ctx context.Context) (events []model.Event, err error) {
	err = s.View(ctx, func(tx *Tx) error {
		events, err = tx.Events()
		return err
	})
	return events, err
}

// SaveEvents replaces the whole events collection.
func (s *Store) SaveEvents(ctx context.Context, events []model.Event) error {
	return s.Update(ctx, func(tx *Tx) error { return tx.PutEvents(events) })
}

// Photos reads the whole eventPhotos collection.
func (s *Store) Photos(ctx context.Context) (photos []model.EventPhoto, err error) {
	err = s.View(ctx, func(tx *Tx) error {
		photos, err = tx.Photos()
		return err
	})
	return photos, err
}

// SavePhotos replaces the whole eventPhotos collection.
func (s *Store) SavePhotos(ctx context.Context, photos []model.EventPhoto) error {
	return s.Update(ctx, func(tx *Tx) error { return tx.PutPhotos(photos) })
}

// Attendance reads the whole attendance mapping.
func (s *Store) Attendance(ctx context.Context) (att model.Attendance, err error) {
	err = s.View(ctx, func(tx *Tx) error {
		att, err = tx.Attendance()
		return err
	})
	return att, err
}

// SaveAttendance replaces the whole attendance mapping.
func (s *Store) SaveAttendance(ctx context.Context, att model.Attendance) error {
	return s.Update(ctx, func(tx *Tx) error { return tx.PutAttendance(att) })
}

// Messages reads the whole chatMessages collection.
func (s *Store) Messages(ctx context.Context) (msgs []model.ChatMessage, err error) {
	err = s.View(ctx, func(tx *Tx) error {
		msgs, err = tx.Messages()
		return err
	})
	return msgs, err
}

// SaveMessages replaces the whole chatMessages collection.
func (s *Store) SaveMessages(ctx context.Context, msgs []model.ChatMessage) error {
	return s.Update(ctx, func(tx *Tx) error { return tx.PutMessages(msgs) })
}
