// Package events manages events and the registrations volunteers make for them.
package events

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"volunteerhub/internal/attendance"
	"volunteerhub/internal/metrics"
	"volunteerhub/internal/model"
	"volunteerhub/internal/store"
)

var validate = validator.New()

// Details are the administrator-editable fields of an event.
type Details struct {
	Name        string `json:"name" validate:"required"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Description string `json:"description"`
}

// Roster splits an event's registrants by status.
type Roster struct {
	Pending   []model.User `json:"pending"`
	Confirmed []model.User `json:"confirmed"`
}

// Service owns the events collection.
type Service struct {
	store *store.Store
}

// NewService creates an event service on s.
func NewService(s *store.Store) *Service {
	return &Service{store: s}
}

func (d Details) normalize() (Details, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Date = strings.TrimSpace(d.Date)
	d.Description = strings.TrimSpace(d.Description)
	if err := validate.Struct(d); err != nil {
		return d, fmt.Errorf("%w: %v", model.ErrInvalidEvent, err)
	}
	return d, nil
}

func indexOf(events []model.Event, id string) int {
	return slices.IndexFunc(events, func(e model.Event) bool { return e.ID == id })
}

// CreateEvent stores a new event with no registrations.
func (s *Service) CreateEvent(ctx context.Context, d Details) (ev model.Event, err error) {
	defer func() { metrics.Observe("events.create", err) }()

	if d, err = d.normalize(); err != nil {
		return model.Event{}, err
	}
	ev = model.Event{
		ID:            uuid.NewString(),
		Name:          d.Name,
		Date:          d.Date,
		Description:   d.Description,
		Registrations: []model.Registration{},
	}
	err = s.store.Update(ctx, func(tx *store.Tx) error {
		events, err := tx.Events()
		if err != nil {
			return err
		}
		return tx.PutEvents(append(events, ev))
	})
	if err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

// UpdateEvent replaces name, date and description. Registrations are kept.
func (s *Service) UpdateEvent(ctx context.Context, id string, d Details) (ev model.Event, err error) {
	defer func() { metrics.Observe("events.update", err) }()

	if d, err = d.normalize(); err != nil {
		return model.Event{}, err
	}
	err = s.store.Update(ctx, func(tx *store.Tx) error {
		events, err := tx.Events()
		if err != nil {
			return err
		}
		i := indexOf(events, id)
		if i < 0 {
			return model.ErrEventNotFound
		}
		events[i].Name = d.Name
		events[i].Date = d.Date
		events[i].Description = d.Description
		ev = events[i]
		return tx.PutEvents(events)
	})
	if err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

// DeleteEvent removes the event and its attendance row in one commit.
func (s *Service) DeleteEvent(ctx context.Context, id string) (err error) {
	defer func() { metrics.Observe("events.delete", err) }()

	return s.store.Update(ctx, func(tx *store.Tx) error {
		events, err := tx.Events()
		if err != nil {
			return err
		}
		i := indexOf(events, id)
		if i < 0 {
			return model.ErrEventNotFound
		}
		if err := tx.PutEvents(slices.Delete(events, i, i+1)); err != nil {
			return err
		}
		_, err = attendance.RemoveRecord(tx, id)
		return err
	})
}

// RegisterForEvent adds a pending registration for an approved volunteer.
func (s *Service) RegisterForEvent(ctx context.Context, eventID, volunteerID string) (err error) {
	defer func() { metrics.Observe("events.register", err) }()

	return s.store.Update(ctx, func(tx *store.Tx) error {
		events, err := tx.Events()
		if err != nil {
			return err
		}
		i := indexOf(events, eventID)
		if i < 0 {
			return model.ErrEventNotFound
		}

		users, err := tx.Users()
		if err != nil {
			return err
		}
		j := slices.IndexFunc(users, func(u model.User) bool { return u.ID == volunteerID && u.IsVolunteer() })
		if j < 0 {
			return model.ErrUserNotFound
		}
		if !users[j].Approved {
			return model.ErrNotApproved
		}
		if _, ok := events[i].Registration(volunteerID); ok {
			return model.ErrAlreadyRegistered
		}
		events[i].Registrations = append(events[i].Registrations, model.Registration{
			VolunteerID: volunteerID,
			Status:      model.RegistrationPending,
		})
		return tx.PutEvents(events)
	})
}

// ConfirmRegistration moves a registration to confirmed. Confirming an
// already confirmed registration succeeds without writing.
func (s *Service) ConfirmRegistration(ctx context.Context, eventID, volunteerID string) (err error) {
	defer func() { metrics.Observe("events.confirm", err) }()

	return s.store.Update(ctx, func(tx *store.Tx) error {
		events, err := tx.Events()
		if err != nil {
			return err
		}
		i := indexOf(events, eventID)
		if i < 0 {
			return model.ErrEventNotFound
		}
		regs := events[i].Registrations
		k := slices.IndexFunc(regs, func(r model.Registration) bool { return r.VolunteerID == volunteerID })
		if k < 0 {
			return model.ErrRegistrationNotFound
		}
		if regs[k].Status == model.RegistrationConfirmed {
			return nil
		}
		regs[k].Status = model.RegistrationConfirmed
		return tx.PutEvents(events)
	})
}

// List returns every event in creation order.
func (s *Service) List(ctx context.Context) ([]model.Event, error) {
	return s.store.Events(ctx)
}

// Get returns one event.
func (s *Service) Get(ctx context.Context, id string) (model.Event, error) {
	events, err := s.store.Events(ctx)
	if err != nil {
		return model.Event{}, err
	}
	i := indexOf(events, id)
	if i < 0 {
		return model.Event{}, model.ErrEventNotFound
	}
	return events[i], nil
}

// Roster resolves the event's registrants to users. Registrations whose
// user no longer exists are skipped.
func (s *Service) Roster(ctx context.Context, id string) (roster Roster, err error) {
	err = s.store.View(ctx, func(tx *store.Tx) error {
		events, err := tx.Events()
		if err != nil {
			return err
		}
		i := indexOf(events, id)
		if i < 0 {
			return model.ErrEventNotFound
		}
		users, err := tx.Users()
		if err != nil {
			return err
		}
		roster = Roster{Pending: []model.User{}, Confirmed: []model.User{}}
		for _, r := range events[i].Registrations {
			j := slices.IndexFunc(users, func(u model.User) bool { return u.ID == r.VolunteerID })
			if j < 0 {
				continue
			}
			switch r.Status {
			case model.RegistrationPending:
				roster.Pending = append(roster.Pending, users[j])
			case model.RegistrationConfirmed:
				roster.Confirmed = append(roster.Confirmed, users[j])
			}
		}
		return nil
	})
	return roster, err
}
