package store

import (
	"context"
	"fmt"

	"volunteerhub/internal/model"
)

// Tx gives whole-collection access to the store for the span of one
// View or Update call. Collections are loaded on first use.
type Tx struct {
	ctx      context.Context
	backend  Backend
	writable bool
	entries  map[Collection]*entry
}

type entry struct {
	blob  Blob
	data  []byte
	dirty bool
}

func (tx *Tx) entry(c Collection) (*entry, error) {
	if e, ok := tx.entries[c]; ok {
		return e, nil
	}
	b, err := tx.backend.Load(tx.ctx, string(c))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c, err)
	}
	e := &entry{blob: b, data: b.Data}
	tx.entries[c] = e
	return e, nil
}

func (tx *Tx) read(c Collection, out any) error {
	e, err := tx.entry(c)
	if err != nil {
		return err
	}
	if len(e.data) == 0 {
		return nil
	}
	if err := codec.Unmarshal(e.data, out); err != nil {
		return fmt.Errorf("decode %s: %w", c, err)
	}
	return nil
}

func (tx *Tx) put(c Collection, v any) error {
	if !tx.writable {
		return ErrReadOnly
	}
	e, err := tx.entry(c)
	if err != nil {
		return err
	}
	data, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c, err)
	}
	e.data = data
	e.dirty = true
	return nil
}

func (tx *Tx) writes() []Write {
	var out []Write
	for _, c := range collections {
		e, ok := tx.entries[c]
		if !ok || !e.dirty {
			continue
		}
		out = append(out, Write{Name: string(c), Data: e.data, Version: e.blob.Version})
	}
	return out
}

// Users returns every user, or an empty slice.
func (tx *Tx) Users() ([]model.User, error) {
	var users []model.User
	if err := tx.read(Users, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// PutUsers replaces the users collection.
func (tx *Tx) PutUsers(users []model.User) error {
	if users == nil {
		users = []model.User{}
	}
	return tx.put(Users, users)
}

// Events returns every event, or an empty slice.
func (tx *Tx) Events() ([]model.Event, error) {
	var events []model.Event
	if err := tx.read(Events, &events); err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.Event{}
	}
	for i := range events {
		if events[i].Registrations == nil {
			events[i].Registrations = []model.Registration{}
		}
	}
	return events, nil
}

// PutEvents replaces the events collection.
func (tx *Tx) PutEvents(events []model.Event) error {
	if events == nil {
		events = []model.Event{}
	}
	return tx.put(Events, events)
}

// Photos returns every gallery photo, or an empty slice.
func (tx *Tx) Photos() ([]model.EventPhoto, error) {
	var photos []model.EventPhoto
	if err := tx.read(EventPhotos, &photos); err != nil {
		return nil, err
	}
	if photos == nil {
		photos = []model.EventPhoto{}
	}
	return photos, nil
}

// PutPhotos replaces the eventPhotos collection.
func (tx *Tx) PutPhotos(photos []model.EventPhoto) error {
	if photos == nil {
		photos = []model.EventPhoto{}
	}
	return tx.put(EventPhotos, photos)
}

// Attendance returns the attendance mapping, or an empty map.
func (tx *Tx) Attendance() (model.Attendance, error) {
	var att model.Attendance
	if err := tx.read(Attendance, &att); err != nil {
		return nil, err
	}
	if att == nil {
		att = model.Attendance{}
	}
	return att, nil
}

// PutAttendance replaces the attendance mapping.
func (tx *Tx) PutAttendance(att model.Attendance) error {
	if att == nil {
		att = model.Attendance{}
	}
	return tx.put(Attendance, att)
}

// Messages returns the message log in insertion order, or an empty slice.
func (tx *Tx) Messages() ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	if err := tx.read(ChatMessages, &msgs); err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.ChatMessage{}
	}
	return msgs, nil
}

// PutMessages replaces the chatMessages collection.
func (tx *Tx) PutMessages(msgs []model.ChatMessage) error {
	if msgs == nil {
		msgs = []model.ChatMessage{}
	}
	return tx.put(ChatMessages, msgs)
}
