package attendance

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"volunteerhub/internal/metrics"
	"volunteerhub/internal/model"
	"volunteerhub/internal/store"
)

// Ledger records per-event attendance for confirmed registrants.
type Ledger struct {
	store *store.Store
}

// NewLedger creates a ledger on s.
func NewLedger(s *store.Store) *Ledger {
	return &Ledger{store: s}
}

// SheetEntry is one confirmed registrant on an event's marking sheet.
// Volunteers with nothing recorded are shown absent with Recorded false.
type SheetEntry struct {
	VolunteerID string                 `json:"volunteerId"`
	Name        string                 `json:"name"`
	RollNo      string                 `json:"rollNo"`
	Status      model.AttendanceStatus `json:"status"`
	Recorded    bool                   `json:"recorded"`
}

// Tally counts the stored entries of one event.
type Tally struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
}

// HistoryEntry is one event in a volunteer's attendance history.
type HistoryEntry struct {
	EventID   string                 `json:"eventId"`
	EventName string                 `json:"eventName"`
	Date      string                 `json:"date"`
	Status    model.AttendanceStatus `json:"status,omitempty"`
	Recorded  bool                   `json:"recorded"`
}

// Post merges marks into the event's record. Volunteers not named keep
// their previous status. Nothing is written unless the event exists, every
// status is valid and every volunteer is a confirmed registrant.
func (l *Ledger) Post(ctx context.Context, eventID string, marks model.AttendanceRecord) (rec model.AttendanceRecord, err error) {
	defer func() { metrics.Observe("attendance.post", err) }()

	err = l.store.Update(ctx, func(tx *store.Tx) error {
		events, err := tx.Events()
		if err != nil {
			return err
		}
		i := slices.IndexFunc(events, func(e model.Event) bool { return e.ID == eventID })
		if i < 0 {
			return model.ErrEventNotFound
		}
		for vid, st := range marks {
			if !st.Valid() {
				return fmt.Errorf("%w: %q for %s", model.ErrInvalidStatus, st, vid)
			}
			if !events[i].IsConfirmed(vid) {
				return fmt.Errorf("%w: %s", model.ErrNotConfirmed, vid)
			}
		}

		att, err := tx.Attendance()
		if err != nil {
			return err
		}
		rec = att[eventID]
		if rec == nil {
			rec = model.AttendanceRecord{}
		}
		for vid, st := range marks {
			rec[vid] = st
		}
		att[eventID] = rec
		return tx.PutAttendance(att)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes the event's whole record.
func (l *Ledger) Delete(ctx context.Context, eventID string) (err error) {
	defer func() { metrics.Observe("attendance.delete", err) }()

	return l.store.Update(ctx, func(tx *store.Tx) error {
		removed, err := RemoveRecord(tx, eventID)
		if err != nil {
			return err
		}
		if !removed {
			return model.ErrAttendanceNotFound
		}
		return nil
	})
}

// RemoveRecord drops the event's row inside an open transaction and
// reports whether one existed.
func RemoveRecord(tx *store.Tx, eventID string) (bool, error) {
	att, err := tx.Attendance()
	if err != nil {
		return false, err
	}
	if _, ok := att[eventID]; !ok {
		return false, nil
	}
	delete(att, eventID)
	return true, tx.PutAttendance(att)
}

// Record returns the stored record for the event.
func (l *Ledger) Record(ctx context.Context, eventID string) (model.AttendanceRecord, error) {
	att, err := l.store.Attendance(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := att[eventID]
	if !ok {
		return nil, model.ErrAttendanceNotFound
	}
	return rec, nil
}

// Sheet lists the event's confirmed registrants in registration order with
// their recorded status.
func (l *Ledger) Sheet(ctx context.Context, eventID string) (sheet []SheetEntry, err error) {
	err = l.store.View(ctx, func(tx *store.Tx) error {
		events, err := tx.Events()
		if err != nil {
			return err
		}
		i := slices.IndexFunc(events, func(e model.Event) bool { return e.ID == eventID })
		if i < 0 {
			return model.ErrEventNotFound
		}
		users, err := tx.Users()
		if err != nil {
			return err
		}
		att, err := tx.Attendance()
		if err != nil {
			return err
		}
		rec := att[eventID]

		sheet = []SheetEntry{}
		for _, r := range events[i].Registrations {
			if r.Status != model.RegistrationConfirmed {
				continue
			}
			entry := SheetEntry{VolunteerID: r.VolunteerID, Status: model.Absent}
			if j := slices.IndexFunc(users, func(u model.User) bool { return u.ID == r.VolunteerID }); j >= 0 {
				entry.Name = users[j].Name
				entry.RollNo = users[j].RollNo
			}
			if st, ok := rec[r.VolunteerID]; ok {
				entry.Status = st
				entry.Recorded = true
			}
			sheet = append(sheet, entry)
		}
		return nil
	})
	return sheet, err
}

// Tally counts present and absent entries stored for the event.
func (l *Ledger) Tally(ctx context.Context, eventID string) (Tally, error) {
	rec, err := l.Record(ctx, eventID)
	if err != nil {
		return Tally{}, err
	}
	var t Tally
	for _, st := range rec {
		switch st {
		case model.Present:
			t.Present++
		case model.Absent:
			t.Absent++
		}
	}
	return t, nil
}

// History lists the events volunteerID is confirmed for, newest first.
func (l *Ledger) History(ctx context.Context, volunteerID string) (hist []HistoryEntry, err error) {
	err = l.store.View(ctx, func(tx *store.Tx) error {
		events, err := tx.Events()
		if err != nil {
			return err
		}
		att, err := tx.Attendance()
		if err != nil {
			return err
		}
		hist = []HistoryEntry{}
		for _, e := range events {
			if !e.IsConfirmed(volunteerID) {
				continue
			}
			h := HistoryEntry{EventID: e.ID, EventName: e.Name, Date: e.Date}
			if st, ok := att[e.ID][volunteerID]; ok {
				h.Status = st
				h.Recorded = true
			}
			hist = append(hist, h)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(hist, func(a, b HistoryEntry) int { return strings.Compare(b.Date, a.Date) })
	return hist, nil
}
