package model

import (
	"fmt"
	"strings"
	"time"
)

// Role distinguishes administrators from volunteers.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleVolunteer Role = "volunteer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleVolunteer:
		return true
	}
	return false
}

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// RegistrationStatus is the state of a volunteer's registration for an event.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
)

// AttendanceStatus is a volunteer's recorded presence at an event.
type AttendanceStatus string

const (
	Present AttendanceStatus = "present"
	Absent  AttendanceStatus = "absent"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case Present, Absent:
		return true
	}
	return false
}

// ParseAttendanceStatus converts a raw string into an AttendanceStatus.
func ParseAttendanceStatus(s string) (AttendanceStatus, error) {
	st := AttendanceStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// User is an administrator or a volunteer. Password holds a bcrypt hash.
type User struct {
	ID       string `json:"id"`
	Role     Role   `json:"role"`
	Name     string `json:"name"`
	RollNo   string `json:"rollNo,omitempty"`
	Branch   string `json:"branch,omitempty"`
	YearSec  string `json:"yearSec,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
	Approved bool   `json:"approved"`
}

// IsVolunteer reports whether u has the volunteer role.
func (u User) IsVolunteer() bool { return u.Role == RoleVolunteer }

// Registration links a volunteer to an event.
type Registration struct {
	VolunteerID string             `json:"volunteerId"`
	Status      RegistrationStatus `json:"status"`
}

// Event is an organised activity volunteers register for.
type Event struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Date          string         `json:"date"`
	Description   string         `json:"description"`
	Registrations []Registration `json:"registrations"`
}

// Registration returns the registration for volunteerID, if any.
func (e Event) Registration(volunteerID string) (Registration, bool) {
	for _, r := range e.Registrations {
		if r.VolunteerID == volunteerID {
			return r, true
		}
	}
	return Registration{}, false
}

// IsConfirmed reports whether volunteerID holds a confirmed registration.
func (e Event) IsConfirmed(volunteerID string) bool {
	r, ok := e.Registration(volunteerID)
	return ok && r.Status == RegistrationConfirmed
}

// Confirmed counts confirmed registrations.
func (e Event) Confirmed() int {
	n := 0
	for _, r := range e.Registrations {
		if r.Status == RegistrationConfirmed {
			n++
		}
	}
	return n
}

// EventPhoto is a gallery entry. EventName is a free-text label, not a reference.
type EventPhoto struct {
	ID          string `json:"id"`
	ImageURL    string `json:"imageUrl"`
	Description string `json:"description"`
	EventName   string `json:"eventName"`
	Date        string `json:"date"`
	PublicID    string `json:"publicId,omitempty"`
}

// AttendanceRecord maps volunteer id to status for a single event.
type AttendanceRecord map[string]AttendanceStatus

// Attendance maps event id to that event's record.
type Attendance map[string]AttendanceRecord

// ChatMessage is an entry in the shared message log.
type ChatMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	SenderRole Role      `json:"senderRole"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}
