package model

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateUser      = errors.New("name or roll number already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidProfile     = errors.New("invalid profile")
	ErrNotApproved        = errors.New("volunteer not approved")
	ErrInvalidRole        = errors.New("invalid role")

	ErrEventNotFound        = errors.New("event not found")
	ErrInvalidEvent         = errors.New("invalid event")
	ErrAlreadyRegistered    = errors.New("already registered")
	ErrRegistrationNotFound = errors.New("registration not found")

	ErrNotConfirmed       = errors.New("volunteer registration not confirmed")
	ErrInvalidStatus      = errors.New("invalid attendance status")
	ErrAttendanceNotFound = errors.New("attendance not found")

	ErrEmptyMessage = errors.New("message text is empty")

	ErrPhotoNotFound = errors.New("photo not found")
	ErrInvalidPhoto  = errors.New("invalid photo")
)
