// Package identity authenticates users, signs up volunteers and lets the
// administrator approve them.
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"volunteerhub/internal/credential"
	"volunteerhub/internal/metrics"
	"volunteerhub/internal/model"
	"volunteerhub/internal/store"
)

var validate = validator.New()

// Profile is what a volunteer submits at signup.
type Profile struct {
	Name     string `json:"name" validate:"required"`
	RollNo   string `json:"rollNo" validate:"required"`
	Branch   string `json:"branch"`
	YearSec  string `json:"yearSec"`
	Phone    string `json:"phone"`
	Password string `json:"password" validate:"required"`
}

// Service owns the users collection.
type Service struct {
	store *store.Store
}

// NewService creates an identity service on s.
func NewService(s *store.Store) *Service {
	return &Service{store: s}
}

// Login matches an administrator by name or a volunteer by roll number,
// case-insensitively, and checks the password. Approval is not consulted;
// callers decide how to treat an unapproved volunteer.
func (s *Service) Login(ctx context.Context, identifier, password string) (user model.User, err error) {
	defer func() { metrics.Observe("identity.login", err) }()

	users, err := s.store.Users(ctx)
	if err != nil {
		return model.User{}, err
	}
	id := strings.TrimSpace(identifier)
	for _, u := range users {
		if !matchesIdentifier(u, id) {
			continue
		}
		if credential.Check(password, u.Password) {
			return u, nil
		}
	}
	return model.User{}, model.ErrInvalidCredentials
}

func matchesIdentifier(u model.User, id string) bool {
	switch u.Role {
	case model.RoleAdmin:
		return strings.EqualFold(u.Name, id)
	case model.RoleVolunteer:
		return u.RollNo != "" && strings.EqualFold(u.RollNo, id)
	}
	return false
}

// Signup creates an unapproved volunteer. Name and roll number must not
// collide, ignoring case, with any existing user.
func (s *Service) Signup(ctx context.Context, p Profile) (user model.User, err error) {
	defer func() { metrics.Observe("identity.signup", err) }()

	p.Name = strings.TrimSpace(p.Name)
	p.RollNo = strings.TrimSpace(p.RollNo)
	if err := validate.Struct(p); err != nil {
		return model.User{}, fmt.Errorf("%w: %v", model.ErrInvalidProfile, err)
	}
	if len(p.Password) > credential.MaxPasswordBytes {
		return model.User{}, fmt.Errorf("%w: password longer than %d bytes", model.ErrInvalidProfile, credential.MaxPasswordBytes)
	}
	hash, err := credential.Hash(p.Password)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	err = s.store.Update(ctx, func(tx *store.Tx) error {
		users, err := tx.Users()
		if err != nil {
			return err
		}
		for _, u := range users {
			if strings.EqualFold(u.Name, p.Name) || (u.RollNo != "" && strings.EqualFold(u.RollNo, p.RollNo)) {
				return model.ErrDuplicateUser
			}
		}
		user = model.User{
			ID:       uuid.NewString(),
			Role:     model.RoleVolunteer,
			Name:     p.Name,
			RollNo:   p.RollNo,
			Branch:   strings.TrimSpace(p.Branch),
			YearSec:  strings.TrimSpace(p.YearSec),
			Phone:    strings.TrimSpace(p.Phone),
			Password: hash,
		}
		return tx.PutUsers(append(users, user))
	})
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

// ApproveUser marks the user approved. Approving twice is not an error.
func (s *Service) ApproveUser(ctx context.Context, userID string) (err error) {
	defer func() { metrics.Observe("identity.approve", err) }()

	return s.store.Update(ctx, func(tx *store.Tx) error {
		users, err := tx.Users()
		if err != nil {
			return err
		}
		for i := range users {
			if users[i].ID != userID {
				continue
			}
			if users[i].Approved {
				return nil
			}
			users[i].Approved = true
			return tx.PutUsers(users)
		}
		return model.ErrUserNotFound
	})
}

// User returns the user with id.
func (s *Service) User(ctx context.Context, id string) (model.User, error) {
	users, err := s.store.Users(ctx)
	if err != nil {
		return model.User{}, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

// RequireApproved returns the user when it is an approved volunteer.
func (s *Service) RequireApproved(ctx context.Context, id string) (model.User, error) {
	u, err := s.User(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if u.IsVolunteer() && !u.Approved {
		return model.User{}, model.ErrNotApproved
	}
	return u, nil
}

// PendingVolunteers lists volunteers awaiting approval in signup order.
func (s *Service) PendingVolunteers(ctx context.Context) ([]model.User, error) {
	users, err := s.store.Users(ctx)
	if err != nil {
		return nil, err
	}
	out := []model.User{}
	for _, u := range users {
		if u.IsVolunteer() && !u.Approved {
			out = append(out, u)
		}
	}
	return out, nil
}

// Volunteers lists approved volunteers whose name or roll number contains
// search, ignoring case. An empty search matches everyone.
func (s *Service) Volunteers(ctx context.Context, search string) ([]model.User, error) {
	users, err := s.store.Users(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(search))
	out := []model.User{}
	for _, u := range users {
		if !u.IsVolunteer() || !u.Approved {
			continue
		}
		if q == "" || strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.RollNo), q) {
			out = append(out, u)
		}
	}
	return out, nil
}
