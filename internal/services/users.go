package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"civicpulse/internal/models"
	"civicpulse/internal/store"
)

// Profile is what the identity provider tells us about a user at login.
type Profile struct {
	UID   string
	Name  string
	Email string
	Image string
}

type UserService struct {
	users store.UserStore
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewUserService(users store.UserStore, log logrus.FieldLogger) *UserService {
	return &UserService{users: users, log: log.WithField("component", "users"), now: time.Now}
}

// Login creates the user as a citizen on first sight, and otherwise only
// refreshes the last login time.
func (s *UserService) Login(ctx context.Context, p Profile) (*models.User, error) {
	email := strings.TrimSpace(p.Email)
	if email == "" {
		return nil, validation("email is required")
	}
	user, err := s.users.UpsertUser(ctx, &models.User{
		UID:   p.UID,
		Name:  strings.TrimSpace(p.Name),
		Email: email,
		Image: p.Image,
		Role:  models.RoleCitizen,
	}, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, notFound(err, "user", email)
	}
	return user, nil
}

// Role returns the role of the user, defaulting to citizen for unknown users.
func (s *UserService) Role(ctx context.Context, email string) (string, error) {
	user, err := s.Get(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.RoleCitizen, nil
		}
		return "", err
	}
	return user.Role, nil
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// SetBlocked blocks or unblocks the user with email on behalf of actor.
func (s *UserService) SetBlocked(ctx context.Context, email string, blocked bool, actor string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return validation("email is required")
	}
	by := actor
	if !blocked {
		by = ""
	}
	ok, err := s.users.SetBlocked(ctx, email, blocked, by)
	if err != nil {
		return fmt.Errorf("set blocked: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, email)
	}
	s.log.WithFields(logrus.Fields{"email": email, "blocked": blocked, "actor": actor}).Info("user block status changed")
	return nil
}
