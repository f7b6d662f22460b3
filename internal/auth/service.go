package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ayush/livefeed/backend/internal/apperr"
	"github.com/ayush/livefeed/backend/internal/models"
	"github.com/ayush/livefeed/backend/internal/store"
	"github.com/ayush/livefeed/backend/internal/validation"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, email, name, hashedPw string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateStatus(ctx context.Context, id, status string) (*models.User, error)
}

// Service handles signup, login and the user status.
type Service struct {
	users    UserStore
	tokens   *JWTManager
	hashCost int
	log      *logrus.Entry
}

// Option configures a Service.
type Option func(*Service)

// WithHashCost overrides the bcrypt cost. Tests use it to stay fast.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

func NewService(users UserStore, tokens *JWTManager, log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		users:    users,
		tokens:   tokens,
		hashCost: HashCost,
		log:      log.WithField("component", "auth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup creates a user. A taken email is a conflict even when other fields
// are invalid; otherwise every field violation is reported together.
func (s *Service) Signup(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	if req.Email != "" {
		existing, err := s.users.GetUserByEmail(ctx, req.Email)
		switch {
		case err == nil && existing != nil:
			return nil, apperr.Conflict("User exists already")
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("lookup email: %w", err)
		}
	}

	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	hashed, err := hashPasswordCost(req.Password, s.hashCost)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, req.Email, req.Name, hashed)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, apperr.Conflict("User exists already")
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.WithField("user_id", user.ID).Info("user created")
	return user, nil
}

// Login checks the password and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (*models.AuthData, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("User cannot be found")
	}
	if err != nil {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	if err := CheckPassword(user.Password, password); err != nil {
		return nil, apperr.Unauthorized("Wrong password")
	}

	token, _, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &models.AuthData{Token: token, UserID: user.ID}, nil
}

// User returns the user with the given id.
func (s *Service) User(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("User cannot be found")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// UserStatus returns the status of the given user.
func (s *Service) UserStatus(ctx context.Context, userID string) (string, error) {
	user, err := s.User(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Status, nil
}

// UpdateStatus replaces the status of the given user.
func (s *Service) UpdateStatus(ctx context.Context, userID, status string) (*models.User, error) {
	req := models.StatusRequest{Status: strings.TrimSpace(status)}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.users.UpdateStatus(ctx, userID, req.Status)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("User cannot be found")
	}
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	return user, nil
}
