package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"budgetbee/internal/database"
	"budgetbee/internal/logging"
	"budgetbee/internal/models"
)

var (
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)

const (
	maxUsernameLen = 50
	// bcrypt only looks at the first 72 bytes and x/crypto rejects longer input.
	maxPasswordBytes = 72

	timingGuardPassword = "budgetbee-timing-guard"
)

// InputError is a registration validation failure whose message is safe to
// show to the user.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }

// UserStore is the account store the service depends on.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// Service handles registration and credential checks
type Service struct {
	users     UserStore
	cost      int
	logger    logging.Logger
	guardHash string
}

// NewService creates a new auth service. cost is the bcrypt cost used for new
// password hashes.
func NewService(users UserStore, cost int, logger logging.Logger) (*Service, error) {
	guard, err := HashPassword(timingGuardPassword, cost)
	if err != nil {
		return nil, err
	}
	return &Service{
		users:     users,
		cost:      cost,
		logger:    logger,
		guardHash: guard,
	}, nil
}

// Register creates a new account.
func (s *Service) Register(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	// Fast path for the common case; the UNIQUE constraint below is what
	// actually closes the race between two concurrent registrations.
	exists, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return nil, ErrDuplicateUsername
	}

	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return nil, err
	}

	user := &models.User{Username: username, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrUserAlreadyExists) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info(ctx, "user registered", "username", user.Username, "user_id", user.ID)
	return user, nil
}

// Login verifies credentials. Unknown usernames and wrong passwords both
// yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			// Burn the same bcrypt time as a real comparison.
			_, _ = VerifyPassword(password, s.guardHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	valid, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Warn(ctx, "stored password hash is unusable", "username", username, "error", err)
		return nil, ErrInvalidCredentials
	}
	if !valid {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func validateCredentials(username, password string) error {
	switch {
	case username == "" || password == "":
		return &InputError{Message: "Username and password are required."}
	case utf8.RuneCountInString(username) > maxUsernameLen:
		return &InputError{Message: fmt.Sprintf("Username must be at most %d characters.", maxUsernameLen)}
	case len(password) > maxPasswordBytes:
		return &InputError{Message: fmt.Sprintf("Password must be at most %d bytes.", maxPasswordBytes)}
	}
	return nil
}
