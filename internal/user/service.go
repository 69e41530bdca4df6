package user

import (
	"context"
	defError "errors"

	"manual-approval-workflow/internal/domain"
	"manual-approval-workflow/internal/errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Service defines the interface for user business logic
type Service interface {
	Register(user *domain.User) error
	Login(email, password string) (*domain.User, error)
	GetUserByID(id uint64) (*domain.User, error)
	SearchUsers(ctx context.Context, query string) ([]domain.SafeUser, error)
	DeactivateUser(id uint64) error
	IncreaseTokenVersion(id uint64) error
}

// DefaultService implements Service
type DefaultService struct {
	repository UserRepository
}

// NewService creates a new user service
func NewService(repository UserRepository) Service {
	return &DefaultService{repository: repository}
}

// Register registers a new user
func (s *DefaultService) Register(user *domain.User) error {
	// Check if user with email already exists
	_, err := s.repository.FindByEmail(user.Email)
	if err != nil && !defError.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err == nil {
		return errors.UnprocessableEntity("User already registered", nil)
	}

	// Hash the password before saving
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.UnprocessableEntity("Can't hash password", err)
	}
	user.PasswordHash = string(hashedPassword)
	user.IsActive = true
	if user.Role == "" {
		user.Role = domain.RoleAuthor
	}

	// Create user
	return s.repository.Create(user)
}

// Login authenticates a user
func (s *DefaultService) Login(email, password string) (*domain.User, error) {
	// Find user by email
	user, err := s.repository.FindByEmail(email)
	if err != nil {
		return nil, errors.Unauthorized("User not found", err)
	}

	// Check if user is active
	if !user.IsActive {
		return nil, errors.Unauthorized("User is not active", nil)
	}

	// Check password
	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		return nil, errors.UnprocessableEntity("Wrong password", err)
	}

	return user, nil
}

// GetUserByID gets a user by ID
func (s *DefaultService) GetUserByID(id uint64) (*domain.User, error) {
	return s.repository.FindByID(id)
}

// SearchUsers finds active users matching the query
func (s *DefaultService) SearchUsers(ctx context.Context, query string) ([]domain.SafeUser, error) {
	users, err := s.repository.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	result := make([]domain.SafeUser, 0, len(users))
	for i := range users {
		result = append(result, users[i].ToSafeUser())
	}
	return result, nil
}

// DeactivateUser deactivates a user
func (s *DefaultService) DeactivateUser(id uint64) error {
	return s.repository.Deactivate(id)
}

// IncreaseTokenVersion invalidates the user's outstanding tokens
func (s *DefaultService) IncreaseTokenVersion(id uint64) error {
	return s.repository.IncreaseTokenVersion(id)
}
