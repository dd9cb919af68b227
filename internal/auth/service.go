package auth

import (
	"errors"
	"fmt"

	"optiondesk/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrEmailTaken means a user with this email already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials means the email/password pair did not match.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserNotFound means no user exists with the given id.
	ErrUserNotFound = errors.New("user not found")
)

// RegisterInput is the data needed to create a user.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// Service implements registration and login over the user store.
type Service struct {
	db          *gorm.DB
	logger      *zap.Logger
	passwords   *PasswordManager
	tokens      *JWTManager
	signupBonus float64
}

// NewService creates a new auth service.
func NewService(db *gorm.DB, logger *zap.Logger, passwords *PasswordManager, tokens *JWTManager, signupBonus float64) *Service {
	return &Service{
		db:          db,
		logger:      logger.Named("auth"),
		passwords:   passwords,
		tokens:      tokens,
		signupBonus: signupBonus,
	}
}

// Tokens exposes the JWT manager for middleware wiring.
func (s *Service) Tokens() *JWTManager {
	return s.tokens
}

// Register creates a user plus their account row and returns a signed
// access token. The account starts at the configured signup bonus.
func (s *Service) Register(in RegisterInput) (*models.User, string, error) {
	if err := s.passwords.ValidateStrength(in.Password); err != nil {
		return nil, "", err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, "", err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", in.Email).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if count > 0 {
			return ErrEmailTaken
		}
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		account := &models.Account{
			UserID:  user.ID,
			Balance: s.signupBonus,
		}
		if err := tx.Create(account).Error; err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return user, token, nil
}

// Login verifies credentials and returns the user with a signed access
// token. Unknown emails and wrong passwords are indistinguishable to the
// caller.
func (s *Service) Login(email, password string) (*models.User, string, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to load user: %w", err)
	}

	if !s.passwords.Verify(password, user.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(&user)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("User logged in", zap.String("user_id", user.ID))
	return &user, token, nil
}

// UserByID loads a user by id.
func (s *Service) UserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}
