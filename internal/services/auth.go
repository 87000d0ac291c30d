package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"civic-reporter/internal/apperror"
	"civic-reporter/internal/logger"
	"civic-reporter/internal/models"
	"civic-reporter/internal/store"
	"civic-reporter/pkg/auth"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials covers both an unknown email and a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

const minPasswordLength = 6

type NewUser struct {
	Name       string
	Email      string
	Password   string
	Role       models.UserRole
	Department string
}

// AuthService registers users and issues access tokens.
type AuthService struct {
	users      store.UserStore
	jwtManager *auth.JWTManager
	now        func() time.Time
}

func NewAuthService(users store.UserStore, jwtManager *auth.JWTManager) *AuthService {
	return &AuthService{users: users, jwtManager: jwtManager, now: time.Now}
}

// Register creates a citizen account. Officials are created through CreateUser.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.User, string, error) {
	user, err := s.CreateUser(ctx, NewUser{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     models.RoleCitizen,
	})
	if err != nil {
		return nil, "", err
	}

	token, err := s.jwtManager.GenerateToken(user.ID, user.Email, user.Role.String())
	if err != nil {
		return nil, "", apperror.Persistence(err, "generate token")
	}
	return user, token, nil
}

// CreateUser stores a user with any role.
func (s *AuthService) CreateUser(ctx context.Context, input NewUser) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperror.Validation("name is required")
	}
	if !strings.Contains(email, "@") {
		return nil, apperror.Validation("invalid email %q", input.Email)
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperror.Validation("password must be at least %d characters", minPasswordLength)
	}
	if input.Role == "" {
		input.Role = models.RoleCitizen
	}
	if !input.Role.IsValid() {
		return nil, apperror.Validation("invalid role %q", input.Role)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Persistence(err, "hash password")
	}

	now := s.now()
	user, err := s.users.CreateUser(ctx, &models.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         input.Role,
		Department:   strings.TrimSpace(input.Department),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("User created", map[string]interface{}{
		"user_id": user.ID.Hex(),
		"role":    user.Role,
	})
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	now := s.now()
	if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
		logger.WithError(err, "auth").Warn("Failed to record login time")
	} else {
		user.LastLoginAt = &now
	}

	token, err := s.jwtManager.GenerateToken(user.ID, user.Email, user.Role.String())
	if err != nil {
		return nil, "", apperror.Persistence(err, "generate token")
	}
	return user, token, nil
}

func (s *AuthService) Me(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.users.FindUserByID(ctx, id)
}
