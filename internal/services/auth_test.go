package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"civic-reporter/internal/apperror"
	"civic-reporter/internal/models"
	"civic-reporter/internal/store"
	"civic-reporter/pkg/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService() (*AuthService, *auth.JWTManager) {
	manager := auth.NewJWTManager("test-secret", time.Hour)
	return NewAuthService(store.NewMemoryStore(), manager), manager
}

func TestRegisterCreatesCitizen(t *testing.T) {
	svc, manager := newAuthService()

	user, token, err := svc.Register(context.Background(), "Ana", "Ana@Example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, models.RoleCitizen, user.Role)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.NotEqual(t, "secret123", user.PasswordHash)

	claims, err := manager.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "citizen", claims.Role)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "Ana", "ana@example.com", "secret123")
	require.NoError(t, err)
	_, _, err = svc.Register(ctx, "Other", "ANA@example.com", "secret456")
	assert.True(t, errors.Is(err, store.ErrEmailTaken))
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "", "a@b.c", "secret123")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	_, _, err = svc.Register(ctx, "Ana", "not-an-email", "secret123")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	_, _, err = svc.Register(ctx, "Ana", "a@b.c", "123")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestLogin(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, NewUser{
		Name:       "Official",
		Email:      "works@city.gov",
		Password:   "hunter22",
		Role:       models.RoleGovernment,
		Department: "Roads",
	})
	require.NoError(t, err)

	user, token, err := svc.Login(ctx, "works@city.gov", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.NotEmpty(t, token)
	assert.NotNil(t, user.LastLoginAt)

	_, _, err = svc.Login(ctx, "works@city.gov", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody@city.gov", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	me, err := svc.Me(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Roads", me.Department)
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc, _ := newAuthService()

	_, err := svc.CreateUser(context.Background(), NewUser{Name: "X", Email: "x@y.z", Password: "secret123", Role: "mayor"})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}
