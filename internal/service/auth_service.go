package service

import (
	"context"
	"errors"
	"time"

	"go-inventory-tree/internal/model"
	"go-inventory-tree/internal/repository"
	"go-inventory-tree/pkg/apperror"
	"go-inventory-tree/pkg/jwt"
	"go-inventory-tree/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LoginInput struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordInput struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

type LoginResponse struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	User      model.UserResponse `json:"user"`
}

type AuthService interface {
	Login(ctx context.Context, input *LoginInput) (*LoginResponse, error)
	ValidateToken(ctx context.Context, tokenString string) (*model.User, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, input *ChangePasswordInput) error
	ResetPassword(ctx context.Context, login, newPassword string) error
	Logout(ctx context.Context, userID uuid.UUID) error
}

type authService struct {
	users  repository.UserRepository
	tokens *jwt.Manager
	now    func() time.Time
}

func NewAuthService(users repository.UserRepository, tokens *jwt.Manager) AuthService {
	return &authService{users: users, tokens: tokens, now: time.Now}
}

func errInvalidCredentials() error {
	return apperror.Unauthorized(apperror.CodeInvalidCredentials, "invalid username or password")
}

func errInvalidToken(msg string) error {
	return apperror.Unauthorized(apperror.CodeInvalidToken, msg)
}

// Login rotates the user's token version, so any token issued earlier
// stops validating.
func (s *authService) Login(ctx context.Context, input *LoginInput) (*LoginResponse, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	user, err := s.users.FindByLogin(ctx, input.Login)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errInvalidCredentials()
	}
	if err != nil {
		return nil, apperror.Unexpected(err, "load user")
	}
	if !user.IsActive || !user.CheckPassword(input.Password) {
		return nil, errInvalidCredentials()
	}

	version := uuid.New().String()
	if err := s.users.UpdateTokenVersion(ctx, user.ID, version); err != nil {
		return nil, apperror.Unexpected(err, "rotate token version")
	}
	now := s.now()
	if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
		return nil, apperror.Unexpected(err, "record login")
	}
	user.TokenVersion = version
	user.LastLoginAt = &now

	token, expires, err := s.tokens.GenerateToken(user.ID, user.Username, string(user.Role), version)
	if err != nil {
		return nil, apperror.Unexpected(err, "sign token")
	}
	return &LoginResponse{Token: token, ExpiresAt: expires, User: user.ToResponse()}, nil
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*model.User, error) {
	claims, err := s.tokens.ValidateToken(tokenString)
	if errors.Is(err, jwt.ErrMissingToken) {
		return nil, errInvalidToken("Missing authorization token")
	}
	if err != nil {
		return nil, errInvalidToken("Invalid or expired token")
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errInvalidToken("User not found")
	}
	if err != nil {
		return nil, apperror.Unexpected(err, "load user")
	}
	if !user.IsActive {
		return nil, errInvalidToken("User account is inactive")
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, errInvalidToken("Session expired (logged in elsewhere)")
	}
	return user, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID uuid.UUID, input *ChangePasswordInput) error {
	if err := validator.Validate(input); err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return notFoundOr(err, apperror.CodeUserNotFound, "user", userID)
	}
	if !user.CheckPassword(input.OldPassword) {
		return apperror.Validation(apperror.CodeInvalidCredentials, "current password is incorrect").
			WithParams(map[string]interface{}{"field": "old_password"})
	}
	return s.setPassword(ctx, user, input.NewPassword)
}

// ResetPassword sets a password without knowing the old one. Used by the CLI.
func (s *authService) ResetPassword(ctx context.Context, login, newPassword string) error {
	if len(newPassword) < 6 {
		return apperror.Validation(apperror.CodeInvalidInput, "password must be at least 6 characters").
			WithParams(map[string]interface{}{"field": "password"})
	}
	user, err := s.users.FindByLogin(ctx, login)
	if err != nil {
		return notFoundOr(err, apperror.CodeUserNotFound, "user", login)
	}
	return s.setPassword(ctx, user, newPassword)
}

func (s *authService) setPassword(ctx context.Context, user *model.User, password string) error {
	if err := user.SetPassword(password); err != nil {
		return apperror.Unexpected(err, "hash password")
	}
	if err := s.users.UpdatePassword(ctx, user.ID, user.Password); err != nil {
		return apperror.Unexpected(err, "update password")
	}
	// outstanding sessions end with the old password
	if err := s.users.UpdateTokenVersion(ctx, user.ID, uuid.New().String()); err != nil {
		return apperror.Unexpected(err, "rotate token version")
	}
	return nil
}

func (s *authService) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.users.UpdateTokenVersion(ctx, userID, uuid.New().String()); err != nil {
		return apperror.Unexpected(err, "rotate token version")
	}
	return nil
}
