package service

import (
	"context"
	"errors"
	"fmt"

	"go-inventory-tree/internal/model"
	"go-inventory-tree/internal/repository"
	"go-inventory-tree/pkg/apperror"
	"go-inventory-tree/pkg/database"
	"go-inventory-tree/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateUserInput struct {
	Username string         `json:"username" validate:"required,min=3,max=50"`
	Email    string         `json:"email" validate:"required,email,max=100"`
	Password string         `json:"password" validate:"required,min=6"`
	FullName string         `json:"full_name" validate:"max=100"`
	Role     model.UserRole `json:"role" validate:"required"`
}

type UpdateUserInput struct {
	Email    *string         `json:"email" validate:"omitempty,email,max=100"`
	Password *string         `json:"password,omitempty" validate:"omitempty,min=6"`
	FullName *string         `json:"full_name" validate:"omitempty,max=100"`
	Role     *model.UserRole `json:"role"`
	IsActive *bool           `json:"is_active"`
}

type UserService interface {
	List(ctx context.Context) ([]model.UserResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*model.UserResponse, error)
	Create(ctx context.Context, input *CreateUserInput, actorID uuid.UUID) (*model.UserResponse, error)
	Update(ctx context.Context, id uuid.UUID, input *UpdateUserInput, actorID uuid.UUID) (*model.UserResponse, error)
	Delete(ctx context.Context, id, actorID uuid.UUID) error
	EnsureAdmin(ctx context.Context, username, email, password string) (bool, error)
}

type userService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) UserService {
	return &userService{users: users}
}

func (s *userService) List(ctx context.Context) ([]model.UserResponse, error) {
	users, err := s.users.FindAll(ctx)
	if err != nil {
		return nil, apperror.Unexpected(err, "list users")
	}
	out := make([]model.UserResponse, len(users))
	for i := range users {
		out[i] = users[i].ToResponse()
	}
	return out, nil
}

func (s *userService) Get(ctx context.Context, id uuid.UUID) (*model.UserResponse, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, apperror.CodeUserNotFound, "user", id)
	}
	resp := user.ToResponse()
	return &resp, nil
}

func (s *userService) Create(ctx context.Context, input *CreateUserInput, actorID uuid.UUID) (*model.UserResponse, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	if !input.Role.Valid() {
		return nil, errInvalidRole(input.Role)
	}
	user := &model.User{
		Username: input.Username,
		Email:    input.Email,
		FullName: input.FullName,
		Role:     input.Role,
		IsActive: true,
	}
	user.CreatedBy = actorName(actorID)
	user.UpdatedBy = user.CreatedBy
	if err := user.SetPassword(input.Password); err != nil {
		return nil, apperror.Unexpected(err, "hash password")
	}
	if err := s.users.Create(ctx, user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errDuplicateUser(input.Username, input.Email)
		}
		return nil, apperror.Unexpected(err, "create user")
	}
	resp := user.ToResponse()
	return &resp, nil
}

func (s *userService) Update(ctx context.Context, id uuid.UUID, input *UpdateUserInput, actorID uuid.UUID) (*model.UserResponse, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, apperror.CodeUserNotFound, "user", id)
	}
	if input.Email != nil {
		user.Email = *input.Email
	}
	if input.FullName != nil {
		user.FullName = *input.FullName
	}
	if input.Role != nil {
		if !input.Role.Valid() {
			return nil, errInvalidRole(*input.Role)
		}
		user.Role = *input.Role
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	if input.Password != nil {
		if err := user.SetPassword(*input.Password); err != nil {
			return nil, apperror.Unexpected(err, "hash password")
		}
		user.TokenVersion = uuid.New().String()
	}
	user.UpdatedBy = actorName(actorID)
	if err := s.users.Save(ctx, user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errDuplicateUser(user.Username, user.Email)
		}
		return nil, apperror.Unexpected(err, "update user")
	}
	resp := user.ToResponse()
	return &resp, nil
}

func (s *userService) Delete(ctx context.Context, id, actorID uuid.UUID) error {
	if id == actorID {
		return apperror.PreconditionFailed(apperror.CodeInvalidInput, "cannot delete your own account")
	}
	if _, err := s.users.FindByID(ctx, id); err != nil {
		return notFoundOr(err, apperror.CodeUserNotFound, "user", id)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return apperror.Unexpected(err, "delete user")
	}
	return nil
}

// EnsureAdmin creates the bootstrap administrator unless a user with that
// username or email already exists. It never changes an existing password.
func (s *userService) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	for _, login := range []string{username, email} {
		_, err := s.users.FindByLogin(ctx, login)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperror.Unexpected(err, "load user")
		}
	}
	admin := &model.User{
		Username: username,
		Email:    email,
		FullName: "Administrator",
		Role:     model.RoleAdministrator,
		IsActive: true,
	}
	admin.CreatedBy = "system"
	admin.UpdatedBy = "system"
	if err := admin.SetPassword(password); err != nil {
		return false, apperror.Unexpected(err, "hash password")
	}
	if err := s.users.Create(ctx, admin); err != nil {
		if database.IsUniqueViolation(err) {
			return false, nil
		}
		return false, apperror.Unexpected(err, "create admin")
	}
	return true, nil
}

func errInvalidRole(role model.UserRole) error {
	return apperror.Validation(apperror.CodeInvalidInput, fmt.Sprintf("unknown role '%s'", role)).
		WithParams(map[string]interface{}{"field": "role", "value": string(role)})
}

func errDuplicateUser(username, email string) error {
	return apperror.Conflict(apperror.CodeDuplicateUser, "username or email already exists").
		WithParams(map[string]interface{}{"username": username, "email": email})
}
