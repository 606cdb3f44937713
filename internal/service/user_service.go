package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/vuledev/sams-api/internal/models"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

var knownRoles = map[models.Role]struct{}{
	models.RoleSuperAdmin: {},
	models.RoleAdmin:      {},
	models.RoleBHV:        {},
	models.RoleBKT:        {},
	models.RoleBTT:        {},
	models.RoleBHD:        {},
}

// CreateUserRequest is the payload for registering an admin account.
type CreateUserRequest struct {
	Email        string        `json:"email" validate:"required,email"`
	Password     string        `json:"password" validate:"required,min=8"`
	FullName     string        `json:"full_name" validate:"required"`
	Roles        []models.Role `json:"roles" validate:"required,min=1"`
	LatestSeason int           `json:"latest_season" validate:"gte=0"`
	Active       *bool         `json:"active"`
}

// UpdateUserRequest is the payload for editing an admin account.
type UpdateUserRequest struct {
	Email        string        `json:"email" validate:"omitempty,email"`
	FullName     string        `json:"full_name"`
	Roles        []models.Role `json:"roles"`
	LatestSeason *int          `json:"latest_season" validate:"omitempty,gte=0"`
	Active       *bool         `json:"active"`
}

// UserService manages admin accounts. Every operation requires a
// privileged actor.
type UserService struct {
	repo      userRepository
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo userRepository, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns admin accounts matching the filter.
func (s *UserService) List(ctx context.Context, actor models.Actor, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if !actor.IsSuperAdmin() {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only privileged accounts manage admins")
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, paginate(total, filter.Page, filter.PageSize), nil
}

// Get fetches one admin account.
func (s *UserService) Get(ctx context.Context, actor models.Actor, id string) (*models.User, error) {
	if !actor.IsSuperAdmin() && actor.ID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only privileged accounts view other admins")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	return user, nil
}

// Create registers a new admin account.
func (s *UserService) Create(ctx context.Context, actor models.Actor, req CreateUserRequest) (*models.User, error) {
	if !actor.IsSuperAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only privileged accounts manage admins")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	if err := validateRoles(req.Roles); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Roles:        append([]string{}, req.Roles...),
		LatestSeason: req.LatestSeason,
		Active:       active,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	s.recordAudit(actor, models.AuditActionCreate, user)
	return user, nil
}

// Update edits an admin account's profile and role tags.
func (s *UserService) Update(ctx context.Context, actor models.Actor, id string, req UpdateUserRequest) (*models.User, error) {
	if !actor.IsSuperAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only privileged accounts manage admins")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if req.Email != "" {
		user.Email = req.Email
	}
	if req.FullName != "" {
		user.FullName = req.FullName
	}
	if req.Roles != nil {
		if err := validateRoles(req.Roles); err != nil {
			return nil, err
		}
		user.Roles = append([]string{}, req.Roles...)
	}
	if req.LatestSeason != nil {
		user.LatestSeason = *req.LatestSeason
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	s.recordAudit(actor, models.AuditActionUpdate, user)
	return user, nil
}

// Delete removes an admin account. Self-deletion is rejected so the last
// privileged account cannot lock itself out mid-session.
func (s *UserService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if !actor.IsSuperAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only privileged accounts manage admins")
	}
	if actor.ID == id {
		return appErrors.Clone(appErrors.ErrValidation, "cannot delete your own account")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	s.recordAudit(actor, models.AuditActionDelete, user)
	return nil
}

func (s *UserService) recordAudit(actor models.Actor, action string, user *models.User) {
	if s.audit == nil {
		return
	}
	s.audit.Record(actor, models.AuditLog{
		Action:     action,
		Resource:   "users",
		ResourceID: &user.ID,
		Season:     user.LatestSeason,
	}, map[string]interface{}{"email": user.Email, "roles": user.Roles})
}

func validateRoles(roles []models.Role) error {
	for _, r := range roles {
		if _, ok := knownRoles[r]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown role %q", r))
		}
	}
	return nil
}
