package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vuledev/sams-api/internal/models"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
)

type userRepoStub struct {
	users map[string]*models.User
}

func (s *userRepoStub) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	out := []models.User{}
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (s *userRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *userRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	user.ID = "generated"
	if s.users == nil {
		s.users = map[string]*models.User{}
	}
	s.users[user.ID] = user
	return nil
}

func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	s.users[user.ID] = user
	return nil
}

func (s *userRepoStub) Delete(ctx context.Context, id string) error {
	delete(s.users, id)
	return nil
}

func TestUserServiceCreateHashesPassword(t *testing.T) {
	repo := &userRepoStub{}
	audit := &auditStub{}
	svc := NewUserService(repo, audit, nil, nil)

	user, err := svc.Create(context.Background(), superAdmin(), CreateUserRequest{
		Email:        "new@example.com",
		Password:     "correct-horse",
		FullName:     "New Admin",
		Roles:        []models.Role{models.RoleBHV},
		LatestSeason: 3,
	})
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct-horse")))
	assert.True(t, user.Active)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionCreate, audit.entries[0].Action)
	assert.Equal(t, "users", audit.entries[0].Resource)
}

func TestUserServiceCreateRequiresPrivilege(t *testing.T) {
	svc := NewUserService(&userRepoStub{}, nil, nil, nil)

	_, err := svc.Create(context.Background(), regularAdmin(3, models.RoleBHV), CreateUserRequest{
		Email:    "new@example.com",
		Password: "correct-horse",
		FullName: "New Admin",
		Roles:    []models.Role{models.RoleBHV},
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsForbidden(err))
}

func TestUserServiceCreateRejectsDuplicateEmail(t *testing.T) {
	repo := &userRepoStub{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "taken@example.com"},
	}}
	svc := NewUserService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), superAdmin(), CreateUserRequest{
		Email:    "taken@example.com",
		Password: "correct-horse",
		FullName: "New Admin",
		Roles:    []models.Role{models.RoleBHV},
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestUserServiceCreateRejectsUnknownRole(t *testing.T) {
	svc := NewUserService(&userRepoStub{}, nil, nil, nil)

	_, err := svc.Create(context.Background(), superAdmin(), CreateUserRequest{
		Email:    "new@example.com",
		Password: "correct-horse",
		FullName: "New Admin",
		Roles:    []models.Role{"JANITOR"},
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestUserServiceGetAllowsSelf(t *testing.T) {
	repo := &userRepoStub{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "self@example.com"},
	}}
	svc := NewUserService(repo, nil, nil, nil)

	self := regularAdmin(3, models.RoleBHV)
	self.ID = "u1"
	user, err := svc.Get(context.Background(), self, "u1")
	require.NoError(t, err)
	assert.Equal(t, "self@example.com", user.Email)

	_, err = svc.Get(context.Background(), self, "u2")
	require.Error(t, err)
	assert.True(t, appErrors.IsForbidden(err))
}

func TestUserServiceUpdateReplacesRoles(t *testing.T) {
	repo := &userRepoStub{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "a@example.com", Roles: []string{models.RoleBHV}, LatestSeason: 2},
	}}
	svc := NewUserService(repo, &auditStub{}, nil, nil)

	user, err := svc.Update(context.Background(), superAdmin(), "u1", UpdateUserRequest{
		Roles:        []models.Role{models.RoleBKT, models.RoleBTT},
		LatestSeason: intPtr(4),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleBKT, models.RoleBTT}, []string(user.Roles))
	assert.Equal(t, 4, user.LatestSeason)
	assert.Equal(t, "a@example.com", user.Email)
}

func TestUserServiceDeleteRejectsSelf(t *testing.T) {
	repo := &userRepoStub{users: map[string]*models.User{
		"sa": {ID: "sa", Email: "root@example.com"},
	}}
	svc := NewUserService(repo, nil, nil, nil)

	err := svc.Delete(context.Background(), superAdmin(), "sa")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, repo.users, "sa")
}

func TestUserServiceDeleteRecordsAudit(t *testing.T) {
	repo := &userRepoStub{users: map[string]*models.User{
		"u2": {ID: "u2", Email: "bye@example.com"},
	}}
	audit := &auditStub{}
	svc := NewUserService(repo, audit, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), superAdmin(), "u2"))
	assert.NotContains(t, repo.users, "u2")
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionDelete, audit.entries[0].Action)
}
