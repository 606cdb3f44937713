package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vuledev/sams-api/internal/models"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
)

type authUserStub struct {
	user *models.User
}

func (s *authUserStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *authUserStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *authUserStub) UpdatePassword(ctx context.Context, id, hash string) error {
	s.user.PasswordHash = hash
	return nil
}

func (s *authUserStub) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return nil
}

type authStudentStub struct {
	student *models.StudentDetail
}

func (s *authStudentStub) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	if s.student == nil || s.student.Email != email {
		return nil, sql.ErrNoRows
	}
	return &s.student.Student, nil
}

func (s *authStudentStub) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s.student == nil || s.student.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.student, nil
}

func (s *authStudentStub) UpdatePassword(ctx context.Context, id, hash string) error {
	s.student.PasswordHash = hash
	return nil
}

func (s *authStudentStub) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return nil
}

type tokenRepoStub struct {
	tokens  map[string]*models.RefreshToken
	revoked []string
}

func (s *tokenRepoStub) Create(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if s.tokens == nil {
		s.tokens = map[string]*models.RefreshToken{}
	}
	s.tokens[token.Token] = token
	return nil
}

func (s *tokenRepoStub) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := s.tokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (s *tokenRepoStub) Revoke(ctx context.Context, id string) error {
	s.revoked = append(s.revoked, id)
	return nil
}

func (s *tokenRepoStub) RevokeAllForAccount(ctx context.Context, accountID string, kind models.AccountKind) error {
	s.revoked = append(s.revoked, "all:"+accountID)
	return nil
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func testAuthService(users *authUserStub, students *authStudentStub, tokens *tokenRepoStub) *AuthService {
	return NewAuthService(users, students, tokens, nil, nil, nil, AuthConfig{
		Secret:          "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "sams-api",
	})
}

func TestAuthServiceLoginAdmin(t *testing.T) {
	users := &authUserStub{user: &models.User{
		ID: "u1", Email: "admin@example.com", PasswordHash: hashOf(t, "secret123"),
		FullName: "Admin", Roles: pq.StringArray{models.RoleBHV}, LatestSeason: 3, Active: true,
	}}
	tokens := &tokenRepoStub{}
	svc := testAuthService(users, &authStudentStub{}, tokens)

	resp, err := svc.Login(context.Background(), models.AccountKindAdmin, models.LoginRequest{Email: "admin@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, models.AccountKindAdmin, resp.Account.Kind)

	claims, err := svc.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.AccountID)
	assert.Equal(t, []models.Role{models.RoleBHV}, claims.Roles)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	users := &authUserStub{user: &models.User{
		ID: "u1", Email: "admin@example.com", PasswordHash: hashOf(t, "secret123"), Active: true,
	}}
	svc := testAuthService(users, &authStudentStub{}, &tokenRepoStub{})

	_, err := svc.Login(context.Background(), models.AccountKindAdmin, models.LoginRequest{Email: "admin@example.com", Password: "nope-nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	users := &authUserStub{user: &models.User{
		ID: "u1", Email: "admin@example.com", PasswordHash: hashOf(t, "secret123"), Active: false,
	}}
	svc := testAuthService(users, &authStudentStub{}, &tokenRepoStub{})

	_, err := svc.Login(context.Background(), models.AccountKindAdmin, models.LoginRequest{Email: "admin@example.com", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginStudent(t *testing.T) {
	students := &authStudentStub{student: &models.StudentDetail{Student: models.Student{
		ID: "s1", Email: "student@example.com", PasswordHash: hashOf(t, "secret123"), FullName: "Student", Active: true,
	}}}
	svc := testAuthService(&authUserStub{}, students, &tokenRepoStub{})

	resp, err := svc.Login(context.Background(), models.AccountKindStudent, models.LoginRequest{Email: "student@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, models.AccountKindStudent, resp.Account.Kind)
	assert.Empty(t, resp.Account.Roles)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	users := &authUserStub{user: &models.User{
		ID: "u1", Email: "admin@example.com", PasswordHash: hashOf(t, "secret123"), Active: true,
	}}
	tokens := &tokenRepoStub{}
	svc := testAuthService(users, &authStudentStub{}, tokens)

	login, err := svc.Login(context.Background(), models.AccountKindAdmin, models.LoginRequest{Email: "admin@example.com", Password: "secret123"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.NotEmpty(t, tokens.revoked)
}

func TestAuthServiceRefreshRejectsExpired(t *testing.T) {
	tokens := &tokenRepoStub{tokens: map[string]*models.RefreshToken{
		"old": {ID: "t1", AccountID: "u1", Kind: models.AccountKindAdmin, Token: "old", ExpiresAt: time.Now().Add(-time.Hour)},
	}}
	svc := testAuthService(&authUserStub{}, &authStudentStub{}, tokens)

	_, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: "old"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePasswordRevokesSessions(t *testing.T) {
	users := &authUserStub{user: &models.User{
		ID: "u1", Email: "admin@example.com", PasswordHash: hashOf(t, "oldpassword"), Active: true,
	}}
	tokens := &tokenRepoStub{}
	svc := testAuthService(users, &authStudentStub{}, tokens)

	err := svc.ChangePassword(context.Background(), models.AccountKindAdmin, "u1", models.ChangePasswordRequest{OldPassword: "oldpassword", NewPassword: "newpassword"})
	require.NoError(t, err)
	assert.Contains(t, tokens.revoked, "all:u1")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.user.PasswordHash), []byte("newpassword")))
}

func TestAuthServiceChangePasswordWrongOld(t *testing.T) {
	users := &authUserStub{user: &models.User{
		ID: "u1", Email: "admin@example.com", PasswordHash: hashOf(t, "oldpassword"), Active: true,
	}}
	svc := testAuthService(users, &authStudentStub{}, &tokenRepoStub{})

	err := svc.ChangePassword(context.Background(), models.AccountKindAdmin, "u1", models.ChangePasswordRequest{OldPassword: "wrong-old", NewPassword: "newpassword"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceParseTokenRejectsTampered(t *testing.T) {
	users := &authUserStub{user: &models.User{
		ID: "u1", Email: "admin@example.com", PasswordHash: hashOf(t, "secret123"), Active: true,
	}}
	svc := testAuthService(users, &authStudentStub{}, &tokenRepoStub{})

	login, err := svc.Login(context.Background(), models.AccountKindAdmin, models.LoginRequest{Email: "admin@example.com", Password: "secret123"})
	require.NoError(t, err)

	_, err = svc.ParseToken(login.AccessToken + "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogoutRevokesSessions(t *testing.T) {
	users := &authUserStub{user: &models.User{
		ID: "u1", Email: "admin@example.com", PasswordHash: hashOf(t, "secret123"), Active: true,
	}}
	tokens := &tokenRepoStub{}
	svc := testAuthService(users, &authStudentStub{}, tokens)

	require.NoError(t, svc.Logout(context.Background(), models.AccountKindAdmin, "u1"))
	assert.Contains(t, tokens.revoked, "all:u1")
}
