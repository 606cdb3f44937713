package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/vuledev/sams-api/internal/models"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

type authStudentRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Student, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

type refreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	FindByToken(ctx context.Context, token string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id string) error
	RevokeAllForAccount(ctx context.Context, accountID string, kind models.AccountKind) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
	SingleSession   bool
}

// AuthService authenticates admin and student accounts and manages their
// token sessions.
type AuthService struct {
	users     authUserRepository
	students  authStudentRepository
	tokens    refreshTokenRepository
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService.
func NewAuthService(users authUserRepository, students authStudentRepository, tokens refreshTokenRepository, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{users: users, students: students, tokens: tokens, audit: audit, validator: validate, logger: logger, config: config}
}

// Login authenticates the given kind of account and issues a token pair.
func (s *AuthService) Login(ctx context.Context, kind models.AccountKind, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	var (
		info   models.AccountInfo
		hash   string
		active bool
		season int
	)
	switch kind {
	case models.AccountKindAdmin:
		user, err := s.users.FindByEmail(ctx, req.Email)
		if err != nil {
			return nil, credentialError(err)
		}
		info = models.AccountInfo{ID: user.ID, Email: user.Email, FullName: user.FullName, Kind: kind, Roles: append([]models.Role{}, user.Roles...)}
		hash, active, season = user.PasswordHash, user.Active, user.LatestSeason
	case models.AccountKindStudent:
		student, err := s.students.FindByEmail(ctx, req.Email)
		if err != nil {
			return nil, credentialError(err)
		}
		info = models.AccountInfo{ID: student.ID, Email: student.Email, FullName: student.FullName, Kind: kind}
		hash, active = student.PasswordHash, student.Active
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown account kind %q", kind))
	}

	if !active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	if s.config.SingleSession {
		if err := s.tokens.RevokeAllForAccount(ctx, info.ID, kind); err != nil {
			s.logger.Warn("failed to revoke previous sessions", zap.Error(err))
		}
	}

	accessToken, err := s.generateAccessToken(info)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	refreshValue, err := generateOpaqueToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	now := time.Now().UTC()
	if err := s.tokens.Create(ctx, &models.RefreshToken{
		AccountID: info.ID,
		Kind:      kind,
		Token:     refreshValue,
		ExpiresAt: now.Add(s.config.RefreshTokenTTL),
		IPAddress: req.IP,
		UserAgent: req.UserAgent,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	switch kind {
	case models.AccountKindAdmin:
		if err := s.users.UpdateLastLogin(ctx, info.ID, now); err != nil {
			s.logger.Warn("failed to update last login", zap.Error(err))
		}
	case models.AccountKindStudent:
		if err := s.students.UpdateLastLogin(ctx, info.ID, now); err != nil {
			s.logger.Warn("failed to update last login", zap.Error(err))
		}
	}

	if s.audit != nil && kind == models.AccountKindAdmin {
		actor := models.Actor{ID: info.ID, Email: info.Email, FullName: info.FullName, Roles: info.Roles, LatestSeason: season, Active: active}
		s.audit.Record(actor, models.AuditLog{Action: models.AuditActionLogin, Resource: "auth", IPAddress: req.IP}, nil)
	}

	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshValue,
		ExpiresIn:    int64(s.config.AccessTokenTTL.Seconds()),
		Account:      info,
		IssuedAt:     now,
	}, nil
}

// Refresh rotates a refresh token and issues a new access token.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	stored, err := s.tokens.FindByToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not recognised")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch refresh token")
	}
	if stored.Revoked || time.Now().UTC().After(stored.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token expired or revoked")
	}

	info, err := s.accountInfo(ctx, stored.Kind, stored.AccountID)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.generateAccessToken(*info)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	refreshValue, err := generateOpaqueToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	if err := s.tokens.Revoke(ctx, stored.ID); err != nil {
		s.logger.Warn("failed to revoke rotated refresh token", zap.Error(err))
	}
	now := time.Now().UTC()
	if err := s.tokens.Create(ctx, &models.RefreshToken{
		AccountID: stored.AccountID,
		Kind:      stored.Kind,
		Token:     refreshValue,
		ExpiresAt: now.Add(s.config.RefreshTokenTTL),
		IPAddress: req.IP,
		UserAgent: req.UserAgent,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	return &models.RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshValue,
		ExpiresIn:    int64(s.config.AccessTokenTTL.Seconds()),
		IssuedAt:     now,
	}, nil
}

// ChangePassword verifies the old password, stores the new hash, and
// revokes every live session for the account.
func (s *AuthService) ChangePassword(ctx context.Context, kind models.AccountKind, accountID string, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid password payload")
	}

	var currentHash string
	switch kind {
	case models.AccountKindAdmin:
		user, err := s.users.FindByID(ctx, accountID)
		if err != nil {
			return accountLookupError(err)
		}
		currentHash = user.PasswordHash
	case models.AccountKindStudent:
		student, err := s.students.FindByID(ctx, accountID)
		if err != nil {
			return accountLookupError(err)
		}
		currentHash = student.PasswordHash
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown account kind %q", kind))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(currentHash), []byte(req.OldPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrInvalidCredentials, "old password does not match")
	}
	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	switch kind {
	case models.AccountKindAdmin:
		err = s.users.UpdatePassword(ctx, accountID, string(newHash))
	case models.AccountKindStudent:
		err = s.students.UpdatePassword(ctx, accountID, string(newHash))
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	if err := s.tokens.RevokeAllForAccount(ctx, accountID, kind); err != nil {
		s.logger.Warn("failed to revoke sessions after password change", zap.Error(err))
	}
	return nil
}

// Logout revokes every live refresh token for the account. The access
// token stays valid until it expires.
func (s *AuthService) Logout(ctx context.Context, kind models.AccountKind, accountID string) error {
	if err := s.tokens.RevokeAllForAccount(ctx, accountID, kind); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke sessions")
	}
	if s.audit != nil && kind == models.AccountKindAdmin {
		if info, err := s.accountInfo(ctx, kind, accountID); err == nil {
			s.audit.Record(models.Actor{ID: info.ID, Email: info.Email, FullName: info.FullName, Roles: info.Roles, Active: true},
				models.AuditLog{Action: models.AuditActionLogout, Resource: "auth"}, nil)
		}
	}
	return nil
}

// ParseToken validates an access token and returns its claims.
func (s *AuthService) ParseToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	return claims, nil
}

func (s *AuthService) accountInfo(ctx context.Context, kind models.AccountKind, id string) (*models.AccountInfo, error) {
	switch kind {
	case models.AccountKindAdmin:
		user, err := s.users.FindByID(ctx, id)
		if err != nil {
			return nil, accountLookupError(err)
		}
		if !user.Active {
			return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
		}
		return &models.AccountInfo{ID: user.ID, Email: user.Email, FullName: user.FullName, Kind: kind, Roles: append([]models.Role{}, user.Roles...)}, nil
	case models.AccountKindStudent:
		student, err := s.students.FindByID(ctx, id)
		if err != nil {
			return nil, accountLookupError(err)
		}
		if !student.Active {
			return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
		}
		return &models.AccountInfo{ID: student.ID, Email: student.Email, FullName: student.FullName, Kind: kind}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown account kind %q", kind))
}

func (s *AuthService) generateAccessToken(info models.AccountInfo) (string, error) {
	now := time.Now().UTC()
	claims := models.JWTClaims{
		AccountID: info.ID,
		Kind:      info.Kind,
		Email:     info.Email,
		Roles:     info.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   info.ID,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessTokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

func generateOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func credentialError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch account")
}

func accountLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "account not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch account")
}
