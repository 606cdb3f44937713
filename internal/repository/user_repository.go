package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vuledev/sams-api/internal/models"
)

// UserRepository manages persistence for admin accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = "id, email, password_hash, full_name, roles, latest_season, active, last_login, created_at, updated_at"

// List returns admin accounts matching the provided filters.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if len(filter.Roles) > 0 {
		conditions = append(conditions, fmt.Sprintf("roles && $%d", len(args)+1))
		args = append(args, pq.Array(filter.Roles))
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(email) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM users WHERE %s", where), args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	allowedSorts := map[string]string{
		"email":         "email",
		"full_name":     "full_name",
		"latest_season": "latest_season",
		"created_at":    "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	listQuery := fmt.Sprintf("SELECT %s FROM users WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d",
		userColumns, where, column, order, size, (page-1)*size)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// FindByID fetches an admin account by ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns), id); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail fetches an admin account by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, fmt.Sprintf("SELECT %s FROM users WHERE LOWER(email) = LOWER($1)", userColumns), email); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDs fetches the admin accounts for the given ID set.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM users WHERE id IN (?)", userColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build user batch query: %w", err)
	}
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("batch users: %w", err)
	}
	return users, nil
}

// Create inserts a new admin account.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	const q = `INSERT INTO users (id, email, password_hash, full_name, roles, latest_season, active, created_at, updated_at)
        VALUES (:id, :email, :password_hash, :full_name, :roles, :latest_season, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update rewrites the mutable profile fields of an admin account.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const q = `UPDATE users SET email = :email, full_name = :full_name, roles = :roles,
        latest_season = :latest_season, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, q, user)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireRow(res, "update user")
}

// UpdatePassword stores a new password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3", hash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	return requireRow(res, "update user password")
}

// UpdateLastLogin stamps the account's last successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE users SET last_login = $1 WHERE id = $2", at, id); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// Delete removes an admin account.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRow(res, "delete user")
}

func requireRow(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
