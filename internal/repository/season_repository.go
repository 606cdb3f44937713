package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vuledev/sams-api/internal/models"
)

// SeasonRepository manages persistence for academic seasons.
type SeasonRepository struct {
	db *sqlx.DB
}

// NewSeasonRepository constructs a SeasonRepository.
func NewSeasonRepository(db *sqlx.DB) *SeasonRepository {
	return &SeasonRepository{db: db}
}

const seasonColumns = "id, number, title, academic_year, is_current, created_at, updated_at"

// List returns all seasons, oldest first.
func (r *SeasonRepository) List(ctx context.Context) ([]models.Season, error) {
	var seasons []models.Season
	if err := r.db.SelectContext(ctx, &seasons, fmt.Sprintf("SELECT %s FROM seasons ORDER BY number ASC", seasonColumns)); err != nil {
		return nil, fmt.Errorf("list seasons: %w", err)
	}
	return seasons, nil
}

// FindCurrent fetches the season flagged current.
func (r *SeasonRepository) FindCurrent(ctx context.Context) (*models.Season, error) {
	var season models.Season
	if err := r.db.GetContext(ctx, &season, fmt.Sprintf("SELECT %s FROM seasons WHERE is_current LIMIT 1", seasonColumns)); err != nil {
		return nil, err
	}
	return &season, nil
}

// FindByNumber fetches a season by its number.
func (r *SeasonRepository) FindByNumber(ctx context.Context, number int) (*models.Season, error) {
	var season models.Season
	if err := r.db.GetContext(ctx, &season, fmt.Sprintf("SELECT %s FROM seasons WHERE number = $1", seasonColumns), number); err != nil {
		return nil, err
	}
	return &season, nil
}

// Create inserts a new season.
func (r *SeasonRepository) Create(ctx context.Context, season *models.Season) error {
	if season.ID == "" {
		season.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if season.CreatedAt.IsZero() {
		season.CreatedAt = now
	}
	season.UpdatedAt = now
	const q = `INSERT INTO seasons (id, number, title, academic_year, is_current, created_at, updated_at)
        VALUES (:id, :number, :title, :academic_year, :is_current, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, season); err != nil {
		return fmt.Errorf("create season: %w", err)
	}
	return nil
}

// SetCurrent flips the current flag to the given season number inside one
// transaction, so exactly one season is current at any time.
func (r *SeasonRepository) SetCurrent(ctx context.Context, number int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set current season: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, "UPDATE seasons SET is_current = FALSE, updated_at = $1 WHERE is_current", now); err != nil {
		return fmt.Errorf("clear current season: %w", err)
	}
	res, err := tx.ExecContext(ctx, "UPDATE seasons SET is_current = TRUE, updated_at = $1 WHERE number = $2", now, number)
	if err != nil {
		return fmt.Errorf("set current season: %w", err)
	}
	if err := requireRow(res, "set current season"); err != nil {
		return err
	}
	return tx.Commit()
}
