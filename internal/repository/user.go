package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/actuallyakshat/chrona/internal/apperrors"
	"github.com/actuallyakshat/chrona/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, external_id, username, email, first_name, last_name, image_url, bio,
	city, country, age, gender, languages, interests, lat, lon,
	preferences, recommended, last_recommended, last_recommendation_date, is_onboarded, created_at
`

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	prefs, err := marshalPreferences(user.Preferences)
	if err != nil {
		return err
	}
	lat, lon := splitLocation(user.Location)

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	_, err = r.db.Exec(ctx, query,
		user.ID, user.ExternalID, user.Username, user.Email, user.FirstName, user.LastName,
		user.ImageURL, user.Bio, user.City, user.Country, user.Age, user.Gender,
		user.Languages, user.Interests, lat, lon,
		prefs, user.Recommended, user.LastRecommended, user.LastRecommendationDate, user.IsOnboarded, user.CreatedAt,
	)
	if err != nil {
		if isUsernameConflict(err) {
			return apperrors.ErrUsernameTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRow(ctx, query, id))
}

// GetByExternalID retrieves a user by the auth provider's subject id
func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_id = $1`
	return r.scanUser(r.db.QueryRow(ctx, query, externalID))
}

// Update persists mutable profile fields
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	prefs, err := marshalPreferences(user.Preferences)
	if err != nil {
		return err
	}
	lat, lon := splitLocation(user.Location)

	query := `
		UPDATE users
		SET username = $2, email = $3, first_name = $4, last_name = $5,
			image_url = $6, bio = $7, city = $8, country = $9, age = $10,
			gender = $11, languages = $12, interests = $13, lat = $14,
			lon = $15, preferences = $16, is_onboarded = $17
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName,
		user.ImageURL, user.Bio, user.City, user.Country, user.Age, user.Gender,
		user.Languages, user.Interests, lat, lon, prefs, user.IsOnboarded,
	)
	if err != nil {
		if isUsernameConflict(err) {
			return apperrors.ErrUsernameTaken
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// DeleteByExternalID removes a user when the auth provider reports deletion
func (r *UserRepository) DeleteByExternalID(ctx context.Context, externalID string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM users WHERE external_id = $1`, externalID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// ListAll returns every user. The recommendation recompute path scans the
// full population; it runs at most daily per viewer.
func (r *UserRepository) ListAll(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// SearchByUsername returns onboarded users whose username starts with the
// given prefix, case-insensitively.
func (r *UserRepository) SearchByUsername(ctx context.Context, prefix string) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE username ILIKE $1 || '%' AND is_onboarded
		ORDER BY username
		LIMIT 20
	`
	rows, err := r.db.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}

// AppendRecommended appends newly shown user ids to the viewer's cumulative
// recommended set, records them as the day's batch and stamps the
// recommendation date. An empty batch still stamps the date so the daily
// recompute runs at most once.
func (r *UserRepository) AppendRecommended(ctx context.Context, userID string, ids []string, at time.Time) error {
	query := `
		UPDATE users
		SET recommended = COALESCE(recommended, '{}') || $2,
			last_recommended = $2,
			last_recommendation_date = $3
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, userID, ids, at)
	if err != nil {
		return fmt.Errorf("failed to append recommendations: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) scanUser(row pgx.Row) (*models.User, error) {
	var (
		user      models.User
		lat, lon  *float64
		prefsJSON []byte
	)
	err := row.Scan(
		&user.ID, &user.ExternalID, &user.Username, &user.Email, &user.FirstName, &user.LastName,
		&user.ImageURL, &user.Bio, &user.City, &user.Country, &user.Age, &user.Gender,
		&user.Languages, &user.Interests, &lat, &lon,
		&prefsJSON, &user.Recommended, &user.LastRecommended, &user.LastRecommendationDate, &user.IsOnboarded, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if lat != nil && lon != nil {
		user.Location = &models.Location{Latitude: *lat, Longitude: *lon}
	}
	if len(prefsJSON) > 0 {
		var prefs models.Preferences
		if err := json.Unmarshal(prefsJSON, &prefs); err != nil {
			return nil, fmt.Errorf("failed to decode preferences: %w", err)
		}
		user.Preferences = &prefs
	}
	return &user, nil
}

func marshalPreferences(p *models.Preferences) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preferences: %w", err)
	}
	return data, nil
}

func splitLocation(loc *models.Location) (*float64, *float64) {
	if loc == nil {
		return nil, nil
	}
	return &loc.Latitude, &loc.Longitude
}

func isUsernameConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgUniqueViolation &&
		strings.Contains(pgErr.ConstraintName, "username")
}
