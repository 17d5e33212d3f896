package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/actuallyakshat/chrona/internal/apperrors"
	"github.com/actuallyakshat/chrona/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// ConnectionRepository handles database operations for connections
type ConnectionRepository struct {
	db *pgxpool.Pool
}

// NewConnectionRepository creates a new connection repository
func NewConnectionRepository(db *pgxpool.Pool) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// Create inserts a connection together with its first chronicle in one
// transaction, so a connection is never observed with zero chronicles. The
// unique index on pair_key makes the loser of a concurrent create fail with
// ErrAlreadyConnected instead of producing a duplicate.
func (r *ConnectionRepository) Create(ctx context.Context, conn *models.Connection, first *models.Chronicle) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO connections (id, user_a_id, user_b_id, pair_key, delay_in_hours, last_chronicle_sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.Exec(ctx, query,
		conn.ID, conn.UserAID, conn.UserBID, conn.PairKey,
		conn.DelayInHours, conn.LastChronicleSentAt, conn.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperrors.ErrAlreadyConnected
		}
		return fmt.Errorf("failed to create connection: %w", err)
	}

	if err := insertChronicle(ctx, tx, first); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit connection: %w", err)
	}
	return nil
}

// GetByID retrieves a connection by ID
func (r *ConnectionRepository) GetByID(ctx context.Context, id string) (*models.Connection, error) {
	query := `
		SELECT id, user_a_id, user_b_id, pair_key, delay_in_hours, last_chronicle_sent_at, created_at
		FROM connections
		WHERE id = $1
	`
	var conn models.Connection
	err := r.db.QueryRow(ctx, query, id).Scan(
		&conn.ID, &conn.UserAID, &conn.UserBID, &conn.PairKey,
		&conn.DelayInHours, &conn.LastChronicleSentAt, &conn.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrConnectionNotFound
		}
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return &conn, nil
}

// ListByUserID retrieves all connections where the user is a participant,
// most recently active first. Connections lacking a timestamp sort last.
func (r *ConnectionRepository) ListByUserID(ctx context.Context, userID string) ([]*models.Connection, error) {
	query := `
		SELECT id, user_a_id, user_b_id, pair_key, delay_in_hours, last_chronicle_sent_at, created_at
		FROM connections
		WHERE user_a_id = $1 OR user_b_id = $1
		ORDER BY last_chronicle_sent_at DESC NULLS LAST
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var conns []*models.Connection
	for rows.Next() {
		var conn models.Connection
		err := rows.Scan(
			&conn.ID, &conn.UserAID, &conn.UserBID, &conn.PairKey,
			&conn.DelayInHours, &conn.LastChronicleSentAt, &conn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conns = append(conns, &conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return conns, nil
}

// ExistsForPair checks whether a connection already exists for the pair key
func (r *ConnectionRepository) ExistsForPair(ctx context.Context, pairKey string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM connections WHERE pair_key = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, pairKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check pair existence: %w", err)
	}
	return exists, nil
}
