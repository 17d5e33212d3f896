package repository

import (
	"context"
	"fmt"

	"github.com/actuallyakshat/chrona/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChronicleRepository handles database operations for chronicles
type ChronicleRepository struct {
	db *pgxpool.Pool
}

// NewChronicleRepository creates a new chronicle repository
func NewChronicleRepository(db *pgxpool.Pool) *ChronicleRepository {
	return &ChronicleRepository{db: db}
}

// Append inserts a chronicle and advances the connection's
// last_chronicle_sent_at in the same transaction.
func (r *ChronicleRepository) Append(ctx context.Context, chronicle *models.Chronicle) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertChronicle(ctx, tx, chronicle); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chronicle: %w", err)
	}
	return nil
}

// ListByConnectionID retrieves all chronicles for a connection in send order
func (r *ChronicleRepository) ListByConnectionID(ctx context.Context, connectionID string) ([]*models.Chronicle, error) {
	query := `
		SELECT id, connection_id, sender_id, receiver_id, content, sent_at
		FROM chronicles
		WHERE connection_id = $1
		ORDER BY sent_at ASC
	`
	rows, err := r.db.Query(ctx, query, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chronicles: %w", err)
	}
	defer rows.Close()

	var chronicles []*models.Chronicle
	for rows.Next() {
		var ch models.Chronicle
		err := rows.Scan(&ch.ID, &ch.ConnectionID, &ch.SenderID, &ch.ReceiverID, &ch.Content, &ch.SentAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chronicle: %w", err)
		}
		chronicles = append(chronicles, &ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list chronicles: %w", err)
	}
	return chronicles, nil
}

// insertChronicle writes a chronicle row and bumps the owning connection's
// activity timestamp inside the caller's transaction.
func insertChronicle(ctx context.Context, tx pgx.Tx, chronicle *models.Chronicle) error {
	query := `
		INSERT INTO chronicles (id, connection_id, sender_id, receiver_id, content, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.Exec(ctx, query,
		chronicle.ID, chronicle.ConnectionID, chronicle.SenderID,
		chronicle.ReceiverID, chronicle.Content, chronicle.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chronicle: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE connections SET last_chronicle_sent_at = $2 WHERE id = $1`,
		chronicle.ConnectionID, chronicle.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update connection activity: %w", err)
	}
	return nil
}
