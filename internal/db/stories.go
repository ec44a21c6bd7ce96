package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bobarin/storyreel/internal/models"
	"github.com/google/uuid"
)

// CreateStory appends a story row for a generation job. Stories are
// append-only: the rewritten body is set at insert time and never updated.
func (db *DB) CreateStory(ctx context.Context, story *models.Story) error {
	query := `
		INSERT INTO stories (id, user_id, title, body, rewritten_body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		story.ID, story.UserID, story.Title, story.Body, story.RewrittenBody,
	).Scan(&story.CreatedAt)
}

// GetStory retrieves a single story by ID.
func (db *DB) GetStory(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	query := `
		SELECT id, user_id, title, body, rewritten_body, created_at
		FROM stories
		WHERE id = $1
	`

	story := &models.Story{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&story.ID, &story.UserID, &story.Title, &story.Body,
		&story.RewrittenBody, &story.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("story %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get story: %w", err)
	}

	return story, nil
}

// ListStoriesByUser returns a user's stories, newest first.
func (db *DB) ListStoriesByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Story, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT id, user_id, title, body, rewritten_body, created_at
		FROM stories
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer rows.Close()

	var stories []models.Story
	for rows.Next() {
		var story models.Story
		if err := rows.Scan(
			&story.ID, &story.UserID, &story.Title, &story.Body,
			&story.RewrittenBody, &story.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		stories = append(stories, story)
	}

	return stories, rows.Err()
}
