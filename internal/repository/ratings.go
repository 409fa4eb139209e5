package repository

import (
	"context"
	"fmt"

	"github.com/Clark-Hu/portion-finder/internal/domain"
)

// RatingsRepository stores ratings. Rows are append-only: there is no update
// or delete path.
type RatingsRepository struct {
	db DBTX
}

// Insert appends a rating. The caller assigns ID and CreatedAt.
func (r *RatingsRepository) Insert(ctx context.Context, rating domain.Rating) error {
	const query = `
        INSERT INTO ratings (id, site_id, value, channel, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `
	_, err := r.db.Exec(ctx, query,
		rating.ID,
		rating.SiteID,
		rating.Value,
		string(rating.Channel),
		rating.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert rating: %w", err)
	}
	return nil
}

// ListBySite returns every rating for siteID, oldest first.
func (r *RatingsRepository) ListBySite(ctx context.Context, siteID int64) ([]domain.Rating, error) {
	const query = `
        SELECT id::text, site_id, value, channel, created_at
        FROM ratings
        WHERE site_id = $1
        ORDER BY created_at, id
    `
	rows, err := r.db.Query(ctx, query, siteID)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	ratings := make([]domain.Rating, 0)
	for rows.Next() {
		var (
			rating  domain.Rating
			value   int16
			channel string
		)
		if err := rows.Scan(&rating.ID, &rating.SiteID, &value, &channel, &rating.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		rating.Value = int(value)
		rating.Channel = domain.Channel(channel)
		rating.CreatedAt = rating.CreatedAt.UTC()
		ratings = append(ratings, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}
	return ratings, nil
}
