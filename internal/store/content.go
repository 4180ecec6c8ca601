package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/halcyonvr/resonance/internal/feed"
	"github.com/halcyonvr/resonance/internal/vecmath"
)

// SaveContentItem inserts or replaces a content item. A missing id gets a
// fresh uuid; a missing timestamp gets the current time.
func (db *DB) SaveContentItem(item *feed.ContentItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.PublishedAt == 0 {
		item.PublishedAt = time.Now().UnixMilli()
	}
	if item.Visibility == "" {
		item.Visibility = feed.VisibilityPublic
	}

	vec, err := json.Marshal(item.InterestVector)
	if err != nil {
		return fmt.Errorf("encode interest vector: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO content_items (id, author_id, visibility, sensitive, published_at, engagement_score, interest_vector)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET author_id = ?, visibility = ?, sensitive = ?, published_at = ?, interest_vector = ?
	`, item.ID, item.AuthorID, string(item.Visibility), boolToInt(item.Sensitive),
		item.PublishedAt, item.EngagementScore, string(vec),
		item.AuthorID, string(item.Visibility), boolToInt(item.Sensitive), item.PublishedAt, string(vec))
	if err != nil {
		return fmt.Errorf("save content item: %w", err)
	}
	return nil
}

// GetContentItem returns one content item, or nil if not found.
func (db *DB) GetContentItem(id string) (*feed.ContentItem, error) {
	row := db.QueryRow(`
		SELECT id, author_id, visibility, sensitive, published_at, engagement_score, interest_vector
		FROM content_items WHERE id = ?
	`, id)

	item, err := scanContentItem(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content item: %w", err)
	}
	return item, nil
}

// ListContent returns the whole content pool, newest first. Implements
// feed.ContentSource.
func (db *DB) ListContent() ([]feed.ContentItem, error) {
	rows, err := db.Query(`
		SELECT id, author_id, visibility, sensitive, published_at, engagement_score, interest_vector
		FROM content_items
		ORDER BY published_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	defer rows.Close()

	var items []feed.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan content item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// AddEngagement bumps a content item's engagement accumulator.
func (db *DB) AddEngagement(id string, delta float64) error {
	res, err := db.Exec(`
		UPDATE content_items SET engagement_score = engagement_score + ? WHERE id = ?
	`, delta, id)
	if err != nil {
		return fmt.Errorf("add engagement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("add engagement: content %s not found", id)
	}
	return nil
}

// DeleteContentItem removes a content item.
func (db *DB) DeleteContentItem(id string) error {
	if _, err := db.Exec("DELETE FROM content_items WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete content item: %w", err)
	}
	return nil
}

func scanContentItem(scan func(...any) error) (*feed.ContentItem, error) {
	var item feed.ContentItem
	var visibility, vecJSON string
	var sensitive int

	if err := scan(&item.ID, &item.AuthorID, &visibility, &sensitive,
		&item.PublishedAt, &item.EngagementScore, &vecJSON); err != nil {
		return nil, err
	}

	item.Visibility = feed.Visibility(visibility)
	item.Sensitive = sensitive != 0
	item.InterestVector = vecmath.Vector{}
	if err := json.Unmarshal([]byte(vecJSON), &item.InterestVector); err != nil {
		return nil, fmt.Errorf("decode interest vector: %w", err)
	}
	return &item, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
