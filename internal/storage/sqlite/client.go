package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/watchsense/backend/internal/analysis"
	"github.com/watchsense/backend/pkg/logger"
)

// Client is the review corpus store. The corpus is written once by the indexer
// and read-only for the API process.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite corpus client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reviews (
		id INTEGER PRIMARY KEY,
		brand TEXT NOT NULL,
		star_rating INTEGER NOT NULL,
		review_body TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reviews_brand ON reviews(brand);
	CREATE INDEX IF NOT EXISTS idx_reviews_rating ON reviews(star_rating);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertReviews(reviews []analysis.Review) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO reviews (id, brand, star_rating, review_body) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range reviews {
		if _, err := stmt.Exec(r.ID, r.Brand, r.StarRating, r.Body); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert review %d: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reviews: %w", err)
	}

	logger.Info("Reviews inserted", zap.Int("count", len(reviews)))
	return nil
}

// LoadAll reads the entire corpus into memory. Retrieval maps neighbor ids to
// reviews through this table.
func (c *Client) LoadAll() (map[int64]analysis.Review, error) {
	rows, err := c.db.Query(`SELECT id, brand, star_rating, review_body FROM reviews`)
	if err != nil {
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}
	defer rows.Close()

	reviews := make(map[int64]analysis.Review)
	for rows.Next() {
		var r analysis.Review
		if err := rows.Scan(&r.ID, &r.Brand, &r.StarRating, &r.Body); err != nil {
			return nil, fmt.Errorf("failed to scan review row: %w", err)
		}
		reviews[r.ID] = r
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate review rows: %w", err)
	}

	logger.Info("Review corpus loaded", zap.Int("count", len(reviews)))
	return reviews, nil
}

func (c *Client) Count() (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM reviews`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return count, nil
}
