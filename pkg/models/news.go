package models

import "time"

// NewsArticle is an ingested news item. Articles are created by the
// ingestion pipeline and consumed read-only here.
type NewsArticle struct {
	ID          int64      `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Summary     *string    `json:"summary,omitempty" db:"summary"`
	URL         string     `json:"url" db:"url"`
	Source      *string    `json:"source,omitempty" db:"source"`
	Language    *string    `json:"language,omitempty" db:"language"`
	PublishedAt *time.Time `json:"published_at,omitempty" db:"published_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}
