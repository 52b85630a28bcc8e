package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/JeffBrines/dive-bar-detective/pkg/place"
)

// ErrNotFound is returned when a key lookup matches no row.
var ErrNotFound = errors.New("not found")

// ListOpts controls location listing.
type ListOpts struct {
	MinRating float64
	Limit     int // <= 0 means no limit
}

// Store is the persistence interface over the signal store.
type Store interface {
	UpsertLocation(ctx context.Context, loc *place.Location) error
	UpsertLocations(ctx context.Context, locs []place.Location) error
	GetLocation(ctx context.Context, placeID string) (*place.Location, error)
	ListLocations(ctx context.Context, opts ListOpts) ([]place.Location, error)
	UpdateLocationAggregates(ctx context.Context, placeID string, avgs place.SignalValues, coverage int) error

	InsertReviews(ctx context.Context, reviews []place.Review) error
	ListReviews(ctx context.Context, placeID string) ([]place.Review, error)
	ListUnanalyzedReviews(ctx context.Context, limit int) ([]place.Review, error)
	UpdateReviewSignals(ctx context.Context, reviewID string, signals place.SignalValues, model string) error
	MarkReviewAnalyzed(ctx context.Context, reviewID string, model string) error

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertLocation inserts a location or refreshes its static Google metadata.
// Aggregated signal columns and ML fields are left untouched on conflict so
// a re-collect never wipes computed state.
func (s *SQLiteStore) UpsertLocation(ctx context.Context, loc *place.Location) error {
	typesJSON, _ := json.Marshal(loc.Types)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (place_id, name, address, lat, lng, rating, user_ratings_total,
		                       price_level, types, phone, website, collected_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(place_id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			lat = excluded.lat,
			lng = excluded.lng,
			rating = excluded.rating,
			user_ratings_total = excluded.user_ratings_total,
			price_level = excluded.price_level,
			types = excluded.types,
			phone = excluded.phone,
			website = excluded.website,
			updated_at = excluded.updated_at
	`, loc.PlaceID, loc.Name, loc.Address, loc.Lat, loc.Lng, loc.Rating,
		loc.UserRatingsTotal, loc.PriceLevel, string(typesJSON), loc.Phone,
		loc.Website, loc.CollectedAt, loc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert location %s: %w", loc.PlaceID, err)
	}
	return nil
}

func (s *SQLiteStore) UpsertLocations(ctx context.Context, locs []place.Location) error {
	for i := range locs {
		if err := s.UpsertLocation(ctx, &locs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) GetLocation(ctx context.Context, placeID string) (*place.Location, error) {
	var loc place.Location
	err := s.db.GetContext(ctx, &loc, "SELECT * FROM locations WHERE place_id = ?", placeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("location %s: %w", placeID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get location %s: %w", placeID, err)
	}
	decodeLocationJSON(&loc)
	return &loc, nil
}

func (s *SQLiteStore) ListLocations(ctx context.Context, opts ListOpts) ([]place.Location, error) {
	query := "SELECT * FROM locations WHERE 1=1"
	var args []any

	if opts.MinRating > 0 {
		query += " AND rating >= ?"
		args = append(args, opts.MinRating)
	}

	query += " ORDER BY name"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	var locs []place.Location
	if err := s.db.SelectContext(ctx, &locs, query, args...); err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}

	for i := range locs {
		decodeLocationJSON(&locs[i])
	}
	return locs, nil
}

// UpdateLocationAggregates overwrites the averaged signal columns and the
// coverage count. Signals missing from avgs are written as NULL, never zero.
func (s *SQLiteStore) UpdateLocationAggregates(ctx context.Context, placeID string, avgs place.SignalValues, coverage int) error {
	args := []any{coverage}
	query := "UPDATE locations SET review_count = ?"
	for _, sig := range place.AllSignals() {
		query += fmt.Sprintf(", avg_%s = ?", sig)
		if v, ok := avgs[sig]; ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	query += ", updated_at = ? WHERE place_id = ?"
	args = append(args, time.Now().UTC(), placeID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update aggregates %s: %w", placeID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update aggregates %s: %w", placeID, ErrNotFound)
	}
	return nil
}

// InsertReviews inserts reviews, ignoring duplicates so already-analyzed
// rows keep their signals.
func (s *SQLiteStore) InsertReviews(ctx context.Context, reviews []place.Review) error {
	for i := range reviews {
		r := &reviews[i]
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO reviews (id, place_id, author_name, rating, review_text, reviewed_at, collected_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, r.ID, r.PlaceID, r.AuthorName, r.Rating, r.ReviewText, r.ReviewedAt, r.CollectedAt)
		if err != nil {
			return fmt.Errorf("insert review %s: %w", r.ID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListReviews(ctx context.Context, placeID string) ([]place.Review, error) {
	var reviews []place.Review
	err := s.db.SelectContext(ctx, &reviews,
		"SELECT * FROM reviews WHERE place_id = ? ORDER BY collected_at", placeID)
	if err != nil {
		return nil, fmt.Errorf("list reviews %s: %w", placeID, err)
	}
	return reviews, nil
}

// ListUnanalyzedReviews returns reviews that have never been through the
// analyze step, so a partial batch run can resume without re-spending cost.
func (s *SQLiteStore) ListUnanalyzedReviews(ctx context.Context, limit int) ([]place.Review, error) {
	if limit <= 0 {
		limit = 100
	}
	var reviews []place.Review
	err := s.db.SelectContext(ctx, &reviews,
		"SELECT * FROM reviews WHERE analyzed_at IS NULL ORDER BY collected_at LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list unanalyzed reviews: %w", err)
	}
	return reviews, nil
}

// UpdateReviewSignals overwrites the review's nine signal columns.
// Re-analysis replaces, never appends.
func (s *SQLiteStore) UpdateReviewSignals(ctx context.Context, reviewID string, signals place.SignalValues, model string) error {
	var args []any
	query := "UPDATE reviews SET analyzed_at = ?, model = ?"
	args = append(args, time.Now().UTC(), model)
	for _, sig := range place.AllSignals() {
		query += fmt.Sprintf(", %s = ?", sig)
		if v, ok := signals[sig]; ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	query += " WHERE id = ?"
	args = append(args, reviewID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update review signals %s: %w", reviewID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update review signals %s: %w", reviewID, ErrNotFound)
	}
	return nil
}

// MarkReviewAnalyzed stamps a review without writing signals. Used for
// empty-text rows so the pending loop does not refetch them forever.
func (s *SQLiteStore) MarkReviewAnalyzed(ctx context.Context, reviewID string, model string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE reviews SET analyzed_at = ?, model = ? WHERE id = ?",
		time.Now().UTC(), model, reviewID)
	if err != nil {
		return fmt.Errorf("mark review analyzed %s: %w", reviewID, err)
	}
	return nil
}

func decodeLocationJSON(loc *place.Location) {
	json.Unmarshal([]byte(loc.TypesJSON), &loc.Types)
	json.Unmarshal([]byte(loc.AutoTagsJSON), &loc.AutoTags)
}
