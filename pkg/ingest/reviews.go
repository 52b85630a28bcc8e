package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JeffBrines/dive-bar-detective/pkg/place"
)

const (
	outscraperURL = "https://api.outscraper.cloud/maps/reviews-v3"

	// Outscraper timestamps look like "07/14/2024 18:03:05" in UTC.
	outscraperTimeLayout = "01/02/2006 15:04:05"
)

// ReviewsClient scrapes Google Maps reviews through the Outscraper API.
type ReviewsClient struct {
	client *http.Client
	apiKey string
	log    *zap.Logger
}

// NewReviewsClient creates an Outscraper reviews client.
func NewReviewsClient(apiKey string, log *zap.Logger) *ReviewsClient {
	return &ReviewsClient{
		// Synchronous scrapes block until Outscraper finishes the place.
		client: &http.Client{Timeout: 5 * time.Minute},
		apiKey: apiKey,
		log:    log,
	}
}

type outscraperResponse struct {
	Data [][]outscraperPlace `json:"data"`
}

type outscraperPlace struct {
	PlaceID     string             `json:"place_id"`
	ReviewsData []outscraperReview `json:"reviews_data"`
}

type outscraperReview struct {
	ReviewID          string `json:"review_id"`
	AuthorTitle       string `json:"author_title"`
	ReviewText        string `json:"review_text"`
	ReviewRating      *int   `json:"review_rating"`
	ReviewDatetimeUTC string `json:"review_datetime_utc"`
}

// FetchReviews scrapes up to limit reviews for one place, newest first.
// Review IDs are stable across runs, so re-fetching a place only adds
// reviews the store has not seen.
func (r *ReviewsClient) FetchReviews(ctx context.Context, placeID string, limit int) ([]place.Review, error) {
	if limit <= 0 {
		limit = 50
	}

	q := url.Values{}
	q.Set("query", placeID)
	q.Set("reviewsLimit", strconv.Itoa(limit))
	q.Set("sort", "newest")
	q.Set("async", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, outscraperURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create reviews request: %w", err)
	}
	req.Header.Set("X-API-KEY", r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch reviews %s: %w", placeID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch reviews %s: unexpected status %d", placeID, resp.StatusCode)
	}

	var out outscraperResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode reviews response %s: %w", placeID, err)
	}

	now := time.Now().UTC()
	var reviews []place.Review
	for _, batch := range out.Data {
		for _, pl := range batch {
			for i, raw := range pl.ReviewsData {
				rev := place.Review{
					ID:          raw.ReviewID,
					PlaceID:     placeID,
					AuthorName:  raw.AuthorTitle,
					Rating:      raw.ReviewRating,
					ReviewText:  raw.ReviewText,
					CollectedAt: now,
				}
				if rev.ID == "" {
					rev.ID = fmt.Sprintf("%s:%d", placeID, i)
				}
				if t, err := time.Parse(outscraperTimeLayout, raw.ReviewDatetimeUTC); err == nil {
					ts := t.UTC()
					rev.ReviewedAt = &ts
				}
				reviews = append(reviews, rev)
			}
		}
	}

	r.log.Info("reviews fetched", zap.String("place_id", placeID), zap.Int("reviews", len(reviews)))
	return reviews, nil
}
