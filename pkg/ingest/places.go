package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JeffBrines/dive-bar-detective/pkg/place"
)

const (
	placesSearchURL = "https://places.googleapis.com/v1/places:searchText"

	// Field mask for the new Places API: only what the locations table stores.
	placesFieldMask = "places.id,places.displayName,places.formattedAddress," +
		"places.location,places.rating,places.userRatingCount,places.priceLevel," +
		"places.types,places.websiteUri,places.nationalPhoneNumber,nextPageToken"

	placesPageSize = 20
	placesMaxPages = 3 // ~60 results per query is plenty for one city
)

// PlacesClient collects candidate locations from Google Places text search.
type PlacesClient struct {
	client *http.Client
	apiKey string
	log    *zap.Logger
}

// NewPlacesClient creates a Places text-search client.
func NewPlacesClient(apiKey string, log *zap.Logger) *PlacesClient {
	return &PlacesClient{
		client: &http.Client{Timeout: 30 * time.Second},
		apiKey: apiKey,
		log:    log,
	}
}

type placesRequest struct {
	TextQuery string `json:"textQuery"`
	PageSize  int    `json:"pageSize"`
	PageToken string `json:"pageToken,omitempty"`
}

type placesResponse struct {
	Places []struct {
		ID          string `json:"id"`
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		FormattedAddress string `json:"formattedAddress"`
		Location         struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"location"`
		Rating              *float64 `json:"rating"`
		UserRatingCount     int      `json:"userRatingCount"`
		PriceLevel          string   `json:"priceLevel"`
		Types               []string `json:"types"`
		WebsiteURI          string   `json:"websiteUri"`
		NationalPhoneNumber string   `json:"nationalPhoneNumber"`
	} `json:"places"`
	NextPageToken string `json:"nextPageToken"`
}

var priceLevels = map[string]int{
	"PRICE_LEVEL_FREE":           0,
	"PRICE_LEVEL_INEXPENSIVE":    1,
	"PRICE_LEVEL_MODERATE":       2,
	"PRICE_LEVEL_EXPENSIVE":      3,
	"PRICE_LEVEL_VERY_EXPENSIVE": 4,
}

// Search runs one text query, following pagination, and returns locations
// with static Google metadata only (aggregates are the aggregator's job).
func (p *PlacesClient) Search(ctx context.Context, query string) ([]place.Location, error) {
	var locs []place.Location
	pageToken := ""

	for page := 0; page < placesMaxPages; page++ {
		resp, err := p.searchPage(ctx, query, pageToken)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		for _, pl := range resp.Places {
			loc := place.Location{
				PlaceID:          pl.ID,
				Name:             pl.DisplayName.Text,
				Address:          pl.FormattedAddress,
				Lat:              pl.Location.Latitude,
				Lng:              pl.Location.Longitude,
				Rating:           pl.Rating,
				UserRatingsTotal: pl.UserRatingCount,
				Types:            pl.Types,
				Phone:            pl.NationalPhoneNumber,
				Website:          pl.WebsiteURI,
				CollectedAt:      now,
				UpdatedAt:        now,
			}
			if lvl, ok := priceLevels[pl.PriceLevel]; ok {
				level := lvl
				loc.PriceLevel = &level
			}
			locs = append(locs, loc)
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	p.log.Info("places search done", zap.String("query", query), zap.Int("places", len(locs)))
	return locs, nil
}

func (p *PlacesClient) searchPage(ctx context.Context, query, pageToken string) (*placesResponse, error) {
	body, err := json.Marshal(placesRequest{
		TextQuery: query,
		PageSize:  placesPageSize,
		PageToken: pageToken,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal places request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, placesSearchURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create places request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", p.apiKey)
	req.Header.Set("X-Goog-FieldMask", placesFieldMask)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places search %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places search %q: unexpected status %d", query, resp.StatusCode)
	}

	var out placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode places response %q: %w", query, err)
	}
	return &out, nil
}
