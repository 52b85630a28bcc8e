package server

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JeffBrines/dive-bar-detective/internal/store"
	"github.com/JeffBrines/dive-bar-detective/pkg/lens"
	"github.com/JeffBrines/dive-bar-detective/pkg/place"
)

const defaultKeyReviews = 3

// Server exposes the read API over the signal store.
type Server struct {
	store  store.Store
	ranker *lens.Ranker
	log    *zap.Logger
	port   int
}

// New creates a server.
func New(s store.Store, ranker *lens.Ranker, log *zap.Logger, port int) *Server {
	return &Server{store: s, ranker: ranker, log: log, port: port}
}

// Router builds the gin engine. Exposed separately so tests can drive it
// with httptest without binding a port.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/locations", s.handleListLocations)
		api.POST("/locations/custom", s.handleCustomLens)
		api.GET("/locations/:place_id", s.handleGetLocation)
		api.GET("/locations/:place_id/reviews", s.handleListReviews)
	}
	return r
}

// ListenAndServe runs the HTTP server until it fails.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.log.Info("http server listening", zap.String("addr", addr))
	return s.Router().Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// listFilters are the corpus filters shared by the ranked list and the
// custom lens endpoints. Filters are applied before ranking, so percentiles
// and quadrants are relative to the filtered set.
type listFilters struct {
	Kinds           []string `json:"kinds"`
	MinRating       float64  `json:"min_rating"`
	MinReviews      int      `json:"min_reviews"`
	IncludeUnscored bool     `json:"include_unscored"`
	Limit           int      `json:"limit"`
}

func filtersFromQuery(c *gin.Context) (listFilters, error) {
	var f listFilters
	f.Kinds = c.QueryArray("kind")

	if v := c.Query("min_rating"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, fmt.Errorf("min_rating: %q is not a number", v)
		}
		f.MinRating = r
	}
	if v := c.Query("min_reviews"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("min_reviews: %q is not an integer", v)
		}
		f.MinReviews = n
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("limit: %q is not an integer", v)
		}
		f.Limit = n
	}
	f.IncludeUnscored = c.Query("include_unscored") == "true"
	return f, nil
}

// loadFiltered loads the corpus and applies the non-ranking filters.
func (s *Server) loadFiltered(c *gin.Context, f listFilters) ([]place.Location, error) {
	locs, err := s.store.ListLocations(c.Request.Context(), store.ListOpts{MinRating: f.MinRating})
	if err != nil {
		return nil, err
	}

	if len(f.Kinds) > 0 || f.MinReviews > 0 {
		filtered := locs[:0]
		for i := range locs {
			if f.MinReviews > 0 && locs[i].UserRatingsTotal < f.MinReviews {
				continue
			}
			if len(f.Kinds) > 0 && !matchesAnyKind(&locs[i], f.Kinds) {
				continue
			}
			filtered = append(filtered, locs[i])
		}
		locs = filtered
	}
	return locs, nil
}

func matchesAnyKind(loc *place.Location, kinds []string) bool {
	for _, k := range kinds {
		if loc.HasKind(k) {
			return true
		}
	}
	return false
}

// handleListLocations ranks the (filtered) corpus under a built-in lens.
// The default lens is blended. X-Total-Count carries the pre-limit size.
func (s *Server) handleListLocations(c *gin.Context) {
	name := c.DefaultQuery("lens", string(lens.NameBlended))
	l, ok := lens.Builtin(name)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown lens %q", name)})
		return
	}

	f, err := filtersFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.rankAndRespond(c, l, f)
}

type customLensRequest struct {
	Weights map[string]float64 `json:"weights"`
	listFilters
}

// handleCustomLens ranks the corpus under caller-supplied signal weights.
func (s *Server) handleCustomLens(c *gin.Context) {
	var req customLensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	l, err := lens.NewCustom(req.Weights)
	if err != nil {
		var verr *lens.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason, "field": verr.Field})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.rankAndRespond(c, l, req.listFilters)
}

func (s *Server) rankAndRespond(c *gin.Context, l lens.Lens, f listFilters) {
	locs, err := s.loadFiltered(c, f)
	if err != nil {
		s.log.Error("list locations failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	ranked := s.ranker.Rank(locs, l, f.IncludeUnscored)
	total := len(ranked)
	if f.Limit > 0 && f.Limit < total {
		ranked = ranked[:f.Limit]
	}

	c.Header("X-Total-Count", strconv.Itoa(total))
	c.JSON(http.StatusOK, gin.H{
		"lens":  l.Name,
		"count": total,
		"data":  ranked,
	})
}

// lensStat is one lens's corpus-relative result in the detail view.
type lensStat struct {
	Score      *float64 `json:"score"`
	Percentile *float64 `json:"percentile"`
}

// handleGetLocation returns one location with all built-in lens scores,
// percentiles, quadrant, badges, and key reviews. Statistics here are
// always relative to the full corpus, not to any filtered view.
func (s *Server) handleGetLocation(c *gin.Context) {
	placeID := c.Param("place_id")

	loc, err := s.store.GetLocation(c.Request.Context(), placeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "location not found"})
			return
		}
		s.log.Error("get location failed", zap.String("place_id", placeID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	corpus, err := s.store.ListLocations(c.Request.Context(), store.ListOpts{})
	if err != nil {
		s.log.Error("list locations failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	stats := make(map[lens.Name]lensStat, 4)
	var quadrant lens.Quadrant
	var badges []lens.Badge
	for _, l := range []lens.Lens{lens.Quality, lens.Character, lens.Underrated, lens.Blended} {
		ranked := s.ranker.Rank(corpus, l, true)
		for i := range ranked {
			if ranked[i].Location.PlaceID != placeID {
				continue
			}
			stats[l.Name] = lensStat{Score: ranked[i].Score, Percentile: ranked[i].Percentile}
			// Quadrant and badges are lens-independent; any pass will do.
			quadrant = ranked[i].Quadrant
			badges = ranked[i].Badges
			break
		}
	}

	reviews, err := s.store.ListReviews(c.Request.Context(), placeID)
	if err != nil {
		s.log.Error("list reviews failed", zap.String("place_id", placeID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"location":    loc,
		"lenses":      stats,
		"quadrant":    quadrant,
		"badges":      badges,
		"key_reviews": keyReviews(reviews, defaultKeyReviews),
	})
}

// handleListReviews returns a location's raw reviews with their signals.
func (s *Server) handleListReviews(c *gin.Context) {
	placeID := c.Param("place_id")

	if _, err := s.store.GetLocation(c.Request.Context(), placeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "location not found"})
			return
		}
		s.log.Error("get location failed", zap.String("place_id", placeID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	reviews, err := s.store.ListReviews(c.Request.Context(), placeID)
	if err != nil {
		s.log.Error("list reviews failed", zap.String("place_id", placeID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(reviews),
		"data":  reviews,
	})
}

// keyReviews picks up to limit representative reviews: the strongest, the
// weakest, then the most opinionated remainder. Reviews without text or
// without signals carry nothing worth quoting and are skipped.
func keyReviews(reviews []place.Review, limit int) []place.Review {
	type scored struct {
		review place.Review
		mean   float64
	}
	var candidates []scored
	for i := range reviews {
		if reviews[i].ReviewText == "" {
			continue
		}
		signals := reviews[i].Signals()
		if len(signals) == 0 {
			continue
		}
		sum := 0.0
		for _, v := range signals {
			sum += v
		}
		candidates = append(candidates, scored{
			review: reviews[i],
			mean:   sum / float64(len(signals)),
		})
	}
	if len(candidates) == 0 || limit <= 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].mean > candidates[j].mean
	})

	picked := []scored{candidates[0]}
	if len(candidates) > 1 {
		picked = append(picked, candidates[len(candidates)-1])
	}
	if len(candidates) > 2 {
		rest := candidates[1 : len(candidates)-1]
		sort.SliceStable(rest, func(i, j int) bool {
			return math.Abs(rest[i].mean-0.5) > math.Abs(rest[j].mean-0.5)
		})
		for _, s := range rest {
			if len(picked) >= limit {
				break
			}
			picked = append(picked, s)
		}
	}

	if len(picked) > limit {
		picked = picked[:limit]
	}
	out := make([]place.Review, len(picked))
	for i := range picked {
		out[i] = picked[i].review
	}
	return out
}
