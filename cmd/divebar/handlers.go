package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/JeffBrines/dive-bar-detective/internal/config"
	"github.com/JeffBrines/dive-bar-detective/internal/scheduler"
	"github.com/JeffBrines/dive-bar-detective/internal/store"
	"github.com/JeffBrines/dive-bar-detective/pkg/analyze"
	"github.com/JeffBrines/dive-bar-detective/pkg/ingest"
	"github.com/JeffBrines/dive-bar-detective/pkg/lens"
	"github.com/JeffBrines/dive-bar-detective/pkg/place"
	"github.com/JeffBrines/dive-bar-detective/pkg/server"
)

func setup() (*config.Config, *zap.Logger, *store.SQLiteStore, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	st, err := store.New(cfg.Database.Path)
	if err != nil {
		log.Sync()
		return nil, nil, nil, err
	}
	return cfg, log, st, nil
}

func newRanker(cfg *config.Config) *lens.Ranker {
	return lens.NewRanker(cfg.Scoring.MinReviews, cfg.Scoring.UnderratedPercentile, cfg.Scoring.AnomalyThreshold)
}

func runCollect() error {
	cfg, log, st, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()
	defer log.Sync()

	if cfg.Google.APIKey == "" {
		return fmt.Errorf("GOOGLE_MAPS_API_KEY is not set")
	}

	ctx := context.Background()
	client := ingest.NewPlacesClient(cfg.Google.APIKey, log)

	seen := make(map[string]bool)
	var locs []place.Location
	for _, tmpl := range cfg.Google.Queries {
		query := tmpl
		if strings.Contains(tmpl, "%s") {
			query = fmt.Sprintf(tmpl, cfg.Google.City)
		}

		found, err := client.Search(ctx, query)
		if err != nil {
			log.Error("places query failed", zap.String("query", query), zap.Error(err))
			continue
		}
		for i := range found {
			if seen[found[i].PlaceID] {
				continue
			}
			seen[found[i].PlaceID] = true
			locs = append(locs, found[i])
		}
	}

	if err := st.UpsertLocations(ctx, locs); err != nil {
		return err
	}
	log.Info("collect done", zap.Int("locations", len(locs)))
	return nil
}

func runReviews(perPlace int) error {
	cfg, log, st, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()
	defer log.Sync()

	if cfg.Outscraper.APIKey == "" {
		return fmt.Errorf("OUTSCRAPER_API_KEY is not set")
	}
	if perPlace <= 0 {
		perPlace = cfg.Outscraper.ReviewsPerPlace
	}

	ctx := context.Background()
	client := ingest.NewReviewsClient(cfg.Outscraper.APIKey, log)

	locs, err := st.ListLocations(ctx, store.ListOpts{})
	if err != nil {
		return err
	}

	fetched := 0
	for i := range locs {
		reviews, err := client.FetchReviews(ctx, locs[i].PlaceID, perPlace)
		if err != nil {
			log.Error("review fetch failed", zap.String("place_id", locs[i].PlaceID), zap.Error(err))
			continue
		}
		if err := st.InsertReviews(ctx, reviews); err != nil {
			return err
		}
		fetched += len(reviews)
	}

	log.Info("reviews done", zap.Int("locations", len(locs)), zap.Int("reviews", fetched))
	return nil
}

func runAnalyze(batchSize, limit int) error {
	cfg, log, st, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()
	defer log.Sync()

	if cfg.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set")
	}

	analyzer := analyze.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model, st, log)
	n, err := analyzer.ProcessPending(context.Background(), batchSize, limit)
	if err != nil {
		return err
	}
	log.Info("analyze done", zap.Int("processed", n))
	return nil
}

func runAggregate() error {
	_, log, st, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()
	defer log.Sync()

	n, err := lens.NewAggregator(st, log).Run(context.Background())
	if err != nil {
		return err
	}
	log.Info("aggregate done", zap.Int("locations", n))
	return nil
}

func runTop(lensName string, jsonOutput bool, limit int) error {
	cfg, log, st, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()
	defer log.Sync()

	l, ok := lens.Builtin(lensName)
	if !ok {
		return fmt.Errorf("unknown lens %q", lensName)
	}

	locs, err := st.ListLocations(context.Background(), store.ListOpts{})
	if err != nil {
		return err
	}

	ranked := newRanker(cfg).Rank(locs, l, false)
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ranked)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tSCORE\tPCT\tQUADRANT\tBADGES")
	for i, r := range ranked {
		score, pct := "-", "-"
		if r.Score != nil {
			score = fmt.Sprintf("%.1f", *r.Score)
		}
		if r.Percentile != nil {
			pct = fmt.Sprintf("%.0f", *r.Percentile)
		}
		badges := make([]string, len(r.Badges))
		for j, b := range r.Badges {
			badges[j] = string(b)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1, r.Location.Name, score, pct, r.Quadrant, strings.Join(badges, ","))
	}
	return w.Flush()
}

func runServe(port int) error {
	cfg, log, st, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()
	defer log.Sync()

	if port <= 0 {
		port = cfg.Server.Port
	}
	return server.New(st, newRanker(cfg), log, port).ListenAndServe()
}

func runDaemon(port int) error {
	cfg, log, st, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()
	defer log.Sync()

	if port <= 0 {
		port = cfg.Server.Port
	}
	if cfg.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	analyzer := analyze.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model, st, log)
	aggregator := lens.NewAggregator(st, log)
	sched := scheduler.New(analyzer, aggregator,
		cfg.Schedule.ParseAnalyzeInterval(), cfg.Schedule.ParseAggregateInterval(), log)

	go sched.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.New(st, newRanker(cfg), log, port).ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}
