package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/JeffBrines/dive-bar-detective/internal/store"
	"github.com/JeffBrines/dive-bar-detective/pkg/place"
)

var analyzedReviews = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "reviews_analyzed_total",
	Help: "Total number of reviews run through signal extraction.",
})

func init() {
	prometheus.MustRegister(analyzedReviews)
}

const systemPrompt = `You are the Dive Bar Sommelier, an expert at reading between the lines of restaurant and bar reviews.

Given one customer review, rate it on each dimension below. Every value is a number between 0.0 and 1.0. If the review gives no evidence for a dimension, use the stated default.

- food_drink_quality: how good the food and drinks sound (default 0.5)
- service_quality: friendliness and competence of staff (default 0.5)
- value_score: bang for the buck (default 0.5)
- divey_score: how much of a true dive this sounds like (default 0.0)
- classic_institution: signs of a long-standing neighborhood institution (default 0.0)
- unpretentious: absence of pretense or scene (default 0.5)
- authenticity: genuine character rather than manufactured charm (default 0.5)
- would_recommend: how strongly the reviewer would send a friend (default 0.5)
- memorable: how likely the visit is to be remembered (default 0.5)

Respond with a single JSON object whose keys are exactly the nine dimension names. No prose, no markdown.`

// signalDefaults are the neutral fallbacks the prompt specifies, used when
// the model omits a dimension. Dive-ness and institution status default to
// absent rather than neutral: a review that never mentions them is evidence
// against, not ambiguity.
var signalDefaults = place.SignalValues{
	place.SignalFoodDrinkQuality:   0.5,
	place.SignalServiceQuality:     0.5,
	place.SignalValueScore:         0.5,
	place.SignalDiveyScore:         0.0,
	place.SignalClassicInstitution: 0.0,
	place.SignalUnpretentious:      0.5,
	place.SignalAuthenticity:       0.5,
	place.SignalWouldRecommend:     0.5,
	place.SignalMemorable:          0.5,
}

// Analyzer extracts per-review signals with an LLM and persists them.
type Analyzer struct {
	client *openai.Client
	model  string
	store  store.Store
	log    *zap.Logger
}

// New creates an analyzer backed by the OpenAI chat API.
func New(apiKey, model string, s store.Store, log *zap.Logger) *Analyzer {
	return &Analyzer{
		client: openai.NewClient(apiKey),
		model:  model,
		store:  s,
		log:    log,
	}
}

// AnalyzeText extracts the nine signals from one review text.
func (a *Analyzer) AnalyzeText(ctx context.Context, text string) (place.SignalValues, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Review: " + text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: no choices returned")
	}
	return parseSignals(resp.Choices[0].Message.Content)
}

// parseSignals coerces the model's JSON into a full signal set. Missing or
// unparseable dimensions fall back to their defaults; out-of-range values
// are clamped onto [0,1].
func parseSignals(content string) (place.SignalValues, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parse signal response: %w", err)
	}

	out := make(place.SignalValues, len(signalDefaults))
	for _, sig := range place.AllSignals() {
		v, ok := toFloat(raw[string(sig)])
		if !ok {
			v = signalDefaults[sig]
		}
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		out[sig] = v
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// ProcessPending analyzes reviews that have no signals yet, up to limit
// (0 = all). It pages through unanalyzed rows so an interrupted run can be
// restarted without re-spending model calls on finished reviews, and writes
// per-review so a crash loses at most one result. Returns the number of
// reviews handled.
func (a *Analyzer) ProcessPending(ctx context.Context, batchSize, limit int) (int, error) {
	if batchSize <= 0 {
		batchSize = 25
	}

	processed := 0
	for {
		if limit > 0 && processed >= limit {
			return processed, nil
		}
		fetch := batchSize
		if limit > 0 && limit-processed < fetch {
			fetch = limit - processed
		}

		batch, err := a.store.ListUnanalyzedReviews(ctx, fetch)
		if err != nil {
			return processed, fmt.Errorf("list unanalyzed reviews: %w", err)
		}
		if len(batch) == 0 {
			return processed, nil
		}

		progressed := false
		for i := range batch {
			if err := ctx.Err(); err != nil {
				return processed, err
			}
			rev := &batch[i]

			text := strings.TrimSpace(rev.ReviewText)
			if text == "" {
				// Rating-only reviews carry no text to analyze; stamp them so
				// the pending queue drains.
				if err := a.store.MarkReviewAnalyzed(ctx, rev.ID, a.model); err != nil {
					return processed, err
				}
				processed++
				progressed = true
				continue
			}

			signals, err := a.AnalyzeText(ctx, text)
			if err != nil {
				a.log.Warn("review analysis failed",
					zap.String("review_id", rev.ID),
					zap.Error(err))
				continue
			}
			if err := a.store.UpdateReviewSignals(ctx, rev.ID, signals, a.model); err != nil {
				return processed, err
			}

			processed++
			progressed = true
			analyzedReviews.Inc()
		}

		if !progressed {
			return processed, fmt.Errorf("analysis made no progress on a batch of %d reviews", len(batch))
		}
		a.log.Info("analysis batch done", zap.Int("processed", processed))
	}
}
