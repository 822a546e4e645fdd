// Package invoker turns a prompt into report text by walking an ordered list
// of model candidates on one backend until one answers.
package invoker

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/xalq/ai/provider"
	"github.com/teranos/xalq/ai/tracker"
	"github.com/teranos/xalq/am"
	"github.com/teranos/xalq/errors"
	"github.com/teranos/xalq/logger"
)

// Options are per-call settings. Model and Temperature override config;
// the remaining fields only attribute the call in logs and the usage table.
type Options struct {
	Model       string
	Temperature *float64

	RunID        string
	RowIndex     int
	AnalysisType string
	Provenance   string
}

// Result is a successful generation
type Result struct {
	Text     string
	Model    string
	Attempts int
	Usage    provider.Usage
}

// Invoker calls a backend with candidate fallback, pacing and usage tracking
type Invoker struct {
	backend      provider.Backend
	limiter      *rate.Limiter
	tracker      *tracker.UsageTracker
	fallback     []string
	defaultModel string
	temperature  *float64
	topP         float64
	maxTokens    int
	logger       *zap.SugaredLogger
	now          func() time.Time
}

// Option configures an Invoker
type Option func(*Invoker)

// WithTracker records every attempt in ai_model_usage
func WithTracker(t *tracker.UsageTracker) Option {
	return func(inv *Invoker) { inv.tracker = t }
}

// WithRequestsPerMinute paces calls; zero or less means unlimited
func WithRequestsPerMinute(rpm int) Option {
	return func(inv *Invoker) { inv.limiter = newLimiter(rpm) }
}

// WithFallbackModels replaces FallbackModelsV1
func WithFallbackModels(models []string) Option {
	return func(inv *Invoker) { inv.fallback = models }
}

// WithDefaultModel sets the model used when Options.Model is empty
func WithDefaultModel(model string) Option {
	return func(inv *Invoker) { inv.defaultModel = model }
}

// WithTemperature sets a config-level temperature override
func WithTemperature(t *float64) Option {
	return func(inv *Invoker) { inv.temperature = t }
}

// WithGenerationLimits sets top_p and max_output_tokens
func WithGenerationLimits(topP float64, maxOutputTokens int) Option {
	return func(inv *Invoker) {
		inv.topP = topP
		inv.maxTokens = maxOutputTokens
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(inv *Invoker) { inv.logger = l }
}

// New creates an Invoker over backend
func New(backend provider.Backend, opts ...Option) *Invoker {
	inv := &Invoker{
		backend:      backend,
		limiter:      newLimiter(0),
		defaultModel: am.DefaultModel,
		topP:         am.DefaultTopP,
		maxTokens:    am.DefaultMaxOutputTokens,
		logger:       logger.ComponentLogger("ai.invoker"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// FromConfig creates an Invoker using the backend section of cfg.
// A nil db disables usage tracking.
func FromConfig(backend provider.Backend, cfg *am.EngineConfig, db *sql.DB) *Invoker {
	opts := []Option{
		WithRequestsPerMinute(cfg.Backend.RequestsPerMinute),
		WithFallbackModels(cfg.Backend.FallbackModels),
		WithTemperature(cfg.Backend.Temperature),
		WithGenerationLimits(cfg.Backend.TopP, cfg.Backend.MaxOutputTokens),
	}
	if cfg.Backend.Model != "" {
		opts = append(opts, WithDefaultModel(cfg.Backend.Model))
	}
	if db != nil {
		opts = append(opts, WithTracker(tracker.NewUsageTracker(db)))
	}
	return New(backend, opts...)
}

func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
}

// Invoke sends prompt to each candidate model in turn and returns the first
// non-empty answer. An empty-but-successful answer stops the walk with
// ErrContentBlocked; when every candidate fails the result is
// ErrGenerationExhausted wrapping the last error.
func (inv *Invoker) Invoke(ctx context.Context, prompt string, opts Options) (*Result, error) {
	requested := opts.Model
	if requested == "" {
		requested = inv.defaultModel
	}
	candidates := Candidates(requested, inv.fallback)

	log := inv.logger.With(logger.FieldsFromContext(ctx)...)
	if opts.RunID != "" {
		log = log.With(logger.FieldRunID, opts.RunID, logger.FieldRow, opts.RowIndex)
	}

	var lastErr error
	for i, model := range candidates {
		attempt := i + 1

		if err := inv.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "waiting for rate limiter")
		}

		temperature := inv.temperature
		if opts.Temperature != nil {
			temperature = opts.Temperature
		}
		req := provider.Request{
			Prompt: prompt,
			Config: provider.GenerationConfig{
				Model:           model,
				Temperature:     Temperature(model, temperature),
				TopP:            inv.topP,
				MaxOutputTokens: inv.maxTokens,
			},
		}

		log.Debugw("Calling model",
			logger.FieldModel, model,
			logger.FieldAttempt, attempt,
			logger.FieldTemperature, req.Config.Temperature,
		)

		started := inv.now()
		resp, err := inv.backend.Generate(ctx, req)
		finished := inv.now()
		if err == nil && (resp == nil || strings.TrimSpace(resp.Text) == "") {
			err = errors.Mark(errors.Newf("model %s returned an empty response", model), provider.ErrBlocked)
		}
		inv.track(ctx, opts, req, attempt, started, finished, resp, err)

		if err == nil {
			log.Infow("Model answered",
				logger.FieldModel, model,
				logger.FieldAttempt, attempt,
				logger.FieldDurationMS, finished.Sub(started).Milliseconds(),
			)
			return &Result{Text: resp.Text, Model: model, Attempts: attempt, Usage: resp.Usage}, nil
		}

		if errors.Is(err, provider.ErrBlocked) {
			log.Warnw("Model returned no content",
				logger.FieldModel, model,
				logger.FieldError, err,
			)
			return nil, errors.WithDetailf(
				errors.Mark(errors.Wrapf(err, "model %s", model), errors.ErrContentBlocked),
				"Model: %s", model,
			)
		}

		if ctx.Err() != nil {
			return nil, errors.Wrapf(ctx.Err(), "cancelled while calling %s", model)
		}

		lastErr = err
		log.Warnw("Model failed, trying next candidate",
			logger.FieldModel, model,
			logger.FieldAttempt, attempt,
			logger.FieldError, err,
		)
	}

	return nil, errors.WithHint(
		errors.Mark(
			errors.Wrapf(lastErr, "all %d model candidates failed", len(candidates)),
			errors.ErrGenerationExhausted,
		),
		"check the API key and quota, or set backend.fallback_models",
	)
}

// track records one attempt. Tracking failures are logged, never returned.
func (inv *Invoker) track(ctx context.Context, opts Options, req provider.Request, attempt int, started, finished time.Time, resp *provider.Response, callErr error) {
	if inv.tracker == nil {
		return
	}

	provName := string(inv.backend.Name())
	topP := req.Config.TopP
	temperature := req.Config.Temperature
	maxTokens := req.Config.MaxOutputTokens
	promptLen := len(req.Prompt)

	usage := &tracker.ModelUsage{
		RunID:             opts.RunID,
		RowIndex:          opts.RowIndex,
		AnalysisType:      opts.AnalysisType,
		OperationType:     tracker.OperationReport,
		ModelName:         req.Config.Model,
		ModelProvider:     provName,
		ModelConfig:       tracker.NewModelConfig(&temperature, &topP, &maxTokens),
		Attempt:           attempt,
		RequestTimestamp:  started,
		ResponseTimestamp: &finished,
		Success:           callErr == nil,
	}

	meta := tracker.UsageMetadata{Provenance: opts.Provenance, PromptLength: &promptLen}
	if callErr != nil {
		msg := callErr.Error()
		usage.ErrorMessage = &msg
	} else if resp != nil {
		tokens := resp.Usage.TotalTokens
		cost := tracker.CalculateCost(provName, req.Config.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		outLen := len(resp.Text)
		usage.TokensUsed = &tokens
		usage.Cost = &cost
		meta.FinishReason = resp.FinishReason
		meta.OutputLength = &outLen
	}
	usage.Metadata = tracker.NewUsageMetadata(meta)

	// The row context may already be cancelled; the record should still land
	if err := inv.tracker.TrackUsage(context.WithoutCancel(ctx), usage); err != nil {
		inv.logger.Warnw("Failed to track usage", logger.FieldModel, req.Config.Model, logger.FieldError, err)
	}
}
