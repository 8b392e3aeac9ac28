// Package verification classifies submission images through an external AI
// backend and synthesizes a fallback verdict when the backend is unavailable.
package verification

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"bluecarbon/internal/credits"
	"bluecarbon/internal/models"
)

// ErrUpstreamUnavailable is returned by a backend that could not produce a verdict.
var ErrUpstreamUnavailable = errors.New("verification service unavailable")

const (
	fallbackMessage = "AI service unavailable, using fallback verification"
	sourceFallback  = "fallback"

	fallbackEstimateConfidence = 0.7
	fallbackEstimateTime       = 1.5
)

// Backend performs a single verification attempt.
type Backend interface {
	Name() string
	Verify(ctx context.Context, imageURL, submissionID string) (*models.Verdict, error)
}

// CreditBackend is implemented by backends that can estimate credits from imagery.
type CreditBackend interface {
	CalculateCredits(ctx context.Context, req CreditRequest) (*models.CreditEstimate, error)
}

// HealthBackend is implemented by backends with a health endpoint.
type HealthBackend interface {
	Health(ctx context.Context) (string, error)
}

// CreditRequest is the input of a credit estimate.
type CreditRequest struct {
	ImageURL     string  `json:"image_url"`
	Area         float64 `json:"area"`
	Type         string  `json:"type"`
	SubmissionID string  `json:"submission_id,omitempty"`
}

// Health is the outcome of a backend health probe.
type Health struct {
	Status       string `json:"status"`
	AIService    string `json:"aiService"`
	Backend      string `json:"backend"`
	ResponseTime string `json:"responseTime,omitempty"`
	Message      string `json:"message,omitempty"`
}

// Verifier wraps a backend with retries and a local fallback. Its methods
// never return an upstream error to the caller.
type Verifier struct {
	backend    Backend
	retries    int
	backoff    time.Duration
	calculator *credits.Calculator
	random     func() float64
	logger     *zap.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithRetries sets how many times a failed attempt is repeated before falling back.
func WithRetries(n int) Option {
	return func(v *Verifier) {
		if n >= 0 {
			v.retries = n
		}
	}
}

// WithBackoff sets the pause between attempts.
func WithBackoff(d time.Duration) Option {
	return func(v *Verifier) { v.backoff = d }
}

// WithRandom replaces the source of the fallback verdict. f must return values in [0, 1).
func WithRandom(f func() float64) Option {
	return func(v *Verifier) { v.random = f }
}

// NewVerifier creates a verifier. A nil backend always falls back.
func NewVerifier(backend Backend, calculator *credits.Calculator, logger *zap.Logger, opts ...Option) *Verifier {
	if calculator == nil {
		calculator = credits.NewCalculator(nil, 0)
	}
	v := &Verifier{
		backend:    backend,
		retries:    1,
		backoff:    500 * time.Millisecond,
		calculator: calculator,
		random:     rand.Float64,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// BackendName reports the configured backend, or "fallback" when none is set.
func (v *Verifier) BackendName() string {
	if v.backend == nil {
		return sourceFallback
	}
	return v.backend.Name()
}

// Verify classifies the image. On repeated backend failure the fallback
// verdict is returned with Fallback set.
func (v *Verifier) Verify(ctx context.Context, imageURL, submissionID string) models.Verdict {
	if v.backend != nil {
		var lastErr error
		for attempt := 0; attempt <= v.retries; attempt++ {
			if attempt > 0 && !sleep(ctx, v.backoff) {
				break
			}
			verdict, err := v.backend.Verify(ctx, imageURL, submissionID)
			if err == nil {
				verdict.Source = v.backend.Name()
				return *verdict
			}
			lastErr = err
		}
		v.logger.Warn("AI verification failed, using fallback",
			zap.String("submission_id", submissionID),
			zap.String("backend", v.backend.Name()),
			zap.Error(lastErr),
		)
	}
	return v.Fallback()
}

// Fallback synthesizes a verdict: verified with probability 0.7, confidence
// in [0.6, 1.0) and processing time in [1, 3) seconds.
func (v *Verifier) Fallback() models.Verdict {
	result := models.AIResultRejected
	if v.random() > 0.3 {
		result = models.AIResultVerified
	}
	return models.Verdict{
		Result:         result,
		Confidence:     v.random()*0.4 + 0.6,
		ProcessingTime: v.random()*2 + 1,
		Fallback:       true,
		Source:         sourceFallback,
		Details: map[string]any{
			"message":  fallbackMessage,
			"fallback": true,
		},
	}
}

// CalculateCredits asks the backend for an imagery-based estimate, falling
// back to the area formula.
func (v *Verifier) CalculateCredits(ctx context.Context, req CreditRequest) models.CreditEstimate {
	if cb, ok := v.backend.(CreditBackend); ok {
		est, err := cb.CalculateCredits(ctx, req)
		if err == nil {
			return *est
		}
		v.logger.Warn("AI credit calculation failed, using fallback",
			zap.String("submission_id", req.SubmissionID),
			zap.Error(err),
		)
	}

	multiplier := v.calculator.Multiplier(req.Type)
	return models.CreditEstimate{
		Credits:    v.calculator.Estimate(req.Area, req.Type),
		Confidence: fallbackEstimateConfidence,
		Factors: map[string]any{
			"area":           req.Area,
			"type":           req.Type,
			"baseMultiplier": multiplier,
		},
		ProcessingTime: fallbackEstimateTime,
		Fallback:       true,
	}
}

// Health probes the backend.
func (v *Verifier) Health(ctx context.Context) Health {
	hb, ok := v.backend.(HealthBackend)
	if !ok {
		if v.backend != nil {
			return Health{Status: "OK", AIService: "connected", Backend: v.backend.Name(), ResponseTime: "unknown"}
		}
		return Health{
			Status:    "WARNING",
			AIService: "disconnected",
			Backend:   sourceFallback,
			Message:   "AI service is not available, using fallback mode",
		}
	}

	responseTime, err := hb.Health(ctx)
	if err != nil {
		return Health{
			Status:    "WARNING",
			AIService: "disconnected",
			Backend:   v.backend.Name(),
			Message:   "AI service is not available, using fallback mode",
		}
	}
	if responseTime == "" {
		responseTime = "unknown"
	}
	return Health{Status: "OK", AIService: "connected", Backend: v.backend.Name(), ResponseTime: responseTime}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
