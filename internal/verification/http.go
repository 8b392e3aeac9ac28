package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"bluecarbon/internal/models"
)

const healthTimeout = 5 * time.Second

// HTTPConfig configures the external AI service client.
type HTTPConfig struct {
	BaseURL      string
	APIKey       string
	TokenURL     string // enables OAuth2 client credentials when set
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// HTTPBackend calls the external AI verification service.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
	health  *http.Client
}

// NewHTTPBackend creates a client for the AI service. Requests carry a bearer
// token from the static API key, or from the token endpoint when configured.
func NewHTTPBackend(cfg HTTPConfig) *HTTPBackend {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var ts oauth2.TokenSource
	switch {
	case cfg.TokenURL != "":
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		ts = cc.TokenSource(context.Background())
	case cfg.APIKey != "":
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey, TokenType: "Bearer"})
	}

	transport := http.DefaultTransport
	if ts != nil {
		transport = &oauth2.Transport{Source: ts, Base: http.DefaultTransport}
	}

	return &HTTPBackend{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout, Transport: transport},
		health:  &http.Client{Timeout: healthTimeout},
	}
}

// Name identifies the backend.
func (b *HTTPBackend) Name() string {
	return "http"
}

type verifyRequest struct {
	ImageURL     string `json:"image_url"`
	SubmissionID string `json:"submission_id,omitempty"`
}

type verifyResponse struct {
	Result         string         `json:"result"`
	Confidence     float64        `json:"confidence"`
	ProcessingTime float64        `json:"processing_time"`
	Details        map[string]any `json:"details"`
}

// Verify posts the image to /verify-image.
func (b *HTTPBackend) Verify(ctx context.Context, imageURL, submissionID string) (*models.Verdict, error) {
	var resp verifyResponse
	if err := b.post(ctx, "/verify-image", verifyRequest{ImageURL: imageURL, SubmissionID: submissionID}, &resp); err != nil {
		return nil, err
	}

	switch resp.Result {
	case models.AIResultVerified, models.AIResultRejected:
	default:
		return nil, fmt.Errorf("%w: unexpected result %q", ErrUpstreamUnavailable, resp.Result)
	}

	details := resp.Details
	if details == nil {
		details = map[string]any{}
	}
	return &models.Verdict{
		Result:         resp.Result,
		Confidence:     resp.Confidence,
		ProcessingTime: resp.ProcessingTime,
		Details:        details,
	}, nil
}

type creditResponse struct {
	Credits        int64          `json:"credits"`
	Confidence     float64        `json:"confidence"`
	Factors        map[string]any `json:"factors"`
	ProcessingTime float64        `json:"processing_time"`
}

// CalculateCredits posts the request to /calculate-credits.
func (b *HTTPBackend) CalculateCredits(ctx context.Context, req CreditRequest) (*models.CreditEstimate, error) {
	var resp creditResponse
	if err := b.post(ctx, "/calculate-credits", req, &resp); err != nil {
		return nil, err
	}

	factors := resp.Factors
	if factors == nil {
		factors = map[string]any{}
	}
	return &models.CreditEstimate{
		Credits:        resp.Credits,
		Confidence:     resp.Confidence,
		Factors:        factors,
		ProcessingTime: resp.ProcessingTime,
	}, nil
}

// Health calls /health with a short timeout and returns the reported response time.
func (b *HTTPBackend) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/health", nil)
	if err != nil {
		return "", err
	}

	resp, err := b.health.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body struct {
		ResponseTime any `json:"response_time"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.ResponseTime == nil {
		return "", nil
	}
	return fmt.Sprint(body.ResponseTime), nil
}

func (b *HTTPBackend) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s returned %d", ErrUpstreamUnavailable, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", ErrUpstreamUnavailable, path, err)
	}
	return nil
}
