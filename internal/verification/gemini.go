package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"bluecarbon/internal/models"
	"bluecarbon/internal/validation"
)

const (
	maxImageFetch = 10 << 20

	geminiPrompt = `You verify photos submitted as evidence of coastal blue-carbon restoration
(mangrove, seagrass or coral). Decide whether the photo plausibly shows such a restoration site.
Answer with JSON only: {"result": "verified" | "rejected", "confidence": <0..1>, "reason": "<short>"}.`
)

// GeminiBackend classifies images with a Gemini multimodal model.
type GeminiBackend struct {
	client *genai.Client
	model  string
	fetch  *http.Client
}

// NewGeminiBackend creates a Gemini client.
func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiBackend{
		client: client,
		model:  model,
		fetch:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Name identifies the backend.
func (g *GeminiBackend) Name() string {
	return "gemini"
}

type geminiVerdict struct {
	Result     string  `json:"result"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Verify downloads the image and asks the model for a verdict.
func (g *GeminiBackend) Verify(ctx context.Context, imageURL, submissionID string) (*models.Verdict, error) {
	start := time.Now()

	data, mimeType, err := g.download(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(geminiPrompt),
			genai.NewPartFromBytes(data, mimeType),
		}, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	v, err := parseGeminiVerdict(result.Text())
	if err != nil {
		return nil, err
	}

	return &models.Verdict{
		Result:         v.Result,
		Confidence:     v.Confidence,
		ProcessingTime: time.Since(start).Seconds(),
		Details: map[string]any{
			"model":  g.model,
			"reason": v.Reason,
		},
	}, nil
}

func (g *GeminiBackend) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	if ok, msg := validation.ValidateURLForFetch(imageURL); !ok {
		return nil, "", fmt.Errorf("refusing to fetch image: %s", msg)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := g.fetch.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: fetching image: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: fetching image returned %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageFetch))
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading image: %v", ErrUpstreamUnavailable, err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}

// parseGeminiVerdict decodes the model's JSON answer, tolerating code fences.
func parseGeminiVerdict(text string) (*geminiVerdict, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var v geminiVerdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &v); err != nil {
		return nil, fmt.Errorf("%w: malformed model answer: %v", ErrUpstreamUnavailable, err)
	}

	v.Result = strings.ToLower(strings.TrimSpace(v.Result))
	if v.Result != models.AIResultVerified && v.Result != models.AIResultRejected {
		return nil, fmt.Errorf("%w: unexpected result %q", ErrUpstreamUnavailable, v.Result)
	}
	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}
	return &v, nil
}
