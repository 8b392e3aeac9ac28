package verification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bluecarbon/internal/models"
)

// sequence returns a random source that cycles through values.
func sequence(values ...float64) func() float64 {
	var i int
	return func() float64 {
		v := values[i%len(values)]
		i++
		return v
	}
}

type stubBackend struct {
	calls   atomic.Int32
	failFor int32
	verdict models.Verdict
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Verify(ctx context.Context, imageURL, submissionID string) (*models.Verdict, error) {
	n := s.calls.Add(1)
	if n <= s.failFor {
		return nil, ErrUpstreamUnavailable
	}
	v := s.verdict
	return &v, nil
}

func TestVerifier_Fallback(t *testing.T) {
	tests := []struct {
		name       string
		random     []float64
		wantResult string
		wantConf   float64
		wantTime   float64
	}{
		{"verified", []float64{0.9, 0.5, 0.5}, models.AIResultVerified, 0.8, 2.0},
		{"rejected at threshold", []float64{0.3, 0, 0}, models.AIResultRejected, 0.6, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVerifier(nil, nil, zap.NewNop(), WithRandom(sequence(tt.random...)))
			got := v.Verify(context.Background(), "https://example.org/a.jpg", "sub-1")

			assert.Equal(t, tt.wantResult, got.Result)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
			assert.InDelta(t, tt.wantTime, got.ProcessingTime, 1e-9)
			assert.True(t, got.Fallback)
			assert.Equal(t, true, got.Details["fallback"])
			assert.NotEmpty(t, got.Details["message"])
		})
	}
}

func TestVerifier_FallbackRanges(t *testing.T) {
	v := NewVerifier(nil, nil, zap.NewNop())
	for i := 0; i < 200; i++ {
		got := v.Fallback()
		require.Contains(t, []string{models.AIResultVerified, models.AIResultRejected}, got.Result)
		require.GreaterOrEqual(t, got.Confidence, 0.6)
		require.Less(t, got.Confidence, 1.0)
		require.GreaterOrEqual(t, got.ProcessingTime, 1.0)
		require.Less(t, got.ProcessingTime, 3.0)
	}
}

func TestVerifier_RetriesThenSucceeds(t *testing.T) {
	backend := &stubBackend{failFor: 1, verdict: models.Verdict{Result: models.AIResultVerified, Confidence: 0.95}}
	v := NewVerifier(backend, nil, zap.NewNop(), WithRetries(1), WithBackoff(0))

	got := v.Verify(context.Background(), "https://example.org/a.jpg", "sub-1")
	assert.Equal(t, int32(2), backend.calls.Load())
	assert.Equal(t, models.AIResultVerified, got.Result)
	assert.False(t, got.Fallback)
	assert.Equal(t, "stub", got.Source)
}

func TestVerifier_RetriesExhausted(t *testing.T) {
	backend := &stubBackend{failFor: 10}
	v := NewVerifier(backend, nil, zap.NewNop(), WithRetries(2), WithBackoff(0), WithRandom(sequence(0.5)))

	got := v.Verify(context.Background(), "https://example.org/a.jpg", "sub-1")
	assert.Equal(t, int32(3), backend.calls.Load())
	assert.True(t, got.Fallback)
	assert.Equal(t, "fallback", got.Source)
}

func TestHTTPBackend_Verify(t *testing.T) {
	var gotAuth string
	var gotBody verifyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/verify-image", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":"verified","confidence":0.91,"processing_time":1.7,"details":{"vegetation":"dense"}}`))
	}))
	defer srv.Close()

	b := NewHTTPBackend(HTTPConfig{BaseURL: srv.URL, APIKey: "secret"})
	v, err := b.Verify(context.Background(), "https://example.org/a.jpg", "sub-9")
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "https://example.org/a.jpg", gotBody.ImageURL)
	assert.Equal(t, "sub-9", gotBody.SubmissionID)
	assert.Equal(t, models.AIResultVerified, v.Result)
	assert.InDelta(t, 0.91, v.Confidence, 1e-9)
	assert.InDelta(t, 1.7, v.ProcessingTime, 1e-9)
	assert.Equal(t, "dense", v.Details["vegetation"])
}

func TestHTTPBackend_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"bad body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		}},
		{"unknown result", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"result":"maybe"}`))
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			b := NewHTTPBackend(HTTPConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
			_, err := b.Verify(context.Background(), "https://example.org/a.jpg", "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUpstreamUnavailable), "error %v", err)
		})
	}
}

func TestHTTPBackend_ClientCredentials(t *testing.T) {
	var tokenCalls atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"issued-token","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"result":"rejected","confidence":0.8,"processing_time":1}`))
	}))
	defer srv.Close()

	b := NewHTTPBackend(HTTPConfig{BaseURL: srv.URL, TokenURL: tokenSrv.URL, ClientID: "id", ClientSecret: "secret"})
	for i := 0; i < 2; i++ {
		_, err := b.Verify(context.Background(), "https://example.org/a.jpg", "")
		require.NoError(t, err)
	}

	assert.Equal(t, "Bearer issued-token", gotAuth)
	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestVerifier_CalculateCredits(t *testing.T) {
	t.Run("upstream", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/calculate-credits", r.URL.Path)
			w.Write([]byte(`{"credits":420,"confidence":0.88,"factors":{"canopy":0.7},"processing_time":2.2}`))
		}))
		defer srv.Close()

		v := NewVerifier(NewHTTPBackend(HTTPConfig{BaseURL: srv.URL}), nil, zap.NewNop())
		got := v.CalculateCredits(context.Background(), CreditRequest{ImageURL: "u", Area: 2, Type: "mangrove"})
		assert.Equal(t, int64(420), got.Credits)
		assert.False(t, got.Fallback)
	})

	t.Run("fallback formula", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		v := NewVerifier(NewHTTPBackend(HTTPConfig{BaseURL: srv.URL}), nil, zap.NewNop())
		got := v.CalculateCredits(context.Background(), CreditRequest{ImageURL: "u", Area: 2.5, Type: "coral"})
		assert.Equal(t, int64(500), got.Credits)
		assert.True(t, got.Fallback)
		assert.InDelta(t, 0.7, got.Confidence, 1e-9)
		assert.InDelta(t, 1.5, got.ProcessingTime, 1e-9)
		assert.Equal(t, 200, got.Factors["baseMultiplier"])
	})
}

func TestVerifier_Health(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response_time":"12ms"}`))
	}))
	defer up.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	ok := NewVerifier(NewHTTPBackend(HTTPConfig{BaseURL: up.URL}), nil, zap.NewNop()).Health(context.Background())
	assert.Equal(t, "OK", ok.Status)
	assert.Equal(t, "connected", ok.AIService)
	assert.Equal(t, "12ms", ok.ResponseTime)

	bad := NewVerifier(NewHTTPBackend(HTTPConfig{BaseURL: down.URL}), nil, zap.NewNop()).Health(context.Background())
	assert.Equal(t, "WARNING", bad.Status)
	assert.Equal(t, "disconnected", bad.AIService)

	none := NewVerifier(nil, nil, zap.NewNop()).Health(context.Background())
	assert.Equal(t, "disconnected", none.AIService)
}

func TestParseGeminiVerdict(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{"plain", `{"result":"verified","confidence":0.9,"reason":"mangrove saplings"}`, models.AIResultVerified, false},
		{"fenced", "```json\n{\"result\":\"Rejected\",\"confidence\":0.7}\n```", models.AIResultRejected, false},
		{"bad result", `{"result":"unsure"}`, "", true},
		{"not json", `I think it is a mangrove`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseGeminiVerdict(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Result)
		})
	}
}
