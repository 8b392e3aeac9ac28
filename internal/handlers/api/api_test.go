package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bluecarbon/internal/ledger"
	"bluecarbon/internal/models"
	"bluecarbon/internal/submissions"
	"bluecarbon/internal/verification"
)

type fakeSubmissions struct {
	createReq  *submissions.CreateRequest
	createErr  error
	filter     models.SubmissionFilter
	approveErr error
	rejected   string
	profileErr error
}

func (f *fakeSubmissions) Create(_ context.Context, req *submissions.CreateRequest) (*models.SubmitResponse, error) {
	f.createReq = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.SubmitResponse{SubmissionID: uuid.New(), Status: models.StatusPending, EstimatedCredits: 150, Message: "Submission created successfully"}, nil
}

func (f *fakeSubmissions) Get(_ context.Context, id uuid.UUID) (*models.Submission, error) {
	return nil, submissions.ErrNotFound
}

func (f *fakeSubmissions) List(_ context.Context, filter models.SubmissionFilter, page, limit, defaultLimit int) ([]models.Submission, models.Pagination, error) {
	f.filter = filter
	page, limit = models.NormalizePage(page, limit, defaultLimit)
	return []models.Submission{}, models.NewPagination(page, limit, 45), nil
}

func (f *fakeSubmissions) Approve(_ context.Context, _ uuid.UUID) (*models.ApproveResponse, error) {
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	return &models.ApproveResponse{Message: "ok", TransactionHash: "0xabc", CreditsIssued: 150}, nil
}

func (f *fakeSubmissions) Reject(_ context.Context, _ uuid.UUID, reason string) error {
	f.rejected = reason
	return nil
}

func (f *fakeSubmissions) Profile(_ context.Context, userID string) (*models.User, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return &models.User{ID: userID, Name: "Unknown", TotalCredits: 300}, nil
}

func (f *fakeSubmissions) Credits(_ context.Context, _ string, page, limit, defaultLimit int) ([]models.CarbonCredit, models.Pagination, error) {
	page, limit = models.NormalizePage(page, limit, defaultLimit)
	return []models.CarbonCredit{}, models.NewPagination(page, limit, 0), nil
}

func (f *fakeSubmissions) UpdateProfile(_ context.Context, userID, name, email string) (*models.User, error) {
	return &models.User{ID: userID, Name: name, Email: email}, nil
}

func (f *fakeSubmissions) SetWallet(_ context.Context, _, address string) error {
	if address == "" {
		return &submissions.ValidationError{Missing: []string{"walletAddress"}}
	}
	return nil
}

func (f *fakeSubmissions) User(_ context.Context, userID string) (*models.User, error) {
	return &models.User{ID: userID}, nil
}

func (f *fakeSubmissions) Users(_ context.Context, _ string, page, limit, defaultLimit int) ([]models.User, models.Pagination, error) {
	page, limit = models.NormalizePage(page, limit, defaultLimit)
	return []models.User{}, models.NewPagination(page, limit, 0), nil
}

type fakeAI struct {
	verdict models.Verdict
	health  verification.Health
	credit  verification.CreditRequest
}

func (f *fakeAI) Verify(context.Context, string, string) models.Verdict { return f.verdict }

func (f *fakeAI) CalculateCredits(_ context.Context, req verification.CreditRequest) models.CreditEstimate {
	f.credit = req
	return models.CreditEstimate{Credits: int64(req.Area * 100), Confidence: 0.7, Fallback: true}
}

func (f *fakeAI) Health(context.Context) verification.Health { return f.health }

type fakeLog struct {
	events []models.VerificationEvent
}

func (f *fakeLog) RecordVerificationEvent(_ context.Context, ev *models.VerificationEvent) error {
	f.events = append(f.events, *ev)
	return nil
}

func (f *fakeLog) ListVerificationEvents(_ context.Context, limit, offset int) ([]models.VerificationEvent, int64, error) {
	return f.events, int64(len(f.events)), nil
}

type fakeLedger struct{}

func (fakeLedger) Balance(_ context.Context, wallet string) (*big.Int, error) {
	if wallet == "bad" {
		return nil, ledger.ErrInvalidAddress
	}
	return big.NewInt(1500), nil
}

func (fakeLedger) Transfer(_ context.Context, _ string, amount int64) (*models.LedgerTx, error) {
	if amount <= 0 {
		return nil, ledger.ErrInvalidAmount
	}
	return &models.LedgerTx{Hash: "0xdef"}, nil
}

type failingPinger struct{ err error }

func (p failingPinger) Ping(context.Context) error { return p.err }

type envelope struct {
	Success    bool              `json:"success"`
	Data       json.RawMessage   `json:"data"`
	Error      string            `json:"error"`
	Message    string            `json:"message"`
	Required   []string          `json:"required"`
	Invalid    []string          `json:"invalid"`
	Pagination models.Pagination `json:"pagination"`
}

func newTestApp(subs *fakeSubmissions, ai *fakeAI, events *fakeLog) *fiber.App {
	app := fiber.New()

	mobile := NewMobileHandler(subs)
	app.Post("/mobile/submit", mobile.Submit)
	app.Get("/mobile/user/:userId/submissions", mobile.UserSubmissions)
	app.Get("/mobile/user/:userId/profile", mobile.Profile)
	app.Put("/mobile/user/:userId/wallet", mobile.SetWallet)

	review := NewSubmissionHandler(subs)
	app.Get("/submissions/:id", review.Get)
	app.Post("/submissions/:id/approve", review.Approve)
	app.Post("/submissions/:id/reject", review.Reject)

	aiHandler := NewAIHandler(ai, events, zap.NewNop())
	app.Post("/ai/verify", aiHandler.Verify)
	app.Post("/ai/calculate-credits", aiHandler.CalculateCredits)
	app.Get("/ai/health", aiHandler.Health)
	app.Get("/ai/history", aiHandler.History)

	chain := NewBlockchainHandler(fakeLedger{})
	app.Get("/blockchain/balance/:address", chain.Balance)
	app.Post("/blockchain/transfer", chain.Transfer)

	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, envelope) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	return resp.StatusCode, env
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func TestSubmit(t *testing.T) {
	subs := &fakeSubmissions{}
	app := newTestApp(subs, &fakeAI{}, &fakeLog{})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"userId": "farmer-1", "type": "mangrove", "latitude": "-8.5", "longitude": "115.2", "area": "1.0", "appVersion": "2.1.0",
	} {
		require.NoError(t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("images", "site.jpg")
	require.NoError(t, err)
	_, _ = part.Write([]byte("jpeg bytes"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(fiber.MethodPost, "/mobile/submit", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())

	status, env := do(t, app, req)
	assert.Equal(t, fiber.StatusCreated, status)
	assert.True(t, env.Success)

	var data models.SubmitResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, int64(150), data.EstimatedCredits)

	require.NotNil(t, subs.createReq)
	assert.Equal(t, "farmer-1", subs.createReq.UserID)
	assert.Equal(t, "2.1.0", subs.createReq.AppVersion)
	require.Len(t, subs.createReq.Images, 1)
	assert.Equal(t, "site.jpg", subs.createReq.Images[0].Name)
	assert.Equal(t, []byte("jpeg bytes"), subs.createReq.Images[0].Data)
}

func TestSubmit_ValidationError(t *testing.T) {
	subs := &fakeSubmissions{createErr: &submissions.ValidationError{Missing: []string{"userId", "area"}}}
	app := newTestApp(subs, &fakeAI{}, &fakeLog{})

	req := httptest.NewRequest(fiber.MethodPost, "/mobile/submit", bytes.NewBufferString("type=coral"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)

	status, env := do(t, app, req)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.False(t, env.Success)
	assert.Equal(t, "Missing required fields", env.Error)
	assert.Equal(t, []string{"userId", "area"}, env.Required)
}

func TestUserSubmissions_Pagination(t *testing.T) {
	subs := &fakeSubmissions{}
	app := newTestApp(subs, &fakeAI{}, &fakeLog{})

	status, env := do(t, app, httptest.NewRequest(fiber.MethodGet, "/mobile/user/farmer-1/submissions?page=2&status=pending", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, models.SubmissionFilter{UserID: "farmer-1", Status: "pending"}, subs.filter)
	assert.Equal(t, models.Pagination{Page: 2, Limit: 20, Total: 45, Pages: 3}, env.Pagination)
}

func TestProfile_NotFound(t *testing.T) {
	app := newTestApp(&fakeSubmissions{profileErr: submissions.ErrNotFound}, &fakeAI{}, &fakeLog{})

	status, env := do(t, app, httptest.NewRequest(fiber.MethodGet, "/mobile/user/ghost/profile", nil))
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "User not found", env.Error)
}

func TestSetWallet_Missing(t *testing.T) {
	app := newTestApp(&fakeSubmissions{}, &fakeAI{}, &fakeLog{})

	status, env := do(t, app, jsonRequest(fiber.MethodPut, "/mobile/user/farmer-1/wallet", `{}`))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, []string{"walletAddress"}, env.Required)
}

func TestApprove_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"success", nil, fiber.StatusOK, ""},
		{"not found", submissions.ErrNotFound, fiber.StatusNotFound, "Submission not found"},
		{"not pending", submissions.ErrInvalidState, fiber.StatusBadRequest, "Submission is not pending"},
		{"no wallet", submissions.ErrMissingWallet, fiber.StatusBadRequest, "User wallet address not found"},
		{"ledger", &submissions.LedgerError{Err: errors.New("reverted")}, fiber.StatusInternalServerError, "Failed to issue credits on blockchain"},
		{"storage", &submissions.StorageError{Op: "store", Err: errors.New("down")}, fiber.StatusInternalServerError, "Failed to approve submission"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(&fakeSubmissions{approveErr: tt.err}, &fakeAI{}, &fakeLog{})
			status, env := do(t, app, httptest.NewRequest(fiber.MethodPost, "/submissions/"+uuid.NewString()+"/approve", nil))
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.err == nil, env.Success)
			assert.Equal(t, tt.msg, env.Error)
		})
	}
}

func TestGet_InvalidID(t *testing.T) {
	app := newTestApp(&fakeSubmissions{}, &fakeAI{}, &fakeLog{})

	status, _ := do(t, app, httptest.NewRequest(fiber.MethodGet, "/submissions/not-a-uuid", nil))
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestReject_Reason(t *testing.T) {
	subs := &fakeSubmissions{}
	app := newTestApp(subs, &fakeAI{}, &fakeLog{})

	status, _ := do(t, app, jsonRequest(fiber.MethodPost, "/submissions/"+uuid.NewString()+"/reject", `{"reason":"blurry"}`))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "blurry", subs.rejected)

	status, _ = do(t, app, httptest.NewRequest(fiber.MethodPost, "/submissions/"+uuid.NewString()+"/reject", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, subs.rejected)
}

func TestAIVerify(t *testing.T) {
	ai := &fakeAI{verdict: models.Verdict{Result: models.AIResultVerified, Confidence: 0.8, Fallback: true, Source: "fallback"}}
	events := &fakeLog{}
	app := newTestApp(&fakeSubmissions{}, ai, events)

	status, env := do(t, app, jsonRequest(fiber.MethodPost, "/ai/verify", `{"submissionId":"x"}`))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Image URL is required", env.Error)

	status, env = do(t, app, jsonRequest(fiber.MethodPost, "/ai/verify", `{"imageUrl":"file:///etc/passwd"}`))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "URL must use http:// or https:// scheme", env.Error)
	assert.Empty(t, events.events)

	id := uuid.New()
	status, env = do(t, app, jsonRequest(fiber.MethodPost, "/ai/verify", `{"imageUrl":"https://img.test/a.jpg","submissionId":"`+id.String()+`"}`))
	assert.Equal(t, fiber.StatusOK, status)
	var verdict models.Verdict
	require.NoError(t, json.Unmarshal(env.Data, &verdict))
	assert.True(t, verdict.Fallback)

	require.Len(t, events.events, 1)
	require.NotNil(t, events.events[0].SubmissionID)
	assert.Equal(t, id, *events.events[0].SubmissionID)

	status, env = do(t, app, httptest.NewRequest(fiber.MethodGet, "/ai/history?limit=5", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)
}

func TestAICalculateCredits(t *testing.T) {
	ai := &fakeAI{}
	app := newTestApp(&fakeSubmissions{}, ai, &fakeLog{})

	status, env := do(t, app, jsonRequest(fiber.MethodPost, "/ai/calculate-credits", `{"imageUrl":"https://img.test/a.jpg","type":"coral"}`))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Image URL, area, and type are required", env.Error)

	status, _ = do(t, app, jsonRequest(fiber.MethodPost, "/ai/calculate-credits", `{"imageUrl":"https://img.test/a.jpg","area":"2.5","type":"coral"}`))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 2.5, ai.credit.Area)
}

func TestAIHealth(t *testing.T) {
	ai := &fakeAI{health: verification.Health{Status: "WARNING", AIService: "disconnected"}}
	app := newTestApp(&fakeSubmissions{}, ai, &fakeLog{})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ai/health", nil))
	require.NoError(t, err)
	var h verification.Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, "disconnected", h.AIService)
}

func TestBlockchain(t *testing.T) {
	app := newTestApp(&fakeSubmissions{}, &fakeAI{}, &fakeLog{})

	status, env := do(t, app, httptest.NewRequest(fiber.MethodGet, "/blockchain/balance/0xabc", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"address":"0xabc","balance":"1500"}`, string(env.Data))

	status, _ = do(t, app, httptest.NewRequest(fiber.MethodGet, "/blockchain/balance/bad", nil))
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, env = do(t, app, jsonRequest(fiber.MethodPost, "/blockchain/transfer", `{"to":"0x1","amount":0}`))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Amount must be positive", env.Error)

	app = fiber.New()
	app.Get("/b/:address", NewBlockchainHandler(nil).Balance)
	status, _ = do(t, app, httptest.NewRequest(fiber.MethodGet, "/b/0x1", nil))
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
}

func TestProbe(t *testing.T) {
	app := fiber.New()
	ready := NewProbeHandler(map[string]Pinger{"database": failingPinger{}})
	down := NewProbeHandler(map[string]Pinger{"database": failingPinger{err: errors.New("refused")}})
	app.Get("/healthz", ready.Liveness)
	app.Get("/readyz", ready.Readiness)
	app.Get("/readyz-down", down.Readiness)

	for path, want := range map[string]int{"/healthz": 200, "/readyz": 200, "/readyz-down": 503} {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, path)
	}
}
