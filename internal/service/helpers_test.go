package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.lumeweb.com/portal-plugin-chargebee/internal/config"
	pluginDb "go.lumeweb.com/portal-plugin-chargebee/internal/db"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordedRequest struct {
	Method string
	Path   string
	Form   url.Values
	Header http.Header
}

type cannedResponse struct {
	status int
	body   any
}

// fakeChargebee is an in-process stand-in for the Chargebee API.
type fakeChargebee struct {
	server    *httptest.Server
	mu        sync.Mutex
	requests  []recordedRequest
	responses map[string]cannedResponse
}

func newFakeChargebee(t *testing.T) *fakeChargebee {
	t.Helper()

	f := &fakeChargebee{responses: map[string]cannedResponse{}}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeChargebee) respond(method, path string, status int, body any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[method+" "+path] = cannedResponse{status: status, body: body}
}

func (f *fakeChargebee) serve(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Form:   r.Form,
		Header: r.Header.Clone(),
	})
	resp, ok := f.responses[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":          "not found",
			"type":             "invalid_request",
			"api_error_code":   "resource_not_found",
			"http_status_code": 404,
		})
		return
	}

	w.WriteHeader(resp.status)
	_ = json.NewEncoder(w).Encode(resp.body)
}

func (f *fakeChargebee) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func (f *fakeChargebee) last(t *testing.T) recordedRequest {
	t.Helper()
	reqs := f.recorded()
	require.NotEmpty(t, reqs, "no request reached the fake chargebee server")
	return reqs[len(reqs)-1]
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(pluginDb.Models()...))

	return db
}

func testConfig(baseURL string) *config.ChargebeeConfig {
	return &config.ChargebeeConfig{
		Site:    "acme-test",
		Key:     "test_key",
		Gateway: "stripe",
		APIBase: baseURL + "/api/v2",
		Env:     "testing",
		Redirect: config.RedirectConfig{
			Success:   "https://app.example.com/billing/success",
			Cancelled: "https://app.example.com/billing/cancelled",
		},
	}
}

func setupService(t *testing.T) (*SubscriptionServiceDefault, *fakeChargebee, *gorm.DB) {
	t.Helper()

	fake := newFakeChargebee(t)
	db := setupTestDB(t)

	svc, err := NewSubscriptionService(testConfig(fake.server.URL), db, zaptest.NewLogger(t), WithHTTPClient(fake.server.Client()))
	require.NoError(t, err)

	return svc, fake, db
}

func ptr[T any](v T) *T {
	return &v
}
