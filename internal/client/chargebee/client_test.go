package chargebee

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type capturedRequest struct {
	method string
	path   string
	form   url.Values
	header http.Header
}

func newTestClient(t *testing.T, status int, body any) (*Client, *capturedRequest, *prometheus.Registry) {
	t.Helper()

	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.form = r.Form
		captured.header = r.Header.Clone()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)

	reg := prometheus.NewRegistry()
	client, err := NewClient(ClientConfig{
		BaseURL:        server.URL + "/api/v2",
		APIKey:         "test_key",
		RequestTimeout: 5 * time.Second,
		HTTPClient:     server.Client(),
		Registerer:     reg,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	return client, captured, reg
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	_, err := NewClient(ClientConfig{BaseURL: "/api/v2"}, zaptest.NewLogger(t))
	require.Error(t, err)

	_, err = NewClient(ClientConfig{BaseURL: "http://[::1"}, zaptest.NewLogger(t))
	require.Error(t, err)
}

func TestCreateSubscription(t *testing.T) {
	client, captured, _ := newTestClient(t, http.StatusOK, map[string]any{
		"subscription": map[string]any{
			"id":               "sub_1",
			"plan_id":          "basic-USD",
			"status":           "active",
			"plan_quantity":    1,
			"current_term_end": 1700000000,
		},
		"customer": map[string]any{"id": "cust_1", "email": "ada@example.com"},
		"card":     map[string]any{"last4": "4242", "card_type": "visa"},
	})

	result, err := client.CreateSubscription(context.Background(), &CreateSubscriptionRequest{
		PlanID:   "basic-USD",
		Customer: Customer{FirstName: "Ada", Email: "ada@example.com"},
		Addons: []SubscriptionAddon{
			{ID: "extra-storage", Quantity: 3},
			{ID: "priority-support", Quantity: 1},
		},
		Gateway:  "stripe",
		TmpToken: "tok_1",
	})
	require.NoError(t, err)

	require.NotNil(t, result.Subscription)
	assert.Equal(t, "sub_1", result.Subscription.ID)
	assert.Equal(t, SubscriptionStatusActive, result.Subscription.Status)
	require.NotNil(t, result.Subscription.CurrentTermEnd)
	assert.Equal(t, int64(1700000000), *result.Subscription.CurrentTermEnd)
	assert.Nil(t, result.Subscription.TrialEnd)
	require.NotNil(t, result.Card)
	assert.Equal(t, "4242", result.Card.Last4)

	assert.Equal(t, http.MethodPost, captured.method)
	assert.Equal(t, "/api/v2/subscriptions", captured.path)
	assert.Contains(t, captured.header.Get("Content-Type"), "application/x-www-form-urlencoded")
	assert.Equal(t, "basic-USD", captured.form.Get("plan_id"))
	assert.Equal(t, "Ada", captured.form.Get("customer[first_name]"))
	assert.Empty(t, captured.form.Get("customer[last_name]"))
	assert.Equal(t, "extra-storage", captured.form.Get("addons[id][0]"))
	assert.Equal(t, "3", captured.form.Get("addons[quantity][0]"))
	assert.Equal(t, "priority-support", captured.form.Get("addons[id][1]"))
	assert.Equal(t, "1", captured.form.Get("addons[quantity][1]"))
	assert.Equal(t, "stripe", captured.form.Get("card[gateway]"))
	assert.Equal(t, "tok_1", captured.form.Get("card[tmp_token]"))

	req := &http.Request{Header: captured.header}
	username, password, ok := req.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "test_key", username)
	assert.Empty(t, password)

	assert.NotEmpty(t, captured.header.Get(idempotencyKeyHeader))
}

func TestCreateSubscription_WithoutTokenOmitsCard(t *testing.T) {
	client, captured, _ := newTestClient(t, http.StatusOK, map[string]any{
		"subscription": map[string]any{"id": "sub_1"},
	})

	_, err := client.CreateSubscription(context.Background(), &CreateSubscriptionRequest{
		PlanID:  "basic-USD",
		Gateway: "stripe",
	})
	require.NoError(t, err)

	_, hasGateway := captured.form["card[gateway]"]
	_, hasToken := captured.form["card[tmp_token]"]
	assert.False(t, hasGateway)
	assert.False(t, hasToken)
}

func TestCreateSubscription_IdempotencyKey(t *testing.T) {
	client, captured, _ := newTestClient(t, http.StatusOK, map[string]any{
		"subscription": map[string]any{"id": "sub_1"},
	})

	for i := 0; i < 2; i++ {
		_, err := client.CreateSubscription(context.Background(), &CreateSubscriptionRequest{
			PlanID:         "basic-USD",
			IdempotencyKey: "order-1001",
		})
		require.NoError(t, err)
		assert.Equal(t, "order-1001", captured.header.Get(idempotencyKeyHeader))
	}
}

func TestCancelSubscription(t *testing.T) {
	client, captured, _ := newTestClient(t, http.StatusOK, map[string]any{
		"subscription": map[string]any{"id": "sub_1", "status": "non_renewing"},
	})

	result, err := client.CancelSubscription(context.Background(), "sub_1", true)
	require.NoError(t, err)
	assert.Equal(t, SubscriptionStatusNonRenewing, result.Subscription.Status)

	assert.Equal(t, "/api/v2/subscriptions/sub_1/cancel", captured.path)
	assert.Equal(t, "true", captured.form.Get("end_of_term"))
	assert.Empty(t, captured.header.Get(idempotencyKeyHeader))
}

func TestCheckoutNewForItems(t *testing.T) {
	client, captured, _ := newTestClient(t, http.StatusOK, map[string]any{
		"hosted_page": map[string]any{
			"id":    "hp_1",
			"url":   "https://acme.chargebee.com/pages/v3/hp_1/",
			"state": "created",
		},
	})

	page, err := client.CheckoutNewForItems(context.Background(), &CheckoutRequest{
		Items: []CheckoutItem{
			{ItemPriceID: "basic-USD", Quantity: 1},
			{ItemPriceID: "extra-storage", Quantity: 2},
		},
		PassThruContent: "NDI=",
		RedirectURL:     "https://app.example.com/ok",
	})
	require.NoError(t, err)
	assert.Equal(t, "hp_1", page.ID)
	assert.Equal(t, HostedPageStateCreated, page.State)

	assert.Equal(t, "/api/v2/hosted_pages/checkout_new_for_items", captured.path)
	assert.Equal(t, "basic-USD", captured.form.Get("subscription_items[item_price_id][0]"))
	assert.Equal(t, "1", captured.form.Get("subscription_items[quantity][0]"))
	assert.Equal(t, "extra-storage", captured.form.Get("subscription_items[item_price_id][1]"))
	assert.Equal(t, "2", captured.form.Get("subscription_items[quantity][1]"))
	assert.Equal(t, "NDI=", captured.form.Get("pass_thru_content"))
	assert.Equal(t, "false", captured.form.Get("embed"))
	_, hasCancel := captured.form["cancel_url"]
	assert.False(t, hasCancel)
	assert.NotEmpty(t, captured.header.Get(idempotencyKeyHeader))
}

func TestRetrieveHostedPage(t *testing.T) {
	client, captured, _ := newTestClient(t, http.StatusOK, map[string]any{
		"hosted_page": map[string]any{
			"id":                "hp_1",
			"state":             "succeeded",
			"pass_thru_content": "NDI=",
			"content": map[string]any{
				"subscription": map[string]any{"id": "sub_9"},
			},
		},
	})

	page, err := client.RetrieveHostedPage(context.Background(), "hp_1")
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, captured.method)
	assert.Equal(t, "/api/v2/hosted_pages/hp_1", captured.path)
	assert.Equal(t, HostedPageStateSucceeded, page.State)
	require.NotNil(t, page.Content)
	require.NotNil(t, page.Content.Subscription)
	assert.Equal(t, "sub_9", page.Content.Subscription.ID)
}

func TestAPIError(t *testing.T) {
	client, _, reg := newTestClient(t, http.StatusNotFound, map[string]any{
		"message":          "Sorry, we couldn't find that resource",
		"type":             "invalid_request",
		"api_error_code":   "resource_not_found",
		"http_status_code": 404,
	})

	_, err := client.RetrieveSubscription(context.Background(), "sub_missing")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "resource_not_found", apiErr.APIErrorCode)
	assert.Equal(t, "invalid_request", apiErr.Type)
	assert.Contains(t, apiErr.Error(), "resource_not_found")
	assert.True(t, IsNotFound(err))

	metrics, err := newClientMetrics(reg)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.requests.WithLabelValues("retrieveSubscription", outcomeAPIError)))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.requests.WithLabelValues("retrieveSubscription", outcomeSuccess)))
}

func TestMetrics(t *testing.T) {
	client, _, reg := newTestClient(t, http.StatusOK, map[string]any{
		"subscription": map[string]any{"id": "sub_1"},
	})

	for i := 0; i < 3; i++ {
		_, err := client.ReactivateSubscription(context.Background(), "sub_1")
		require.NoError(t, err)
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(client.metrics.requests.WithLabelValues("reactivateSubscription", outcomeSuccess)))
	assert.Equal(t, 1, testutil.CollectAndCount(client.metrics.duration, "chargebee_request_duration_seconds"))

	count, err := testutil.GatherAndCount(reg, "chargebee_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client, err := NewClient(ClientConfig{
		BaseURL:        server.URL + "/api/v2",
		APIKey:         "test_key",
		RequestTimeout: time.Second,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = client.RemoveScheduledCancellation(context.Background(), "sub_1")
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, IsNotFound(err))
	assert.False(t, errors.As(err, &apiErr))
	assert.Equal(t, float64(1), testutil.ToFloat64(client.metrics.requests.WithLabelValues("removeScheduledCancellation", outcomeTransport)))
}
