package chargebee

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-openapi/runtime"
	httptransport "github.com/go-openapi/runtime/client"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const idempotencyKeyHeader = "chargebee-idempotency-key"

// ClientConfig contains configuration for the Chargebee client
type ClientConfig struct {
	// BaseURL is the full API base, e.g. https://acme.chargebee.com/api/v2
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Registerer     prometheus.Registerer
}

// Client handles communication with the Chargebee API
type Client struct {
	config    ClientConfig
	transport *httptransport.Runtime
	auth      runtime.ClientAuthInfoWriter
	logger    *zap.Logger
	metrics   *clientMetrics
}

// NewClient creates a new Chargebee API client
func NewClient(config ClientConfig, logger *zap.Logger) (*Client, error) {
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30 * time.Second
	}

	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid chargebee base url: %w", err)
	}

	if base.Host == "" {
		return nil, fmt.Errorf("invalid chargebee base url: %q has no host", config.BaseURL)
	}

	scheme := base.Scheme
	if scheme == "" {
		scheme = "https"
	}

	var trp *httptransport.Runtime
	if config.HTTPClient != nil {
		trp = httptransport.NewWithClient(base.Host, base.Path, []string{scheme}, config.HTTPClient)
	} else {
		trp = httptransport.New(base.Host, base.Path, []string{scheme})
	}
	trp.Debug = false

	metrics, err := newClientMetrics(config.Registerer)
	if err != nil {
		return nil, err
	}

	return &Client{
		config:    config,
		transport: trp,
		// The API key is the basic auth username; the password is empty.
		auth:    httptransport.BasicAuth(config.APIKey, ""),
		logger:  logger,
		metrics: metrics,
	}, nil
}

// CreateSubscription creates a subscription together with a new customer
func (c *Client) CreateSubscription(ctx context.Context, req *CreateSubscriptionRequest) (*SubscriptionResult, error) {
	form := url.Values{}
	form.Set("plan_id", req.PlanID)
	setIfNotEmpty(form, "customer[first_name]", req.Customer.FirstName)
	setIfNotEmpty(form, "customer[last_name]", req.Customer.LastName)
	setIfNotEmpty(form, "customer[email]", req.Customer.Email)

	for i, addon := range req.Addons {
		form.Set(fmt.Sprintf("addons[id][%d]", i), addon.ID)
		form.Set(fmt.Sprintf("addons[quantity][%d]", i), strconv.Itoa(addon.Quantity))
	}

	setIfNotEmpty(form, "coupon", req.CouponID)

	if req.TmpToken != "" {
		form.Set("card[gateway]", req.Gateway)
		form.Set("card[tmp_token]", req.TmpToken)
	}

	var result SubscriptionResult
	if err := c.do(ctx, &operation{
		id:          "createSubscription",
		method:      http.MethodPost,
		path:        "/subscriptions",
		form:        form,
		idempotency: idempotencyKey(req.IdempotencyKey),
	}, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// RetrieveSubscription fetches a subscription by id
func (c *Client) RetrieveSubscription(ctx context.Context, subscriptionID string) (*SubscriptionResult, error) {
	var result SubscriptionResult
	if err := c.do(ctx, &operation{
		id:     "retrieveSubscription",
		method: http.MethodGet,
		path:   "/subscriptions/{subscription_id}",
		params: map[string]string{"subscription_id": subscriptionID},
	}, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// UpdateSubscription moves a subscription to another plan
func (c *Client) UpdateSubscription(ctx context.Context, subscriptionID string, planID string) (*SubscriptionResult, error) {
	form := url.Values{}
	form.Set("plan_id", planID)

	var result SubscriptionResult
	if err := c.do(ctx, &operation{
		id:     "updateSubscription",
		method: http.MethodPost,
		path:   "/subscriptions/{subscription_id}",
		params: map[string]string{"subscription_id": subscriptionID},
		form:   form,
	}, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// CancelSubscription cancels a subscription now or at the end of the current term
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string, endOfTerm bool) (*SubscriptionResult, error) {
	form := url.Values{}
	form.Set("end_of_term", strconv.FormatBool(endOfTerm))

	var result SubscriptionResult
	if err := c.do(ctx, &operation{
		id:     "cancelSubscription",
		method: http.MethodPost,
		path:   "/subscriptions/{subscription_id}/cancel",
		params: map[string]string{"subscription_id": subscriptionID},
		form:   form,
	}, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// ReactivateSubscription reactivates a cancelled subscription
func (c *Client) ReactivateSubscription(ctx context.Context, subscriptionID string) (*SubscriptionResult, error) {
	var result SubscriptionResult
	if err := c.do(ctx, &operation{
		id:     "reactivateSubscription",
		method: http.MethodPost,
		path:   "/subscriptions/{subscription_id}/reactivate",
		params: map[string]string{"subscription_id": subscriptionID},
	}, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// RemoveScheduledCancellation drops a pending end-of-term cancellation
func (c *Client) RemoveScheduledCancellation(ctx context.Context, subscriptionID string) (*SubscriptionResult, error) {
	var result SubscriptionResult
	if err := c.do(ctx, &operation{
		id:     "removeScheduledCancellation",
		method: http.MethodPost,
		path:   "/subscriptions/{subscription_id}/remove_scheduled_cancellation",
		params: map[string]string{"subscription_id": subscriptionID},
	}, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// CheckoutNewForItems creates a hosted checkout page for a new subscription
func (c *Client) CheckoutNewForItems(ctx context.Context, req *CheckoutRequest) (*HostedPage, error) {
	form := url.Values{}

	for i, item := range req.Items {
		form.Set(fmt.Sprintf("subscription_items[item_price_id][%d]", i), item.ItemPriceID)
		form.Set(fmt.Sprintf("subscription_items[quantity][%d]", i), strconv.Itoa(item.Quantity))
	}

	setIfNotEmpty(form, "pass_thru_content", req.PassThruContent)
	setIfNotEmpty(form, "redirect_url", req.RedirectURL)
	setIfNotEmpty(form, "cancel_url", req.CancelURL)
	form.Set("embed", strconv.FormatBool(req.Embed))

	var result hostedPageResult
	if err := c.do(ctx, &operation{
		id:          "checkoutNewForItems",
		method:      http.MethodPost,
		path:        "/hosted_pages/checkout_new_for_items",
		form:        form,
		idempotency: idempotencyKey(req.IdempotencyKey),
	}, &result); err != nil {
		return nil, err
	}

	if result.HostedPage == nil {
		return nil, fmt.Errorf("checkout response did not contain a hosted page")
	}

	return result.HostedPage, nil
}

// RetrieveHostedPage fetches a hosted page by id
func (c *Client) RetrieveHostedPage(ctx context.Context, hostedPageID string) (*HostedPage, error) {
	var result hostedPageResult
	if err := c.do(ctx, &operation{
		id:     "retrieveHostedPage",
		method: http.MethodGet,
		path:   "/hosted_pages/{hosted_page_id}",
		params: map[string]string{"hosted_page_id": hostedPageID},
	}, &result); err != nil {
		return nil, err
	}

	if result.HostedPage == nil {
		return nil, fmt.Errorf("hosted page %s not found in response", hostedPageID)
	}

	return result.HostedPage, nil
}

type operation struct {
	id          string
	method      string
	path        string
	params      map[string]string
	form        url.Values
	idempotency string
}

// do submits a single operation and decodes the JSON payload into out
func (c *Client) do(ctx context.Context, op *operation, out any) error {
	c.logger.Debug("preparing chargebee request",
		zap.String("operation", op.id),
		zap.String("method", op.method),
		zap.String("path", op.path),
	)

	start := time.Now()

	_, err := c.transport.Submit(&runtime.ClientOperation{
		ID:                 op.id,
		Method:             op.method,
		PathPattern:        op.path,
		ProducesMediaTypes: []string{runtime.JSONMime},
		ConsumesMediaTypes: []string{runtime.URLencodedFormMime},
		AuthInfo:           c.auth,
		Context:            ctx,
		Params: runtime.ClientRequestWriterFunc(func(r runtime.ClientRequest, _ strfmt.Registry) error {
			if err := r.SetTimeout(c.config.RequestTimeout); err != nil {
				return err
			}

			if op.idempotency != "" {
				if err := r.SetHeaderParam(idempotencyKeyHeader, op.idempotency); err != nil {
					return err
				}
			}

			for name, value := range op.params {
				if err := r.SetPathParam(name, value); err != nil {
					return err
				}
			}

			for name, values := range op.form {
				if err := r.SetFormParam(name, values...); err != nil {
					return err
				}
			}

			return nil
		}),
		Reader: runtime.ClientResponseReaderFunc(func(response runtime.ClientResponse, consumer runtime.Consumer) (any, error) {
			if response.Code() < 200 || response.Code() >= 300 {
				return nil, readAPIError(response)
			}

			if err := consumer.Consume(response.Body(), out); err != nil && err != io.EOF {
				return nil, fmt.Errorf("decode %s response failed: %w", op.id, err)
			}

			return out, nil
		}),
	})

	c.metrics.observe(op.id, time.Since(start), err)

	if err != nil {
		c.logger.Error("chargebee request failed",
			zap.String("operation", op.id),
			zap.Error(err),
		)
		return err
	}

	return nil
}

func readAPIError(response runtime.ClientResponse) error {
	apiErr := &APIError{StatusCode: response.Code()}

	body, err := io.ReadAll(response.Body())
	if err != nil {
		apiErr.Message = response.Message()
		return apiErr
	}

	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = string(body)
	}

	// The body may carry its own status; the transport status wins.
	apiErr.StatusCode = response.Code()

	return apiErr
}

func idempotencyKey(key string) string {
	if key == "" {
		return uuid.NewString()
	}

	return key
}

func setIfNotEmpty(form url.Values, key, value string) {
	if value != "" {
		form.Set(key, value)
	}
}
