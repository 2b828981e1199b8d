package api

import (
	"context"
	"errors"

	"github.com/gorilla/mux"
	"go.lumeweb.com/portal-plugin-chargebee/internal/client/chargebee"
	"go.lumeweb.com/portal-plugin-chargebee/internal/config"
	pluginDb "go.lumeweb.com/portal-plugin-chargebee/internal/db"
	"go.uber.org/zap"
)

const webhookPath = "/api/billing/chargebee/webhook"

var ErrWebhookDisabled = errors.New("chargebee webhook credentials are not configured")

// SubscriptionSyncer applies remote subscription state to local records.
type SubscriptionSyncer interface {
	Sync(ctx context.Context, remote *chargebee.Subscription, card *chargebee.Card) (*pluginDb.Subscription, error)
}

type API struct {
	cfg    *config.ChargebeeConfig
	logger *zap.Logger
	syncer SubscriptionSyncer
}

func NewAPI(cfg *config.ChargebeeConfig, syncer SubscriptionSyncer, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &API{
		cfg:    cfg,
		logger: logger.Named("chargebee-api"),
		syncer: syncer,
	}
}

// Configure mounts the webhook endpoint on router.
func (a *API) Configure(router *mux.Router) error {
	if !a.cfg.Webhook.Enabled() {
		return ErrWebhookDisabled
	}

	router.HandleFunc(webhookPath, a.handleWebhook).Methods("POST")

	return nil
}
