package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"go.lumeweb.com/portal-plugin-chargebee/internal/api/messages"
	"go.lumeweb.com/portal-plugin-chargebee/internal/repository"
	"go.uber.org/zap"
)

const maxWebhookBytes = int64(65536)

func (a *API) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="chargebee"`)
		a.writeJSON(w, http.StatusUnauthorized, &messages.WebhookResponse{Status: "unauthorized"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBytes)

	var event messages.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		a.logger.Error("failed to parse webhook payload", zap.Error(err))
		a.writeJSON(w, http.StatusBadRequest, &messages.WebhookResponse{Status: "invalid payload"})
		return
	}

	if event.Content.Subscription == nil {
		a.logger.Debug("ignoring webhook event without subscription",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.EventType))
		a.writeJSON(w, http.StatusOK, &messages.WebhookResponse{Status: "ignored"})
		return
	}

	_, err := a.syncer.Sync(r.Context(), event.Content.Subscription, event.Content.Card)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			a.logger.Info("webhook for unknown subscription",
				zap.String("event_id", event.ID),
				zap.String("event_type", event.EventType),
				zap.String("subscription_id", event.Content.Subscription.ID))
			a.writeJSON(w, http.StatusOK, &messages.WebhookResponse{Status: "ignored"})
			return
		}

		a.logger.Error("failed to sync subscription from webhook",
			zap.String("event_id", event.ID),
			zap.String("subscription_id", event.Content.Subscription.ID),
			zap.Error(err))
		a.writeJSON(w, http.StatusInternalServerError, &messages.WebhookResponse{Status: "error"})
		return
	}

	a.logger.Info("synced subscription from webhook",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.EventType),
		zap.String("subscription_id", event.Content.Subscription.ID))

	a.writeJSON(w, http.StatusOK, &messages.WebhookResponse{Status: "ok"})
}

func (a *API) authorized(r *http.Request) bool {
	username, password, ok := r.BasicAuth()
	if !ok {
		return false
	}

	userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(a.cfg.Webhook.Username)) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(password), []byte(a.cfg.Webhook.Password)) == 1

	return userMatch && passMatch
}

func (a *API) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.logger.Error("failed to write webhook response", zap.Error(err))
	}
}
