package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
)

const (
	envPrefix  = "CHARGEBEE_"
	envAppEnv  = "APP_ENV"
	envTesting = "testing"
)

type ChargebeeConfig struct {
	Site           string        `config:"site"`
	Key            string        `config:"key"`
	Gateway        string        `config:"gateway"`
	APIBase        string        `config:"api_base"`
	Env            string        `config:"app_env"`
	RequestTimeout time.Duration `config:"request_timeout"`
	// ReconcileSchedule is a cron expression; empty disables reconciliation.
	ReconcileSchedule string         `config:"reconcile_schedule"`
	Redirect          RedirectConfig `config:"redirect"`
	Webhook           WebhookConfig  `config:"webhook"`
}

func (c ChargebeeConfig) Defaults() map[string]any {
	return map[string]any{
		"request_timeout":    "30s",
		"reconcile_schedule": "@daily",
		"redirect.success":   "/billing/subscription/success",
		"redirect.cancelled": "/billing/subscription/cancelled",
	}
}

func (c ChargebeeConfig) Validate() error {
	if c.Site == "" && c.APIBase == "" {
		return errors.New("chargebee.site is required")
	}

	if c.Key == "" {
		return errors.New("chargebee.key is required")
	}

	if c.APIBase != "" {
		if _, err := url.ParseRequestURI(c.APIBase); err != nil {
			return fmt.Errorf("chargebee.api_base is invalid: %w", err)
		}
	}

	if c.ReconcileSchedule != "" {
		if _, err := cron.ParseStandard(c.ReconcileSchedule); err != nil {
			return fmt.Errorf("chargebee.reconcile_schedule is invalid: %w", err)
		}
	}

	if err := c.Redirect.Validate(); err != nil {
		return err
	}

	return nil
}

// BaseURL returns the API base for the configured site.
func (c ChargebeeConfig) BaseURL() string {
	if c.APIBase != "" {
		return strings.TrimSuffix(c.APIBase, "/")
	}

	return fmt.Sprintf("https://%s.chargebee.com/api/v2", c.Site)
}

func (c ChargebeeConfig) Testing() bool {
	return c.Env == envTesting
}

// Load builds the configuration from defaults and the process environment.
func Load() (*ChargebeeConfig, error) {
	k := koanf.New(".")

	appEnv := env.Provider(envAppEnv, ".", func(s string) string {
		return strings.ToLower(s)
	})
	if err := k.Load(appEnv, nil); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", envAppEnv, err)
	}

	// Tests provide every value explicitly.
	if k.String("app_env") != envTesting {
		if err := k.Load(confmap.Provider(ChargebeeConfig{}.Defaults(), "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load defaults: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg ChargebeeConfig
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "config"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKey maps CHARGEBEE_REDIRECT_SUCCESS to redirect.success and
// CHARGEBEE_API_BASE to api_base.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))

	for _, section := range []string{"redirect_", "webhook_"} {
		if strings.HasPrefix(key, section) {
			return strings.TrimSuffix(section, "_") + "." + strings.TrimPrefix(key, section)
		}
	}

	return key
}
