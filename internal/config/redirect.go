package config

import "errors"

type RedirectConfig struct {
	Success   string `config:"success"`
	Cancelled string `config:"cancelled"`
}

func (c RedirectConfig) Validate() error {
	if c.Success == "" {
		return errors.New("chargebee.redirect.success is required")
	}

	if c.Cancelled == "" {
		return errors.New("chargebee.redirect.cancelled is required")
	}

	return nil
}

type WebhookConfig struct {
	Username string `config:"username"`
	Password string `config:"password"`
}

func (c WebhookConfig) Enabled() bool {
	return c.Username != "" && c.Password != ""
}
