package chargebee

import (
	"github.com/gorilla/mux"
	"go.lumeweb.com/portal-plugin-chargebee/internal/api"
	"go.lumeweb.com/portal-plugin-chargebee/internal/config"
	"go.lumeweb.com/portal-plugin-chargebee/internal/cron"
	pluginDb "go.lumeweb.com/portal-plugin-chargebee/internal/db"
	internalService "go.lumeweb.com/portal-plugin-chargebee/internal/service"
	"go.lumeweb.com/portal-plugin-chargebee/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Config = config.ChargebeeConfig

// LoadConfig reads the configuration from the process environment.
func LoadConfig() (*Config, error) {
	return config.Load()
}

// Models returns the models to migrate before the plugin is used.
func Models() []any {
	return pluginDb.Models()
}

type Plugin struct {
	service *internalService.SubscriptionServiceDefault
	api     *api.API
	cron    *cron.Cron
}

func New(cfg *Config, db *gorm.DB, logger *zap.Logger, opts ...service.Option) (*Plugin, error) {
	svc, err := internalService.NewSubscriptionService(cfg, db, logger, opts...)
	if err != nil {
		return nil, err
	}

	plugin := &Plugin{
		service: svc,
		api:     api.NewAPI(cfg, svc, logger),
	}

	if cfg.ReconcileSchedule != "" {
		plugin.cron = cron.NewCron(cfg.ReconcileSchedule, svc, logger)
	}

	return plugin, nil
}

func (p *Plugin) Service() service.SubscriptionService {
	return p.service
}

// Configure mounts the webhook endpoint. It fails when no webhook
// credentials are configured.
func (p *Plugin) Configure(router *mux.Router) error {
	return p.api.Configure(router)
}

// Start schedules periodic reconciliation when a schedule is configured.
func (p *Plugin) Start() error {
	if p.cron == nil {
		return nil
	}

	if err := p.cron.ScheduleJobs(); err != nil {
		return err
	}

	p.cron.Start()

	return nil
}

func (p *Plugin) Stop() {
	if p.cron != nil {
		p.cron.Stop()
	}
}
