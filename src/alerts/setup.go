package alerts

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"vigila/src/data_source/yahoo"
	"vigila/src/helpers"
	"vigila/src/interfaces"
	"vigila/src/logger"
	"vigila/src/models"
	"vigila/src/notify"
	"vigila/src/utils"
)

// -----------------------------------------------------------------------------

// NewNotifier builds the configured notifier. "none" returns nil, which makes
// the job log alerts instead of sending them.
func NewNotifier(cfg models.MAlertsConfig, log *logger.Logger) (interfaces.IAlertNotifier, error) {
	switch strings.ToLower(cfg.Notifier) {
	case "smtp":
		if cfg.SMTP.Host == "" || cfg.SMTP.Sender == "" {
			return nil, helpers.NewConfigurationError("smtp notifier needs host and sender")
		}
		return notify.NewSMTPNotifier(cfg.SMTP, cfg.RatioThreshold, log.Named("SMTP")), nil
	case "ntfy":
		client := &http.Client{Timeout: 15 * time.Second}
		return notify.NewNtfyNotifier(cfg.Ntfy.Endpoint, cfg.RatioThreshold, cfg.SMTP.Team, client), nil
	case "none":
		return nil, nil
	default:
		return nil, helpers.NewConfigurationError(fmt.Sprintf("unsupported notifier: %s", cfg.Notifier))
	}
}

// -----------------------------------------------------------------------------

// NewJobFromConfig wires the Yahoo volume source, the notifier and the
// exchange calendar around store.
func NewJobFromConfig(cfg *models.MConfig, store interfaces.IWatchlistStore, netMgr interfaces.INetworkManager, log *logger.Logger) (*Job, error) {
	notifier, err := NewNotifier(cfg.Alerts, log)
	if err != nil {
		return nil, err
	}
	source := yahoo.NewYahooFinanceSource(cfg, netMgr)
	exchange := utils.NewTradingCalendar(cfg.Alerts.Exchange)

	log.Info("Alert job ready: source=%s notifier=%s threshold=%.0f%% exchange=%s",
		source.Name(), cfg.Alerts.Notifier, cfg.Alerts.RatioThreshold, exchange.MIC)
	return NewJob(store, source, notifier, cfg.Alerts.RatioThreshold, exchange, log), nil
}
