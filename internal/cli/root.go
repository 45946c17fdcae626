package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ogulcanaydogan/dwlr-guardian/internal/config"
	"github.com/ogulcanaydogan/dwlr-guardian/internal/observability"
	"github.com/ogulcanaydogan/dwlr-guardian/pkg/alerts"
	"github.com/ogulcanaydogan/dwlr-guardian/pkg/dataset"
	"github.com/ogulcanaydogan/dwlr-guardian/pkg/monitor"
	"github.com/ogulcanaydogan/dwlr-guardian/pkg/storage"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

const defaultTimeout = 10 * time.Second

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "dwlr",
	Short: "DWLR Guardian - groundwater level monitoring and alerting",
	Long: `DWLR Guardian watches Digital Water Level Recorder readings and raises
email and SMS alerts when a station's latest level leaves the configured range.
It serves station data over HTTP and keeps an audit log of raised alerts.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.dwlr/config.yaml)")
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initStorage opens the SQLite database from config.
func initStorage(cfg *config.Config) (*storage.SQLite, error) {
	return storage.NewSQLite(cfg.Storage.Path)
}

// initSource returns the configured reading source. When the source is the
// database, store is returned as the source.
func initSource(cfg *config.Config, store *storage.SQLite) (storage.ReadingSource, error) {
	if cfg.Data.Source == "sqlite" {
		return store, nil
	}
	ds, err := dataset.Load(cfg.Data.CSVPath)
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// initNotifiers creates alert notifiers from config. Notifiers holding
// connections are also returned as closers.
func initNotifiers(cfg *config.Config, logger *slog.Logger) ([]alerts.Notifier, []io.Closer, error) {
	var notifiers []alerts.Notifier
	var closers []io.Closer
	a := cfg.Alerts

	if a.Email.Enabled {
		notifiers = append(notifiers, alerts.NewEmailNotifier(alerts.EmailConfig{
			Host:     a.Email.Host,
			Port:     a.Email.Port,
			Username: a.Email.Username,
			Password: a.Email.Password,
			From:     a.Email.From,
			To:       a.Email.To,
			Subject:  a.Email.Subject,
			Timeout:  config.Duration(a.Email.Timeout, defaultTimeout),
		}))
	}

	if a.SMS.Enabled {
		notifiers = append(notifiers, alerts.NewSMSNotifier(alerts.SMSConfig{
			Endpoint: a.SMS.Endpoint,
			APIKey:   a.SMS.APIKey,
			SenderID: a.SMS.SenderID,
			Route:    a.SMS.Route,
			Phone:    a.SMS.Phone,
			Timeout:  config.Duration(a.SMS.Timeout, defaultTimeout),
		}))
	}

	if a.Webhook.Enabled && a.Webhook.URL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(
			a.Webhook.URL,
			a.Webhook.Secret,
			config.Duration(a.Webhook.Timeout, defaultTimeout),
		))
	}

	if a.Slack.Enabled && a.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alerts.NewSlackNotifier(
			a.Slack.WebhookURL,
			a.Slack.Channel,
			config.Duration(a.Slack.Timeout, defaultTimeout),
		))
	}

	if a.Telegram.Enabled {
		tg, err := alerts.NewTelegramNotifier(
			a.Telegram.Token,
			a.Telegram.ChatID,
			a.Telegram.Endpoint,
			config.Duration(a.Telegram.Timeout, defaultTimeout),
		)
		if err != nil {
			closeAll(closers, logger)
			return nil, nil, fmt.Errorf("init telegram: %w", err)
		}
		notifiers = append(notifiers, tg)
	}

	if a.Kafka.Enabled {
		k := alerts.NewKafkaNotifier(a.Kafka.Brokers, a.Kafka.Topic)
		notifiers = append(notifiers, k)
		closers = append(closers, k)
	}

	if a.MQTT.Enabled {
		m, err := alerts.NewMQTTNotifier(
			a.MQTT.Broker,
			a.MQTT.ClientID,
			a.MQTT.TopicPrefix,
			config.Duration(a.MQTT.Timeout, defaultTimeout),
		)
		if err != nil {
			closeAll(closers, logger)
			return nil, nil, fmt.Errorf("init mqtt: %w", err)
		}
		notifiers = append(notifiers, m)
		closers = append(closers, m)
	}

	if len(notifiers) == 0 {
		logger.Warn("no alert channels enabled; out-of-range levels will only be logged")
	}
	return notifiers, closers, nil
}

// dispatcher is a configured alert dispatcher with its shutdown hook.
type dispatcher struct {
	alerts.Dispatcher
	queue *alerts.Queue
}

// Close drains the async queue, if any.
func (d *dispatcher) Close(ctx context.Context) error {
	if d.queue == nil {
		return nil
	}
	return d.queue.Close(ctx)
}

// initDispatcher builds the sync fanout or async queue selected in config.
func initDispatcher(cfg *config.Config, notifiers []alerts.Notifier, metrics *observability.Metrics, logger *slog.Logger) *dispatcher {
	var hook alerts.ResultHook
	if metrics != nil {
		hook = metrics.DeliveryHook()
	}

	if cfg.Dispatch.Mode == "sync" {
		return &dispatcher{Dispatcher: alerts.NewFanout(notifiers, config.Duration(cfg.Dispatch.SendTimeout, defaultTimeout), logger, hook)}
	}

	qcfg := alerts.QueueConfig{
		Size:        cfg.Dispatch.QueueSize,
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		Backoff:     config.Duration(cfg.Dispatch.Backoff, 2*time.Second),
		SendTimeout: config.Duration(cfg.Dispatch.SendTimeout, 30*time.Second),
		OnResult:    hook,
	}
	if metrics != nil {
		qcfg.OnDrop = metrics.ObserveDrop
		qcfg.OnDepth = metrics.ObserveQueueDepth
	}
	q := alerts.NewQueue(notifiers, qcfg, logger)
	return &dispatcher{Dispatcher: q, queue: q}
}

// app bundles the wired components used by commands.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *storage.SQLite
	source     storage.ReadingSource
	monitor    *monitor.Monitor
	dispatcher *dispatcher
	closers    []io.Closer
}

// initApp wires storage, notifiers, dispatcher and monitor. metrics may be nil.
func initApp(cfg *config.Config, metrics *observability.Metrics) (*app, error) {
	logger := newLogger(cfg)

	store, err := initStorage(cfg)
	if err != nil {
		return nil, err
	}

	source, err := initSource(cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	notifiers, closers, err := initNotifiers(cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	disp := initDispatcher(cfg, notifiers, metrics, logger)

	var opts []monitor.Option
	if cfg.History.Enabled {
		opts = append(opts, monitor.WithAlertLog(store))
	}
	if metrics != nil {
		opts = append(opts, monitor.WithObserver(metrics))
	}
	thresholds := monitor.Thresholds{Low: cfg.Thresholds.Low, High: cfg.Thresholds.High}
	mon, err := monitor.New(source, disp, thresholds, logger, opts...)
	if err != nil {
		_ = disp.Close(context.Background())
		closeAll(closers, logger)
		store.Close()
		return nil, err
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		source:     source,
		monitor:    mon,
		dispatcher: disp,
		closers:    closers,
	}, nil
}

// Close drains pending alerts and releases connections.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var errs []error
	if err := a.dispatcher.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain alerts: %w", err))
	}
	closeAll(a.closers, a.logger)
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func closeAll(closers []io.Closer, logger *slog.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("close notifier", "error", err)
		}
	}
}
