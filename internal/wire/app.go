package wire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyang/notify-relay/internal/adapter/memory"
	"github.com/alanyang/notify-relay/internal/adapter/metrics"
	"github.com/alanyang/notify-relay/internal/adapter/scheduler"
	"github.com/alanyang/notify-relay/internal/adapter/sink"
	"github.com/alanyang/notify-relay/internal/adapter/stream"
	"github.com/alanyang/notify-relay/internal/config"

	portscheduler "github.com/alanyang/notify-relay/internal/port/scheduler"

	"github.com/alanyang/notify-relay/internal/service/classify"
	"github.com/alanyang/notify-relay/internal/service/relay"

	"github.com/alanyang/notify-relay/internal/transport"
	wshandler "github.com/alanyang/notify-relay/internal/transport/ws"
)

// App holds the top-level resources needed to run and gracefully stop the relay.
type App struct {
	ClientID uuid.UUID
	Server   *http.Server
	Stream   *stream.Manager
	Relay    *relay.Service
	Location *memory.Location
	Ledger   *memory.Ledger
	Metrics  *metrics.Collector
	Hub      *wshandler.Hub

	sink   *sink.Deferred
	kafka  *sink.Kafka
	mqtt   pahomqtt.Client
	redis  *redis.Client
	cancel context.CancelFunc
	logger *slog.Logger
}

// Build is the composition root: the only place concrete types are wired to their
// interface dependencies. It does not dial the backend; call Start for that.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	clientID := uuid.New()
	streamURL, err := stream.URL(cfg.API.BaseURL, clientID)
	if err != nil {
		return nil, fmt.Errorf("building stream url: %w", err)
	}

	// ── Metrics ──────────────────────────────────────────────────────────────
	var redisClient *redis.Client
	collector := metrics.NewCollector("notify-relay", nil)
	if cfg.Metrics.RedisAddr != "" {
		redisClient, err = metrics.ConnectRedis(ctx, cfg.Metrics.RedisAddr)
		if err != nil {
			// Metrics are optional; the relay runs without them.
			logger.Warn("metrics publishing disabled", "error", err)
		} else {
			collector = metrics.NewCollector("notify-relay", redisClient)
		}
	}
	collector.SetReportInterval(cfg.MetricsInterval())

	// ── Adapters ─────────────────────────────────────────────────────────────
	ledger := memory.NewLedger(cfg.DedupTTL())
	location := memory.NewLocation(cfg.Location.Initial)
	sched := newScheduler(cfg)

	// The manager's frame handler and the relay reference each other through
	// the hub, so the relay is assigned after the manager exists. No frame can
	// arrive before the first Obtain.
	var relaySvc *relay.Service
	manager := stream.NewManager(streamURL,
		func(frame string) { relaySvc.Enqueue(frame) },
		stream.WithStateObserver(collector.ObserveState),
		stream.WithLogger(logger),
	)

	hub := wshandler.NewHub(manager, logger)
	targets := sink.Multi{sink.NewLog(logger), hub}

	// ── Forwarding ───────────────────────────────────────────────────────────
	var kafkaSink *sink.Kafka
	if cfg.Forward.KafkaBrokers != "" {
		writer, err := sink.NewKafkaWriter(cfg.Forward.KafkaBrokers, cfg.Forward.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("configuring kafka forwarding: %w", err)
		}
		kafkaSink = sink.NewKafka(writer, cfg.Forward.KafkaTopic, clientID.String(), logger)
		targets = append(targets, kafkaSink)
	}

	var mqttClient pahomqtt.Client
	if cfg.Forward.MQTTBroker != "" {
		mqttClient, err = sink.ConnectMQTT(cfg.Forward.MQTTBroker, "notify-relay-"+clientID.String())
		if err != nil {
			logger.Warn("mqtt forwarding disabled", "error", err)
			mqttClient = nil
		} else {
			targets = append(targets, sink.NewMQTT(mqttClient, cfg.Forward.MQTTTopic, logger))
		}
	}

	deferred := sink.NewDeferred(targets, cfg.Flush.SinkBuffer, logger)

	// ── Services ─────────────────────────────────────────────────────────────
	classifier := classify.New(cfg.Presentation(), logger)
	relaySvc = relay.NewService(
		classifier,
		ledger,
		location,
		deferred,
		sched,
		relay.WithMetrics(collector),
		relay.WithLogger(logger),
	)

	// ── Transport ─────────────────────────────────────────────────────────────
	router := transport.NewRouter(manager, location, collector, hub)
	server := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: router,
	}

	logger.Info("application wired",
		"port", cfg.HTTP.Port,
		"client_id", clientID,
		"flush_strategy", cfg.Flush.Strategy,
		"dedup_ttl", cfg.DedupTTL(),
		"metrics", redisClient != nil,
		"kafka", kafkaSink != nil,
		"mqtt", mqttClient != nil,
	)

	return &App{
		ClientID: clientID,
		Server:   server,
		Stream:   manager,
		Relay:    relaySvc,
		Location: location,
		Ledger:   ledger,
		Metrics:  collector,
		Hub:      hub,
		sink:     deferred,
		kafka:    kafkaSink,
		mqtt:     mqttClient,
		redis:    redisClient,
		logger:   logger,
	}, nil
}

func newScheduler(cfg config.Config) portscheduler.Scheduler {
	if cfg.Flush.Strategy == config.StrategyTimer {
		return scheduler.NewTimer(cfg.FlushFallback())
	}
	return scheduler.NewIdle(cfg.FlushIdle(), cfg.FlushFallback())
}

// Start launches background work and makes the first connection request. A
// failed dial is logged; the next consumer retries.
func (a *App) Start(ctx context.Context) {
	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel

	a.Metrics.Start(bg)
	startSweeper(bg, a.Ledger, a.logger)

	if id, err := a.Stream.Connect(ctx); err != nil {
		a.logger.Warn("initial stream connection failed", "error", err)
	} else {
		a.logger.Info("stream connected", "connection_id", id)
	}
}

// Shutdown stops the HTTP server, closes the stream, drains queued frames into
// the sink and the sink into its targets, closes forwarding clients, then
// writes a final metrics snapshot.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down http server: %w", err))
	}

	a.Stream.Close()
	a.Relay.Shutdown(ctx)
	a.sink.Close()

	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.mqtt != nil {
		sink.DisconnectMQTT(a.mqtt)
	}

	if a.cancel != nil {
		a.cancel()
	}
	a.Metrics.Stop()

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
