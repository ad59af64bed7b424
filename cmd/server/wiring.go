// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/meshguard/internal/api"
	"github.com/tomtom215/meshguard/internal/audit"
	"github.com/tomtom215/meshguard/internal/auth"
	"github.com/tomtom215/meshguard/internal/authz"
	"github.com/tomtom215/meshguard/internal/config"
	"github.com/tomtom215/meshguard/internal/database"
	"github.com/tomtom215/meshguard/internal/dispatch"
	"github.com/tomtom215/meshguard/internal/engine"
	"github.com/tomtom215/meshguard/internal/eventbus"
	"github.com/tomtom215/meshguard/internal/eventprocessor"
	"github.com/tomtom215/meshguard/internal/flows"
	"github.com/tomtom215/meshguard/internal/geo"
	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/mmip"
	"github.com/tomtom215/meshguard/internal/models"
	"github.com/tomtom215/meshguard/internal/mqtt"
	"github.com/tomtom215/meshguard/internal/spool"
	"github.com/tomtom215/meshguard/internal/supervisor"
	"github.com/tomtom215/meshguard/internal/supervisor/services"
	ws "github.com/tomtom215/meshguard/internal/websocket"
)

// startupTimeout bounds database, broker and registry setup.
const startupTimeout = 30 * time.Second

// app holds the long-lived components. Optional ones are nil when their
// config section is disabled.
type app struct {
	cfg *config.Config

	db    *database.DB
	spool *spool.Spool
	trail *audit.Logger

	bus        *eventbus.Bus
	zones      *geo.ZoneSet
	registry   *flows.Registry
	engine     *engine.Engine
	dispatcher *dispatch.Dispatcher
	hub        *ws.Hub

	mqtt   *mqtt.Client
	mmip   *mmip.Publisher
	ingest *eventprocessor.Ingest

	apiServer *api.Server
}

// newApp builds every component in dependency order. On error, whatever
// was opened is closed again.
func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	a = &app{cfg: cfg, bus: eventbus.New(), hub: ws.NewHub()}
	defer func() {
		if err != nil {
			a.close()
			a = nil
		}
	}()

	if err = a.initStorage(ctx); err != nil {
		return a, err
	}
	a.initMQTT(ctx)
	if err = a.initEngine(ctx); err != nil {
		return a, err
	}
	a.initMMIP()
	if err = a.initIngest(); err != nil {
		return a, err
	}
	if err = a.initAPI(); err != nil {
		return a, err
	}
	return a, nil
}

func (a *app) initStorage(ctx context.Context) error {
	db, err := database.New(a.cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.db = db
	logging.Info().Str("path", a.cfg.Database.Path).Msg("Database initialized")

	if a.cfg.Spool.Enabled {
		sp, err := spool.Open(a.cfg.Spool, db)
		if err != nil {
			return fmt.Errorf("failed to open history spool: %w", err)
		}
		a.spool = sp
		logging.Info().Str("path", a.cfg.Spool.Path).Msg("History spool opened")
	}

	var store audit.Store = audit.NewMemoryStore(0)
	if a.cfg.Audit.Enabled {
		ds := audit.NewDuckDBStore(db.Conn())
		if err := ds.CreateTable(ctx); err != nil {
			return fmt.Errorf("failed to initialize audit trail: %w", err)
		}
		store = ds
	}
	a.trail = audit.NewLogger(store, a.cfg.Audit)
	return nil
}

// historySink is the spool when enabled, so a failing database write is
// deferred instead of lost.
func (a *app) historySink() engine.HistorySink {
	if a.spool != nil {
		return a.spool
	}
	return a.db
}

// initMQTT connects the shared broker client. A broker that is down at
// startup disables the mqtt sink and MMIP instead of failing the process.
func (a *app) initMQTT(ctx context.Context) {
	if !a.cfg.MQTT.Enabled {
		return
	}
	client, err := mqtt.Connect(ctx, a.cfg.MQTT.Client())
	if err != nil {
		logging.Error().Err(err).
			Str("broker", logging.RedactURL(a.cfg.MQTT.Broker)).
			Msg("MQTT unavailable, mqtt actions and MMIP disabled")
		return
	}
	a.mqtt = client
}

func (a *app) initEngine(ctx context.Context) error {
	zones, err := geo.NewZoneSetFromSpecs(a.cfg.Zones)
	if err != nil {
		// Valid zones are kept; config validation already rejected the
		// file, so this only covers zones added by a hot reload.
		logging.Warn().Err(err).Msg("Some zones were rejected")
	}
	a.zones = zones

	recorder := engine.NewHistoryRecorder(a.historySink(), a.db, a.db)
	a.dispatcher = dispatch.New(a.cfg.Dispatch, recorder)
	a.registerActions()

	a.registry = flows.NewRegistry(a.db)
	if err := a.registry.Load(ctx); err != nil {
		return fmt.Errorf("failed to load flows: %w", err)
	}
	for _, cerr := range a.registry.Errors() {
		logging.Warn().Err(cerr).Msg("Flow skipped")
	}

	a.engine = engine.New(a.cfg.Engine, a.registry, a.zones, a.dispatcher)
	a.engine.SetHistoryPruner(a.db)

	defs, err := a.db.ListFlows(ctx)
	if err != nil {
		return fmt.Errorf("failed to list flows: %w", err)
	}
	since := time.Now().UTC().Add(-maxCooldown(defs))
	cooldowns, err := a.db.LoadCooldowns(ctx, since)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to restore cooldowns, starting clean")
	} else {
		a.engine.Restore(cooldowns)
	}
	return nil
}

// maxCooldown is the longest cooldown any flow uses. Cooldowns that fired
// earlier than that cannot suppress anything.
func maxCooldown(defs []*models.FlowDefinition) time.Duration {
	longest := models.DefaultCooldownSeconds
	for _, def := range defs {
		if def.CooldownSeconds > longest {
			longest = def.CooldownSeconds
		}
	}
	return time.Duration(longest) * time.Second
}

// registerActions installs every sink. Telegram and MQTT are skipped when
// unconfigured, so flows using them fail validation with a clear error.
func (a *app) registerActions() {
	d := a.dispatcher
	d.Register(dispatch.NewUIAlertAction(a.hub))
	d.Register(dispatch.NewWebhookAction(a.cfg.Webhook))
	d.Register(dispatch.NewSoundAction("sound", a.cfg.Sound))
	d.Register(dispatch.NewSoundAction("audio", a.cfg.Sound))
	d.Register(dispatch.NewDBLogAction())

	if a.cfg.Telegram.BotToken != "" {
		d.Register(dispatch.NewTelegramAction(a.cfg.Telegram))
	} else {
		logging.Info().Msg("Telegram bot token not set, telegram_push disabled")
	}
	if a.mqtt != nil {
		d.Register(dispatch.NewMQTTAction(a.mqtt))
	}
	logging.Info().Strs("actions", d.Types()).Msg("Action sinks registered")
}

func (a *app) initMMIP() {
	if !a.cfg.MMIP.Enabled || a.mqtt == nil {
		return
	}
	a.mmip = mmip.New(a.cfg.MMIP, a.mqtt, a.cfg.Engine.Station, a.statusReport)
	a.dispatcher.AddObserver(a.mmip)
}

// statusReport feeds the MMIP heartbeat.
func (a *app) statusReport() map[string]any {
	st := a.engine.Stats()
	ds := a.dispatcher.Stats()
	return map[string]any{
		"enabled_flows":   st.EnabledFlows,
		"evaluations":     st.Evaluations,
		"fires":           st.Fires,
		"tracked_objects": st.TrackedObjects,
		"dispatch_queued": ds.Queued,
	}
}

func (a *app) initIngest() error {
	if !a.cfg.NATS.Enabled {
		return nil
	}
	if !eventprocessor.Available {
		logging.Warn().Msg("NATS ingest configured but binary built without -tags=nats")
		return nil
	}
	ingest, err := eventprocessor.NewIngest(a.cfg.NATS, a.bus)
	if err != nil {
		return fmt.Errorf("failed to initialize NATS ingest: %w", err)
	}
	a.ingest = ingest
	return nil
}

func (a *app) initAPI() error {
	if !a.cfg.API.Enabled {
		return nil
	}

	svc := engine.NewService(a.engine, a.registry, a.db, a.db)
	handler := api.NewHandler(svc, a.cfg.API)
	handler.SetHub(a.hub)
	handler.SetAuditTrail(a.trail)
	handler.AddReadinessCheck("database", a.db.Ping)
	if a.mqtt != nil {
		handler.AddReadinessCheck("mqtt", func(context.Context) error {
			if !a.mqtt.IsConnected() {
				return errors.New("broker disconnected")
			}
			return nil
		})
	}

	enforcer, err := authz.NewEnforcer(a.cfg.Authz)
	if err != nil {
		return fmt.Errorf("failed to initialize authorization: %w", err)
	}
	handler.SetPolicyReloader(enforcer)

	authn, login, err := newAuthentication(a.cfg.Auth)
	if err != nil {
		return err
	}

	router := api.NewRouter(a.cfg.API, api.RouterDeps{
		Handler: handler,
		Authn:   authn,
		Authz:   authz.NewMiddleware(enforcer),
		Login:   login,
	})
	a.apiServer = api.NewServer(a.cfg.API, router)
	return nil
}

// newAuthentication returns the request middleware and, in JWT mode, the
// login handler.
func newAuthentication(cfg auth.Config) (*auth.Middleware, http.Handler, error) {
	if cfg.Mode == auth.ModeNone {
		logging.Warn().Msg("Authentication is DISABLED (AUTH_MODE=none); every caller is admin")
		return auth.NewMiddleware(auth.ModeNone, nil), nil, nil
	}

	tokens, err := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize JWT manager: %w", err)
	}
	users := auth.NewUserStore(cfg.Users)
	lockout := auth.NewLockout(cfg.MaxAttempts, cfg.LockoutDuration)
	logging.Info().Int("users", len(cfg.Users)).Msg("JWT authentication enabled")
	return auth.NewMiddleware(cfg.Mode, tokens), auth.NewLoginHandler(users, tokens, lockout), nil
}

// addServices places each component in its supervisor layer.
func (a *app) addServices(tree *supervisor.SupervisorTree) {
	tree.AddCoreService(services.NewRunnerService("dispatcher", a.dispatcher))
	tree.AddCoreService(services.NewRunnerService("engine-maintenance", a.engine))
	tree.AddCoreService(services.NewSubscriptionService("engine-subscription",
		func() { a.engine.Start(a.bus) }, a.engine.Stop))
	if a.spool != nil {
		tree.AddCoreService(a.spool)
	}
	if a.cfg.Audit.Enabled {
		tree.AddCoreService(services.NewRunnerService("audit-retention", a.trail))
	}

	tree.AddMessagingService(services.NewRunnerService("websocket-hub", a.hub))
	if a.mmip != nil {
		tree.AddMessagingService(services.NewRunnerService("mmip-publisher", a.mmip))
		tree.AddMessagingService(services.NewSubscriptionService("mmip-subscription",
			func() { a.mmip.Subscribe(a.bus) }, func() { a.mmip.Unsubscribe(a.bus) }))
	}
	if a.ingest != nil {
		tree.AddMessagingService(a.ingest)
	}

	if a.apiServer != nil {
		tree.AddAPIService(a.apiServer)
	}
}

// close releases resources after the tree stopped. Accepted jobs finish
// first so their history lands in the database or the spool.
func (a *app) close() {
	if a.dispatcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Dispatch.ShutdownTimeout)
		if err := a.dispatcher.Stop(ctx); err != nil {
			logging.Warn().Err(err).Msg("Dispatcher did not drain before shutdown")
		}
		cancel()
	}
	if a.mqtt != nil {
		a.mqtt.Close()
	}
	if a.trail != nil {
		_ = a.trail.Close()
	}
	if a.spool != nil {
		if err := a.spool.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing history spool")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}
}
