package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pitabwire/frame"
	frconfig "github.com/pitabwire/frame/config"
	"github.com/pitabwire/frame/datastore"
	"github.com/pitabwire/frame/datastore/pool"
	"github.com/pitabwire/util"

	pconfig "github.com/sokoapp/service-presence/config"
	"github.com/sokoapp/service-presence/internal/health"
	"github.com/sokoapp/service-presence/service/business"
	"github.com/sokoapp/service-presence/service/handlers"
	"github.com/sokoapp/service-presence/service/profile"
	"github.com/sokoapp/service-presence/service/repository"
)

const gracefulShutdownTimeout = 30 * time.Second

// runService initializes and starts the presence service with all dependencies.
func runService(ctx context.Context) error {
	// Initialize configuration
	cfg, err := frconfig.LoadWithOIDC[pconfig.PresenceConfig](ctx)
	if err != nil {
		util.Log(ctx).With("err", err).Error("could not process configs")
		return err
	}

	// Validate configuration (fail-fast on invalid config)
	if err = cfg.Validate(); err != nil {
		util.Log(ctx).With("err", err).Error("invalid configuration")
		return err
	}

	if cfg.Name() == "" {
		cfg.ServiceName = "service_presence"
	}

	// Create service
	ctx, svc := frame.NewServiceWithContext(ctx, frame.WithConfig(&cfg), frame.WithDatastore())
	defer svc.Stop(ctx)
	log := svc.Log(ctx)

	workMan := svc.WorkManager()
	dbManager := svc.DatastoreManager()
	dbPool := dbManager.GetPool(ctx, datastore.DefaultPoolName)

	// Handle database migration if requested
	if cfg.DoDatabaseMigrate() {
		if err = repository.Migrate(ctx, svc, cfg.GetDatabaseMigrationPath()); err != nil {
			log.WithError(err).Fatal("main -- Could not migrate successfully")
		}
		return nil
	}

	// Repositories
	messageRepo := repository.NewMessageRepository(ctx, dbPool, workMan)
	conversationRepo := repository.NewConversationRepository(ctx, dbPool, workMan)
	participantRepo := repository.NewParticipantRepository(ctx, dbPool, workMan)

	// Remote identity client backing participant projections
	profileCli := profile.NewClient(ctx, profile.Options{
		BaseURL:             cfg.ProfileServiceURI,
		Timeout:             time.Duration(cfg.ProfileTimeoutSec) * time.Second,
		BreakerMaxFailures:  int64(cfg.ProfileBreakerMaxFailures),
		BreakerResetTimeout: time.Duration(cfg.ProfileBreakerResetSec) * time.Second,
	})

	// Presence registry and envelope pipeline. Dispatch order is fixed:
	// message actions first, then post actions.
	registry := business.NewRegistry()
	dispatcher := business.NewDispatcher(
		business.NewMessageHandler(registry, profileCli, messageRepo, conversationRepo, participantRepo),
		business.NewPostHandler(),
	)
	connectionManager := business.NewConnectionManager(
		registry,
		dispatcher,
		cfg.MaxConnections,
		cfg.OutboundBufferSize,
	)
	// Graceful shutdown: close live connections before svc.Stop.
	defer func() {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer drainCancel()
		connectionManager.Shutdown(drainCtx)
	}()

	// Health checks
	healthHandler := setupHealthChecks(dbPool, cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.Handle(cfg.WebsocketPath, handlers.NewWebsocketHandler(&cfg, connectionManager))

	// Initialize the service with all options
	svc.Init(ctx, frame.WithHTTPHandler(mux))

	// Start the service
	return svc.Run(ctx, "")
}

func main() {
	ctx := context.Background()
	if err := runService(ctx); err != nil {
		util.Log(ctx).WithError(err).Fatal("could not run service")
	}
}

// setupHealthChecks creates the health check handler with database and
// identity-service checkers.
func setupHealthChecks(dbPool pool.Pool, cfg pconfig.PresenceConfig) *health.Handler {
	handler := health.NewHandler()
	handler.AddChecker(health.NewDatabaseChecker(dbPool, 5*time.Second))
	handler.AddChecker(health.NewHTTPChecker("profile_service", cfg.ProfileServiceURI, 5*time.Second))
	return handler
}
