package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"jobtalk/internal/api"
	"jobtalk/internal/config"
	"jobtalk/internal/controller"
	"jobtalk/internal/presence"
	"jobtalk/internal/receipt"
	"jobtalk/internal/reconcile"
	"jobtalk/internal/registry"
	"jobtalk/internal/session"
	"jobtalk/internal/store"
	"jobtalk/internal/transport"
	"jobtalk/pkg/interfaces"
	"jobtalk/pkg/types"
)

// Application wires every component of the conversation engine together in
// dependency order and owns their lifecycle.
type Application struct {
	cfg    *config.Config
	logger zerolog.Logger

	store      interfaces.SelectionStore
	apiClient  *api.Client
	registry   *registry.Registry
	reconciler *reconcile.Reconciler
	session    *session.Session
	transport  *transport.Manager
	presence   *presence.Tracker
	receipt    *receipt.Coordinator

	applicant *controller.ApplicantController
	recruiter *controller.RecruiterController
}

// New assembles an application from a validated configuration. Construction
// order follows the dependency graph; nothing connects yet. A nil sink
// discards all view notifications.
func New(cfg *config.Config, sink interfaces.EventSink, logger zerolog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if sink == nil {
		sink = interfaces.NopSink{}
	}

	a := &Application{cfg: cfg, logger: logger}

	var err error
	if a.store, err = store.Open(cfg.Store, logger); err != nil {
		return nil, fmt.Errorf("open selection store: %w", err)
	}

	a.apiClient = api.NewClient(cfg.API.BaseURL, cfg.API.Credential, cfg.API.Timeout, logger)
	a.registry = registry.NewRegistry(logger)
	a.reconciler = reconcile.NewReconciler(a.apiClient, cfg.HistoryPageSize, logger)

	a.session = session.New()
	a.transport = transport.NewManager(transport.Config{
		URL:                  cfg.Transport.URL,
		DialTimeout:          cfg.Transport.DialTimeout,
		WriteTimeout:         cfg.Transport.WriteTimeout,
		MaxReconnectAttempts: cfg.Transport.MaxReconnectAttempts,
		BaseBackoff:          cfg.Transport.BaseBackoff,
		MaxBackoff:           cfg.Transport.MaxBackoff,
	}, a.session, logger)

	a.presence = presence.NewTracker(a.transport, cfg.Typing.Debounce, cfg.Typing.Idle, sink.TypingChanged, logger)
	a.receipt = receipt.NewCoordinator(a.apiClient, a.transport, a.reconciler, a.registry, cfg.Role, sink.MessagesChanged, logger)

	deps := controller.Deps{
		Role:       cfg.Role,
		SessionKey: cfg.SessionKey,
		Credential: cfg.API.Credential,
		API:        a.apiClient,
		Transport:  a.transport,
		Store:      a.store,
		Sink:       sink,
		Reconciler: a.reconciler,
		Registry:   a.registry,
		Presence:   a.presence,
		Receipt:    a.receipt,
		Logger:     logger,
	}
	switch cfg.Role {
	case types.RoleRecruiter:
		a.recruiter = controller.NewRecruiter(deps)
	default:
		a.applicant = controller.NewApplicant(deps)
	}

	return a, nil
}

// Start activates the role controller: bulk room load, socket connection,
// room joins and selection restore.
func (a *Application) Start(ctx context.Context) error {
	a.logger.Info().Str("role", a.cfg.Role).Msg("starting conversation engine")
	if a.recruiter != nil {
		return a.recruiter.Activate(ctx)
	}
	return a.applicant.Activate(ctx)
}

// Stop shuts everything down in reverse dependency order.
func (a *Application) Stop() {
	if a.recruiter != nil {
		a.recruiter.Shutdown()
	}
	if a.applicant != nil {
		a.applicant.Shutdown()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("closing selection store")
	}
	a.logger.Info().Msg("conversation engine stopped")
}

// Applicant returns the applicant controller, nil when running as recruiter.
func (a *Application) Applicant() *controller.ApplicantController { return a.applicant }

// Recruiter returns the recruiter controller, nil when running as applicant.
func (a *Application) Recruiter() *controller.RecruiterController { return a.recruiter }

// Controller returns the active role controller's shared core.
func (a *Application) Controller() *controller.Controller {
	if a.recruiter != nil {
		return a.recruiter.Controller
	}
	return a.applicant.Controller
}
