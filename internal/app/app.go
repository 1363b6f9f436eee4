package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"licensepanel/internal/blacklist"
	"licensepanel/internal/config"
	"licensepanel/internal/discord"
	apierrors "licensepanel/internal/errors"
	"licensepanel/internal/geo"
	"licensepanel/internal/infrastructure"
	"licensepanel/internal/license"
	"licensepanel/internal/marketplace"
	customMiddleware "licensepanel/internal/middleware"
	"licensepanel/internal/notify"
	"licensepanel/internal/security"
	"licensepanel/internal/settings"
	"licensepanel/internal/store"
	handlers "licensepanel/internal/transport/http"
	"licensepanel/internal/voucher"
	ws "licensepanel/internal/websocket"
	"licensepanel/pkg/contracts"
	"licensepanel/pkg/contracts/domain"
)

// AppName is reported in startup logs.
const AppName = "License Panel"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	SystemMetrics *infrastructure.SystemMetrics
	Store         *store.Store
	WebSocketHub  *ws.Hub
	Notifier      *notify.Notifier
	Bot           *discord.Bot
	Profiles      *discord.ProfileCache
	Services      *ServiceContainer
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Licenses      *license.Service
	Products      *license.ProductService
	Engine        *license.Engine
	Blacklist     *blacklist.Service
	Settings      *settings.Service
	Vouchers      *voucher.Service
	Marketplace   *marketplace.Service
	Authenticator *security.Authenticator
	Inputs        *security.InputValidator
}

// NewApplication loads configuration and builds the application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New wires every component for cfg. It does not start listening.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.Info("application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("build_time", contracts.BuildTime),
		slog.String("commit", contracts.GitCommit),
		slog.String("data_dir", cfg.Storage.DataDir),
		slog.Bool("admin_enabled", cfg.AdminEnabled()),
		slog.Bool("discord_enabled", cfg.Discord.Enabled))

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	systemMetrics, err := infrastructure.NewSystemMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize system metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		SystemMetrics: systemMetrics,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.setupRouter(); err != nil {
		return nil, fmt.Errorf("failed to setup router: %w", err)
	}

	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	cfg := a.Config

	st, err := store.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	a.Store = st

	// WebSocket hub feeding the dashboard's live log view
	wsMetrics, err := ws.NewMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to initialize websocket metrics: %w", err)
	}
	hub := ws.NewHub(a.Logger, wsMetrics)
	hub.Start()
	a.WebSocketHub = hub

	settingsService := settings.NewService(st.Settings, a.Logger)

	a.Notifier = notify.New(settingsService, a.Logger, notify.Options{
		Username: cfg.Notifier.Username,
		Timeout:  cfg.Notifier.Timeout,
		Breaker:  infrastructure.NewCircuitBreaker("discord-webhook", cfg.Notifier.Breaker, a.Logger),
	})

	licenseMetrics, err := license.NewMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to initialize license metrics: %w", err)
	}

	licenseService := license.NewService(license.ServiceDeps{
		Licenses:  st.Licenses,
		Products:  st.Products,
		Notifier:  a.Notifier,
		Metrics:   licenseMetrics,
		Logger:    a.Logger,
		KeyPrefix: cfg.License.KeyPrefix,
	})

	var locator license.Locator
	if cfg.Geo.Enabled {
		locator = geo.NewClient(cfg.Geo.BaseURL, cfg.Geo.Timeout,
			infrastructure.NewCircuitBreaker("geo", cfg.Geo.Breaker, a.Logger), a.Logger)
	}

	engine := license.NewEngine(license.EngineDeps{
		Licenses:  st.Licenses,
		Products:  st.Products,
		Blacklist: st.Blacklist,
		Settings:  st.Settings,
		Logs:      st.Logs,
		Locator:   locator,
		Publisher: hub,
		Notifier:  a.Notifier,
		Metrics:   licenseMetrics,
		Logger:    a.Logger,
	})

	marketplaceService := marketplace.NewService(marketplace.Config{
		Secret:  cfg.BuiltByBit.Secret,
		LinkTTL: cfg.BuiltByBit.LinkTTL,
	}, marketplace.Deps{
		Products: st.Products,
		Licenses: st.Licenses,
		Issuer:   licenseService,
		Fetcher: marketplace.NewHTTPProfileFetcher(cfg.BuiltByBit.BaseURL, cfg.BuiltByBit.FetchTimeout,
			infrastructure.NewCircuitBreaker("builtbybit", cfg.BuiltByBit.Breaker, a.Logger)),
		Notifier: a.Notifier,
		Logger:   a.Logger,
	})

	voucherService := voucher.NewService(st.Vouchers, st.Products, licenseService, a.Logger)

	a.Services = &ServiceContainer{
		Licenses:    licenseService,
		Products:    license.NewProductService(st.Products, st.Licenses, a.Logger),
		Engine:      engine,
		Blacklist:   blacklist.NewService(st.Blacklist, st.Licenses, a.Notifier, a.Logger),
		Settings:    settingsService,
		Vouchers:    voucherService,
		Marketplace: marketplaceService,
		Authenticator: security.NewAuthenticator(security.AuthConfig{
			Username:     cfg.Admin.Username,
			PasswordHash: cfg.Admin.PasswordHash,
			JWTSecret:    cfg.Admin.JWTSecret,
			TokenTTL:     cfg.Admin.TokenTTL,
		}),
		Inputs: security.NewInputValidator(a.Logger),
	}

	if cfg.Discord.Enabled {
		if err := a.initializeBot(); err != nil {
			return err
		}
	}

	return nil
}

// initializeBot builds the slash command bot. Profile lookups go through the
// bot's own session, which only exists once the bot does.
func (a *Application) initializeBot() error {
	cfg := a.Config.Discord
	lookup := &botLookup{}
	a.Profiles = discord.NewProfileCache(lookup, cfg.ProfileCacheTTL, cfg.ProfileCacheSize)

	commands := discord.NewCommands(discord.CommandDeps{
		Licenses:    a.Services.Licenses,
		Products:    a.Store.Products,
		Vouchers:    a.Services.Vouchers,
		Marketplace: a.Services.Marketplace,
		Profiles:    a.Profiles,
		BotLogs:     feedBotLogs{BotLogRepository: a.Store.BotLogs, hub: a.WebSocketHub},
		Logger:      a.Logger,
	})

	bot, err := discord.NewBot(discord.BotConfig{
		Token:       cfg.Token,
		GuildID:     cfg.GuildID,
		AdminRoleID: cfg.AdminRoleID,
		Timeout:     cfg.CommandTimeout,
	}, commands, a.Logger)
	if err != nil {
		a.Profiles.Stop()
		return fmt.Errorf("failed to initialize discord bot: %w", err)
	}
	lookup.bot = bot
	a.Bot = bot
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() error {
	r := chi.NewRouter()
	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)
	auth := customMiddleware.AdminAuth(a.Services.Authenticator, errorHandler.HandleError, a.Logger)

	r.Use(customMiddleware.RequestID)
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	// The live feed upgrades the connection, so it stays clear of the
	// middleware that wraps the ResponseWriter.
	r.With(auth).Handle("/ws/logs", ws.NewHandler(a.WebSocketHub, a.Config.Security.AllowedOrigins, a.Logger))

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create OpenTelemetry middleware: %w", err)
	}

	r.Group(func(r chi.Router) {
		// RequestID → OTel → Logger → Recoverer → headers
		r.Use(otelMiddleware.Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(errorHandler.Middleware)
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
		}))
		r.Use(customMiddleware.MaxBodySize(a.Config.Server.MaxBodyBytes))

		r.Get("/healthz", a.healthHandler().Health)
		a.setupAPIRoutes(r, errorHandler, auth)
	})

	// Prometheus endpoint stays outside the middleware group
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
	return nil
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router, errorHandler *apierrors.ErrorHandler, auth func(http.Handler) http.Handler) {
	rs := handlers.NewResponder(errorHandler, customMiddleware.NewValidator())
	svc := a.Services

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))

		// Public validation endpoint, throttled per client IP
		validateHandler := handlers.NewValidateHandler(svc.Engine, svc.Inputs, a.Logger)
		if rl := a.Config.Security.RateLimit; rl.Enabled {
			limiter := customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger)
			r.With(limiter.Handler).Post("/validate", validateHandler.Validate)
		} else {
			r.Post("/validate", validateHandler.Validate)
		}

		webhookHandler := handlers.NewWebhookHandler(svc.Marketplace, rs, a.Logger)
		r.Mount("/webhooks/builtbybit", webhookHandler.Routes())

		r.Route("/admin", func(r chi.Router) {
			authHandler := handlers.NewAuthHandler(svc.Authenticator, rs, a.Logger)
			r.Post("/login", authHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(auth)

				r.Get("/me", authHandler.Me)

				statsHandler := handlers.NewStatsHandler(svc.Licenses, svc.Products, svc.Vouchers, a.Store.Logs, rs, a.Logger)
				r.Get("/stats", statsHandler.Stats)

				productHandler := handlers.NewProductHandler(svc.Products, rs, a.Logger)
				r.Mount("/products", productHandler.Routes())

				licenseHandler := handlers.NewLicenseHandler(svc.Licenses, svc.Products, rs, a.Logger)
				r.Mount("/licenses", licenseHandler.Routes())

				blacklistHandler := handlers.NewBlacklistHandler(svc.Blacklist, rs, a.Logger)
				r.Mount("/blacklist", blacklistHandler.Routes())

				settingsHandler := handlers.NewSettingsHandler(svc.Settings, rs, a.Logger)
				r.Mount("/settings", settingsHandler.Routes())

				voucherHandler := handlers.NewVoucherHandler(svc.Vouchers, rs, a.Logger)
				r.Mount("/vouchers", voucherHandler.Routes())

				logHandler := handlers.NewLogHandler(a.Store.Logs, a.Store.BotLogs, rs, a.Logger)
				r.Mount("/logs", logHandler.Routes())

				exportHandler := handlers.NewExportHandler(svc.Licenses, svc.Products, a.Store.Logs, a.Store.BotLogs, rs, a.Logger)
				r.Mount("/export", exportHandler.Routes())
			})
		})
	})
}

func (a *Application) healthHandler() *handlers.HealthHandler {
	checks := map[string]handlers.HealthCheck{
		"store": func(ctx context.Context) error {
			_, err := a.Store.Settings.Get(ctx)
			return err
		},
	}
	return handlers.NewHealthHandler(contracts.Version, a.SystemMetrics, checks, a.WebSocketHub.ClientCount, a.Logger)
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start connects the bot and serves HTTP until the server is shut down.
func (a *Application) Start(ctx context.Context) error {
	if a.Bot != nil {
		if err := a.Bot.Start(ctx); err != nil {
			return fmt.Errorf("failed to start discord bot: %w", err)
		}
	}

	a.Logger.InfoContext(ctx, "Starting HTTP server", slog.String("address", a.Server.Addr))
	if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	if a.Bot != nil {
		if err := a.Bot.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "Error closing discord bot", slog.String("error", err.Error()))
		}
	}
	if a.Profiles != nil {
		a.Profiles.Stop()
	}
	a.WebSocketHub.Stop()

	// Let in-flight webhook notifications finish
	a.Notifier.Wait()

	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, fmt.Errorf("close log file: %w", err))
	}
	return errors.Join(errs...)
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("Received shutdown signal")
		return a.Stop(context.Background())
	})
	return g.Wait()
}

// botLookup resolves Discord profiles through the bot session once it exists.
type botLookup struct {
	bot *discord.Bot
}

func (l *botLookup) User(ctx context.Context, id string) (discord.Profile, error) {
	if l.bot == nil {
		return discord.Profile{}, errors.New("discord bot not initialized")
	}
	return discord.SessionLookup{Session: l.bot.Session()}.User(ctx, id)
}

// feedBotLogs mirrors appended bot log entries to the live feed.
type feedBotLogs struct {
	store.BotLogRepository
	hub *ws.Hub
}

func (f feedBotLogs) Append(ctx context.Context, entry domain.BotLog) error {
	if err := f.BotLogRepository.Append(ctx, entry); err != nil {
		return err
	}
	f.hub.PublishBotLog(entry)
	return nil
}
