package connection

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"mydayplanner/config"
	calendarctl "mydayplanner/controller/calendar"
	"mydayplanner/controller/calendarsync"
	"mydayplanner/controller/integration"
	"mydayplanner/controller/task"
	"mydayplanner/dto"
	"mydayplanner/middleware"
	"mydayplanner/repository"
	"mydayplanner/services"
)

type store interface {
	services.TaskStore
	services.IntegrationStore
	services.SettingStore
}

// App holds the wired services of one running server.
type App struct {
	Integrations *services.IntegrationService
	Settings     *services.SettingsService
	Sync         *services.SyncService
	Tasks        *services.TaskService
	Pulse        *services.Pulse

	close func() error
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store, func() error, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		db, err := repository.OpenSQLite(cfg.Store.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("get sql db: %w", err)
		}
		return repository.NewSQLStore(db), sqlDB.Close, nil
	default:
		client, err := FBConnection(ctx, cfg.Store)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewFirestoreStore(client), client.Close, nil
	}
}

func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	log.Info("store connected", zap.String("driver", cfg.Store.Driver))

	loc, err := time.LoadLocation(cfg.Sync.DefaultTimezone)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
		Scopes:       services.OAuthScopes(cfg.Sync.ExportEnabled),
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.Google.AuthURL,
			TokenURL:  cfg.Google.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	httpClient := &http.Client{Timeout: cfg.Sync.ProviderTimeout}

	gateway := services.NewGoogleGateway(services.GatewayOptions{
		Endpoint:  cfg.Google.CalendarEndpoint,
		RevokeURL: cfg.Google.RevokeURL,
		Timeout:   cfg.Sync.ProviderTimeout,
		Location:  loc,
	}, log.Named("gateway"))
	tokens := services.NewTokenManager(st, oauthCfg, httpClient, cfg.Sync.ProviderTimeout, log.Named("token"))
	syncer := services.NewSyncService(st, st, tokens, gateway, services.SyncOptions{
		ExportEnabled: cfg.Sync.ExportEnabled,
		BatchSize:     cfg.Sync.BatchSize,
	}, log.Named("sync"))

	return &App{
		Integrations: services.NewIntegrationService(st, oauthCfg, gateway, httpClient, cfg.Sync.ProviderTimeout, log.Named("integration")),
		Settings:     services.NewSettingsService(st, st, tokens, gateway, log.Named("settings")),
		Sync:         syncer,
		Tasks:        services.NewTaskService(st, syncer, services.NewRecurrenceEngine(log.Named("recurrence")), loc, log.Named("tasks")),
		Pulse:        services.SyncPulse(syncer, cfg.Sync.PulseInterval, log.Named("pulse")),
		close:        closeStore,
	}, nil
}

func (a *App) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return c
}

func NewRouter(cfg *config.Config, app *App, log *zap.Logger) *gin.Engine {
	dto.RegisterValidators()

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log.Named("http")))
	// pre-flight is answered here, before any route or auth runs
	router.Use(cors.New(corsConfig(cfg.CORSAllowOrigins)))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Api is running!"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.AccessTokenMiddleware([]byte(cfg.JWTSecret))
	integration.GoogleIntegrationController(router, app.Integrations, auth)
	calendarctl.CalendarController(router, app.Settings, auth)
	calendarsync.SyncController(router, app.Sync, auth)
	task.TaskController(router, app.Tasks, auth)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return router
}

// StartServer runs the HTTP server and the sync pulse until SIGINT or SIGTERM.
func StartServer(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("close store", zap.Error(err))
		}
	}()

	loc, _ := time.LoadLocation(cfg.Sync.DefaultTimezone)
	scheduler := services.NewSchedulerService(loc)
	if cfg.Sync.PulseInterval > 0 && cfg.Sync.ExportEnabled {
		if _, err := scheduler.ScheduleInterval(cfg.Sync.PulseInterval, app.Pulse.Tick); err != nil {
			return fmt.Errorf("schedule sync pulse: %w", err)
		}
		log.Info("sync pulse scheduled", zap.Duration("interval", cfg.Sync.PulseInterval))
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg, app, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			scheduler.Stop()
			app.Pulse.Stop()
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	scheduler.Stop()
	app.Pulse.Stop()
	return nil
}
