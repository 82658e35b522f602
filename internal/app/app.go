package app

import (
	"context"
	"net/http"

	crerr "github.com/cockroachdb/errors"

	"github.com/udenfc/super11/external/eredivisie"
	"github.com/udenfc/super11/external/profcoach"
	"github.com/udenfc/super11/internal/config"
	"github.com/udenfc/super11/internal/infrastructure/blobstore"
	"github.com/udenfc/super11/internal/infrastructure/broadcast"
	"github.com/udenfc/super11/internal/interfaces/httpapi"
	"github.com/udenfc/super11/internal/platform/logging"
	"github.com/udenfc/super11/internal/platform/resilience"
	"github.com/udenfc/super11/internal/usecase"
)

// App bundles the HTTP server, the broadcast hub and the poll
// scheduler so main only has to start and stop one thing.
type App struct {
	Server    *http.Server
	hub       *broadcast.Hub
	scheduler *usecase.PollScheduler
	stream    *broadcast.StreamPublisher
	logger    *logging.Logger

	cancel context.CancelFunc
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	breakerCfg := resilience.CircuitBreakerConfig{
		Enabled:          cfg.CircuitEnabled,
		FailureThreshold: cfg.CircuitFailureThreshold,
		OpenTimeout:      cfg.CircuitOpenTimeout,
		HalfOpenMaxReq:   cfg.CircuitHalfOpenMaxReq,
	}

	fixturesClient, err := eredivisie.NewClient(eredivisie.ClientConfig{
		BaseURL:        cfg.FixturesBaseURL,
		Timeout:        cfg.FixturesTimeout,
		SourceTimezone: cfg.FixturesSourceTimezone,
		HomeTimezone:   cfg.FixturesHomeTimezone,
		SeasonName:     cfg.SeasonName,
		Country:        cfg.SeasonCountry,
		Logger:         logger,
		CircuitBreaker: breakerCfg,
	})
	if err != nil {
		return nil, crerr.Wrap(err, "build fixtures client")
	}

	authFlow, err := profcoach.NewAuthFlow(profcoach.AuthConfig{
		Timeout:                 cfg.AuthTimeout,
		LoginHost:               cfg.LoginHost,
		LoginPort:               cfg.LoginPort,
		LoginPath:               cfg.LoginPath,
		Email:                   cfg.LoginEmail,
		PasswordEncoded:         cfg.LoginPasswordEncoded,
		Persist:                 cfg.LoginPersist,
		ClientID:                cfg.ClientID,
		RedirectURI:             cfg.RedirectURI,
		ResponseType:            cfg.ResponseType,
		Af:                      cfg.Af,
		GoogleRecaptchaResponse: cfg.GoogleRecaptchaResponse,
		UserType:                cfg.UserType,
		ConsentHost:             cfg.ConsentHost,
		ConsentPort:             cfg.ConsentPort,
		DestinationPath:         cfg.DestinationPath,
		FormMarkerClass:         cfg.FormMarkerClass,
		GameAPIHost:             cfg.GameAPIHost,
		GameAPIPort:             cfg.GameAPIPort,
		GameAPIBootstrapPath:    cfg.GameAPIBootstrapPath,
		XGameGroup:              cfg.XGameGroup,
		Logger:                  logger,
	})
	if err != nil {
		return nil, crerr.Wrap(err, "build auth flow")
	}

	tokens, err := profcoach.NewTokenSource(authFlow, store, cfg.TokenKey, logger)
	if err != nil {
		return nil, crerr.Wrap(err, "build token source")
	}

	standingsClient, err := profcoach.NewClient(profcoach.ClientConfig{
		Timeout:           cfg.StandingsTimeout,
		GameAPIHost:       cfg.GameAPIHost,
		GameAPIPort:       cfg.GameAPIPort,
		GameAPIStandsPath: cfg.GameAPIStandsPath,
		XClientGame:       cfg.XClientGame,
		XGameGroup:        cfg.XGameGroup,
		Logger:            logger,
		CircuitBreaker:    breakerCfg,
	})
	if err != nil {
		return nil, crerr.Wrap(err, "build standings client")
	}

	hub := broadcast.NewHub(logger)
	publishers := broadcast.Fanout{hub}

	var stream *broadcast.StreamPublisher
	if cfg.StreamPublishEnabled {
		stream, err = broadcast.NewStreamPublisher(cfg.RedisURL, logger)
		if err != nil {
			return nil, crerr.Wrap(err, "build stream publisher")
		}
		publishers = append(publishers, stream)
	}

	standingsSvc := usecase.NewStandingsService(standingsClient, tokens, publishers, logger)
	seasonSvc := usecase.NewSeasonService(fixturesClient, store, cfg.SeasonKey, logger)

	scheduler, err := usecase.NewPollScheduler(standingsSvc, seasonSvc, usecase.PollSchedulerConfig{
		CheckInterval:         cfg.CheckInterval,
		FastInterval:          cfg.FastInterval,
		SlowInterval:          cfg.SlowInterval,
		SeasonRefreshInterval: cfg.SeasonRefreshInterval,
		PoolSize:              cfg.SchedulerPoolSize,
	}, logger)
	if err != nil {
		return nil, crerr.Wrap(err, "build poll scheduler")
	}

	handler := httpapi.NewHandler(standingsSvc, logger)
	router := httpapi.NewRouter(handler, hub, logger, cfg.CORSAllowedOrigins)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &App{
		Server:    server,
		hub:       hub,
		scheduler: scheduler,
		stream:    stream,
		logger:    logger,
	}, nil
}

func newStore(cfg config.Config) (blobstore.Store, error) {
	switch cfg.StorageBackend {
	case config.StorageRedis:
		store, err := blobstore.NewRedisStore(cfg.RedisURL, cfg.ServiceName)
		if err != nil {
			return nil, crerr.Wrap(err, "connect redis store")
		}
		return store, nil
	default:
		store, err := blobstore.NewFileStore(cfg.StorageDir)
		if err != nil {
			return nil, crerr.Wrap(err, "open file store")
		}
		return store, nil
	}
}

// Start launches the hub and the scheduler. The HTTP server is left to
// the caller so main controls the listen error path.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	go a.hub.Run(ctx)
	a.scheduler.Start(ctx)
}

// Stop tears down the background machinery. The HTTP server shutdown
// is, again, the caller's job.
func (a *App) Stop() {
	a.scheduler.Stop()
	if a.cancel != nil {
		a.cancel()
	}
	if a.stream != nil {
		a.stream.Close()
	}
}
