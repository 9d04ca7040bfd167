package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"urgency_detector/internal/apperr"
	"urgency_detector/internal/config"
	"urgency_detector/internal/inbound"
	"urgency_detector/internal/metrics"
	"urgency_detector/internal/repository"
	"urgency_detector/internal/rules"
	"urgency_detector/internal/textproc"
)

const (
	shutdownTimeout = 10 * time.Second
	badgerGCEvery   = 10 * time.Minute
)

// Server wires the HTTP routes to the rule cache, the normalizer and the
// inbound record store.
type Server struct {
	echo       *echo.Echo
	cfg        config.ServerConfig
	logger     *slog.Logger
	cache      *rules.Cache
	repo       rules.Repository
	normalizer *textproc.Normalizer
	validator  *rules.Validator
	correlator *inbound.Correlator
	metrics    *metrics.Metrics
	now        func() time.Time
}

type serverDeps struct {
	Config     config.ServerConfig
	Logger     *slog.Logger
	Cache      *rules.Cache
	Repo       rules.Repository
	Normalizer *textproc.Normalizer
	Store      inbound.Store
	Metrics    *metrics.Metrics
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func newServer(d serverDeps) *Server {
	s := &Server{
		echo:       echo.New(),
		cfg:        d.Config,
		logger:     d.Logger,
		cache:      d.Cache,
		repo:       d.Repo,
		normalizer: d.Normalizer,
		validator:  rules.NewValidator(d.Normalizer),
		correlator: inbound.NewCorrelator(d.Store),
		metrics:    d.Metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				s.logger.LogAttrs(context.Background(), slog.LevelError, "request", attrs...)
				return nil
			}
			s.logger.LogAttrs(context.Background(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	}))

	var protected []echo.MiddlewareFunc
	if s.cfg.InboundToken != "" {
		protected = append(protected, bearerAuth(s.cfg.InboundToken))
	} else {
		s.logger.Warn("inbound token not configured; authenticated routes are open")
	}
	limited := append([]echo.MiddlewareFunc{}, protected...)
	if s.cfg.RateLimitPerSecond > 0 {
		store := middleware.NewRateLimiterMemoryStore(rate.Limit(s.cfg.RateLimitPerSecond))
		limited = append(limited, middleware.RateLimiter(store))
	}

	// Routes
	e.GET("/healthcheck", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	e.POST("/inbound/check", observed(s.metrics.ObserveInbound, s.handleInboundCheck), limited...)
	e.PUT("/inbound/feedback", observed(s.metrics.ObserveFeedback, s.handleFeedback), limited...)
	e.GET("/auth-healthcheck", s.handleHealth, protected...)

	// Admin endpoints
	e.GET("/internal/refresh-rules", s.handleRefreshRules, protected...)
	e.GET("/internal/cache-info", s.handleCacheInfo, protected...)

	if s.cfg.ToolsEnabled() {
		e.POST("/tools/validate-rule", s.handleValidateRule, protected...)
		e.POST("/tools/check-new-rules", s.handleCheckNewRules, protected...)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func bearerAuth(token string) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1, nil
		},
	})
}

// buildNormalizer loads the optional dictionary and assembles the
// normalizer described by cfg.
func buildNormalizer(cfg config.PreprocessingConfig) (*textproc.Normalizer, error) {
	var dictionary []string
	if cfg.DictionaryPath != "" {
		words, err := textproc.LoadDictionaryFile(cfg.DictionaryPath)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindConfiguration, "load spelling dictionary")
		}
		dictionary = words
	}
	speller := textproc.NewSpellChecker(textproc.SpellOptions{
		Dictionary:    dictionary,
		AcceptList:    cfg.CustomSpellCheckList,
		CorrectMap:    cfg.CustomSpellCorrectMap,
		PriorityWords: cfg.PriorityWords,
		MaxDistance:   cfg.MaxEditDistance,
	})
	return textproc.New(textproc.Options{
		NgramMin:                 cfg.NgramMin,
		NgramMax:                 cfg.NgramMax,
		MinDashedWordsToParseURL: cfg.MinDashedWordsToParseURL,
		ReincludedStopWords:      cfg.ReincludedStopWords,
		Speller:                  speller,
	}), nil
}

// openRepository returns the configured rule source and a function that
// releases it.
func openRepository(ctx context.Context, cfg config.RulesConfig) (rules.Repository, func(), error) {
	switch cfg.Source {
	case config.SourcePostgres:
		pg, err := repository.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case config.SourceFile:
		return repository.NewFile(cfg.FilePath), func() {}, nil
	default:
		return nil, nil, apperr.New(apperr.KindConfiguration, fmt.Sprintf("unknown rules source %q", cfg.Source))
	}
}

// runServer serves until ctx is done, then shuts down gracefully.
func runServer(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	normalizer, err := buildNormalizer(cfg.Preprocessing)
	if err != nil {
		return err
	}

	repo, closeRepo, err := openRepository(ctx, cfg.Rules)
	if err != nil {
		return err
	}
	defer closeRepo()

	m := metrics.New()
	cache := rules.NewCache(repo, cfg.Rules.RefreshInterval(),
		rules.WithFetchTimeout(cfg.Rules.FetchTimeout()),
		rules.WithLogger(logger),
		rules.WithObserver(m),
	)
	if _, err := cache.Load(ctx); err != nil {
		// Requests retry the fetch; until one succeeds they get 503.
		logger.Warn("initial rule load failed", slog.String("error", err.Error()))
	}

	if f, ok := repo.(*repository.File); ok && cfg.Rules.WatchFile {
		err := f.Watch(ctx, logger, func() {
			if _, err := cache.ForceRefresh(ctx); err != nil {
				logger.Error("reload after file change failed", slog.String("error", err.Error()))
			}
		})
		if err != nil {
			return err
		}
	}

	store, err := inbound.OpenBadger(inbound.BadgerConfig{
		Path:       cfg.Storage.Path,
		InMemory:   cfg.Storage.InMemory,
		Logger:     logger,
		GCInterval: badgerGCEvery,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close record store", slog.String("error", err.Error()))
		}
	}()

	srv := newServer(serverDeps{
		Config:     cfg.Server,
		Logger:     logger,
		Cache:      cache,
		Repo:       repo,
		Normalizer: normalizer,
		Store:      store,
		Metrics:    m,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("urgency detector started",
			slog.String("address", cfg.Server.Address),
			slog.String("rules_source", cfg.Rules.Source),
			slog.Duration("refresh_interval", cfg.Rules.RefreshInterval()),
			slog.Bool("tools", cfg.Server.ToolsEnabled()))
		if err := srv.echo.Start(cfg.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.echo.Shutdown(shutdownCtx)
}
