package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/threadbrief/core/internal/config"
	"github.com/threadbrief/core/internal/middleware"
	"github.com/threadbrief/core/internal/modules/brief"
	"github.com/threadbrief/core/internal/modules/generation"
	"github.com/threadbrief/core/internal/modules/source"
	"github.com/threadbrief/core/internal/modules/transcript"
	"github.com/threadbrief/core/internal/pkg/clock"
	"github.com/threadbrief/core/internal/pkg/quota"
	"github.com/threadbrief/core/internal/pkg/shortid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	logger *zap.Logger
}

// New initializes the application: backends and stores first, then routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	clk := clock.System()

	limiter, err := buildLimiter(cfg, clk)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	store, err := buildStore(cfg, clk)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	backend, err := buildBackend(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("generation backend: %w", err)
	}

	youtube := transcript.NewYouTubeProvider(&http.Client{}, logger)
	var fallback *transcript.AudioFallback
	if cfg.Audio.Enable {
		fallback = transcript.NewAudioFallback(transcript.AudioFallbackConfig{
			YtdlpPath:    cfg.Audio.YtdlpPath,
			WhisperPath:  cfg.Audio.WhisperPath,
			WhisperModel: cfg.Audio.WhisperModel,
			Timeout:      cfg.Audio.Timeout,
		}, logger)
	}
	acquirer := transcript.NewAcquirer(youtube, fallback, cfg.Timeouts.Metadata, cfg.Timeouts.Caption, logger)

	svc := brief.NewService(
		brief.ServiceConfig{
			ShareBaseURL:    cfg.WebBaseURL,
			OverallTimeout:  cfg.Timeouts.Overall,
			MaxVideoMinutes: cfg.Limits.MaxVideoMinutes,
			RefundOnFailure: cfg.RateLimit.RefundOnFailure,
		},
		store,
		limiter,
		cfg.RateLimit.PerDay,
		source.NewResolver(cfg.Limits.MaxInputChars),
		acquirer,
		youtube,
		generation.NewBuilder(cfg.Limits.PromptBudgetChars),
		backend,
		logger,
	)

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	app := &App{cfg: cfg, router: router, logger: logger}
	app.registerRoutes(svc)
	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

func buildLimiter(cfg *config.AppConfig, clk clock.Clock) (quota.Limiter, error) {
	if url := cfg.RateLimit.RedisURL; url != "" {
		opts, err := goredis.ParseURL(url)
		if err != nil {
			return nil, err
		}
		return quota.NewRedisLimiter(goredis.NewClient(opts), cfg.RateLimit.PerDay, clk), nil
	}
	return quota.NewMemoryLimiter(cfg.RateLimit.PerDay, clk), nil
}

func buildStore(cfg *config.AppConfig, clk clock.Clock) (brief.Store, error) {
	ids := shortid.NewGenerator(nil, shortid.DefaultLength)
	switch cfg.Store.Backend {
	case "mysql":
		// TranslateError maps duplicate-key violations to
		// gorm.ErrDuplicatedKey, which the store's collision retry needs.
		db, err := gorm.Open(mysql.Open(cfg.Store.DSN), &gorm.Config{TranslateError: true})
		if err != nil {
			return nil, err
		}
		return brief.NewGormStore(db, ids, clk)
	default:
		return brief.NewMemoryStore(ids, clk), nil
	}
}

func buildBackend(cfg *config.AppConfig, logger *zap.Logger) (generation.Backend, error) {
	if cfg.Generation.UseMock() {
		logger.Warn("no generation api key configured, using deterministic mock backend")
		return generation.NewMockBackend(), nil
	}
	return generation.NewRemoteBackend(generation.RemoteConfig{
		Provider: cfg.Generation.Provider,
		APIKey:   cfg.Generation.APIKey,
		Endpoint: cfg.Generation.Endpoint,
		Model:    cfg.Generation.Model,
	}, logger)
}
