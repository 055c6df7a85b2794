package internal

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/avelins/traintrack/internal/backend"
	"github.com/avelins/traintrack/internal/cache"
	"github.com/avelins/traintrack/internal/config"
	"github.com/avelins/traintrack/internal/history"
	"github.com/avelins/traintrack/internal/scoring"
	"github.com/avelins/traintrack/internal/store"
	"github.com/avelins/traintrack/internal/telemetry/metrics"
	"github.com/avelins/traintrack/pkg"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

type NewServiceParams struct {
	Config        *config.Config
	BackendAPIKey string
	RedisPassword string
}

// Service wires the workout archive, the scoring engine and the cached
// backend client together and keeps the training plan list fresh.
type Service struct {
	config         *config.Config
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry

	redisClient  *redis.Client
	archiveStore store.Store
	psqlStore    *store.PsqlStore

	historyStore  *history.HistoryStore
	analyzer      *scoring.Analyzer
	cacheLayer    *cache.Cache
	backendClient *backend.CachedClient

	metricsHttpServer *http.Server
	unsubscribePlans  func()

	lastPlanCheck time.Time
}

func NewService(ctx context.Context, params NewServiceParams) (*Service, error) {
	cfg := params.Config

	promRegistry := metrics.SetupPrometheus()
	metricsManager := metrics.NewManager("traintrack", "service", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// the workout archive goes to postgres when configured, redis otherwise
	var archiveStore store.Store
	var psqlStore *store.PsqlStore
	if cfg.PostgresHost != "" {
		var err error
		psqlStore, err = store.NewPsqlStore(ctx, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDBName, true)
		if err != nil {
			return nil, err
		}
		archiveStore = psqlStore
	} else {
		log.Warnln("postgres not configured, workout archive goes to redis")
		archiveStore = store.NewRedisStore(rdb, "traintrack::")
	}

	historyStore := history.NewHistoryStore(archiveStore, metricsManager)

	cacheSlots := store.NewFreecacheStore(cfg.CacheSizeBytes, cfg.CacheExpireSeconds)
	cacheLayer := cache.New(cacheSlots, metricsManager)

	client := backend.NewClient(
		cfg.BackendBaseURL,
		params.BackendAPIKey,
		&http.Client{Timeout: time.Minute},
	)

	return &Service{
		config:         cfg,
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		redisClient:    rdb,
		archiveStore:   archiveStore,
		psqlStore:      psqlStore,
		historyStore:   historyStore,
		analyzer:       scoring.NewAnalyzer(historyStore),
		cacheLayer:     cacheLayer,
		backendClient:  backend.NewCachedClient(client, cacheLayer),
	}, nil
}

func (s *Service) HistoryStore() *history.HistoryStore {
	return s.historyStore
}

func (s *Service) Analyzer() *scoring.Analyzer {
	return s.analyzer
}

func (s *Service) Backend() *backend.CachedClient {
	return s.backendClient
}

func (s *Service) Start(ctx context.Context) {
	metricsRouter := http.NewServeMux()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.PrometheusPort))
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.unsubscribePlans = s.cacheLayer.Subscribe(
		s.config.OwnerID, backend.PlansKey,
		func(n cache.Notification) {
			log.Infof("training plans changed for [%s]", n.OwnerID)
		},
	)

	go s.planRefreshLoop(ctx)

	s.metricsManager.GaugeLifeSignal.Set(1)
}

// planRefreshLoop re-fetches the training plan list once per calendar day
// and sweeps the workout archive for duplicates while at it.
func (s *Service) planRefreshLoop(ctx context.Context) {
	period := time.Duration(s.config.PlanRefreshPeriodMins) * time.Minute
	if period <= 0 {
		period = 30 * time.Minute
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if !pkg.ShouldRefresh(s.lastPlanCheck, now) {
				continue
			}
			s.lastPlanCheck = now

			plans, err := s.backendClient.TrainingPlans(ctx, s.config.OwnerID, true)
			if err != nil {
				log.Errorf("daily training plans refresh: %s", err)
				continue
			}
			log.Debugf("daily training plans refresh done, %d plans", len(plans))

			s.historyStore.RemoveDuplicates(ctx)
		}
	}
}

func (s *Service) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	if s.unsubscribePlans != nil {
		s.unsubscribePlans()
	}

	if s.metricsHttpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.metricsHttpServer.Shutdown(shutdownCtx); err != nil {
			log.Errorf("metrics server shutdown: %s", err)
		}
	}

	s.cacheLayer.Wait()

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.psqlStore != nil {
		log.Debugln("closing db pool ...")
		s.psqlStore.CloseDB()
		log.Debugln("db pool closed")
	}

	log.Debugln("server shut down")
}
