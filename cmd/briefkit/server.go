package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/briefkit/briefkit/api/handlers"
	"github.com/briefkit/briefkit/artifact"
	"github.com/briefkit/briefkit/config"
	"github.com/briefkit/briefkit/conversation"
	"github.com/briefkit/briefkit/internal/metrics"
	"github.com/briefkit/briefkit/internal/migration"
	"github.com/briefkit/briefkit/internal/server"
	"github.com/briefkit/briefkit/internal/telemetry"
	"github.com/briefkit/briefkit/persistence"
	"github.com/briefkit/briefkit/session"
)

// poolStatsInterval 数据库连接池指标的采样间隔
const poolStatsInterval = 15 * time.Second

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 BriefKit 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 核心组件
	store      session.Store
	sessions   *session.Manager
	otel       *telemetry.Providers
	collector  *metrics.Collector
	memo       *artifact.MemoParser
	compressor *conversation.Compressor

	// Handlers
	healthHandler   *handlers.HealthHandler
	sessionHandler  *handlers.SessionHandler
	streamHandler   *handlers.StreamHandler
	parseHandler    *handlers.ParseHandler
	compressHandler *handlers.CompressHandler

	stopBackground context.CancelFunc
	wg             sync.WaitGroup
	shutdownOnce   sync.Once
}

// NewServer 按配置装配所有组件，不监听端口
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}

	// 1. 指标与遥测
	s.collector = metrics.NewCollector("briefkit", logger)
	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	s.otel = providers

	// 2. 会话存储
	if err := s.initStore(ctx); err != nil {
		return nil, fmt.Errorf("failed to init session store: %w", err)
	}

	// 3. 解析器与会话管理器
	s.initSessions()

	// 4. Handlers
	if err := s.initHandlers(); err != nil {
		s.closeStore()
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	// 5. HTTP / Metrics 服务器
	s.httpManager = server.NewManager(s.routes(), s.httpConfig(), logger)
	if cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		s.metricsManager = server.NewManager(mux, server.Config{
			Name:            "metrics",
			Addr:            fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}, logger)
	}

	return s, nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// storeConfig 将应用配置映射为持久化层配置
func storeConfig(cfg *config.Config) persistence.StoreConfig {
	return persistence.StoreConfig{
		Type:    persistence.StoreType(cfg.Store.Type),
		BaseDir: cfg.Store.BaseDir,
		TTL:     cfg.Session.TTL,
		Redis: persistence.RedisStoreConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			TLS:          cfg.Redis.TLS,
			KeyPrefix:    cfg.Store.KeyPrefix,
		},
		Database: persistence.DatabaseStoreConfig{
			Driver:              cfg.Database.Driver,
			DSN:                 cfg.Database.DSN(),
			MaxOpenConns:        cfg.Database.MaxOpenConns,
			MaxIdleConns:        cfg.Database.MaxIdleConns,
			ConnMaxLifetime:     cfg.Database.ConnMaxLifetime,
			HealthCheckInterval: cfg.Database.HealthCheckInterval,
		},
		Mongo: persistence.MongoStoreConfig{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			Collection:     cfg.Mongo.Collection,
			ConnectTimeout: cfg.Mongo.ConnectTimeout,
		},
	}
}

func (s *Server) initStore(ctx context.Context) error {
	if s.cfg.Store.Type == string(persistence.StoreTypeDatabase) && s.cfg.Database.AutoMigrate {
		if err := s.autoMigrate(ctx); err != nil {
			return err
		}
	}

	raw, err := persistence.NewSessionStore(ctx, storeConfig(s.cfg), s.logger)
	if err != nil {
		return err
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	s.stopBackground = cancel
	if gs, ok := raw.(*persistence.GormSessionStore); ok {
		s.wg.Add(1)
		go s.reportPoolStats(bgCtx, gs)
	}

	s.store = persistence.Instrument(raw, s.cfg.Store.Type, s.collector, s.logger)
	s.logger.Info("Session store ready", zap.String("type", s.cfg.Store.Type))
	return nil
}

// autoMigrate 在启动时执行 SQL 迁移
func (s *Server) autoMigrate(ctx context.Context) error {
	m, err := migration.NewMigratorFromDatabaseConfig(s.cfg.Database, s.logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() { _ = m.Close() }()

	if err := m.Up(ctx); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	s.logger.Info("Database migrations applied")
	return nil
}

// reportPoolStats 周期性上报连接池指标
func (s *Server) reportPoolStats(ctx context.Context, gs *persistence.GormSessionStore) {
	defer s.wg.Done()
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := gs.PoolStats()
			s.collector.RecordDBConnections(s.cfg.Database.Driver, stats.OpenConnections, stats.Idle)
		}
	}
}

func (s *Server) initSessions() {
	parser := artifact.NewParser(artifact.ParserConfig{
		UnfencedLookahead: s.cfg.Parser.UnfencedLookahead,
		StrictSignature:   s.cfg.Parser.StrictSignature,
		DisableUnfenced:   s.cfg.Parser.DisableUnfenced,
	}, s.logger)

	var textParser artifact.TextParser = parser
	if s.cfg.Parser.MemoSize > 0 {
		s.memo = artifact.NewMemoParser(parser, s.cfg.Parser.MemoSize)
		s.collector.ObserveMemo(s.memo)
		textParser = s.memo
	}
	textParser = s.collector.WrapParser(textParser)

	s.sessions = session.NewManager(
		session.ManagerConfig{
			TTL:             s.cfg.Session.TTL,
			CleanupInterval: s.cfg.Session.CleanupInterval,
		},
		s.store,
		s.logger,
		session.WithManagerObserver(s.collector),
		session.WithSessionOptions(
			session.WithParser(textParser),
			session.WithObserver(s.collector),
			session.WithAutoAdvance(s.cfg.Session.AutoAdvance),
		),
	)

	s.parseHandler = handlers.NewParseHandler(textParser, s.logger)
}

func (s *Server) initHandlers() error {
	instruments, err := telemetry.NewInstruments()
	if err != nil {
		return fmt.Errorf("create telemetry instruments: %w", err)
	}

	tokenizer, err := conversation.NewTokenizer(
		conversation.TokenizerKind(s.cfg.Compression.Tokenizer),
		s.cfg.Compression.Encoding,
		s.logger,
	)
	if err != nil {
		return fmt.Errorf("create tokenizer: %w", err)
	}

	compCfg := conversation.DefaultConfig()
	if s.cfg.Compression.MinMessages > 0 {
		compCfg.MinMessages = s.cfg.Compression.MinMessages
	}
	if s.cfg.Compression.FallbackKeep > 0 {
		compCfg.FallbackKeep = s.cfg.Compression.FallbackKeep
	}
	if s.cfg.Compression.MinSplit > 0 {
		compCfg.MinSplit = s.cfg.Compression.MinSplit
	}
	var digestParser artifact.TextParser = artifact.NewParser(artifact.DefaultParserConfig(), s.logger)
	if s.memo != nil {
		digestParser = s.memo
	}
	s.compressor = conversation.NewCompressor(compCfg, digestParser, tokenizer, s.logger)

	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewPingCheck("session_store", s.store.Ping))

	s.sessionHandler = handlers.NewSessionHandler(s.sessions, instruments, s.logger)
	s.streamHandler = handlers.NewStreamHandler(s.sessionHandler, handlers.StreamConfig{
		ReadLimit:      s.cfg.Server.MaxBodyBytes,
		OriginPatterns: s.cfg.Server.CORSAllowedOrigins,
	}, s.logger)
	s.compressHandler = handlers.NewCompressHandler(s.compressor, s.collector, s.logger)
	return nil
}

// =============================================================================
// 🌐 路由与中间件
// =============================================================================

// routes 注册所有路由并套上中间件链
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	s.sessionHandler.Register(mux)
	mux.HandleFunc("GET /api/v1/sessions/{id}/stream", s.streamHandler.HandleStream)
	mux.HandleFunc("POST /api/v1/parse", s.parseHandler.HandleParse)
	mux.HandleFunc("POST /api/v1/compress", s.compressHandler.HandleCompress)

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		OTelTracing(),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		MaxBody(s.cfg.Server.MaxBodyBytes),
	)
}

func (s *Server) httpConfig() server.Config {
	cfg := server.DefaultConfig()
	cfg.Name = "api"
	cfg.Addr = fmt.Sprintf(":%d", s.cfg.Server.HTTPPort)
	if s.cfg.Server.ReadTimeout > 0 {
		cfg.ReadTimeout = s.cfg.Server.ReadTimeout
	}
	if s.cfg.Server.WriteTimeout > 0 {
		cfg.WriteTimeout = s.cfg.Server.WriteTimeout
	}
	if s.cfg.Server.ShutdownTimeout > 0 {
		cfg.ShutdownTimeout = s.cfg.Server.ShutdownTimeout
	}
	return cfg
}

// =============================================================================
// 🚀 运行与关闭
// =============================================================================

// Run 运行 API 与 Metrics 服务器直到 ctx 取消
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Servers starting",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return server.RunAll(ctx, s.httpManager, s.metricsManager)
}

// Shutdown 释放会话管理器、存储与遥测，可重复调用
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.logger.Info("Starting graceful shutdown...")

		if s.stopBackground != nil {
			s.stopBackground()
		}
		s.wg.Wait()

		// Manager.Close 同时关闭存储
		if s.sessions != nil {
			if err := s.sessions.Close(); err != nil {
				s.logger.Error("Session manager shutdown error", zap.Error(err))
			}
		}

		timeout := s.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = server.DefaultConfig().ShutdownTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}

		s.logger.Info("Graceful shutdown completed")
	})
}

func (s *Server) closeStore() {
	if s.stopBackground != nil {
		s.stopBackground()
	}
	s.wg.Wait()
	switch {
	case s.sessions != nil:
		_ = s.sessions.Close()
	case s.store != nil:
		_ = s.store.Close()
	}
}
