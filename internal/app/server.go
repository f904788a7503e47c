// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"

	"autopay-service/internal/config"
	"autopay-service/internal/db"
	"autopay-service/internal/domain/payment"
	"autopay-service/internal/domain/subscription"
	autopayHandler "autopay-service/internal/handlers/autopay"
	limitsHandler "autopay-service/internal/handlers/limits"
	paymentHandler "autopay-service/internal/handlers/payment"
	subscriptionHandler "autopay-service/internal/handlers/subscription"
	wsHandler "autopay-service/internal/handlers/websocket"
	"autopay-service/internal/middleware"
	"autopay-service/internal/nonce"
	"autopay-service/internal/pkg/jwt"
	"autopay-service/internal/pkg/signing"
	"autopay-service/internal/repository/memory"
	"autopay-service/internal/repository/postgres"
	agreementUsecase "autopay-service/internal/service/agreement"
	autopayUsecase "autopay-service/internal/service/autopay"
	limitsUsecase "autopay-service/internal/service/limits"
	modificationUsecase "autopay-service/internal/service/modification"
	settlementUsecase "autopay-service/internal/service/settlement"
	"autopay-service/internal/transport"
	"autopay-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.Default()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	s.logger = logger

	// ----- Signing identity -----
	keys, err := signing.LoadOrCreateKeyPair(s.cfg.SigningKeyPath)
	if err != nil {
		return fmt.Errorf("failed to load signing key: %w", err)
	}
	log.Printf("[IDENTITY] peer key %s", keys.PublicKeyHex())

	// ----- Storage -----
	var (
		subRepo     subscription.Repository
		signedRepo  subscription.SignedRepository
		historyRepo subscription.HistoryRepository
		requestRepo payment.RequestRepository
		ruleRepo    payment.RuleRepository
		limitRepo   payment.LimitRepository
		ledger      nonce.Ledger
	)

	switch s.cfg.StorageBackend {
	case "memory":
		store := memory.NewStore()
		subRepo = store
		signedRepo = memory.NewSignedStore(store)
		historyRepo = memory.NewHistoryStore(store)
		requestRepo = memory.NewRequestStore(store)
		ruleRepo = memory.NewRuleStore(store)
		limitRepo = memory.NewLimitStore()
		ledger = nonce.NewMemoryLedger()
		log.Println("[STORAGE] using in-memory backend")

	default:
		pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("failed to ping PostgreSQL: %w", err)
		}

		redisClient, err := db.NewRedisClient(db.RedisConfig{
			Addr:     s.cfg.RedisAddr,
			Password: s.cfg.RedisPass,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Println("[REDIS] connected")

		dbWrapper := postgres.NewDB(pool)
		subRepo = postgres.NewSubscriptionRepository(pool)
		signedRepo = postgres.NewSignedSubscriptionRepository(pool)
		historyRepo = postgres.NewModificationHistoryRepository(pool)
		requestRepo = postgres.NewPaymentRequestRepository(pool)
		ruleRepo = postgres.NewAutoPayRuleRepository(pool)
		limitRepo = postgres.NewPeerLimitRepository(dbWrapper)
		ledger = nonce.NewRedisLedger(redisClient)
		log.Println("[STORAGE] using PostgreSQL backend")
	}

	// ----- JWT Manager -----
	jwtManager, err := jwt.NewManager(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to build JWT manager: %w", err)
	}

	// Mint a token for the node's own key so the HTTP surface is usable
	// straight from the startup log; operators issue further tokens the
	// same way.
	apiToken, err := jwtManager.Generate(keys.PublicKeyHex())
	if err != nil {
		return fmt.Errorf("failed to mint local api token: %w", err)
	}
	log.Printf("[AUTH] local api token %s", apiToken)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(logger)
	go hub.Run()

	// ----- Peer transport -----
	// A loopback pair keeps a single node self-contained; multi-node
	// deployments swap in a real channel here.
	local, remote := transport.NewLoopbackPair(64)

	// ----- Services (Usecases) -----
	limitsService := limitsUsecase.NewLimitsService(limitRepo, logger)
	agreementService := agreementUsecase.NewAgreementService(
		subRepo,
		signedRepo,
		ledger,
		local,
		keys,
		hub,
		logger,
	)
	autopayService := autopayUsecase.NewAutoPayService(
		signedRepo,
		ruleRepo,
		requestRepo,
		limitsService,
		logger,
	)
	settlementService := settlementUsecase.NewSettlementService(
		limitRepo,
		requestRepo,
		settlementUsecase.NewLocalExecutor(),
		hub,
		logger,
	)
	settlementService.SetPaymentTimeout(s.cfg.PaymentTimeout)
	modificationService := modificationUsecase.NewModificationService(
		subRepo,
		signedRepo,
		historyRepo,
		hub,
		logger,
	)

	// ----- Inbound dispatcher -----
	dispatcher := NewDispatcher(remote, agreementService, settlementService, logger)
	go dispatcher.Run(ctx)

	// ----- Handlers -----
	subscriptionHandlerInst := subscriptionHandler.NewSubscriptionHandler(agreementService, modificationService)
	autopayHandlerInst := autopayHandler.NewAutoPayHandler(autopayService)
	limitsHandlerInst := limitsHandler.NewLimitsHandler(limitsService)
	paymentHandlerInst := paymentHandler.NewPaymentHandler(autopayService, settlementService)
	wsHandlerInst := wsHandler.NewWebSocketHandler(hub, jwtManager, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		SubscriptionHandler: subscriptionHandlerInst,
		AutoPayHandler:      autopayHandlerInst,
		LimitsHandler:       limitsHandlerInst,
		PaymentHandler:      paymentHandlerInst,
		WSHandler:           wsHandlerInst,
		AuthMiddleware:      authMiddleware,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	log.Printf("server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}
