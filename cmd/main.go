package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"signing-web-server/config"
	_ "signing-web-server/docs"
	"signing-web-server/internal/blockchain"
	"signing-web-server/internal/handler"
	"signing-web-server/internal/notifier"
	"signing-web-server/internal/ports"
	"signing-web-server/internal/repository"
	"signing-web-server/internal/security"
	"signing-web-server/internal/service"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Signing-web-server
// @version 1.0
// @description REST API платформы подписания документов с якорением в блокчейне

// @host localhost:8080

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	db, err := config.SetupDatabase(cfg.DatabaseConfig.DSN)
	if err != nil {
		log.Fatalf("Не удалось подключиться к БД: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Ошибка при закрытии БД: %v", err)
		}
	}()

	redisClient, err := config.SetupRedis(&cfg.RedisConfig)
	if err != nil {
		log.Fatalf("Ошибка подключения к Redis: %v", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("Ошибка при закрытии Redis: %v", err)
		}
	}()

	srv, router := config.SetupServer(cfg.ServerAddr)

	userRepo := repository.NewUserRepository(db)
	jwtRepo := repository.NewJWTRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	recipientRepo := repository.NewRecipientRepository(db)
	eventRepo := repository.NewEventRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, time.Duration(cfg.TTL.S3AndRedis)*time.Second)

	s3Service, err := service.NewS3Service(ctx, &cfg.S3Config)
	if err != nil {
		log.Fatalf("Ошибка создания S3 сервиса: %v", err)
	}

	webhookNotifier, err := notifier.NewWebhookNotifier(&cfg.Webhook)
	if err != nil {
		log.Fatalf("Ошибка создания webhook-нотификатора: %v", err)
	}

	confirmTimeout, err := time.ParseDuration(cfg.Blockchain.ConfirmTimeout)
	if err != nil {
		log.Fatalf("Некорректный confirm_timeout: %v", err)
	}
	reconcileInterval, err := time.ParseDuration(cfg.Blockchain.ReconcileInterval)
	if err != nil {
		log.Fatalf("Некорректный reconcile_interval: %v", err)
	}
	reconcileGrace, err := time.ParseDuration(cfg.Blockchain.ReconcileGrace)
	if err != nil {
		log.Fatalf("Некорректный reconcile_grace: %v", err)
	}

	chainClients := make(map[string]ports.ChainClient, len(cfg.Blockchain.Networks))
	for name := range cfg.Blockchain.Networks {
		network := cfg.Blockchain.Networks[name]
		client, err := blockchain.NewClient(&network, cfg.Blockchain.PrivateKey, confirmTimeout)
		if err != nil {
			log.Fatalf("Ошибка подключения к сети %s: %v", name, err)
		}
		chainClients[name] = client
	}

	anchorService := service.NewAnchorService(
		docRepo,
		recipientRepo,
		eventRepo,
		cacheRepo,
		chainClients,
		cfg.Blockchain.Networks,
		cfg.Blockchain.DefaultNetwork,
		s3Service,
		webhookNotifier,
	)
	signingService := service.NewSigningService(docRepo, recipientRepo, eventRepo, cacheRepo, anchorService, webhookNotifier, confirmTimeout+30*time.Second)
	dispatchService := service.NewDispatchService(db, docRepo, recipientRepo, eventRepo, s3Service, webhookNotifier, 30*time.Second)

	jwtService := security.NewJWTService(&cfg.JWT)
	authService := service.NewAuthenticationService(jwtRepo, cfg, jwtService, userRepo)

	authHandler := handler.NewAuthenticationHandler(authService, jwtService, cfg)
	docHandler := handler.NewDocumentHandler(dispatchService)
	signingHandler := handler.NewSigningHandler(signingService, anchorService)

	router.Use(config.DBMiddleware(db))
	router.Get("/swagger/*", httpSwagger.WrapHandler)

	setupAuthRoutes(router, authHandler, jwtService, jwtRepo, cfg)
	setupDocumentRoutes(router, docHandler, jwtService, jwtRepo, cfg)
	setupSigningRoutes(router, signingHandler)

	go anchorService.RunReconciler(ctx, reconcileInterval, reconcileGrace)

	runServer(ctx, srv)
}

func setupAuthRoutes(r chi.Router, h *handler.AuthenticationHandler, jwtService *security.JWTService, jwtRepo *repository.JWTRepository, cfg *config.AppConfig) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(security.JWTMiddleware([]byte(cfg.JWT.SecretKey), jwtRepo, jwtService, cfg.Admin.AdminToken))
			r.Post("/refresh", h.RefreshToken)
		})
		r.Group(func(r chi.Router) {
			r.Post("/", h.Login)
			r.Delete("/{token}", h.Logout)
		})
	})

	r.Post("/api/register", h.Register)
}

func setupDocumentRoutes(r chi.Router, h *handler.DocumentHandler, jwtService *security.JWTService, jwtRepo *repository.JWTRepository, cfg *config.AppConfig) {
	r.Route("/api/docs", func(r chi.Router) {
		r.Use(security.JWTMiddleware([]byte(cfg.JWT.SecretKey), jwtRepo, jwtService, cfg.Admin.AdminToken))
		r.Post("/", h.CreateDocument)

		r.Route("/{doc_id}", func(r chi.Router) {
			r.Get("/", h.GetDocument)
			r.Post("/send", h.SendDocument)
			r.Get("/events", h.ListEvents)
			r.Get("/anchor", h.GetAnchorProof)
		})
	})
}

// setupSigningRoutes : публичный канал; единственный credential — токен в пути
func setupSigningRoutes(r chi.Router, h *handler.SigningHandler) {
	r.Route("/sign/{token}", func(r chi.Router) {
		r.Get("/", h.GetSigningSession)
		r.Post("/", h.SignAction)
		r.Post("/pricing", h.UpdatePricingSelection)
	})

	r.Post("/api/blockchain/verify", h.VerifyHash)
}

func runServer(ctx context.Context, server *http.Server) {
	serverErrors := make(chan error, 1)
	go func() {
		log.Println("сервер запущен на " + server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			log.Fatalf("ошибка работы сервера: %v", err)
		}
	case sig := <-signalChannel:
		log.Printf("получен сигнал %v остановки работы сервера ", sig)
	}

	shutDownCtx, shutDownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutDownCancel()

	if err := server.Shutdown(shutDownCtx); err != nil {
		log.Printf("ошибка при остановке сервера: %v", err)
	} else {
		log.Println("Сервер успешно остановлен")
	}
}
