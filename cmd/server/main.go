package main

import (
	"context"

	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linemk/second-market/internal/app"
	"github.com/linemk/second-market/internal/app/handlers"
	"github.com/linemk/second-market/internal/cache"
	"github.com/linemk/second-market/internal/config"
	"github.com/linemk/second-market/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/second-market/internal/lib/logger"
	"github.com/linemk/second-market/internal/lib/logger/handlers/urllog"
	"github.com/linemk/second-market/internal/notify"
	"github.com/linemk/second-market/internal/service"
	"github.com/linemk/second-market/internal/storage"
	"github.com/pkg/errors"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// загружаем объект приложения, конфигом и подключением к БД
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.DB.Close()

	// контекст фоновых задач: reaper и kafka-писатель останавливаются по нему
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	cacheStore := cache.NewRedisCache(application.Redis)
	notifier := notify.NewKafkaNotifier(log, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Buffer)
	notifier.Start(bgCtx)

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	productRepo := storage.NewProductRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)
	paymentRepo := storage.NewPaymentRepository(application.DB)

	authService := service.NewAuthService(log, userRepo, time.Duration(cfg.JWT.TokenTTL)*time.Minute)
	orderService := service.NewOrderService(log, application.DB, userRepo, productRepo, orderRepo, paymentRepo,
		cacheStore, notifier, cfg.Orders.PayWindow, cfg.Orders.MinCreditScore)
	queryService := service.NewOrderQueryService(log, orderRepo, cacheStore)
	paymentService := service.NewPaymentService(log, application.DB, orderRepo, paymentRepo,
		cacheStore, notifier, cfg.Payment.GatewaySecret)

	// фоновая зачистка просроченных заказов
	reaper := service.NewReaper(log, orderRepo, orderService, cfg.Orders.ReaperInterval, cfg.Orders.ReaperBatch)
	go reaper.Run(bgCtx)

	// эндпоинт для аутентификации
	router.Post("/api/auth", handlers.AuthHandler(log, authService))
	// webhook платёжного шлюза: без bearer-токена, защищён подписью payload'а
	router.Post("/api/orders/pay/callback", handlers.PayCallbackHandler(log, paymentService))

	router.Group(func(r chi.Router) {
		jwtMW := jwtmiddleware.NewJWTMiddleware()
		r.Use(jwtMW)
		// создание заказа
		r.Post("/api/orders", handlers.CreateOrderHandler(log, orderService))
		// переходы жизненного цикла
		r.Patch("/api/orders/{id}/cancel", handlers.CancelOrderHandler(log, orderService))
		r.Patch("/api/orders/{id}/ship", handlers.ShipOrderHandler(log, orderService))
		r.Patch("/api/orders/{id}/receive", handlers.ReceiveOrderHandler(log, orderService))
		r.Patch("/api/orders/{id}/return", handlers.ReturnOrderHandler(log, orderService))
		// чтения
		r.Get("/api/orders/buyer/list", handlers.BuyerOrdersHandler(log, queryService))
		r.Get("/api/orders/seller/list", handlers.SellerOrdersHandler(log, queryService))
		r.Get("/api/orders/{id}", handlers.GetOrderHandler(log, queryService))
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}

	// останавливаем фоновые задачи и дожидаемся, пока kafka-писатель дольёт буфер
	bgCancel()
	notifier.WaitClosed()

	log.Info("server gracefully stopped")
}
