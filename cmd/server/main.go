package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/linemk/storefront-orders/internal/app"
	"github.com/linemk/storefront-orders/internal/app/handlers"
	"github.com/linemk/storefront-orders/internal/cache"
	"github.com/linemk/storefront-orders/internal/config"
	"github.com/linemk/storefront-orders/internal/domain/models"
	"github.com/linemk/storefront-orders/internal/events"
	"github.com/linemk/storefront-orders/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/storefront-orders/internal/lib/logger"
	"github.com/linemk/storefront-orders/internal/lib/logger/handlers/urllog"
	"github.com/linemk/storefront-orders/internal/lib/metrics"
	"github.com/linemk/storefront-orders/internal/notify"
	"github.com/linemk/storefront-orders/internal/service"
	"github.com/linemk/storefront-orders/internal/storage"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// .env необязателен, переменные окружения важнее
	_ = godotenv.Load()

	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// загружаем объект приложения: конфиг, БД, redis и брокер
	application, err := app.NewApp(ctx, log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(pkgerrors.Wrap(err, "failed to initialize app"))
	}
	defer application.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	cartRepo := storage.NewCartRepository(application.DB)
	inventory := storage.NewInventoryRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)
	ledger := storage.NewPaymentRepository(application.DB)
	outbox := storage.NewOutboxRepository(application.DB)

	// обработчики смены статуса, вызываются после коммита
	hub := notify.NewHub()
	defer hub.Close()
	listeners := service.StatusListeners{hub}
	var statusCache service.StatusCache
	if application.Redis != nil {
		sc := cache.NewStatusCache(application.Redis, cfg.Redis.StatusTTL)
		statusCache = sc
		listeners = append(listeners, sc)
	}

	// бизнес-логика
	txRunner := service.NewTxRunner(log, application.DB, cfg.Checkout.LockTimeout, cfg.Checkout.MaxRetries, m)

	authService := service.NewAuthService(log, userRepo, time.Duration(cfg.JWT.TokenTTL)*time.Minute)
	cartService := service.NewCartService(log, cartRepo)
	checkoutService := service.NewCheckoutService(log, txRunner, userRepo, cartRepo, inventory, orderRepo, outbox, m)
	paymentService := service.NewPaymentService(log, txRunner, orderRepo, ledger, outbox, listeners, m)
	statusService := service.NewStatusService(log, txRunner, orderRepo, outbox, listeners)
	orderService := service.NewOrderService(log, orderRepo, ledger, statusCache)

	// настройка middleware
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(m.Middleware)

	router.Get("/healthz", handlers.HealthHandler(log, application.DB))
	router.Handle(cfg.Metrics.Path, metrics.Handler())

	// эндпоинты для аутентификации
	router.Post("/api/auth/register", handlers.RegisterHandler(log, authService))
	router.Post("/api/auth/login", handlers.LoginHandler(log, authService))

	// браузерный websocket не ставит заголовки, токен приходит в ?token=
	router.With(jwtmiddleware.NewJWTMiddleware(jwtmiddleware.WithQueryToken("token"))).
		Get("/ws/orders", notify.Handler(log, hub))

	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewJWTMiddleware())

		// эндпоинты корзины
		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", handlers.GetCartHandler(log, cartService))
			r.Post("/items", handlers.AddCartItemHandler(log, cartService))
			r.Patch("/items/{productId}", handlers.SetCartItemHandler(log, cartService))
			r.Delete("/items/{productId}", handlers.RemoveCartItemHandler(log, cartService))
		})

		// оформление, оплата и статусы заказов
		r.Route("/api/orders", func(r chi.Router) {
			r.Post("/", handlers.CheckoutHandler(log, checkoutService))
			r.Get("/", handlers.ListOrdersHandler(log, orderService))
			r.Get("/{orderId}", handlers.GetOrderHandler(log, orderService))
			r.Get("/{orderId}/status", handlers.GetOrderStatusHandler(log, orderService))
			r.Post("/{orderId}/payments", handlers.PayHandler(log, paymentService))
			r.With(jwtmiddleware.RequireRole(models.RoleAdmin)).
				Post("/{orderId}/status", handlers.UpdateStatusHandler(log, statusService))
		})
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	// диспетчер outbox работает рядом с http сервером
	dispatcher := events.NewDispatcher(log, outbox, application.Publisher, m, cfg.Events.PollInterval, cfg.Events.BatchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return pkgerrors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	// graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", slog.Any("error", err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", slog.Any("error", err))
		return
	}
	log.Info("server gracefully stopped")
}
