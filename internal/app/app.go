package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/linemk/storefront-orders/internal/cache"
	"github.com/linemk/storefront-orders/internal/config"
	"github.com/linemk/storefront-orders/internal/events"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	DB        *sql.DB
	Redis     *redis.Client // nil, если кэш статусов отключен
	Publisher events.Publisher
}

// NewApp создаёт новый экземпляр App: БД, необязательный redis и публикатор событий
func NewApp(ctx context.Context, log *slog.Logger, cfg *config.Config) (*App, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: log,
		DB:     db,
	}

	if cfg.Redis.Address != "" {
		app.Redis = cache.NewRedisClient(cfg.Redis.Address)
		if err := app.Redis.Ping(pingCtx).Err(); err != nil {
			// кэш необязателен, чтение идёт в БД
			log.Warn("redis is unavailable, status cache disabled", slog.Any("error", err))
			app.Redis.Close()
			app.Redis = nil
		}
	}

	app.Publisher, err = NewPublisher(log, cfg.Events)
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// NewPublisher выбирает транспорт событий по cfg.Broker
func NewPublisher(log *slog.Logger, cfg config.EventsConfig) (events.Publisher, error) {
	switch cfg.Broker {
	case events.BrokerKafka:
		if len(cfg.Brokers) == 0 {
			return nil, errors.New("events.brokers is required for kafka")
		}
		return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic), nil
	case events.BrokerRabbitMQ:
		if cfg.AMQPURL == "" {
			return nil, errors.New("AMQP_URL is required for rabbitmq")
		}
		p, err := events.NewRabbitPublisher(cfg.AMQPURL, cfg.Exchange)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		return p, nil
	case events.BrokerLog, "":
		return events.NewLogPublisher(log), nil
	default:
		return nil, fmt.Errorf("unknown events broker %q", cfg.Broker)
	}
}

func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Error("failed to close publisher", slog.Any("error", err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	a.DB.Close()
}
