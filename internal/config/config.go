package config

import (
	"flag"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string           `yaml:"env" env-default:"development"` // environment
	HTTPServer HTTPServerConfig `yaml:"http_server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Migrations MigrationsConfig `yaml:"migrations"`
	Checkout   CheckoutConfig   `yaml:"checkout"`
	Redis      RedisConfig      `yaml:"redis"`
	Events     EventsConfig     `yaml:"events"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type HTTPServerConfig struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type DatabaseConfig struct {
	Host         string `yaml:"host" env-default:"localhost"`
	Port         int    `yaml:"port" env-default:"5432"`
	User         string `yaml:"user" env-required:"true"`
	Password     string `yaml:"-" env:"DB_PASSWORD" env-required:"true"`
	Name         string `yaml:"name" env-required:"true"`
	MaxOpenConns int    `yaml:"max_open_conns" env-default:"20"`
	MaxIdleConns int    `yaml:"max_idle_conns" env-default:"5"`
}

type JWTConfig struct {
	Secret   string `yaml:"-" env:"JWT_SECRET" env-required:"true"`
	TokenTTL int    `yaml:"token_ttl" env-default:"60"` // в минутах
}

type MigrationsConfig struct {
	Path string `yaml:"path" env-default:"./migrations"`
}

// CheckoutConfig ограничивает ожидание блокировок в транзакциях оформления, оплаты и смены статуса
type CheckoutConfig struct {
	LockTimeout time.Duration `yaml:"lock_timeout" env-default:"5s"`
	MaxRetries  int           `yaml:"max_retries" env-default:"1"`
}

// RedisConfig кэша статусов заказов, пустой адрес отключает кэш
type RedisConfig struct {
	Address   string        `yaml:"address" env:"REDIS_ADDR"`
	StatusTTL time.Duration `yaml:"status_ttl" env-default:"5m"`
}

type EventsConfig struct {
	Broker       string        `yaml:"broker" env:"EVENTS_BROKER" env-default:"log"` // kafka | rabbitmq | log
	Brokers      []string      `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic        string        `yaml:"topic" env-default:"storefront.orders"`
	AMQPURL      string        `yaml:"-" env:"AMQP_URL"`
	Exchange     string        `yaml:"exchange" env-default:"storefront.orders"`
	PollInterval time.Duration `yaml:"poll_interval" env-default:"1s"`
	BatchSize    int           `yaml:"batch_size" env-default:"50"`
}

type MetricsConfig struct {
	Path string `yaml:"path" env-default:"/metrics"`
}

// MustLoad - если не загружаем - паникуем
func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		log.Fatal("CONFIG_PATH not exists")
	}
	return MustLoadByPath(configPath)
}

func fetchConfigPath() string {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path
}

func MustLoadByPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("can't read config file %s: %v", configPath, err)
	}

	return &cfg
}

// DSN собирает строку подключения lib/pq, логин и пароль экранируются как userinfo
func (c DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
