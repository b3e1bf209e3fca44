/**
 * @description
 * This is the main entry point for the ledger service. It is responsible for
 * initializing all components of the service, including configuration, database
 * migrations and connection pool, the message broker producer, the Redis rate
 * limiter, the repository, the core application service, the unconfirmed
 * payment sweeper, and the HTTP server. It wires everything together and
 * starts the service.
 *
 * @dependencies
 * - log, log/slog, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver and pool.
 * - github.com/jackc/pgx-shopspring-decimal: Registers decimal codecs on every pooled connection.
 * - internal/api, internal/app, internal/config, internal/domain, internal/store: Internal packages for the service.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/drdaeman/payments-api-demo/internal/api"
	"github.com/drdaeman/payments-api-demo/internal/app"
	"github.com/drdaeman/payments-api-demo/internal/config"
	"github.com/drdaeman/payments-api-demo/internal/domain"
	"github.com/drdaeman/payments-api-demo/internal/store"
	ledgerrabbit "github.com/drdaeman/payments-api-demo/pkg/rabbitmq"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url must be configured\" env=DATABASE_URL")
	}

	log.Printf("level=info component=bootstrap msg=\"starting ledger service\" port=%s", cfg.ServerPort)

	// Bring the schema up to date before opening the pool.
	if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database migration failed\" err=%v", err)
	}
	log.Println("level=info component=bootstrap msg=\"database migrations applied\"")

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	// Configure connection pool for high-traffic scenarios
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Balances and amounts travel as shopspring decimals, never floats.
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := dbpool.Ping(pingCtx); err != nil {
		cancelPing()
		log.Fatalf("level=fatal component=bootstrap msg=\"database ping failed\" err=%v", err)
	}
	cancelPing()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish payment events. A broker
	// outage degrades to log-only publishing instead of blocking startup.
	var producer ledgerrabbit.Publisher
	eventProducer, err := ledgerrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &ledgerrabbit.EventProducerFallback{}
	} else {
		producer = eventProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}
	defer producer.Close()

	// Connect Redis only when the payment write rate limit is enabled.
	var rateLimiter *app.RedisRateLimiter
	if cfg.PaymentRateLimitPerMinute > 0 {
		if cfg.RedisURL == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; payment rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; payment rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient := redis.NewClient(redisOptions)
				redisPingCtx, cancelRedisPing := context.WithTimeout(context.Background(), 5*time.Second)
				if pingErr := redisClient.Ping(redisPingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; payment rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
				} else {
					defer redisClient.Close()
					rateLimiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
				cancelRedisPing()
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	currencies := domain.NewCurrencyTable(cfg.CurrencyCodes())
	ledgerService := app.NewService(repository, currencies, producer, cfg.PageSizeDefault, cfg.PageSizeMax)

	// Start the periodic sweep of stale unconfirmed payments.
	sweeperLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	sweeper := app.NewSweeper(repository, cfg.SweeperSchedule, cfg.SweeperUnconfirmedTTL, sweeperLogger)
	sweeper.Start()

	// Initialize the API handlers and routes.
	handlers := api.NewLedgerHandlers(ledgerService)
	router := api.LedgerRoutes(handlers, api.RouterConfig{
		AllowedOrigins:     cfg.CORSOrigins(),
		RateLimiter:        rateLimiter,
		RateLimitPerMinute: cfg.PaymentRateLimitPerMinute,
	})

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	// Wait for any in-flight sweep to finish before closing the pool.
	<-sweeper.Stop().Done()

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
