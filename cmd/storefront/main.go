package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	c "github.com/XuThi/xuthi-frontend-sub000/internal/cache"
	"github.com/XuThi/xuthi-frontend-sub000/internal/catalog"
	"github.com/XuThi/xuthi-frontend-sub000/internal/checkout"
	"github.com/XuThi/xuthi-frontend-sub000/internal/httpapi"
	"github.com/XuThi/xuthi-frontend-sub000/internal/orderclient"
	"github.com/XuThi/xuthi-frontend-sub000/internal/poller"
	"github.com/XuThi/xuthi-frontend-sub000/internal/pricing"
	"github.com/XuThi/xuthi-frontend-sub000/internal/publisher"
	"github.com/XuThi/xuthi-frontend-sub000/internal/repository"
	s "github.com/XuThi/xuthi-frontend-sub000/internal/service"
)

type Config struct {
	HTTPPort           string
	MongoURI           string
	MongoDBName        string
	RedisAddr          string
	RedisPassword      string
	CatalogDB          catalog.Credentials
	KafkaBrokers       []string
	OrderServiceURL    string
	OrderServiceToken  string
	ShippingFee        int64
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:   getEnv("MONGO_DB_NAME", "cartdb"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		CatalogDB: catalog.Credentials{
			Host:              getEnv("CATALOG_DB_HOST", "localhost"),
			Port:              getEnvInt("CATALOG_DB_PORT", 5432),
			User:              getEnv("CATALOG_DB_USER", "postgres"),
			Password:          getEnv("CATALOG_DB_PASSWORD", "postgres"),
			DBName:            getEnv("CATALOG_DB_NAME", "catalogdb"),
			MigrationsDirPath: getEnv("CATALOG_MIGRATIONS_PATH", "migrations/catalog"),
		},
		KafkaBrokers:       []string{getEnv("KAFKA_BROKER", "localhost:9092")},
		OrderServiceURL:    getEnv("ORDER_SERVICE_URL", "http://localhost:8081"),
		OrderServiceToken:  getEnv("ORDER_SERVICE_TOKEN", ""),
		ShippingFee:        int64(getEnvInt("SHIPPING_FEE", 30000)),
		RequestTimeout:     30 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		MaxRequestBodySize: 1 << 20, // 1MB
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	repo := repository.NewMongoRepository(mongoDB)
	if err := repo.CreateIndexes(ctx); err != nil {
		log.Fatalf("Failed to create cart indexes: %v", err)
	}
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")

	catalogRepo, err := catalog.NewRepository(&cfg.CatalogDB)
	if err != nil {
		log.Fatalf("Failed to connect to catalog database: %v", err)
	}
	defer catalogRepo.Close()
	if err := catalogRepo.RunMigrations(&cfg.CatalogDB); err != nil {
		log.Fatalf("Failed to run catalog migrations: %v", err)
	}
	log.Printf("Connected to catalog database at %s", cfg.CatalogDB.Host)

	cat := catalog.NewBreakerCatalog(catalogRepo)
	pricer := pricing.NewEngine(cat)
	cache := c.NewRedisCache(redisClient)
	cartService := s.NewCartService(repo, cache, cat, pricer)

	orderClient := orderclient.New(cfg.OrderServiceURL, cfg.OrderServiceToken, cfg.RequestTimeout)
	eventPublisher := publisher.NewOrderEventPublisher(cfg.KafkaBrokers...)
	defer eventPublisher.Close()
	checkoutService := checkout.NewService(cartService, orderClient, orderClient, eventPublisher, catalogRepo, cfg.ShippingFee)

	// Clear carts once their order is placed.
	pollerCtx, cancelPoller := context.WithCancel(ctx)
	cartPoller := poller.NewPoller(cartService, cfg.KafkaBrokers...)
	go cartPoller.Run(pollerCtx)

	cartHandler := httpapi.NewCartHandler(cartService, checkoutService, cfg.RequestTimeout)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(httpapi.RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(httpapi.SessionMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		cartHandler.Routes(r)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(http.MaxBytesHandler(r, cfg.MaxRequestBodySize), "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Storefront listening on port %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down storefront...")
	cancelPoller()
	cartPoller.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	mongoDB.Client().Disconnect(ctx)
	log.Println("Storefront stopped")
}
