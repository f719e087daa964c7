package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ruralpay/billpay/internal/cache"
	"github.com/ruralpay/billpay/internal/config"
	"github.com/ruralpay/billpay/internal/database"
	"github.com/ruralpay/billpay/internal/handlers"
	mW "github.com/ruralpay/billpay/internal/middleware"
	"github.com/ruralpay/billpay/internal/notifications"
	"github.com/ruralpay/billpay/internal/services"
	"github.com/spf13/viper"
)

// @title Bill Payments API
// @version 1.0
// @description Bill payment settlement with document verification above a configurable threshold
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")
	viper.BindEnv("database.auto_migrate", "DATABASE_AUTO_MIGRATE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("payments.default_threshold", "PAYMENT_DEFAULT_THRESHOLD")
	viper.BindEnv("payments.max_settle_attempts", "PAYMENT_MAX_SETTLE_ATTEMPTS")
	viper.BindEnv("cache.config_ttl", "CACHE_CONFIG_TTL")
	viper.BindEnv("cache.payee_ttl", "CACHE_PAYEE_TTL")
	viper.BindEnv("webhook.invoice_url", "INVOICE_WEBHOOK_URL")
	viper.BindEnv("webhook.secret", "INVOICE_WEBHOOK_SECRET")
	viper.BindEnv("webhook.timeout", "INVOICE_WEBHOOK_TIMEOUT")
	viper.BindEnv("uploads.dir", "UPLOADS_DIR")
	viper.BindEnv("uploads.max_bytes", "UPLOADS_MAX_BYTES")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	config.SetAuthDefaults()
	if viper.GetString("jwt.secret_key") == "" {
		log.Fatal("JWT_SECRET_KEY must be set")
	}

	serverConfig := config.LoadServerConfig()
	paymentConfig := config.LoadPaymentConfig()

	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}
	appCache := cache.New(redisClient)

	webhookClient := notifications.NewWebhookClient(paymentConfig.WebhookTimeout, paymentConfig.WebhookSecret)
	dispatcher := notifications.NewDispatcher(webhookClient, paymentConfig.InvoiceWebhookURL, paymentConfig.WebhookTimeout)

	authService := services.NewAuthService(db, redisClient)
	billPaymentService := services.NewBillPaymentService(db, appCache, dispatcher, paymentConfig)
	payeeService := services.NewPayeeService(db, appCache, paymentConfig.PayeeCacheTTL)

	billPaymentHandler := handlers.NewBillPaymentHandler(billPaymentService, paymentConfig)
	payeeHandler := handlers.NewPayeeHandler(payeeService)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(serverConfig.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   serverConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "healthy", "database": "up", "cache": "disabled"}
		code := http.StatusOK
		if err := db.PingContext(ctx); err != nil {
			status["status"], status["database"] = "degraded", "down"
			code = http.StatusServiceUnavailable
		}
		if redisClient != nil {
			status["cache"] = "up"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				status["cache"] = "down"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)

		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware(redisClient))

			r.Get("/auth/account", authService.GetUserAccount)

			r.Get("/payments/threshold", billPaymentHandler.Threshold)
			r.Get("/payments/bills", billPaymentHandler.ListBillPayments)
			r.Post("/payments/bills", billPaymentHandler.PayBill)
			r.Post("/payments/bills/verified", billPaymentHandler.PayVerifiedBill)
			r.Post("/payments/documents", billPaymentHandler.UploadDocument)
			r.Handle("/payments/documents/*", http.StripPrefix("/api/v1/payments/documents/",
				mW.DocumentServer(paymentConfig.UploadDir)))

			r.Get("/payees", payeeHandler.ListPayees)
			r.Post("/payees", payeeHandler.CreatePayee)
		})
	})

	server := &http.Server{
		Addr:         ":" + serverConfig.Port,
		Handler:      r,
		ReadTimeout:  serverConfig.ReadTimeout,
		WriteTimeout: serverConfig.WriteTimeout,
		IdleTimeout:  serverConfig.IdleTimeout,
	}

	go func() {
		log.Printf("Server starting on :%s", serverConfig.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// in-flight invoice notifications finish within their own timeout
	dispatcher.Wait()
	log.Println("Server stopped")
}
