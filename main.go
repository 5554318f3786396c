package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AgiriTaofeek/natours-app/config"
	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/handlers"
	"github.com/AgiriTaofeek/natours-app/logging"
	"github.com/AgiriTaofeek/natours-app/middleware"
	"github.com/AgiriTaofeek/natours-app/notify"
	"github.com/AgiriTaofeek/natours-app/opentelemetry"
	"github.com/AgiriTaofeek/natours-app/payment"
	"github.com/AgiriTaofeek/natours-app/seed"
	"github.com/AgiriTaofeek/natours-app/services"
	"github.com/AgiriTaofeek/natours-app/uploads"
	"github.com/AgiriTaofeek/natours-app/utils"
	gorillahandlers "github.com/gorilla/handlers"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

const shutdownTimeout = 10 * time.Second

func main() {
	importDir := flag.String("import-data", "", "load tours.json, users.json and reviews.json from `dir` and exit")
	deleteData := flag.Bool("delete-data", false, "remove all tours, users and reviews and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log := logging.New(cfg.App.Env, cfg.App.LogLevel)

	shutdownTracing, err := opentelemetry.Setup(cfg.Tracing.Exporter)
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}

	ctx := context.Background()
	stores, mongoClient, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if mongoClient == nil {
			return
		}
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Printf("Failed to disconnect MongoDB client: %v", err)
		}
	}()
	if err := stores.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}
	log.WithField("driver", cfg.Database.Driver).Info("DB connection successful")

	reviews := services.NewReviewService(stores.Reviews, stores.Tours, stores.Users)

	switch {
	case *importDir != "":
		if _, err := seed.Import(ctx, stores, *importDir, reviews, log); err != nil {
			log.Fatalf("Failed to import data: %v", err)
		}
		return
	case *deleteData:
		if err := seed.Delete(ctx, stores, log); err != nil {
			log.Fatalf("Failed to delete data: %v", err)
		}
		return
	}

	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		natsConn, err = connectNATS(cfg.NATS.URL, log)
		if err != nil {
			log.Fatalf("Failed to connect to NATS after retries: %v", err)
		}
		defer natsConn.Close()
	}

	transport, err := mailTransport(cfg, natsConn, log)
	if err != nil {
		log.Fatalf("Failed to configure email: %v", err)
	}
	if cfg.Email.Worker && natsConn != nil {
		smtp := notify.NewSMTPTransport(cfg.Email.Host, cfg.Email.Port, cfg.Email.Username, cfg.Email.Password)
		if _, err := notify.SubscribeMailRequests(natsConn, smtp, log); err != nil {
			log.Fatalf("Failed to subscribe to mail requests: %v", err)
		}
		log.Info("mail worker subscribed")
	}
	mailer, err := notify.NewMailer(cfg.Email.From, transport)
	if err != nil {
		log.Fatalf("Failed to load email templates: %v", err)
	}

	tokens := utils.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiresIn, time.Now)
	auth := services.NewAuthService(stores.Users, tokens, mailer, log, services.WithBcryptCost(cfg.Auth.BcryptCost))
	gateway := payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)

	var publisher services.EventPublisher
	if natsConn != nil {
		publisher = natsConn
	}

	limiter, closeLimiter, err := rateLimiter(cfg)
	if err != nil {
		log.Fatalf("Failed to configure rate limiting: %v", err)
	}
	defer closeLimiter()

	engine := handlers.NewRouter(handlers.Dependencies{
		Config:   cfg,
		Log:      log,
		Stores:   stores,
		Auth:     auth,
		Users:    services.NewUserService(stores.Users),
		Tours:    services.NewTourService(stores.Tours, stores.Users, reviews),
		Reviews:  reviews,
		Bookings: services.NewBookingService(stores, gateway, publisher, cfg.Stripe.Currency, log),
		Gateway:  gateway,
		Images:   uploads.NewProcessor(cfg.App.PublicDir),
		Limiter:  limiter,
		Ping: func(ctx context.Context) error {
			if mongoClient == nil {
				return nil
			}
			return mongoClient.Ping(ctx, nil)
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           gorillahandlers.CompressHandler(gorillahandlers.ProxyHeaders(engine)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("App running on port %s...", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.WithField("signal", sig.String()).Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
	auth.Wait()
	if natsConn != nil {
		if err := natsConn.Drain(); err != nil {
			log.WithError(err).Warn("nats drain failed")
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.WithError(err).Warn("tracing shutdown failed")
	}
	log.Info("process terminated")
}

func openStores(ctx context.Context, cfg *config.Config) (*database.Stores, *mongo.Client, error) {
	if cfg.Database.Driver == "memory" {
		return database.NewMemoryStores(), nil, nil
	}
	client, err := database.ConnectMongoDB(ctx, cfg.Database.URI, cfg.Database.Password)
	if err != nil {
		return nil, nil, err
	}
	return database.NewMongoStores(client.Database(cfg.Database.Name)), client, nil
}

func connectNATS(url string, log *logrus.Logger) (*nats.Conn, error) {
	var (
		conn *nats.Conn
		err  error
	)
	for i := 0; i < 10; i++ {
		conn, err = nats.Connect(url, nats.Name("natours"))
		if err == nil {
			return conn, nil
		}
		log.Printf("Waiting for NATS to be ready... (%v)", err)
		time.Sleep(2 * time.Second)
	}
	return nil, err
}

func mailTransport(cfg *config.Config, natsConn *nats.Conn, log *logrus.Logger) (notify.Transport, error) {
	switch cfg.Email.Transport {
	case "smtp":
		return notify.NewSMTPTransport(cfg.Email.Host, cfg.Email.Port, cfg.Email.Username, cfg.Email.Password), nil
	case "nats":
		if natsConn == nil {
			return nil, errors.New("EMAIL_TRANSPORT=nats requires NATS_URL")
		}
		return notify.NewNATSTransport(natsConn, 0), nil
	default:
		return notify.NewLogTransport(log), nil
	}
}

func rateLimiter(cfg *config.Config) (middleware.Limiter, func(), error) {
	limits := cfg.Limits
	if cfg.Redis.URL == "" {
		return middleware.NewMemoryLimiter(limits.RateLimitRequests, limits.RateLimitWindow), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	closeClient := func() { _ = client.Close() }
	return middleware.NewRedisLimiter(client, limits.RateLimitRequests, limits.RateLimitWindow), closeClient, nil
}
