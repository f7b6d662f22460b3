package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/livefeed/backend/internal/assets"
	"github.com/ayush/livefeed/backend/internal/auth"
	"github.com/ayush/livefeed/backend/internal/broadcast"
	"github.com/ayush/livefeed/backend/internal/config"
	"github.com/ayush/livefeed/backend/internal/feed"
	"github.com/ayush/livefeed/backend/internal/logging"
	"github.com/ayush/livefeed/backend/internal/memstore"
	"github.com/ayush/livefeed/backend/internal/metrics"
	"github.com/ayush/livefeed/backend/internal/middleware"
	"github.com/ayush/livefeed/backend/internal/store"
)

type userStore interface {
	auth.UserStore
	feed.UserStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// ── Stores ───────────────────────────────────────────────
	var (
		posts   feed.PostStore
		users   userStore
		uploads feed.Uploads
	)
	switch cfg.StoreBackend {
	case config.BackendMemory:
		log.Warn("using in-memory stores; data is lost on restart")
		posts = memstore.NewPosts()
		users = memstore.NewUsers()
		uploads = memstore.NewUploads()

	default:
		// ── PostgreSQL ────────────────────────────────────────
		pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			log.WithError(err).Fatal("postgres connect")
		}
		defer pgPool.Close()
		pgStore := store.NewPostgresStore(pgPool)
		if err := pgStore.Migrate(ctx); err != nil {
			log.WithError(err).Fatal("postgres migrate")
		}
		users = pgStore
		uploads = pgStore

		// ── MongoDB ───────────────────────────────────────────
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.WithError(err).Fatal("mongo connect")
		}
		defer mongoClient.Disconnect(context.Background())
		mongoStore := store.NewMongoStore(mongoClient.Database(cfg.MongoDB))
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			log.WithError(err).Fatal("mongo indexes")
		}
		posts = mongoStore
	}

	// ── Assets ───────────────────────────────────────────────
	var assetStore assets.Store
	switch cfg.AssetBackend {
	case config.AssetsMinio:
		minioStore, err := store.NewMinioStore(ctx, store.MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.WithError(err).Fatal("minio connect")
		}
		assetStore = minioStore
	default:
		diskStore, err := store.NewDiskStore(cfg.AssetDir)
		if err != nil {
			log.WithError(err).Fatal("asset dir")
		}
		assetStore = diskStore
	}
	releaser := assets.NewReleaser(assetStore, cfg.ReleaseTimeout, log)

	// ── Broadcast ────────────────────────────────────────────
	hub := broadcast.NewHub(broadcast.DefaultBuffer, log)
	var (
		publisher broadcast.Publisher = hub
		relay     *broadcast.RedisRelay
	)
	relayDone := make(chan struct{})
	if cfg.RedisAddr != "" {
		rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.WithError(err).Fatal("redis connect")
		}
		defer rdb.Close()
		relay = broadcast.NewRedisRelay(rdb, hub, log)
		publisher = relay

		// Without the subscription local sockets would never see an event.
		ready := make(chan struct{})
		relayErr := make(chan error, 1)
		go func() {
			defer close(relayDone)
			relayErr <- relay.Run(ctx, ready)
		}()
		select {
		case <-ready:
		case err := <-relayErr:
			log.WithError(err).Fatal("broadcast relay subscribe")
		}
	} else {
		close(relayDone)
	}

	// ── Services ─────────────────────────────────────────────
	tokens := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	gate := auth.NewGate(tokens)
	credentials := auth.NewService(users, tokens, log)
	feedService := feed.NewService(feed.Deps{
		Posts:       posts,
		Users:       users,
		Uploads:     uploads,
		Credentials: credentials,
		Assets:      assetStore,
		Images:      releaser,
		Events:      publisher,
	}, feed.Options{
		PageSize:            cfg.PageSize,
		DeleteRequiresOwner: cfg.DeleteRequiresOwner,
	}, log)

	schema, err := feed.NewSchema(feedService, log)
	if err != nil {
		log.WithError(err).Fatal("graphql schema")
	}

	// ── Handlers ─────────────────────────────────────────────
	authHandler := auth.NewHandler(credentials, log)
	feedHandler := feed.NewHandler(schema, feedService, assetStore, cfg.MaxUploadBytes, log)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup(10 * time.Minute)
			}
		}
	}()

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(logging.Requests(log))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"OPTIONS", "GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))
	r.Use(middleware.Authenticate(gate))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	// Live updates
	r.Get("/socket", hub.ServeWS)

	// Feed and auth routes, rate limited per client
	r.Group(func(r chi.Router) {
		r.Use(limiter.Handler)

		r.Get("/graphql", feedHandler.GraphQL)
		r.Post("/graphql", feedHandler.GraphQL)
		r.Put("/post-image", feedHandler.UploadImage)
		r.Get("/images/{name}", feedHandler.ServeImage)

		r.Route("/auth", func(r chi.Router) {
			r.Put("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
			r.Get("/status", authHandler.Status)
			r.Patch("/status", authHandler.UpdateStatus)
		})
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":   cfg.Port,
			"store":  cfg.StoreBackend,
			"assets": cfg.AssetBackend,
			"relay":  cfg.RedisAddr != "",
		}).Info("backend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
	stop()
	<-relayDone
	if relay != nil {
		relay.Close()
	}
	hub.Close()
	releaser.Wait()
	log.Info("stopped")
}
