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

	"github.com/ayush/notsodumb/backend/internal/auth"
	"github.com/ayush/notsodumb/backend/internal/brain"
	"github.com/ayush/notsodumb/backend/internal/config"
	"github.com/ayush/notsodumb/backend/internal/llm"
	"github.com/ayush/notsodumb/backend/internal/logging"
	"github.com/ayush/notsodumb/backend/internal/metrics"
	"github.com/ayush/notsodumb/backend/internal/middleware"
	"github.com/ayush/notsodumb/backend/internal/quiz"
	"github.com/ayush/notsodumb/backend/internal/research"
	"github.com/ayush/notsodumb/backend/internal/search"
	"github.com/ayush/notsodumb/backend/internal/store"
	"github.com/ayush/notsodumb/backend/internal/vector"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logging.New("notsodumb-backend", cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.WithError(err).Fatal("postgres connect")
	}
	defer pgPool.Close()
	pgStore := store.NewPostgresStore(pgPool)
	if err := pgStore.Migrate(ctx); err != nil {
		log.WithError(err).Fatal("postgres migrate")
	}

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.WithError(err).Fatal("mongo connect")
	}
	defer mongoClient.Disconnect(ctx)
	quizStore := store.NewMongoStore(mongoClient.Database(cfg.MongoDB))

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.WithError(err).Fatal("redis connect")
	}
	defer rdb.Close()
	sessions := auth.NewSessionStore(rdb)

	// ── MinIO ────────────────────────────────────────────────
	sourceCache, err := store.NewMinioStore(
		ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		log.WithError(err).Fatal("minio connect")
	}

	// ── Upstream clients ─────────────────────────────────────
	m := metrics.New("notsodumb")
	llmClient := llm.NewClient(llm.Options{
		BaseURL:        cfg.OpenAIBaseURL,
		APIKey:         cfg.OpenAIAPIKey,
		ChatModel:      cfg.ChatModel,
		EmbeddingModel: cfg.EmbeddingModel,
	})
	searchClient := search.NewClient(cfg.TavilyBaseURL, cfg.TavilyAPIKey)
	vectorClient := vector.NewClient(cfg.PineconeIndexHost, cfg.PineconeAPIKey, cfg.PineconeNamespace)

	// ── Handlers ─────────────────────────────────────────────
	authHandler := auth.NewHandler(pgStore, sessions, auth.NewWalletService(pgStore, pgStore), log.WithField("component", "auth"))
	searchHandler := search.NewHandler(searchClient, m, log.WithField("component", "search"))
	researchHandler := research.NewHandler(llmClient, cfg.ReasoningModel, searchClient, m, log.WithField("component", "research"))
	quizHandler := quiz.NewHandler(
		quizStore,
		quiz.NewSources(cfg.TranscriptServiceURL, sourceCache, log.WithField("component", "quiz-sources")),
		quiz.NewGenerator(llmClient),
		m,
		log.WithField("component", "quiz"),
	)
	tags := brain.NewTags(pgStore, cfg.MaxTagsPerUser)
	brainLog := log.WithField("component", "brain")
	brainHandler := brain.NewHandler(
		brain.NewResources(pgStore, tags, llmClient, vectorClient, m, brainLog),
		tags,
		brain.NewRetriever(llmClient, vectorClient, llmClient, m, brainLog),
		brainLog,
	)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logging.Requests(log))
	r.Use(chimw.Recoverer)
	r.Use(m.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Authenticate(sessions, middleware.ProtectedPrefixes, log.WithField("component", "middleware")))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", m.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
		r.Post("/solana/challenge", authHandler.Challenge)
		r.Post("/solana/verify", authHandler.Verify)
	})

	// Model-backed routes share the platform request ceiling.
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.LLMRouteTimeout))
		r.Post("/api/search", searchHandler.Search)
		r.Post("/api/chat", researchHandler.Chat)
		r.Post("/api/research", researchHandler.Research)
		r.Post("/api/quiz", quizHandler.Create)
		r.Post("/api/brain-chat", brainHandler.Chat)
	})
	r.Get("/api/research", researchHandler.History)

	r.Get("/api/quiz", quizHandler.List)
	r.Get("/api/quiz/{id}", quizHandler.Get)
	r.Post("/api/quiz/{id}/score", quizHandler.Score)

	r.Route("/api/resources", func(r chi.Router) {
		r.Post("/", brainHandler.CreateResource)
		r.Get("/", brainHandler.ListResources)
		r.Get("/{id}", brainHandler.GetResource)
		r.Delete("/{id}", brainHandler.DeleteResource)
	})
	r.Post("/api/tags", brainHandler.CreateTag)
	r.Get("/api/tags", brainHandler.ListTags)

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.LLMRouteTimeout + 10*time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("backend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.WithError(err).Warn("shutdown")
	}
}
