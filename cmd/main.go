package main

import (
	"FlatComments/internal/commentlist"
	"FlatComments/internal/contenttypes"
	"FlatComments/internal/liststore"
	"FlatComments/internal/metrics"
	"FlatComments/internal/repository"
	"FlatComments/internal/router"
	"FlatComments/internal/router/handlers"
	"FlatComments/internal/service"
	"FlatComments/pkg/logger"
	"context"
	"errors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/wb-go/wbf/config"
	"go.uber.org/zap"
	"net/http"
)

func main() {
	_ = godotenv.Load()
	cfg := config.New()
	_ = cfg.LoadConfigFiles("./config/config.yaml")
	log, err := logger.NewLogger(cfg.GetString("log_level"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Fatal("Failed to register metrics", zap.Error(err))
	}

	repo, err := repository.NewRepository(cfg.GetString("master_dsn"), cfg.GetStringSlice("slaveDSNs"), log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	for _, tag := range cfg.GetStringSlice("comments.content_types") {
		appLabel, model, err := contenttypes.SplitTag(tag)
		if err != nil {
			log.Fatal("Invalid content type in config", zap.String("tag", tag), zap.Error(err))
		}
		if _, err := repo.EnsureContentType(context.Background(), appLabel, model); err != nil {
			log.Fatal("Failed to register content type", zap.String("tag", tag), zap.Error(err))
		}
	}

	rdb, err := liststore.NewClient(context.Background(), cfg.GetString("redis.addr"), cfg.GetString("redis.password"), cfg.GetInt("redis.db"))
	if err != nil {
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	registry, err := contenttypes.NewRegistry(repo, cfg.GetInt("comments.content_type_cache_size"), log)
	if err != nil {
		log.Fatal("Failed to create content type registry", zap.Error(err))
	}

	index := commentlist.NewIndex(
		liststore.NewStore(rdb, log),
		registry,
		repo,
		commentlist.Config{
			Keys:     liststore.Keys{Namespace: cfg.GetString("comments.namespace"), Version: liststore.DefaultVersion},
			PageSize: cfg.GetInt("comments.page_size"),
		},
		log,
	)
	store := repository.NewCommentStore(repo, index, log)

	serviceComment := service.NewService(store, repo, index, log)
	handlersComment := handlers.NewCommentHandler(*serviceComment)
	rout := router.NewRouter(cfg.GetString("log_level"), handlersComment, log)
	srv := &http.Server{
		Addr:    cfg.GetString("addr"),
		Handler: rout.GetEngine(),
	}
	log.Info("Starting server", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Failed to listen and server", zap.Error(err))
	}
}
