package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ragserver/internal/cache"
	"ragserver/internal/config"
	"ragserver/internal/embedder"
	"ragserver/internal/httpapi"
	"ragserver/internal/ingest"
	"ragserver/internal/llmclient"
	"ragserver/internal/logging"
	"ragserver/internal/metrics"
	"ragserver/internal/objectstore"
	"ragserver/internal/pipeline"
	"ragserver/internal/promptasm"
	"ragserver/internal/retrieve"
	"ragserver/internal/store/relstore"
	"ragserver/internal/store/sessionstore"
	"ragserver/internal/store/vectorstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Log.WithError(err).Fatal("loading configuration")
	}
	logging.Configure(cfg.LogLevel, cfg.LogFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emb := embedder.New(cfg.Embedding, http.DefaultClient)

	vecStore, err := vectorstore.New(cfg.VectorStore, cfg.Embedding.Dimension)
	if err != nil {
		logging.Log.WithError(err).Fatal("connecting to vector store")
	}

	relStore, err := relstore.New(ctx, cfg.Relational.DSN)
	if err != nil {
		logging.Log.WithError(err).Fatal("connecting to relational store")
	}
	defer relStore.Close()

	sessionStore, err := sessionstore.New(ctx, cfg.Session.DSN)
	if err != nil {
		logging.Log.WithError(err).Fatal("connecting to session store")
	}
	defer sessionStore.Close()

	redisCache := cache.New(cfg.Cache)
	defer redisCache.Close()

	objects, err := newObjectStore(ctx, cfg.Objects)
	if err != nil {
		logging.Log.WithError(err).Fatal("constructing object store")
	}

	llm := llmclient.New(cfg.LLM, http.DefaultClient)

	registry := prometheus.NewRegistry()
	promMetrics := metrics.NewPrometheus(registry)

	ingestEngine := ingest.New(emb, vecStore, relStore, objects, promMetrics, cfg.Ingest, cfg.Chunking)
	retrievalEngine := retrieve.New(emb, vecStore, redisCache, llm, promMetrics)
	promptCfg := promptasm.Config{HistoryWindow: cfg.Prompt.HistoryWindow, TokenBudget: cfg.Prompt.TokenBudget}
	pipe := pipeline.New(relStore, sessionStore, retrievalEngine, llm, promptCfg, promMetrics)

	server := httpapi.New(ingestEngine, pipe, cfg.Server.CORSOrigins, registry)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server,
	}

	go func() {
		logging.Log.WithField("addr", cfg.Server.Addr).Info("ragserver listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Log.WithError(err).Fatal("http server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Log.WithError(err).Warn("graceful shutdown did not complete cleanly")
	} else {
		logging.Log.Info("ragserver stopped")
	}
}

func newObjectStore(ctx context.Context, cfg config.ObjectStoreConfig) (objectstore.Store, error) {
	if cfg.Backend == "s3" {
		return objectstore.NewS3(ctx, cfg)
	}
	return objectstore.NewLocal(cfg.UploadDir)
}
