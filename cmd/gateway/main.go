package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kreativo/ai-gateway/internal/api"
	"github.com/kreativo/ai-gateway/internal/assets"
	"github.com/kreativo/ai-gateway/internal/cache"
	"github.com/kreativo/ai-gateway/internal/config"
	"github.com/kreativo/ai-gateway/internal/db"
	"github.com/kreativo/ai-gateway/internal/job"
	"github.com/kreativo/ai-gateway/internal/poll"
	"github.com/kreativo/ai-gateway/internal/provider/deepl"
	"github.com/kreativo/ai-gateway/internal/provider/gpt"
	"github.com/kreativo/ai-gateway/internal/provider/removebg"
	"github.com/kreativo/ai-gateway/internal/provider/replicate"
	"github.com/kreativo/ai-gateway/internal/ratelimit"
	"github.com/kreativo/ai-gateway/internal/service/animator"
	"github.com/kreativo/ai-gateway/internal/service/background"
	"github.com/kreativo/ai-gateway/internal/service/imagegen"
	"github.com/kreativo/ai-gateway/internal/service/text"
	"github.com/kreativo/ai-gateway/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	for _, warning := range cfg.Validate() {
		log.Printf("Config warning: %s", warning)
	}

	log.Printf("Starting Kreativo AI Gateway on port %d", cfg.HTTPPort)

	// Job store: badger-backed so records survive restarts; fall back to the
	// in-memory tracker if the data dir is unusable.
	var store job.Store
	dbStore, err := db.NewStore(cfg.DataDir)
	if err != nil {
		log.Printf("Badger unavailable, using in-memory job tracker: %v", err)
		store = job.NewTracker(cfg.TrackerCapacity)
	} else {
		defer dbStore.Close()
		store = job.NewPersistentStore(dbStore, cfg.JobTTL)
	}

	janitor := job.NewJanitor(store, cfg.JobTTL)
	if err := janitor.Start(); err != nil {
		log.Printf("Janitor failed to start: %v", err)
	}
	defer janitor.Stop()

	assetStore, err := assets.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Asset store error: %v", err)
	}

	resultCache := cache.New(cfg.RedisURL, cfg.CacheTTL)
	defer resultCache.Close()

	limiter := ratelimit.New(cfg.MaxRequestsPerMinute, time.Minute)
	poller := poll.New(store, cfg.PollMaxAttempts, cfg.PollInterval)

	replicateClient := replicate.NewClient(cfg.ReplicateAPIToken)
	gptClient := gpt.NewClient(cfg.OpenAIAPIKey)
	deeplClient := deepl.NewClient(cfg.DeepLAPIKey)

	probes := map[string]api.ProbeFunc{
		"image_generation": replicateClient.CheckAccount,
		"text_generation":  gptClient.CheckAccount,
		"translation":      deeplClient.CheckAccount,
	}

	var remover background.Remover
	if cfg.BackgroundProvider == "replicate" {
		remover = background.NewReplicateRemover(replicateClient, poller)
		probes["background_removal"] = replicateClient.CheckAccount
	} else {
		removeBGClient := removebg.NewClient(cfg.RemoveBGAPIKey)
		remover = background.NewRemoveBGRemover(removeBGClient, assetStore)
		probes["background_removal"] = removeBGClient.CheckAccount
	}
	log.Printf("Background removal provider: %s", remover.Name())

	router := api.NewRouter(api.Deps{
		Config:  cfg,
		Store:   store,
		Limiter: limiter,
		Cache:   resultCache,
		Images: imagegen.New(imagegen.Options{
			Store:        store,
			Poller:       poller,
			Replicate:    replicateClient,
			Cache:        resultCache,
			Assets:       assetStore,
			MaxImageSize: cfg.MaxImageSize,
			MaxBatchSize: cfg.MaxBatchSize,
			ResultTTL:    cfg.ResultCacheTTL,
		}),
		Backgrounds: background.New(store, remover, cfg.MaxBatchSize),
		Texts:       text.New(store, gptClient, deeplClient),
		Animations:  animator.New(store),
		Assets:      assetStore,
		WS:          ws.NewServer(store),
		Probes:      probes,
	})

	// Generation requests stay open while the poller runs, so the write
	// timeout must cover the whole attempt budget.
	writeTimeout := time.Duration(cfg.PollMaxAttempts)*cfg.PollInterval + 30*time.Second

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server listening on %s", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
