package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/athena-api/athena/internal/ai"
	"github.com/athena-api/athena/internal/chat"
	"github.com/athena-api/athena/internal/config"
	"github.com/athena-api/athena/internal/db"
	"github.com/athena-api/athena/internal/httpapi"
	"github.com/athena-api/athena/internal/httpapi/handlers"
	"github.com/athena-api/athena/internal/sales"
	"github.com/athena-api/athena/internal/store/rabbitmq"
	"github.com/athena-api/athena/internal/store/redisstore"
	"github.com/athena-api/athena/internal/tools"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	gdb, err := db.Open(cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := gdb.AutoMigrate(&sales.Customer{}, &sales.SalesOrder{}); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	if cfg.SeedData {
		if err := sales.Seed(context.Background(), gdb); err != nil {
			log.Fatalf("db seed: %v", err)
		}
		log.Printf("sample data seeded")
	}

	// Provider registry (route by AI_PROVIDER + model)
	reg := ai.NewRegistry()
	reg.Register("ollama", cfg.OllamaModel, func(ctx context.Context, model string) (ai.Provider, error) {
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, model), nil
	})
	reg.Register("openrouter", cfg.OpenRouterModel, func(ctx context.Context, model string) (ai.Provider, error) {
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, model), nil
	})

	provider, err := reg.Get(context.Background(), cfg.AIProvider, "")
	if err != nil {
		log.Fatalf("ai provider: %v", err)
	}

	registry, err := tools.NewRegistry(tools.SalesTools(sales.NewRepoFactory(gdb))...)
	if err != nil {
		log.Fatalf("tool registry: %v", err)
	}

	chatSvc := chat.NewService(provider, registry, cfg.ChatTimeout, cfg.ChatMaxToolRounds)

	var cache *redisstore.Store
	if cfg.RedisAddr != "" {
		cache = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		defer cache.Close()
	}

	var events *rabbitmq.Publisher
	if cfg.RabbitURL != "" {
		events, err = rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatalf("rabbit connect: %v", err)
		}
		defer events.Close()
	}

	h := handlers.NewHandler(cfg, sales.NewRepo(gdb), chatSvc, cache, events)
	router := httpapi.NewRouter(h)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("server started addr=%s provider=%s", cfg.HTTPAddr, cfg.AIProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
